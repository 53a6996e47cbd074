package ctxkeys

import "context"

// RunIDKey 填写运行 ID 在 context 中的键
type RunIDKey struct{}

// WithRunID 把运行 ID 写入 context
func WithRunID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, RunIDKey{}, id)
}

// RunID 读取运行 ID，未设置时返回空串
func RunID(ctx context.Context) string {
	id, _ := ctx.Value(RunIDKey{}).(string)
	return id
}
