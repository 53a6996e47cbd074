package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"formease/internal/fill"
	"formease/internal/logger"
	"formease/pkg/model"
)

// 运行级失败
var (
	ErrNoFields  = errors.New("no fillable fields")
	ErrNoMatches = errors.New("no matching fields")
	ErrTimeout   = errors.New("timeout")
	ErrDetection = errors.New("detect fields")
)

// Category 把运行级错误映射为失败类别
func Category(err error) model.FailureCategory {
	switch {
	case err == nil:
		return model.CategoryNone
	case errors.Is(err, ErrNoFields):
		return model.CategoryNoFields
	case errors.Is(err, ErrNoMatches):
		return model.CategoryNoMatches
	case errors.Is(err, ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return model.CategoryTimeout
	case errors.Is(err, ErrDetection):
		return model.CategoryDetectionFailed
	default:
		return model.CategoryRunFailed
	}
}

// Detector 字段检测
type Detector interface {
	Detect(ctx context.Context, forceRefresh bool) ([]*model.FieldDescriptor, error)
}

// Matcher 字段匹配
type Matcher interface {
	Match(fields []*model.FieldDescriptor, data map[string]string, custom map[string]model.AliasMapping) []model.MatchCandidate
}

// Filler 单字段填写
type Filler interface {
	Fill(ctx context.Context, c model.MatchCandidate) (fill.Outcome, error)
	Settle(ctx context.Context)
}

// Clock 时间源，暂停点使用 Sleep
type Clock interface {
	Now() time.Time
	Sleep(ctx context.Context, d time.Duration) error
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) Sleep(ctx context.Context, d time.Duration) error { return fill.Sleep(ctx, d) }

// RealClock 系统时钟
func RealClock() Clock { return realClock{} }

// Config 编排器配置
type Config struct {
	RunTimeout      time.Duration
	FieldTimeout    time.Duration
	InterFieldDelay time.Duration
	Clock           Clock
	Logger          logger.Logger
}

// Orchestrator 串联 检测 -> 匹配 -> 逐个填写 -> 汇总，跨运行不保留状态
type Orchestrator struct {
	detector Detector
	matcher  Matcher
	filler   Filler
	cfg      Config
	log      logger.Logger
}

// New 创建编排器
func New(d Detector, m Matcher, f Filler, cfg Config) *Orchestrator {
	if cfg.Clock == nil {
		cfg.Clock = RealClock()
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.NewNop()
	}
	if cfg.RunTimeout <= 0 {
		cfg.RunTimeout = 30 * time.Second
	}
	if cfg.FieldTimeout <= 0 {
		cfg.FieldTimeout = 5 * time.Second
	}
	return &Orchestrator{detector: d, matcher: m, filler: f, cfg: cfg, log: cfg.Logger}
}

// Run 执行一次完整填写。返回的结果始终非空；运行级失败时 error 为
// ErrNoFields / ErrNoMatches / ErrTimeout 之一
func (o *Orchestrator) Run(ctx context.Context, data map[string]string, custom map[string]model.AliasMapping) (*model.FillResult, error) {
	clock := o.cfg.Clock
	start := clock.Now()
	res := model.NewFillResult()
	defer func() {
		res.DurationMS = clock.Now().Sub(start).Milliseconds()
	}()

	fields, err := o.detector.Detect(ctx, true)
	if err != nil {
		return res, fmt.Errorf("%w: %w", ErrDetection, err)
	}
	res.Detected = len(fields)
	if len(fields) == 0 {
		o.log.Warn("页面没有可填写字段")
		return res, ErrNoFields
	}

	candidates := o.matcher.Match(fields, data, custom)
	if len(candidates) == 0 {
		o.log.Warn("没有字段与数据匹配", "detected", len(fields), "keys", len(data))
		return res, ErrNoMatches
	}
	o.log.Info("开始填写", "detected", len(fields), "matched", len(candidates))

	deadline := start.Add(o.cfg.RunTimeout)
	attempted := 0
	for i, c := range candidates {
		if i > 0 {
			if err := clock.Sleep(ctx, o.cfg.InterFieldDelay); err != nil {
				res.AddWarning(fmt.Sprintf("fill interrupted: %v, %d fields not attempted", err, len(candidates)-i))
				break
			}
		}
		if !clock.Now().Before(deadline) {
			res.AddWarning(fmt.Sprintf("fill stopped early: run timeout %s exceeded, %d fields not attempted",
				o.cfg.RunTimeout, len(candidates)-i))
			o.log.Warn("全局超时，停止填写", "attempted", attempted, "remaining", len(candidates)-i)
			break
		}

		attempted++
		o.fillOne(ctx, c, res)
	}

	o.filler.Settle(ctx)
	o.log.Info("填写运行完成", "detected", res.Detected, "filled", res.Filled, "skipped", res.Skipped, "errors", len(res.Errors))

	if attempted == 0 {
		return res, ErrTimeout
	}
	return res, nil
}

// fillOne 单字段独立限时，错误与超时都只记录在结果中
func (o *Orchestrator) fillOne(ctx context.Context, c model.MatchCandidate, res *model.FillResult) {
	fctx, cancel := context.WithTimeout(ctx, o.cfg.FieldTimeout)
	defer cancel()

	id := fieldID(c)
	out, err := o.filler.Fill(fctx, c)
	res.Warnings = append(res.Warnings, out.Warnings...)

	switch {
	case err != nil && errors.Is(err, context.DeadlineExceeded):
		res.Skipped++
		res.AddError(id, fmt.Sprintf("timed out after %s", o.cfg.FieldTimeout))
		o.log.Warn("字段填写超时", "field", id)
	case err != nil:
		res.Skipped++
		res.AddError(id, err.Error())
		o.log.Err(err, "字段填写失败", "field", id)
	case out.Applied:
		res.Filled++
		res.Fields = append(res.Fields, model.FilledField{FieldIdentifier: id, DataKey: c.DataKey, Confidence: c.Confidence})
	default:
		res.Skipped++
		o.log.Debug("字段跳过", "field", id, "reason", out.Reason)
	}
}

func fieldID(c model.MatchCandidate) string {
	if c.Field == nil {
		return ""
	}
	return c.Field.ID
}
