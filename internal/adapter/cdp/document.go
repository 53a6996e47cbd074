// Package cdp 通过 Chrome DevTools Protocol 的 Runtime 域把活动页面适配为 dom.Document
package cdp

import (
	"context"
	"errors"
	"sort"
	"strconv"

	"github.com/mafredri/cdp/protocol/runtime"

	"formease/internal/logger"
	"formease/pkg/dom"
)

// Runtime 用到的 Runtime 域方法，*cdp.Client 的 Runtime 字段满足该接口
type Runtime interface {
	Evaluate(ctx context.Context, args *runtime.EvaluateArgs) (*runtime.EvaluateReply, error)
	CallFunctionOn(ctx context.Context, args *runtime.CallFunctionOnArgs) (*runtime.CallFunctionOnReply, error)
	GetProperties(ctx context.Context, args *runtime.GetPropertiesArgs) (*runtime.GetPropertiesReply, error)
	ReleaseObjectGroup(ctx context.Context, args *runtime.ReleaseObjectGroupArgs) error
}

// Document 页面文档，元素引用为远端对象 ID，全部登记在同一对象组内
type Document struct {
	rt    Runtime
	group string
	log   logger.Logger
}

// New 创建文档适配器，group 用于一次性释放本次运行持有的远端对象
func New(rt Runtime, group string, l logger.Logger) *Document {
	if l == nil {
		l = logger.NewNop()
	}
	if group == "" {
		group = "formease"
	}
	return &Document{rt: rt, group: group, log: l}
}

// QueryAll 文档内查询
func (d *Document) QueryAll(ctx context.Context, selector string) ([]dom.Element, error) {
	root, err := d.root(ctx)
	if err != nil {
		return nil, err
	}
	arr, err := d.call(ctx, root, queryScript, false, selector)
	if err != nil {
		return nil, err
	}
	return d.elements(ctx, arr)
}

// GetByID 按 id 查找
func (d *Document) GetByID(ctx context.Context, id string) (dom.Element, error) {
	root, err := d.root(ctx)
	if err != nil {
		return nil, err
	}
	o, err := d.call(ctx, root, byIDScript, false, id)
	if err != nil {
		return nil, err
	}
	return d.element(o), nil
}

// Release 释放本文档持有的全部远端对象
func (d *Document) Release(ctx context.Context) error {
	if err := d.rt.ReleaseObjectGroup(ctx, runtime.NewReleaseObjectGroupArgs(d.group)); err != nil {
		d.log.Debug("释放远端对象组失败", "group", d.group, "error", err)
		return err
	}
	return nil
}

// root 每次重新取 document，页面跳转后旧引用失效
func (d *Document) root(ctx context.Context) (runtime.RemoteObjectID, error) {
	reply, err := d.rt.Evaluate(ctx, runtime.NewEvaluateArgs("document").SetObjectGroup(d.group))
	if err != nil {
		return "", protocolError(err)
	}
	if err := exceptionError(reply.ExceptionDetails); err != nil {
		return "", err
	}
	if reply.Result.ObjectID == nil {
		return "", errors.New("document object unavailable")
	}
	return *reply.Result.ObjectID, nil
}

func (d *Document) call(ctx context.Context, id runtime.RemoteObjectID, fn string, byValue bool, args ...any) (runtime.RemoteObject, error) {
	a := runtime.NewCallFunctionOnArgs(fn).
		SetObjectID(id).
		SetObjectGroup(d.group).
		SetReturnByValue(byValue)
	if len(args) > 0 {
		ca := make([]runtime.CallArgument, len(args))
		for i, v := range args {
			ca[i] = argument(v)
		}
		a.SetArguments(ca)
	}
	reply, err := d.rt.CallFunctionOn(ctx, a)
	if err != nil {
		return runtime.RemoteObject{}, protocolError(err)
	}
	if err := exceptionError(reply.ExceptionDetails); err != nil {
		return runtime.RemoteObject{}, err
	}
	return reply.Result, nil
}

// elements 展开远端数组，按下标排序
func (d *Document) elements(ctx context.Context, arr runtime.RemoteObject) ([]dom.Element, error) {
	if arr.ObjectID == nil {
		return nil, nil
	}
	reply, err := d.rt.GetProperties(ctx, runtime.NewGetPropertiesArgs(*arr.ObjectID).SetOwnProperties(true))
	if err != nil {
		return nil, protocolError(err)
	}
	type indexed struct {
		i  int
		id runtime.RemoteObjectID
	}
	items := make([]indexed, 0, len(reply.Result))
	for _, p := range reply.Result {
		i, err := strconv.Atoi(p.Name)
		if err != nil || p.Value == nil || p.Value.ObjectID == nil {
			continue
		}
		items = append(items, indexed{i: i, id: *p.Value.ObjectID})
	}
	sort.Slice(items, func(a, b int) bool { return items[a].i < items[b].i })

	out := make([]dom.Element, len(items))
	for k, it := range items {
		out[k] = &Element{doc: d, id: it.id}
	}
	return out, nil
}

func (d *Document) element(o runtime.RemoteObject) dom.Element {
	if isNull(o) || o.ObjectID == nil {
		return nil
	}
	return &Element{doc: d, id: *o.ObjectID}
}
