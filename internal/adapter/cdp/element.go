package cdp

import (
	"context"
	"errors"

	"github.com/mafredri/cdp/protocol/runtime"
	"github.com/tidwall/gjson"

	"formease/pkg/dom"
)

// Element 远端元素引用
type Element struct {
	doc *Document
	id  runtime.RemoteObjectID
}

// Snapshot 一次调用读取属性、状态、计算样式与包围盒；引用失效时视为已脱离文档
func (e *Element) Snapshot(ctx context.Context) (dom.Snapshot, error) {
	o, err := e.doc.call(ctx, e.id, snapshotScript, true)
	if errors.Is(err, dom.ErrDetached) {
		return dom.Snapshot{}, nil
	}
	if err != nil {
		return dom.Snapshot{}, err
	}
	return ToSnapshot(o.Value)
}

func (e *Element) Text(ctx context.Context) (string, error) {
	o, err := e.doc.call(ctx, e.id, textScript, true)
	if err != nil {
		return "", err
	}
	return gjson.ParseBytes(o.Value).String(), nil
}

func (e *Element) Parent(ctx context.Context) (dom.Element, error) {
	o, err := e.doc.call(ctx, e.id, parentScript, false)
	if err != nil {
		return nil, err
	}
	return e.doc.element(o), nil
}

func (e *Element) Closest(ctx context.Context, selector string) (dom.Element, error) {
	o, err := e.doc.call(ctx, e.id, closestScript, false, selector)
	if err != nil {
		return nil, err
	}
	return e.doc.element(o), nil
}

func (e *Element) QueryAll(ctx context.Context, selector string) ([]dom.Element, error) {
	arr, err := e.doc.call(ctx, e.id, queryScript, false, selector)
	if err != nil {
		return nil, err
	}
	return e.doc.elements(ctx, arr)
}

func (e *Element) Focus(ctx context.Context) error { return e.exec(ctx, focusScript) }

func (e *Element) Click(ctx context.Context) error { return e.exec(ctx, clickScript) }

func (e *Element) SetValue(ctx context.Context, value string) error {
	return e.exec(ctx, setValueScript, value)
}

func (e *Element) SetText(ctx context.Context, text string) error {
	return e.exec(ctx, setTextScript, text)
}

func (e *Element) Dispatch(ctx context.Context, eventType string) error {
	return e.exec(ctx, dispatchScript, eventType)
}

func (e *Element) AddClass(ctx context.Context, class string) error {
	return e.exec(ctx, addClassScript, class)
}

func (e *Element) RemoveClass(ctx context.Context, class string) error {
	return e.exec(ctx, removeClassScript, class)
}

func (e *Element) Options(ctx context.Context) ([]dom.Option, error) {
	o, err := e.doc.call(ctx, e.id, optionsScript, true)
	if err != nil {
		return nil, err
	}
	return ToOptions(o.Value)
}

func (e *Element) SelectOption(ctx context.Context, index int) error {
	return e.exec(ctx, selectScript, index)
}

func (e *Element) exec(ctx context.Context, fn string, args ...any) error {
	_, err := e.doc.call(ctx, e.id, fn, true, args...)
	return err
}
