package cdp

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/mafredri/cdp/protocol/runtime"
	"github.com/tidwall/gjson"

	"formease/pkg/dom"
)

// ToSnapshot 把 snapshotScript 的返回值转换为 dom.Snapshot
func ToSnapshot(raw []byte) (dom.Snapshot, error) {
	if !gjson.ValidBytes(raw) {
		return dom.Snapshot{}, errors.New("invalid snapshot payload")
	}
	v := gjson.ParseBytes(raw)
	s := dom.Snapshot{
		Tag:             strings.ToLower(v.Get("tag").String()),
		Attrs:           map[string]string{},
		Value:           v.Get("value").String(),
		Disabled:        v.Get("disabled").Bool(),
		ReadOnly:        v.Get("readOnly").Bool(),
		Required:        v.Get("required").Bool(),
		Checked:         v.Get("checked").Bool(),
		ContentEditable: v.Get("contentEditable").Bool(),
		Connected:       v.Get("connected").Bool(),
		InLayout:        v.Get("inLayout").Bool(),
		Style: dom.Style{
			Display:    v.Get("display").String(),
			Visibility: v.Get("visibility").String(),
			Opacity:    1,
		},
		Rect: dom.Rect{
			Width:  v.Get("width").Float(),
			Height: v.Get("height").Float(),
		},
	}
	if op := v.Get("opacity"); op.Exists() {
		s.Style.Opacity = op.Float()
	}
	v.Get("attrs").ForEach(func(k, val gjson.Result) bool {
		s.Attrs[strings.ToLower(k.String())] = val.String()
		return true
	})
	return s, nil
}

// ToOptions 把 optionsScript 的返回值转换为选项列表
func ToOptions(raw []byte) ([]dom.Option, error) {
	if !gjson.ValidBytes(raw) {
		return nil, errors.New("invalid options payload")
	}
	items := gjson.ParseBytes(raw).Array()
	out := make([]dom.Option, 0, len(items))
	for _, it := range items {
		out = append(out, dom.Option{
			Value:    it.Get("value").String(),
			Text:     it.Get("text").String(),
			Selected: it.Get("selected").Bool(),
		})
	}
	return out, nil
}

// exceptionError 把脚本异常转换为 error
func exceptionError(d *runtime.ExceptionDetails) error {
	if d == nil {
		return nil
	}
	msg := d.Text
	if d.Exception != nil && d.Exception.Description != nil {
		msg = *d.Exception.Description
	}
	if strings.Contains(msg, detachedMarker) {
		return dom.ErrDetached
	}
	return fmt.Errorf("script exception at %d:%d: %s", d.LineNumber, d.ColumnNumber, msg)
}

// protocolError 对象失效类错误统一为 dom.ErrDetached
func protocolError(err error) error {
	if err == nil {
		return nil
	}
	if strings.Contains(err.Error(), "Could not find object with given id") ||
		strings.Contains(err.Error(), "Cannot find context with specified id") {
		return fmt.Errorf("%w: %v", dom.ErrDetached, err)
	}
	return err
}

// isNull 远端对象为 null 或 undefined
func isNull(o runtime.RemoteObject) bool {
	if o.Type == "undefined" {
		return true
	}
	return o.Subtype != nil && *o.Subtype == "null"
}

// argument 构造按值传递的调用参数
func argument(v any) runtime.CallArgument {
	b, err := json.Marshal(v)
	if err != nil {
		b = []byte("null")
	}
	return runtime.CallArgument{Value: b}
}
