package fill

import (
	"context"
	"errors"
	"fmt"
	"time"

	"formease/internal/logger"
	"formease/pkg/dom"
	"formease/pkg/model"
)

// MarkerClass 填写期间附加在控件上的临时样式
const MarkerClass = "formease-filling"

// FillError 策略执行中的不可恢复错误，携带字段标识与控件类别
type FillError struct {
	Field string
	Kind  model.FieldKind
	Err   error
}

func (e *FillError) Error() string {
	return fmt.Sprintf("fill %s (%s): %v", e.Field, e.Kind, e.Err)
}

func (e *FillError) Unwrap() error { return e.Err }

// Outcome 单个字段的填写结果；Applied 为 false 时 Reason 说明跳过原因
type Outcome struct {
	Applied  bool
	Reason   string
	Warnings []string
}

func skip(reason string) Outcome { return Outcome{Reason: reason} }

// SleepFunc 可被 ctx 打断的等待
type SleepFunc func(ctx context.Context, d time.Duration) error

// Sleep 基于 time.Timer 的等待实现
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Config 分发器配置
type Config struct {
	Animation       time.Duration
	OptionScanDelay time.Duration
	StrictOptions   bool
	Now             func() time.Time
	Sleep           SleepFunc
	Logger          logger.Logger
}

type marker struct {
	el       dom.Element
	removeAt time.Time
}

// Dispatcher 按控件类别执行填写策略
type Dispatcher struct {
	doc     dom.Document
	cfg     Config
	log     logger.Logger
	markers []marker
}

// New 创建分发器，doc 用于单选组成员与下拉选项的查找
func New(doc dom.Document, cfg Config) *Dispatcher {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Sleep == nil {
		cfg.Sleep = Sleep
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.NewNop()
	}
	return &Dispatcher{doc: doc, cfg: cfg, log: cfg.Logger}
}

// Fill 填写一个匹配项；前置条件不满足或值无效时返回未应用的 Outcome，策略异常包装为 FillError
func (d *Dispatcher) Fill(ctx context.Context, c model.MatchCandidate) (out Outcome, err error) {
	f := c.Field
	if f == nil || f.Control == nil {
		return skip("no control reference"), nil
	}
	d.expireMarkers(ctx, false)

	el := f.Control
	snap, err := el.Snapshot(ctx)
	if err != nil {
		return Outcome{}, d.wrap(f, err)
	}
	switch {
	case !snap.Connected:
		return skip("control detached from document"), nil
	case snap.Disabled:
		return skip("control disabled"), nil
	case snap.ReadOnly:
		return skip("control read-only"), nil
	case !snap.HasSize():
		return skip("control has no layout size"), nil
	}

	if err := el.AddClass(ctx, MarkerClass); err != nil {
		d.log.Debug("添加填写标记失败", "field", f.ID, "error", err)
	}
	d.markers = append(d.markers, marker{el: el, removeAt: d.cfg.Now().Add(d.cfg.Animation)})

	defer func() {
		if r := recover(); r != nil {
			out, err = Outcome{}, d.wrap(f, fmt.Errorf("panic: %v", r))
		}
	}()

	out, err = d.dispatch(ctx, f, el, snap, c.Value)
	if err != nil {
		return Outcome{}, d.wrap(f, err)
	}
	if out.Applied {
		d.log.Debug("字段已填写", "field", f.ID, "kind", string(f.Kind), "dataKey", c.DataKey)
	} else {
		d.log.Debug("字段跳过", "field", f.ID, "kind", string(f.Kind), "reason", out.Reason)
	}
	return out, nil
}

func (d *Dispatcher) dispatch(ctx context.Context, f *model.FieldDescriptor, el dom.Element, snap dom.Snapshot, value string) (Outcome, error) {
	switch f.Kind {
	case model.KindText, model.KindTextarea, model.KindUnknown:
		return d.fillText(ctx, f, el, value)
	case model.KindEmail:
		return d.fillEmail(ctx, f, el, value)
	case model.KindTel:
		return d.fillTel(ctx, f, el, value)
	case model.KindNumber:
		return d.fillNumber(ctx, f, el, value)
	case model.KindURL:
		return d.fillURL(ctx, f, el, value)
	case model.KindSelect:
		return d.fillSelect(ctx, el, snap, value)
	case model.KindDivTextbox:
		return d.fillDivTextbox(ctx, el, snap, value)
	case model.KindCombobox, model.KindListbox:
		return d.fillDropdown(ctx, f, el, value)
	case model.KindRadioGroup:
		return d.fillRadioGroup(ctx, el, snap, value)
	default:
		return Outcome{}, fmt.Errorf("unsupported control kind %q", f.Kind)
	}
}

// Settle 等待所有标记到期并移除，运行结束时调用
func (d *Dispatcher) Settle(ctx context.Context) {
	d.expireMarkers(ctx, true)
}

// expireMarkers 移除到期标记；wait 为 true 时先等待最晚的标记到期
func (d *Dispatcher) expireMarkers(ctx context.Context, wait bool) {
	if len(d.markers) == 0 {
		return
	}
	rctx := context.WithoutCancel(ctx)
	if wait {
		last := d.markers[len(d.markers)-1].removeAt
		if remaining := last.Sub(d.cfg.Now()); remaining > 0 {
			_ = d.cfg.Sleep(ctx, remaining)
		}
	}
	now := d.cfg.Now()
	kept := d.markers[:0]
	for _, m := range d.markers {
		if !wait && m.removeAt.After(now) {
			kept = append(kept, m)
			continue
		}
		if err := m.el.RemoveClass(rctx, MarkerClass); err != nil && !errors.Is(err, dom.ErrDetached) {
			d.log.Debug("移除填写标记失败", "error", err)
		}
	}
	d.markers = kept
}

func (d *Dispatcher) wrap(f *model.FieldDescriptor, err error) error {
	var fe *FillError
	if errors.As(err, &fe) {
		return err
	}
	return &FillError{Field: f.ID, Kind: f.Kind, Err: err}
}

// notify 派发 input/change，让页面上的校验与框架感知变更
func notify(ctx context.Context, el dom.Element) error {
	if err := el.Dispatch(ctx, "input"); err != nil {
		return err
	}
	return el.Dispatch(ctx, "change")
}
