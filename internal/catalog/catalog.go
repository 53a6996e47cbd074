package catalog

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"formease/internal/logger"
	"formease/pkg/dom"
	"formease/pkg/model"
)

// FillableSelector 参与扫描的控件类别，按文档顺序一次查询
const FillableSelector = `input:not([type]), input[type="text"], input[type="email"], input[type="tel"], ` +
	`input[type="number"], input[type="url"], input[type="search"], input[type="radio"], ` +
	`select, textarea, [role="textbox"], [role="combobox"], [role="listbox"], [role="radiogroup"]`

// 复合控件的角色，其内部的原生控件不再单独收录
const compositeSelector = `[role="textbox"], [role="combobox"], [role="listbox"], [role="radiogroup"]`

// DefaultCooldown 缓存有效期
const DefaultCooldown = time.Second

// DetectionError 单个控件元数据提取失败
type DetectionError struct {
	Index int
	Err   error
}

func (e *DetectionError) Error() string {
	return fmt.Sprintf("detect control #%d: %v", e.Index, e.Err)
}

func (e *DetectionError) Unwrap() error { return e.Err }

// Config 目录配置
type Config struct {
	Cooldown time.Duration
	Now      func() time.Time
	Logger   logger.Logger
}

// Catalog 持有一个文档的描述符缓存，失效时整体重建
type Catalog struct {
	mu        sync.Mutex
	doc       dom.Document
	cooldown  time.Duration
	now       func() time.Time
	log       logger.Logger
	cache     []*model.FieldDescriptor
	scannedAt time.Time
}

// New 创建字段目录
func New(doc dom.Document, cfg Config) *Catalog {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.NewNop()
	}
	if cfg.Cooldown < 0 {
		cfg.Cooldown = DefaultCooldown
	}
	return &Catalog{doc: doc, cooldown: cfg.Cooldown, now: cfg.Now, log: cfg.Logger}
}

// Detect 返回可填写字段；未强制刷新且缓存未过期时原样返回缓存
func (c *Catalog) Detect(ctx context.Context, forceRefresh bool) ([]*model.FieldDescriptor, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !forceRefresh && len(c.cache) > 0 && c.now().Sub(c.scannedAt) < c.cooldown {
		c.log.Debug("命中字段缓存", "count", len(c.cache))
		return c.cache, nil
	}

	c.cache = nil
	fields, err := c.scan(ctx)
	if err != nil {
		return nil, err
	}
	c.cache = fields
	c.scannedAt = c.now()
	c.log.Info("字段扫描完成", "count", len(fields))
	return fields, nil
}

// Refresh 强制重新扫描
func (c *Catalog) Refresh(ctx context.Context) ([]*model.FieldDescriptor, error) {
	return c.Detect(ctx, true)
}

// Invalidate 丢弃缓存
func (c *Catalog) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cache = nil
	c.scannedAt = time.Time{}
}

func (c *Catalog) scan(ctx context.Context) ([]*model.FieldDescriptor, error) {
	elements, err := c.doc.QueryAll(ctx, FillableSelector)
	if err != nil {
		return nil, fmt.Errorf("query fillable controls: %w", err)
	}

	stamp := c.now().UnixMilli()
	ids := make(map[string]struct{}, len(elements))
	radioGroups := make(map[string]struct{})
	out := make([]*model.FieldDescriptor, 0, len(elements))

	for i, el := range elements {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		f, err := c.describe(ctx, el, radioGroups)
		if err != nil {
			derr := &DetectionError{Index: i, Err: err}
			c.log.Warn("跳过无法解析的控件", "index", i, "error", derr)
			continue
		}
		if f == nil {
			continue
		}

		f.ID = f.HTMLID
		if f.ID == "" {
			f.ID = f.Name
		}
		if _, dup := ids[f.ID]; f.ID == "" || dup {
			f.ID = fmt.Sprintf("field_%d_%d", i, stamp)
		}
		ids[f.ID] = struct{}{}
		out = append(out, f)
	}
	return out, nil
}

// describe 提取单个控件元数据，不可填写时返回 nil, nil
func (c *Catalog) describe(ctx context.Context, el dom.Element, radioGroups map[string]struct{}) (f *model.FieldDescriptor, err error) {
	defer func() {
		if r := recover(); r != nil {
			f, err = nil, fmt.Errorf("panic: %v", r)
		}
	}()

	snap, err := el.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	if snap.Disabled || snap.ReadOnly || !dom.Visible(snap) {
		return nil, nil
	}

	kind := KindOf(snap)
	if !isComposite(snap) {
		nested, err := insideComposite(ctx, el)
		if err != nil {
			return nil, err
		}
		if nested {
			return nil, nil
		}
	}

	if isRadioInput(snap) {
		name := snap.Attr("name")
		if name != "" {
			if _, seen := radioGroups[name]; seen {
				return nil, nil
			}
			radioGroups[name] = struct{}{}
		}
	}

	f = &model.FieldDescriptor{
		Kind:        kind,
		Name:        snap.Attr("name"),
		HTMLID:      snap.Attr("id"),
		Placeholder: firstNonEmpty(snap.Attr("placeholder"), snap.Attr("aria-placeholder"), snap.Attr("data-placeholder")),
		AriaLabel:   strings.TrimSpace(snap.Attr("aria-label")),
		Title:       snap.Attr("title"),
		DataName:    firstNonEmpty(snap.Attr("data-name"), snap.Attr("data-field")),
		Value:       snap.Value,
		Required:    snap.Required,
		Control:     el,
	}
	if isRadioInput(snap) {
		f.Value = ""
	}
	if n, err := strconv.Atoi(strings.TrimSpace(snap.Attr("maxlength"))); err == nil && n > 0 {
		f.MaxLength = n
	}
	f.Min = parseBound(snap.Attr("min"))
	f.Max = parseBound(snap.Attr("max"))

	if isRadioInput(snap) {
		f.Label, err = groupLabelOf(ctx, c.doc, el, snap)
	} else {
		f.Label, err = LabelOf(ctx, c.doc, el, snap)
	}
	if err != nil {
		return nil, fmt.Errorf("resolve label: %w", err)
	}

	f.ComputeIdentifier()
	return f, nil
}

// KindOf 由标签、type 与 role 推断控件类别
func KindOf(s dom.Snapshot) model.FieldKind {
	switch strings.ToLower(s.Attr("role")) {
	case "combobox":
		return model.KindCombobox
	case "listbox":
		return model.KindListbox
	case "radiogroup":
		return model.KindRadioGroup
	case "textbox":
		if s.Tag != "input" && s.Tag != "textarea" {
			return model.KindDivTextbox
		}
	}
	switch s.Tag {
	case "select":
		return model.KindSelect
	case "textarea":
		return model.KindTextarea
	case "input":
		switch strings.ToLower(s.Attr("type")) {
		case "email":
			return model.KindEmail
		case "tel":
			return model.KindTel
		case "number":
			return model.KindNumber
		case "url":
			return model.KindURL
		case "radio":
			return model.KindRadioGroup
		case "", "text", "search":
			return model.KindText
		}
	}
	return model.KindUnknown
}

func isComposite(s dom.Snapshot) bool {
	switch strings.ToLower(s.Attr("role")) {
	case "textbox", "combobox", "listbox", "radiogroup":
		return true
	}
	return false
}

func isRadioInput(s dom.Snapshot) bool {
	return s.Tag == "input" && strings.EqualFold(s.Attr("type"), "radio")
}

func insideComposite(ctx context.Context, el dom.Element) (bool, error) {
	p, err := el.Parent(ctx)
	if err != nil || p == nil {
		return false, err
	}
	anc, err := p.Closest(ctx, compositeSelector)
	if err != nil {
		return false, err
	}
	return anc != nil, nil
}

func parseBound(s string) *float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return &f
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
