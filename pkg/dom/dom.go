// Package dom 定义核心依赖的文档适配器能力接口，宿主环境提供具体实现
package dom

import (
	"context"
	"errors"
	"strings"
)

// ErrDetached 元素已不在活动文档中
var ErrDetached = errors.New("element detached from document")

// Document 文档能力
type Document interface {
	// QueryAll 按文档顺序返回匹配选择器的全部元素
	QueryAll(ctx context.Context, selector string) ([]Element, error)

	// GetByID 按 id 查找元素，不存在时返回 nil, nil
	GetByID(ctx context.Context, id string) (Element, error)
}

// Element 元素能力，每次调用都读取活动文档，不做缓存
type Element interface {
	Snapshot(ctx context.Context) (Snapshot, error)

	// Text 返回元素渲染文本，多行以 \n 连接
	Text(ctx context.Context) (string, error)

	// Parent 返回父元素，根元素返回 nil, nil
	Parent(ctx context.Context) (Element, error)

	// Closest 返回匹配选择器的最近祖先（含自身），无则 nil, nil
	Closest(ctx context.Context, selector string) (Element, error)

	QueryAll(ctx context.Context, selector string) ([]Element, error)

	Focus(ctx context.Context) error
	Click(ctx context.Context) error
	SetValue(ctx context.Context, value string) error
	SetText(ctx context.Context, text string) error

	// Dispatch 派发冒泡的合成事件（input/change 等）
	Dispatch(ctx context.Context, eventType string) error

	AddClass(ctx context.Context, class string) error
	RemoveClass(ctx context.Context, class string) error

	// Options 返回原生 select 的选项
	Options(ctx context.Context) ([]Option, error)

	// SelectOption 选中指定下标的选项
	SelectOption(ctx context.Context, index int) error
}

// Option 下拉选项
type Option struct {
	Value    string `json:"value"`
	Text     string `json:"text"`
	Selected bool   `json:"selected"`
}

// Style 计算样式中与可见性相关的部分
type Style struct {
	Display    string  `json:"display"`
	Visibility string  `json:"visibility"`
	Opacity    float64 `json:"opacity"`
}

// Rect 元素包围盒
type Rect struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Snapshot 单次读取的元素状态
type Snapshot struct {
	Tag             string            `json:"tag"`
	Attrs           map[string]string `json:"attrs"`
	Value           string            `json:"value"`
	Disabled        bool              `json:"disabled"`
	ReadOnly        bool              `json:"readOnly"`
	Required        bool              `json:"required"`
	Checked         bool              `json:"checked"`
	ContentEditable bool              `json:"contentEditable"`
	Connected       bool              `json:"connected"`
	InLayout        bool              `json:"inLayout"`
	Style           Style             `json:"style"`
	Rect            Rect              `json:"rect"`
}

// Attr 读取属性，不存在返回空串
func (s Snapshot) Attr(name string) string {
	if s.Attrs == nil {
		return ""
	}
	return s.Attrs[strings.ToLower(name)]
}

// HasAttr 判断属性是否存在
func (s Snapshot) HasAttr(name string) bool {
	if s.Attrs == nil {
		return false
	}
	_, ok := s.Attrs[strings.ToLower(name)]
	return ok
}

// HasSize 包围盒非空
func (s Snapshot) HasSize() bool {
	return s.Rect.Width > 0 && s.Rect.Height > 0
}

// Visible 计算样式可见、包围盒非空且位于布局树中
func Visible(s Snapshot) bool {
	if strings.EqualFold(s.Style.Display, "none") {
		return false
	}
	if strings.EqualFold(s.Style.Visibility, "hidden") {
		return false
	}
	if s.Style.Opacity <= 0 {
		return false
	}
	return s.HasSize() && s.InLayout
}
