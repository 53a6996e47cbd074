// Package htmldoc 基于解析后 HTML 树的离线文档适配器
//
// 可见性从内联 style、hidden 属性沿祖先链计算；值写入会同步回 HTML 属性，
// 因此 Render 输出即为填写后的表单。
package htmldoc

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"formease/pkg/dom"
)

// Document 离线文档
type Document struct {
	doc     *goquery.Document
	events  map[*html.Node][]string
	onClick []func(*Element)
	active  *html.Node
}

var _ dom.Document = (*Document)(nil)

// Parse 解析 HTML
func Parse(r io.Reader) (*Document, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	return &Document{doc: doc, events: make(map[*html.Node][]string)}, nil
}

// MustParseString 解析 HTML 字符串，失败时 panic，用于测试夹具
func MustParseString(s string) *Document {
	d, err := Parse(strings.NewReader(s))
	if err != nil {
		panic(err)
	}
	return d
}

// Find 直接访问底层选择集，可用于修改文档
func (d *Document) Find(selector string) *goquery.Selection {
	return d.doc.Find(selector)
}

// OnClick 注册点击回调，用于模拟页面对点击的响应（如展开下拉）
func (d *Document) OnClick(fn func(*Element)) {
	d.onClick = append(d.onClick, fn)
}

// Render 序列化当前文档
func (d *Document) Render(w io.Writer) error {
	return html.Render(w, d.doc.Nodes[0])
}

// QueryAll 按文档顺序返回匹配元素
func (d *Document) QueryAll(ctx context.Context, selector string) ([]dom.Element, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return d.wrap(d.doc.Find(selector)), nil
}

// GetByID 按 id 查找
func (d *Document) GetByID(ctx context.Context, id string) (dom.Element, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if id == "" {
		return nil, nil
	}
	var found *html.Node
	d.doc.Find("[id]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if v, _ := s.Attr("id"); v == id {
			found = s.Nodes[0]
			return false
		}
		return true
	})
	if found == nil {
		return nil, nil
	}
	return d.element(found), nil
}

// Element 返回包装后的元素（测试辅助），未命中返回 nil
func (d *Document) Element(selector string) *Element {
	s := d.doc.Find(selector).First()
	if s.Length() == 0 {
		return nil
	}
	return d.element(s.Nodes[0])
}

// Events 返回元素上派发过的事件序列
func (d *Document) Events(e *Element) []string {
	return append([]string(nil), d.events[e.node]...)
}

// ActiveElement 当前获得焦点的元素
func (d *Document) ActiveElement() *Element {
	if d.active == nil {
		return nil
	}
	return d.element(d.active)
}

func (d *Document) record(n *html.Node, ev string) {
	d.events[n] = append(d.events[n], ev)
}

func (d *Document) wrap(s *goquery.Selection) []dom.Element {
	out := make([]dom.Element, 0, s.Length())
	for _, n := range s.Nodes {
		out = append(out, d.element(n))
	}
	return out
}

func (d *Document) element(n *html.Node) *Element {
	return &Element{doc: d, node: n}
}

// connected 节点是否仍挂在文档根下
func (d *Document) connected(n *html.Node) bool {
	root := d.doc.Nodes[0]
	for p := n; p != nil; p = p.Parent {
		if p == root {
			return true
		}
	}
	return false
}
