package htmldoc

import (
	"context"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"formease/pkg/dom"
)

// 未声明尺寸时的默认包围盒
const (
	defaultWidth  = 120
	defaultHeight = 24
)

// Element 离线文档中的元素
type Element struct {
	doc  *Document
	node *html.Node
}

var _ dom.Element = (*Element)(nil)

func (e *Element) sel() *goquery.Selection {
	return goquery.NewDocumentFromNode(e.node).Selection
}

func (e *Element) attr(name string) (string, bool) {
	for _, a := range e.node.Attr {
		if strings.EqualFold(a.Key, name) {
			return a.Val, true
		}
	}
	return "", false
}

func (e *Element) setAttr(name, val string) {
	for i := range e.node.Attr {
		if strings.EqualFold(e.node.Attr[i].Key, name) {
			e.node.Attr[i].Val = val
			return
		}
	}
	e.node.Attr = append(e.node.Attr, html.Attribute{Key: name, Val: val})
}

func (e *Element) removeAttr(name string) {
	out := e.node.Attr[:0]
	for _, a := range e.node.Attr {
		if !strings.EqualFold(a.Key, name) {
			out = append(out, a)
		}
	}
	e.node.Attr = out
}

func (e *Element) tag() string { return strings.ToLower(e.node.Data) }

func (e *Element) inputType() string {
	t, _ := e.attr("type")
	return strings.ToLower(strings.TrimSpace(t))
}

// Snapshot 读取元素状态
func (e *Element) Snapshot(ctx context.Context) (dom.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return dom.Snapshot{}, err
	}
	s := dom.Snapshot{
		Tag:       e.tag(),
		Attrs:     make(map[string]string, len(e.node.Attr)),
		Connected: e.doc.connected(e.node),
	}
	for _, a := range e.node.Attr {
		s.Attrs[strings.ToLower(a.Key)] = a.Val
	}
	s.Value = e.value()
	_, s.Disabled = s.Attrs["disabled"]
	_, s.ReadOnly = s.Attrs["readonly"]
	if strings.EqualFold(s.Attrs["aria-readonly"], "true") {
		s.ReadOnly = true
	}
	_, s.Required = s.Attrs["required"]
	if strings.EqualFold(s.Attrs["aria-required"], "true") {
		s.Required = true
	}
	_, s.Checked = s.Attrs["checked"]
	if ce, ok := s.Attrs["contenteditable"]; ok {
		ce = strings.ToLower(strings.TrimSpace(ce))
		s.ContentEditable = ce == "" || ce == "true" || ce == "plaintext-only"
	}
	e.computeLayout(&s)
	return s, nil
}

// computeLayout 沿祖先链合并内联样式
func (e *Element) computeLayout(s *dom.Snapshot) {
	s.Style = dom.Style{Display: "inline", Visibility: "visible", Opacity: 1}
	s.InLayout = s.Connected
	visibilitySet := false

	for n := e.node; n != nil; n = n.Parent {
		if n.Type != html.ElementNode {
			continue
		}
		el := &Element{doc: e.doc, node: n}
		style := parseStyle(el)
		hidden := false
		if _, ok := el.attr("hidden"); ok {
			hidden = true
		}
		if el.tag() == "input" && el.inputType() == "hidden" {
			hidden = true
		}
		if strings.EqualFold(style["display"], "none") || hidden {
			if n == e.node {
				s.Style.Display = "none"
			}
			s.InLayout = false
		} else if n == e.node && style["display"] != "" {
			s.Style.Display = style["display"]
		}
		if v := style["visibility"]; v != "" && !visibilitySet {
			s.Style.Visibility = strings.ToLower(v)
			visibilitySet = true
		}
		if v := style["opacity"]; v != "" {
			if f, err := strconv.ParseFloat(v, 64); err == nil {
				s.Style.Opacity *= f
			}
		}
	}

	s.Rect = dom.Rect{Width: defaultWidth, Height: defaultHeight}
	own := parseStyle(e)
	if w, ok := own["width"]; ok && isZeroLength(w) {
		s.Rect.Width = 0
	}
	if h, ok := own["height"]; ok && isZeroLength(h) {
		s.Rect.Height = 0
	}
	if !s.InLayout {
		s.Rect = dom.Rect{}
	}
}

func parseStyle(e *Element) map[string]string {
	raw, _ := e.attr("style")
	out := make(map[string]string)
	for _, decl := range strings.Split(raw, ";") {
		k, v, ok := strings.Cut(decl, ":")
		if !ok {
			continue
		}
		v = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(v), "!important"))
		out[strings.ToLower(strings.TrimSpace(k))] = strings.TrimSpace(v)
	}
	return out
}

func isZeroLength(v string) bool {
	v = strings.TrimSpace(strings.ToLower(v))
	v = strings.TrimRight(v, "pxemr%")
	f, err := strconv.ParseFloat(v, 64)
	return err == nil && f == 0
}

// value 当前值：input 取 value 属性，textarea 取文本，select 取选中项
func (e *Element) value() string {
	switch e.tag() {
	case "textarea":
		return textContent(e.node)
	case "select":
		opts := e.options()
		for _, o := range opts {
			if o.Selected {
				return o.Value
			}
		}
		if len(opts) > 0 {
			return opts[0].Value
		}
		return ""
	default:
		v, _ := e.attr("value")
		return v
	}
}

// Text 渲染文本，块级元素分行
func (e *Element) Text(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	var b strings.Builder
	renderText(&b, e.node)
	lines := strings.Split(b.String(), "\n")
	out := make([]string, 0, len(lines))
	for _, l := range lines {
		l = strings.Join(strings.Fields(l), " ")
		if l != "" {
			out = append(out, l)
		}
	}
	return strings.Join(out, "\n"), nil
}

var blockTags = map[string]bool{
	"div": true, "p": true, "li": true, "ul": true, "ol": true, "section": true,
	"fieldset": true, "legend": true, "form": true, "tr": true, "table": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"br": true, "header": true, "footer": true, "article": true, "option": true,
}

func renderText(b *strings.Builder, n *html.Node) {
	switch n.Type {
	case html.TextNode:
		b.WriteString(n.Data)
		return
	case html.ElementNode:
		tag := strings.ToLower(n.Data)
		if tag == "script" || tag == "style" {
			return
		}
		el := &Element{node: n}
		if _, ok := el.attr("hidden"); ok {
			return
		}
		if strings.EqualFold(parseStyle(el)["display"], "none") {
			return
		}
		if blockTags[tag] {
			b.WriteString("\n")
			defer b.WriteString("\n")
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		renderText(b, c)
	}
}

func textContent(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return b.String()
}

// Parent 父元素
func (e *Element) Parent(ctx context.Context) (dom.Element, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p := e.node.Parent
	if p == nil || p.Type != html.ElementNode {
		return nil, nil
	}
	return e.doc.element(p), nil
}

// Closest 最近的匹配祖先（含自身）
func (e *Element) Closest(ctx context.Context, selector string) (dom.Element, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s := e.sel().Closest(selector)
	if s.Length() == 0 {
		return nil, nil
	}
	return e.doc.element(s.Nodes[0]), nil
}

// QueryAll 元素内查询
func (e *Element) QueryAll(ctx context.Context, selector string) ([]dom.Element, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return e.doc.wrap(e.sel().Find(selector)), nil
}

// Focus 设置焦点
func (e *Element) Focus(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	e.doc.active = e.node
	e.doc.record(e.node, "focus")
	return nil
}

// Click 模拟点击：单选框选中并清除同组其他项，随后触发注册的回调
func (e *Element) Click(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !e.doc.connected(e.node) {
		return dom.ErrDetached
	}
	e.doc.record(e.node, "click")
	if e.tag() == "input" {
		switch e.inputType() {
		case "radio":
			name, _ := e.attr("name")
			if name != "" {
				e.doc.doc.Find("input[type=radio]").Each(func(_ int, s *goquery.Selection) {
					if n, _ := s.Attr("name"); n == name {
						s.RemoveAttr("checked")
					}
				})
			}
			e.setAttr("checked", "")
			e.doc.record(e.node, "change")
		case "checkbox":
			if _, ok := e.attr("checked"); ok {
				e.removeAttr("checked")
			} else {
				e.setAttr("checked", "")
			}
			e.doc.record(e.node, "change")
		}
	}
	for _, fn := range e.doc.onClick {
		fn(e)
	}
	return nil
}

// SetValue 写入值
func (e *Element) SetValue(ctx context.Context, value string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !e.doc.connected(e.node) {
		return dom.ErrDetached
	}
	switch e.tag() {
	case "textarea":
		e.replaceText(value)
	case "select":
		for i, o := range e.options() {
			if o.Value == value {
				e.selectIndex(i)
				return nil
			}
		}
	case "input":
		e.setAttr("value", value)
	default:
		if ce, ok := e.attr("contenteditable"); ok && ce != "false" {
			e.replaceText(value)
			return nil
		}
		e.setAttr("value", value)
	}
	return nil
}

// SetText 替换文本内容
func (e *Element) SetText(ctx context.Context, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !e.doc.connected(e.node) {
		return dom.ErrDetached
	}
	e.replaceText(text)
	return nil
}

func (e *Element) replaceText(text string) {
	for c := e.node.FirstChild; c != nil; {
		next := c.NextSibling
		e.node.RemoveChild(c)
		c = next
	}
	e.node.AppendChild(&html.Node{Type: html.TextNode, Data: text})
}

// Dispatch 记录事件
func (e *Element) Dispatch(ctx context.Context, eventType string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	e.doc.record(e.node, eventType)
	return nil
}

// AddClass 添加 class
func (e *Element) AddClass(ctx context.Context, class string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	cur, _ := e.attr("class")
	for _, c := range strings.Fields(cur) {
		if c == class {
			return nil
		}
	}
	e.setAttr("class", strings.TrimSpace(cur+" "+class))
	return nil
}

// RemoveClass 移除 class
func (e *Element) RemoveClass(ctx context.Context, class string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	cur, ok := e.attr("class")
	if !ok {
		return nil
	}
	fields := strings.Fields(cur)
	out := fields[:0]
	for _, c := range fields {
		if c != class {
			out = append(out, c)
		}
	}
	if len(out) == 0 {
		e.removeAttr("class")
		return nil
	}
	e.setAttr("class", strings.Join(out, " "))
	return nil
}

// Options select 的选项
func (e *Element) Options(ctx context.Context) ([]dom.Option, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return e.options(), nil
}

func (e *Element) optionNodes() []*html.Node {
	return e.sel().Find("option").Nodes
}

func (e *Element) options() []dom.Option {
	nodes := e.optionNodes()
	out := make([]dom.Option, 0, len(nodes))
	for _, n := range nodes {
		o := &Element{doc: e.doc, node: n}
		text := strings.Join(strings.Fields(textContent(n)), " ")
		val, ok := o.attr("value")
		if !ok {
			val = text
		}
		_, selected := o.attr("selected")
		out = append(out, dom.Option{Value: val, Text: text, Selected: selected})
	}
	return out
}

// SelectOption 选中指定下标
func (e *Element) SelectOption(ctx context.Context, index int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !e.doc.connected(e.node) {
		return dom.ErrDetached
	}
	e.selectIndex(index)
	return nil
}

func (e *Element) selectIndex(index int) {
	for i, n := range e.optionNodes() {
		o := &Element{doc: e.doc, node: n}
		if i == index {
			o.setAttr("selected", "")
		} else {
			o.removeAttr("selected")
		}
	}
}
