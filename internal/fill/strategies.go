package fill

import (
	"context"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"formease/internal/catalog"
	"formease/pkg/dom"
	"formease/pkg/model"
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// 当前渲染出的下拉选项
const optionSelector = `[role="option"]`

// fillText 聚焦、去空白、按 maxLength 截断后赋值
func (d *Dispatcher) fillText(ctx context.Context, f *model.FieldDescriptor, el dom.Element, value string) (Outcome, error) {
	var out Outcome
	value = strings.TrimSpace(value)
	if f.MaxLength > 0 && utf8.RuneCountInString(value) > f.MaxLength {
		value = string([]rune(value)[:f.MaxLength])
		out.Warnings = append(out.Warnings, fmt.Sprintf("%s: value truncated to %d characters", f.ID, f.MaxLength))
	}
	if err := el.Focus(ctx); err != nil {
		return Outcome{}, err
	}
	if err := el.SetValue(ctx, value); err != nil {
		return Outcome{}, err
	}
	if err := notify(ctx, el); err != nil {
		return Outcome{}, err
	}
	out.Applied = true
	return out, nil
}

// fillEmail 格式不符只提示不阻止
func (d *Dispatcher) fillEmail(ctx context.Context, f *model.FieldDescriptor, el dom.Element, value string) (Outcome, error) {
	value = strings.TrimSpace(value)
	var warn []string
	if !emailPattern.MatchString(value) {
		warn = append(warn, fmt.Sprintf("%s: %q does not look like an email address", f.ID, value))
	}
	out, err := d.fillText(ctx, f, el, value)
	out.Warnings = append(warn, out.Warnings...)
	return out, err
}

// fillTel 仅保留数字、开头的 +、-、括号与空格
func (d *Dispatcher) fillTel(ctx context.Context, f *model.FieldDescriptor, el dom.Element, value string) (Outcome, error) {
	return d.fillText(ctx, f, el, SanitizePhone(value))
}

// SanitizePhone 电话号码清洗
func SanitizePhone(value string) string {
	value = strings.TrimSpace(value)
	var b strings.Builder
	for i, r := range value {
		switch {
		case unicode.IsDigit(r), r == '-', r == '(', r == ')', r == ' ':
			b.WriteRune(r)
		case r == '+' && i == 0:
			b.WriteRune(r)
		}
	}
	return strings.TrimSpace(b.String())
}

// fillNumber 非有限值或超出 min/max 时不填写
func (d *Dispatcher) fillNumber(ctx context.Context, f *model.FieldDescriptor, el dom.Element, value string) (Outcome, error) {
	n, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil || math.IsNaN(n) || math.IsInf(n, 0) {
		return skip(fmt.Sprintf("value %q is not a finite number", value)), nil
	}
	if f.Min != nil && n < *f.Min {
		return skip(fmt.Sprintf("value %v below min %v", n, *f.Min)), nil
	}
	if f.Max != nil && n > *f.Max {
		return skip(fmt.Sprintf("value %v above max %v", n, *f.Max)), nil
	}
	if err := el.Focus(ctx); err != nil {
		return Outcome{}, err
	}
	if err := el.SetValue(ctx, strconv.FormatFloat(n, 'f', -1, 64)); err != nil {
		return Outcome{}, err
	}
	if err := notify(ctx, el); err != nil {
		return Outcome{}, err
	}
	return Outcome{Applied: true}, nil
}

// fillURL 缺少 http(s) 协议时补 https://
func (d *Dispatcher) fillURL(ctx context.Context, f *model.FieldDescriptor, el dom.Element, value string) (Outcome, error) {
	return d.fillText(ctx, f, el, NormalizeURL(value))
}

// NormalizeURL 补全协议，已有协议时保持不变
func NormalizeURL(value string) string {
	value = strings.TrimSpace(value)
	lower := strings.ToLower(value)
	if value == "" || strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://") {
		return value
	}
	return "https://" + value
}

// fillSelect 依次尝试：值精确匹配、文本忽略大小写相等、文本忽略大小写包含
func (d *Dispatcher) fillSelect(ctx context.Context, el dom.Element, snap dom.Snapshot, value string) (Outcome, error) {
	want := strings.TrimSpace(value)
	opts, err := el.Options(ctx)
	if err != nil {
		return Outcome{}, err
	}
	idx := pickOption(opts, want)
	if idx < 0 {
		return skip(fmt.Sprintf("no option matches %q", want)), nil
	}
	if snap.Value == opts[idx].Value {
		return Outcome{Applied: true}, nil
	}
	if err := el.SelectOption(ctx, idx); err != nil {
		return Outcome{}, err
	}
	if err := notify(ctx, el); err != nil {
		return Outcome{}, err
	}
	return Outcome{Applied: true}, nil
}

func pickOption(opts []dom.Option, want string) int {
	if want == "" {
		return -1
	}
	for i, o := range opts {
		if o.Value == want {
			return i
		}
	}
	for i, o := range opts {
		if strings.EqualFold(strings.TrimSpace(o.Text), want) {
			return i
		}
	}
	lw := strings.ToLower(want)
	for i, o := range opts {
		text := strings.ToLower(strings.TrimSpace(o.Text))
		if text != "" && strings.Contains(text, lw) {
			return i
		}
	}
	return -1
}

// fillDivTextbox 富文本替身：点击激活后写入可编辑内容或内嵌原生控件
func (d *Dispatcher) fillDivTextbox(ctx context.Context, el dom.Element, snap dom.Snapshot, value string) (Outcome, error) {
	value = strings.TrimSpace(value)
	if err := el.Click(ctx); err != nil {
		return Outcome{}, err
	}
	if snap.ContentEditable {
		if err := el.SetText(ctx, value); err != nil {
			return Outcome{}, err
		}
		return Outcome{Applied: true}, notify(ctx, el)
	}

	nested, err := el.QueryAll(ctx, "input, textarea")
	if err != nil {
		return Outcome{}, err
	}
	if len(nested) > 0 {
		inner := nested[0]
		if err := inner.SetValue(ctx, value); err != nil {
			return Outcome{}, err
		}
		if err := notify(ctx, inner); err != nil {
			return Outcome{}, err
		}
		return Outcome{Applied: true}, notify(ctx, el)
	}

	if err := el.SetText(ctx, value); err != nil {
		return Outcome{}, err
	}
	return Outcome{Applied: true}, notify(ctx, el)
}

// fillDropdown 点击展开，延迟后扫描当前渲染的选项并点击首个匹配项。
// 未找到选项时默认仍视为成功并给出提示，严格模式下视为跳过。
func (d *Dispatcher) fillDropdown(ctx context.Context, f *model.FieldDescriptor, el dom.Element, value string) (Outcome, error) {
	want := strings.ToLower(strings.TrimSpace(value))
	if err := el.Click(ctx); err != nil {
		return Outcome{}, err
	}
	if err := d.cfg.Sleep(ctx, d.cfg.OptionScanDelay); err != nil {
		return Outcome{}, err
	}

	opts, err := d.doc.QueryAll(ctx, optionSelector)
	if err != nil {
		return Outcome{}, err
	}
	texts := make([]string, len(opts))
	for i, o := range opts {
		texts[i], err = optionText(ctx, o)
		if err != nil {
			return Outcome{}, err
		}
	}

	hit := -1
	for i, t := range texts {
		if t != "" && t == want {
			hit = i
			break
		}
	}
	if hit < 0 {
		for i, t := range texts {
			if t != "" && want != "" && strings.Contains(t, want) {
				hit = i
				break
			}
		}
	}

	if hit < 0 {
		msg := fmt.Sprintf("%s: no dropdown option matches %q", f.ID, value)
		if d.cfg.StrictOptions {
			return skip(msg), nil
		}
		d.log.Warn("下拉选项未命中", "field", f.ID, "value", value, "options", len(opts))
		return Outcome{Applied: true, Warnings: []string{msg}}, nil
	}
	if err := opts[hit].Click(ctx); err != nil {
		return Outcome{}, err
	}
	return Outcome{Applied: true}, nil
}

// optionText 选项文本（小写），未渲染的选项返回空串
func optionText(ctx context.Context, o dom.Element) (string, error) {
	s, err := o.Snapshot(ctx)
	if err != nil {
		return "", err
	}
	if !dom.Visible(s) {
		return "", nil
	}
	t, err := o.Text(ctx)
	if err != nil {
		return "", err
	}
	t = strings.ToLower(strings.Join(strings.Fields(t), " "))
	if t != "" {
		return t, nil
	}
	return strings.ToLower(strings.TrimSpace(firstNonEmpty(s.Attr("aria-label"), s.Attr("data-value")))), nil
}

// fillRadioGroup 点击首个标签与目标值互相包含的单选项，标签完全相同者优先
func (d *Dispatcher) fillRadioGroup(ctx context.Context, el dom.Element, snap dom.Snapshot, value string) (Outcome, error) {
	want := strings.ToLower(strings.TrimSpace(value))
	if want == "" {
		return skip("empty value"), nil
	}
	members, err := d.radioMembers(ctx, el, snap)
	if err != nil {
		return Outcome{}, err
	}

	labels := make([]string, len(members))
	for i, m := range members {
		ms, err := m.Snapshot(ctx)
		if err != nil {
			return Outcome{}, err
		}
		if ms.Disabled {
			continue
		}
		label, err := catalog.LabelOf(ctx, d.doc, m, ms)
		if err != nil {
			return Outcome{}, err
		}
		if label == "" {
			label = firstNonEmpty(ms.Attr("data-value"), ms.Attr("value"))
		}
		labels[i] = strings.ToLower(strings.TrimSpace(label))
	}

	hit := -1
	for i, l := range labels {
		if l != "" && l == want {
			hit = i
			break
		}
	}
	if hit < 0 {
		for i, l := range labels {
			if l != "" && (strings.Contains(l, want) || strings.Contains(want, l)) {
				hit = i
				break
			}
		}
	}
	if hit < 0 {
		return skip(fmt.Sprintf("no radio option matches %q", value)), nil
	}
	if err := members[hit].Click(ctx); err != nil {
		return Outcome{}, err
	}
	return Outcome{Applied: true}, nil
}

// radioMembers 原生单选按 name 分组，role=radiogroup 取内部成员
func (d *Dispatcher) radioMembers(ctx context.Context, el dom.Element, snap dom.Snapshot) ([]dom.Element, error) {
	if snap.Tag != "input" {
		return el.QueryAll(ctx, `input[type="radio"], [role="radio"]`)
	}
	name := snap.Attr("name")
	if name == "" {
		return []dom.Element{el}, nil
	}
	all, err := d.doc.QueryAll(ctx, `input[type="radio"]`)
	if err != nil {
		return nil, err
	}
	out := make([]dom.Element, 0, len(all))
	for _, r := range all {
		rs, err := r.Snapshot(ctx)
		if err != nil {
			return nil, err
		}
		if rs.Attr("name") == name {
			out = append(out, r)
		}
	}
	return out, nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
