package catalog

import (
	"context"
	"strings"
	"unicode/utf8"

	"formease/pkg/dom"
)

// 问题/列表项类容器与其中的标题元素
const (
	containerSelector = `[role="listitem"], [role="group"], fieldset, li, .question, .form-group, .form-field, .field`
	headingSelector   = `[role="heading"], legend, h1, h2, h3, h4, h5, h6, .question-title`
	maxAncestorLevels = 8
)

var (
	boilerplate   = []string{"required", "optional", "your answer", "choose"}
	fieldKeywords = []string{"name", "email", "phone", "birth", "gender", "address"}
)

// LabelOf 按回退链计算控件标签：label[for] -> 外层 label -> aria-label ->
// aria-labelledby -> 邻近文本
func LabelOf(ctx context.Context, doc dom.Document, el dom.Element, snap dom.Snapshot) (string, error) {
	if id := snap.Attr("id"); id != "" {
		text, err := labelFor(ctx, doc, id)
		if err != nil {
			return "", err
		}
		if text != "" {
			return text, nil
		}
	}
	if text, err := enclosingLabel(ctx, el); err != nil || text != "" {
		return text, err
	}
	return labelFromAria(ctx, doc, el, snap)
}

// groupLabelOf 单选组的标签跳过 label[for]/外层 label，它们描述的是单个选项
func groupLabelOf(ctx context.Context, doc dom.Document, el dom.Element, snap dom.Snapshot) (string, error) {
	return labelFromAria(ctx, doc, el, snap)
}

func labelFromAria(ctx context.Context, doc dom.Document, el dom.Element, snap dom.Snapshot) (string, error) {
	if text := cleanLabel(snap.Attr("aria-label")); text != "" {
		return text, nil
	}
	if ids := strings.Fields(snap.Attr("aria-labelledby")); len(ids) > 0 {
		parts := make([]string, 0, len(ids))
		for _, id := range ids {
			ref, err := doc.GetByID(ctx, id)
			if err != nil {
				return "", err
			}
			if ref == nil {
				continue
			}
			t, err := ref.Text(ctx)
			if err != nil {
				return "", err
			}
			if t = flatten(t); t != "" {
				parts = append(parts, t)
			}
		}
		if text := cleanLabel(strings.Join(parts, " ")); text != "" {
			return text, nil
		}
	}
	return nearbyText(ctx, el, snap.Value)
}

func labelFor(ctx context.Context, doc dom.Document, id string) (string, error) {
	labels, err := doc.QueryAll(ctx, "label[for]")
	if err != nil {
		return "", err
	}
	for _, l := range labels {
		ls, err := l.Snapshot(ctx)
		if err != nil {
			return "", err
		}
		if ls.Attr("for") != id {
			continue
		}
		t, err := l.Text(ctx)
		if err != nil {
			return "", err
		}
		if text := cleanLabel(flatten(t)); text != "" {
			return text, nil
		}
	}
	return "", nil
}

func enclosingLabel(ctx context.Context, el dom.Element) (string, error) {
	l, err := el.Closest(ctx, "label")
	if err != nil || l == nil {
		return "", err
	}
	t, err := l.Text(ctx)
	if err != nil {
		return "", err
	}
	return cleanLabel(flatten(t)), nil
}

// nearbyText 先在问题容器中找标题或符合条件的文本行，再向上最多 8 层祖先查找
func nearbyText(ctx context.Context, el dom.Element, value string) (string, error) {
	container, err := el.Closest(ctx, containerSelector)
	if err != nil {
		return "", err
	}
	if container != nil {
		headings, err := container.QueryAll(ctx, headingSelector)
		if err != nil {
			return "", err
		}
		for _, h := range headings {
			t, err := h.Text(ctx)
			if err != nil {
				return "", err
			}
			if text := cleanLabel(flatten(t)); text != "" && !isBoilerplate(text, value) {
				return text, nil
			}
		}

		t, err := container.Text(ctx)
		if err != nil {
			return "", err
		}
		for _, line := range strings.Split(t, "\n") {
			if candidateLine(line, value) {
				return cleanLabel(line), nil
			}
		}
	}

	cur, err := el.Parent(ctx)
	if err != nil {
		return "", err
	}
	for level := 0; cur != nil && level < maxAncestorLevels; level++ {
		t, err := cur.Text(ctx)
		if err != nil {
			return "", err
		}
		if line := flatten(t); candidateLine(line, value) {
			return cleanLabel(line), nil
		}
		if cur, err = cur.Parent(ctx); err != nil {
			return "", err
		}
	}
	return "", nil
}

// candidateLine 长度 3-99、非样板文字，且包含常见字段名词或以 ?/: 结尾
func candidateLine(line, value string) bool {
	line = strings.TrimSpace(line)
	n := utf8.RuneCountInString(line)
	if n < 3 || n > 99 {
		return false
	}
	if isBoilerplate(line, value) {
		return false
	}
	if strings.HasSuffix(line, "?") || strings.HasSuffix(line, ":") {
		return true
	}
	lower := strings.ToLower(line)
	for _, k := range fieldKeywords {
		if strings.Contains(lower, k) {
			return true
		}
	}
	return false
}

func isBoilerplate(line, value string) bool {
	norm := strings.ToLower(cleanLabel(line))
	for _, b := range boilerplate {
		if norm == b {
			return true
		}
	}
	if v := strings.TrimSpace(value); v != "" && strings.EqualFold(strings.TrimSpace(line), v) {
		return true
	}
	return false
}

// cleanLabel 压缩空白并去掉结尾的 * : ?
func cleanLabel(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	return strings.TrimSpace(strings.TrimRight(s, "*:? "))
}

func flatten(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
