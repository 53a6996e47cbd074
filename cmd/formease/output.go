package main

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"formease/pkg/model"
)

func newTable(w io.Writer) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	return t
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// renderResponse 输出运行摘要、已填写字段与告警
func renderResponse(w io.Writer, resp model.RunResponse) {
	status := text.FgGreen.Sprint("成功")
	if !resp.Success {
		status = text.FgRed.Sprint("失败: " + categoryLabel(resp.Category))
	}
	fmt.Fprintf(w, "%s  %s\n", status, resp.Message)

	res := resp.Result
	if res == nil {
		return
	}
	fmt.Fprintf(w, "运行 %s  检测 %d  填写 %d  跳过 %d  用时 %dms\n",
		res.RunID, res.Detected, res.Filled, res.Skipped, res.DurationMS)

	if len(res.Fields) > 0 {
		t := newTable(w)
		t.AppendHeader(table.Row{"字段 (field)", "数据键 (key)", "置信度 (confidence)"})
		for _, f := range res.Fields {
			t.AppendRow(table.Row{f.FieldIdentifier, f.DataKey, f.Confidence})
		}
		t.Render()
	}
	if len(res.Errors) > 0 {
		t := newTable(w)
		t.AppendHeader(table.Row{"字段 (field)", "错误 (error)"})
		for _, e := range res.Errors {
			t.AppendRow(table.Row{e.FieldIdentifier, e.Message})
		}
		t.Render()
	}
	for _, warn := range res.Warnings {
		fmt.Fprintln(w, text.FgYellow.Sprint("! "+warn))
	}
}

func renderFields(w io.Writer, fields []*model.FieldDescriptor) {
	t := newTable(w)
	t.AppendHeader(table.Row{"ID", "类型 (kind)", "标签 (label)", "名称 (name)", "必填", "当前值"})
	for _, f := range fields {
		required := ""
		if f.Required {
			required = "*"
		}
		t.AppendRow(table.Row{f.ID, kindLabel(f.Kind), f.Label, f.Name, required, f.Value})
	}
	t.AppendFooter(table.Row{"", "", "", "", "共", len(fields)})
	t.Render()
}

func renderTargets(w io.Writer, targets []model.TargetInfo) {
	t := newTable(w)
	t.AppendHeader(table.Row{"ID", "标题 (title)", "URL"})
	for _, tg := range targets {
		t.AppendRow(table.Row{tg.ID, tg.Title, tg.URL})
	}
	t.Render()
}

func renderMappings(w io.Writer, mappings map[string]model.AliasMapping) {
	keys := make([]string, 0, len(mappings))
	for k := range mappings {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	t := newTable(w)
	t.AppendHeader(table.Row{"数据键 (key)", "权重 (priority)", "别名 (aliases)"})
	for _, k := range keys {
		m := mappings[k]
		t.AppendRow(table.Row{k, m.Priority, strings.Join(m.Aliases, ", ")})
	}
	t.Render()
}
