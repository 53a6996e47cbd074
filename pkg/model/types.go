package model

import (
	"strings"

	"formease/pkg/dom"
)

// FieldKind 控件类别（封闭集合，用于策略分发）
type FieldKind string

const (
	KindText       FieldKind = "text"
	KindSelect     FieldKind = "select"
	KindTextarea   FieldKind = "textarea"
	KindEmail      FieldKind = "email"
	KindTel        FieldKind = "tel"
	KindNumber     FieldKind = "number"
	KindURL        FieldKind = "url"
	KindDivTextbox FieldKind = "div-textbox"
	KindCombobox   FieldKind = "combobox"
	KindListbox    FieldKind = "listbox"
	KindRadioGroup FieldKind = "radio-group"
	KindUnknown    FieldKind = "unknown"
)

// FieldDescriptor 一次检测得到的可填写控件描述
type FieldDescriptor struct {
	ID          string    `json:"id"`
	Kind        FieldKind `json:"kind"`
	Name        string    `json:"name"`
	HTMLID      string    `json:"htmlId"`
	Placeholder string    `json:"placeholder"`
	Label       string    `json:"label"`
	AriaLabel   string    `json:"ariaLabel"`
	Title       string    `json:"title"`
	DataName    string    `json:"dataName"`
	Value       string    `json:"value"`
	Required    bool      `json:"required"`
	MaxLength   int       `json:"maxLength"`
	Min         *float64  `json:"min,omitempty"`
	Max         *float64  `json:"max,omitempty"`
	Identifier  string    `json:"identifier"`

	// Control 指向扫描时的活动文档，描述符不得超出该文档的生命周期
	Control dom.Element `json:"-"`
}

// ComputeIdentifier 按固定顺序拼接非空命名属性，生成匹配用的小写语料
func (f *FieldDescriptor) ComputeIdentifier() {
	parts := make([]string, 0, 7)
	for _, s := range []string{f.Name, f.HTMLID, f.Placeholder, f.Label, f.AriaLabel, f.Title, f.DataName} {
		if s = strings.TrimSpace(s); s != "" {
			parts = append(parts, s)
		}
	}
	f.Identifier = strings.ToLower(strings.Join(parts, " "))
}

// AliasMapping 语义数据键的别名与权重
type AliasMapping struct {
	Aliases  []string `json:"aliases"`
	Priority int      `json:"priority"`
}

// NewAliasMapping 创建别名映射，别名统一转为小写并去重
func NewAliasMapping(priority int, aliases ...string) AliasMapping {
	out := make([]string, 0, len(aliases))
	seen := make(map[string]struct{}, len(aliases))
	for _, a := range aliases {
		a = strings.ToLower(strings.TrimSpace(a))
		if a == "" {
			continue
		}
		if _, ok := seen[a]; ok {
			continue
		}
		seen[a] = struct{}{}
		out = append(out, a)
	}
	return AliasMapping{Aliases: out, Priority: priority}
}

// MatchCandidate 字段与数据键的一次评分配对
type MatchCandidate struct {
	Field      *FieldDescriptor `json:"field"`
	DataKey    string           `json:"dataKey"`
	Value      string           `json:"value"`
	Confidence int              `json:"confidence"`
}

// FieldError 单个字段的填写错误
type FieldError struct {
	FieldIdentifier string `json:"fieldIdentifier"`
	Message         string `json:"message"`
}

// FilledField 成功填写的字段记录
type FilledField struct {
	FieldIdentifier string `json:"fieldIdentifier"`
	DataKey         string `json:"dataKey"`
	Confidence      int    `json:"confidence"`
}

// FillResult 一次运行的结果，每次运行新建，核心不做持久化
type FillResult struct {
	RunID      string        `json:"runId"`
	Detected   int           `json:"detected"`
	Filled     int           `json:"filled"`
	Skipped    int           `json:"skipped"`
	Errors     []FieldError  `json:"errors"`
	Warnings   []string      `json:"warnings"`
	Fields     []FilledField `json:"fields"`
	DurationMS int64         `json:"durationMs"`
}

// NewFillResult 创建空结果
func NewFillResult() *FillResult {
	return &FillResult{
		Errors:   []FieldError{},
		Warnings: []string{},
		Fields:   []FilledField{},
	}
}

// AddError 记录字段错误
func (r *FillResult) AddError(field, msg string) {
	r.Errors = append(r.Errors, FieldError{FieldIdentifier: field, Message: msg})
}

// AddWarning 记录非致命提示
func (r *FillResult) AddWarning(msg string) {
	r.Warnings = append(r.Warnings, msg)
}

// Settings 可调参数
type Settings struct {
	AnimationDurationMS int `json:"animationDurationMs"`
}

// FailureCategory 运行失败类别，供调用方展示
type FailureCategory string

const (
	CategoryNone            FailureCategory = ""
	CategoryNoFields        FailureCategory = "no_fillable_fields"
	CategoryNoMatches       FailureCategory = "no_matching_fields"
	CategoryTimeout         FailureCategory = "timeout"
	CategoryRunInProgress   FailureCategory = "run_in_progress"
	CategoryInvalidRequest  FailureCategory = "invalid_request"
	CategoryDetectionFailed FailureCategory = "detection_failed" // 页面侧检测失败，如控件查询出错或目标断开
	CategoryRunFailed       FailureCategory = "run_failed"       // 请求有效但运行因内部原因失败，如存储不可用
)

// RunRequest 填写请求
type RunRequest struct {
	Data     map[string]string   `json:"data"`
	Aliases  map[string][]string `json:"aliases,omitempty"`
	Settings *Settings           `json:"settings,omitempty"`
}

// RunResponse 填写响应
type RunResponse struct {
	RunID    string          `json:"runId"`
	Success  bool            `json:"success"`
	Category FailureCategory `json:"category,omitempty"`
	Message  string          `json:"message,omitempty"`
	Result   *FillResult     `json:"result"`
}

// TargetInfo 浏览器页面目标
type TargetInfo struct {
	ID    string `json:"id"`
	Type  string `json:"type"`
	URL   string `json:"url"`
	Title string `json:"title"`
}
