package main

import "formease/pkg/model"

// 中文标签映射
var (
	kindLabels = map[model.FieldKind]string{
		model.KindText:       "文本 (text)",
		model.KindEmail:      "邮箱 (email)",
		model.KindTel:        "电话 (tel)",
		model.KindURL:        "网址 (url)",
		model.KindNumber:     "数字 (number)",
		model.KindTextarea:   "多行文本 (textarea)",
		model.KindSelect:     "下拉框 (select)",
		model.KindRadioGroup: "单选组 (radio-group)",
		model.KindCombobox:   "组合框 (combobox)",
		model.KindListbox:    "列表框 (listbox)",
		model.KindDivTextbox: "可编辑区域 (div-textbox)",
	}

	categoryLabels = map[model.FailureCategory]string{
		model.CategoryNoFields:        "未找到可填写字段 (no_fillable_fields)",
		model.CategoryNoMatches:       "没有匹配的字段 (no_matching_fields)",
		model.CategoryTimeout:         "超时 (timeout)",
		model.CategoryRunInProgress:   "已有运行进行中 (run_in_progress)",
		model.CategoryInvalidRequest:  "请求无效 (invalid_request)",
		model.CategoryDetectionFailed: "字段检测失败 (detection_failed)",
		model.CategoryRunFailed:       "运行失败 (run_failed)",
	}
)

func kindLabel(k model.FieldKind) string {
	if l, ok := kindLabels[k]; ok {
		return l
	}
	return string(k)
}

func categoryLabel(c model.FailureCategory) string {
	if l, ok := categoryLabels[c]; ok {
		return l
	}
	return string(c)
}
