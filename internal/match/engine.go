package match

import (
	"sort"
	"strings"

	"formease/internal/logger"
	"formease/pkg/model"
)

// Rule 产生最终分数的规则
type Rule string

const (
	RuleNone         Rule = ""
	RuleExact        Rule = "exact"
	RuleSubstring    Rule = "substring"
	RuleLabel        Rule = "label"
	RuleWordBoundary Rule = "word"
	RuleSemantic     Rule = "semantic"
)

// 各规则相对权重的乘数
const (
	exactWeight     = 10
	semanticWeight  = 9
	substringWeight = 8
	wordWeight      = 7
	labelWeight     = 6
)

// Engine 字段与数据键的启发式评分器，无状态
type Engine struct {
	log logger.Logger
}

// New 创建匹配引擎
func New(l logger.Logger) *Engine {
	if l == nil {
		l = logger.NewNop()
	}
	return &Engine{log: l}
}

// Match 为每个字段独立选出得分最高的数据键，结果按置信度降序稳定排序。
// 多个字段可以匹配到同一数据键。
func (e *Engine) Match(fields []*model.FieldDescriptor, data map[string]string, custom map[string]model.AliasMapping) []model.MatchCandidate {
	table := ActiveTable(custom)

	keys := make([]string, 0, len(data))
	for k, v := range data {
		if strings.TrimSpace(k) == "" || strings.TrimSpace(v) == "" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]model.MatchCandidate, 0, len(fields))
	for _, f := range fields {
		bestKey := ""
		best := 0
		bestRule := RuleNone
		for _, k := range keys {
			score, rule := scoreKey(table, f, k)
			if score > best {
				best, bestKey, bestRule = score, k, rule
			}
		}
		if best <= 0 {
			continue
		}
		e.log.Debug("字段匹配", "field", f.ID, "dataKey", bestKey, "confidence", best, "rule", string(bestRule))
		out = append(out, model.MatchCandidate{
			Field:      f,
			DataKey:    bestKey,
			Value:      data[bestKey],
			Confidence: best,
		})
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Confidence > out[j].Confidence
	})
	return out
}

// scoreKey 表中有该键时按别名评分；自定义表缺失的键只能通过语义规则得分，
// 内置表缺失的键以键名本身作别名
func scoreKey(table *Table, f *model.FieldDescriptor, dataKey string) (int, Rule) {
	canon, m, ok := table.Lookup(dataKey)
	switch {
	case ok:
		return Score(f, canon, m)
	case table.Custom():
		if semantic(f, dataKey) {
			return semanticPriority(dataKey) * semanticWeight, RuleSemantic
		}
		return 0, RuleNone
	default:
		return Score(f, dataKey, KeyMapping(dataKey))
	}
}

// Score 计算 (字段, 数据键) 的分数：各规则取最大值而非求和
func Score(f *model.FieldDescriptor, dataKey string, m model.AliasMapping) (int, Rule) {
	p := m.Priority
	if p <= 0 {
		return 0, RuleNone
	}

	best, rule := 0, RuleNone
	consider := func(s int, r Rule) {
		if s > best {
			best, rule = s, r
		}
	}

	exact := []string{norm(f.Name), norm(f.HTMLID), norm(f.Label), norm(f.AriaLabel)}
	label, aria := norm(f.Label), norm(f.AriaLabel)
	labelWords := append(words(label), words(aria)...)

	for _, alias := range m.Aliases {
		if alias == "" {
			continue
		}
		for _, s := range exact {
			if s != "" && s == alias {
				consider(p*exactWeight, RuleExact)
			}
		}
		if strings.Contains(f.Identifier, alias) {
			consider(p*substringWeight, RuleSubstring)
		}
		if (label != "" && strings.Contains(label, alias)) || (aria != "" && strings.Contains(aria, alias)) {
			consider(p*labelWeight, RuleLabel)
		}
		if wordsMatch(words(alias), labelWords) {
			consider(p*wordWeight, RuleWordBoundary)
		}
	}

	if semantic(f, dataKey) {
		consider(p*semanticWeight, RuleSemantic)
	}
	return best, rule
}

// semantic 固定关键词规则，作用于标签与标识语料
func semantic(f *model.FieldDescriptor, dataKey string) bool {
	var kws []string
	nk := NormalizeKey(dataKey)
	for k, v := range semanticKeywords {
		if NormalizeKey(k) == nk {
			kws = v
			break
		}
	}
	if len(kws) == 0 {
		return false
	}
	label := norm(f.Label)
	for _, kw := range kws {
		if strings.Contains(label, kw) || strings.Contains(f.Identifier, kw) {
			return true
		}
	}
	return false
}

// wordsMatch 别名的每个词都能与标签中的某个词互相包含
func wordsMatch(aliasWords, labelWords []string) bool {
	if len(aliasWords) == 0 || len(labelWords) == 0 {
		return false
	}
	for _, aw := range aliasWords {
		found := false
		for _, lw := range labelWords {
			if strings.Contains(aw, lw) || strings.Contains(lw, aw) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func words(s string) []string {
	out := make([]string, 0, 4)
	for _, w := range strings.Fields(s) {
		if len([]rune(w)) >= 2 {
			out = append(out, w)
		}
	}
	return out
}

func norm(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
