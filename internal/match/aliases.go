package match

import (
	"strings"
	"unicode"

	"formease/pkg/model"
)

// DefaultPriority 无内置对应项的自定义键使用的权重
const DefaultPriority = 8

var builtins = map[string]model.AliasMapping{
	"firstName":   model.NewAliasMapping(9, "first name", "firstname", "first_name", "fname", "given name", "given-name", "forename"),
	"lastName":    model.NewAliasMapping(9, "last name", "lastname", "last_name", "lname", "surname", "family name", "family-name"),
	"fullName":    model.NewAliasMapping(8, "full name", "fullname", "full_name", "your name", "name", "complete name"),
	"email":       model.NewAliasMapping(10, "email", "e-mail", "email address", "emailaddress", "email_address", "mail"),
	"phone":       model.NewAliasMapping(9, "phone", "phone number", "telephone", "phonenumber", "phone_number", "tel", "contact number"),
	"mobile":      model.NewAliasMapping(8, "mobile", "mobile number", "mobile phone", "cell", "cell phone", "cellphone"),
	"street":      model.NewAliasMapping(8, "street", "street address", "address", "address line 1", "address1", "addr"),
	"city":        model.NewAliasMapping(8, "city", "town", "locality"),
	"state":       model.NewAliasMapping(7, "state", "province", "region", "county"),
	"zipCode":     model.NewAliasMapping(8, "zip", "zip code", "zipcode", "postal code", "postcode", "postal", "pin code", "pincode"),
	"country":     model.NewAliasMapping(7, "country", "nation", "country name"),
	"dateOfBirth": model.NewAliasMapping(9, "date of birth", "dob", "birth date", "birthdate", "birthday"),
	"gender":      model.NewAliasMapping(7, "gender", "sex"),
	"linkedIn":    model.NewAliasMapping(7, "linkedin", "linkedin profile", "linkedin url"),
	"company":     model.NewAliasMapping(7, "company", "company name", "organization", "organisation", "employer"),
	"website":     model.NewAliasMapping(7, "website", "web site", "homepage", "portfolio"),
}

// semanticKeywords 智能匹配：数据键对应的固定关键词，独立于别名表
var semanticKeywords = map[string][]string{
	"email":       {"email", "e-mail"},
	"phone":       {"phone", "telephone"},
	"mobile":      {"mobile", "cell"},
	"firstName":   {"first name", "given name", "firstname"},
	"lastName":    {"last name", "surname", "family name", "lastname"},
	"fullName":    {"full name", "your name", "fullname"},
	"street":      {"street", "address"},
	"city":        {"city"},
	"state":       {"province"},
	"zipCode":     {"zip", "postal", "postcode", "pin code"},
	"country":     {"country"},
	"dateOfBirth": {"birth", "dob"},
	"gender":      {"gender"},
	"linkedIn":    {"linkedin"},
	"company":     {"company", "organization", "organisation"},
	"website":     {"website", "portfolio"},
}

// Builtins 返回内置别名表的副本
func Builtins() map[string]model.AliasMapping {
	out := make(map[string]model.AliasMapping, len(builtins))
	for k, v := range builtins {
		out[k] = copyMapping(v)
	}
	return out
}

// Table 一次运行使用的别名表
type Table struct {
	mappings map[string]model.AliasMapping
	byNorm   map[string]string
	custom   bool
}

// ActiveTable 自定义映射非空时整体替换内置表，不做合并
func ActiveTable(custom map[string]model.AliasMapping) *Table {
	t := &Table{mappings: make(map[string]model.AliasMapping), byNorm: make(map[string]string)}
	if len(custom) == 0 {
		for k, v := range builtins {
			t.add(k, copyMapping(v))
		}
		return t
	}
	t.custom = true
	for k, v := range custom {
		m := model.NewAliasMapping(v.Priority, v.Aliases...)
		if m.Priority <= 0 {
			m.Priority = DefaultPriority
			if b, ok := builtinFor(k); ok {
				m.Priority = b.Priority
			}
		}
		t.add(k, m)
	}
	return t
}

// FromAliasLists 把 dataKey -> 别名列表 转成自定义映射
func FromAliasLists(lists map[string][]string) map[string]model.AliasMapping {
	if len(lists) == 0 {
		return nil
	}
	out := make(map[string]model.AliasMapping, len(lists))
	for k, aliases := range lists {
		out[k] = model.NewAliasMapping(0, aliases...)
	}
	return out
}

func (t *Table) add(key string, m model.AliasMapping) {
	t.mappings[key] = m
	t.byNorm[NormalizeKey(key)] = key
}

// Lookup 按规范化键查找表项，ok 为 false 表示表中没有该键
func (t *Table) Lookup(dataKey string) (canon string, m model.AliasMapping, ok bool) {
	canon, ok = t.byNorm[NormalizeKey(dataKey)]
	if !ok {
		return dataKey, model.AliasMapping{}, false
	}
	return canon, t.mappings[canon], true
}

// Custom 是否为自定义表
func (t *Table) Custom() bool { return t.custom }

// KeyMapping 内置表中没有的键以键名本身作别名，使用默认权重
func KeyMapping(dataKey string) model.AliasMapping {
	return model.NewAliasMapping(DefaultPriority, keyAliases(dataKey)...)
}

// semanticPriority 仅语义规则可用时的权重：内置键沿用内置权重
func semanticPriority(dataKey string) int {
	if b, ok := builtinFor(dataKey); ok {
		return b.Priority
	}
	return DefaultPriority
}

func builtinFor(key string) (model.AliasMapping, bool) {
	norm := NormalizeKey(key)
	for k, v := range builtins {
		if NormalizeKey(k) == norm {
			return v, true
		}
	}
	return model.AliasMapping{}, false
}

// NormalizeKey 小写并去掉分隔符：first_name / firstName / First Name 视为同一键
func NormalizeKey(key string) string {
	var b strings.Builder
	for _, r := range key {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(unicode.ToLower(r))
		}
	}
	return b.String()
}

// keyAliases 由键名生成别名：原样小写形式与拆词形式
func keyAliases(key string) []string {
	words := splitWords(key)
	return []string{strings.ToLower(key), strings.Join(words, " ")}
}

// splitWords 按驼峰、下划线、连字符与空白拆词
func splitWords(s string) []string {
	var words []string
	var cur []rune
	flush := func() {
		if len(cur) > 0 {
			words = append(words, strings.ToLower(string(cur)))
			cur = cur[:0]
		}
	}
	runes := []rune(s)
	for i, r := range runes {
		switch {
		case r == '_' || r == '-' || r == '.' || unicode.IsSpace(r):
			flush()
		case unicode.IsUpper(r) && i > 0 && !unicode.IsUpper(runes[i-1]):
			flush()
			cur = append(cur, r)
		default:
			cur = append(cur, r)
		}
	}
	flush()
	return words
}

func copyMapping(m model.AliasMapping) model.AliasMapping {
	return model.AliasMapping{Aliases: append([]string(nil), m.Aliases...), Priority: m.Priority}
}
