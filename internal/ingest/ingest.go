// Package ingest 把 JSON / CSV / TXT 数据文件解析为扁平的 键 -> 文本值 记录
package ingest

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"html"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"
	"github.com/tidwall/gjson"
)

// MaxValueLength 单个值保留的最大字符数
const MaxValueLength = 1000

var (
	ErrEmpty     = errors.New("empty data input")
	ErrNotObject = errors.New("json root must be an object")
	ErrNoDataRow = errors.New("csv has no data row")
)

// Record 一条待填写数据
type Record map[string]string

var strict = bluemonday.StrictPolicy()

// ParseFile 读取并解析数据文件
func ParseFile(path string) (Record, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read data file: %w", err)
	}
	return Parse(filepath.Base(path), raw)
}

// Parse 按扩展名选择解码器，未知扩展名时以 { 开头视为 JSON，否则按 TXT 处理
func Parse(name string, raw []byte) (Record, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, ErrEmpty
	}
	var (
		rec Record
		err error
	)
	switch strings.ToLower(filepath.Ext(name)) {
	case ".json":
		rec, err = parseJSON(raw)
	case ".csv":
		rec, err = parseCSV(raw)
	case ".txt":
		rec = parseTXT(raw)
	default:
		if bytes.HasPrefix(bytes.TrimSpace(raw), []byte("{")) {
			rec, err = parseJSON(raw)
		} else {
			rec = parseTXT(raw)
		}
	}
	if err != nil {
		return nil, err
	}
	return sanitizeRecord(rec), nil
}

func parseJSON(raw []byte) (Record, error) {
	if !gjson.ValidBytes(raw) {
		return nil, errors.New("malformed json")
	}
	root := gjson.ParseBytes(raw)
	if !root.IsObject() {
		return nil, ErrNotObject
	}
	rec := Record{}
	root.ForEach(func(k, v gjson.Result) bool {
		key := k.String()
		if v.IsObject() {
			v.ForEach(func(ck, cv gjson.Result) bool {
				rec[key+"_"+ck.String()] = jsonText(cv)
				return true
			})
			return true
		}
		rec[key] = jsonText(v)
		return true
	})
	return rec, nil
}

// jsonText 标量取文本，数组以 ", " 连接，更深的对象保留原始 JSON
func jsonText(v gjson.Result) string {
	switch {
	case v.IsArray():
		items := v.Array()
		parts := make([]string, 0, len(items))
		for _, it := range items {
			if s := jsonText(it); s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, ", ")
	case v.IsObject():
		return v.Raw
	case v.Type == gjson.Number:
		return v.Raw
	case v.Type == gjson.Null:
		return ""
	default:
		return v.String()
	}
}

func parseCSV(raw []byte) (Record, error) {
	r := csv.NewReader(bytes.NewReader(raw))
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true

	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}
	pairs := len(header) == 2 &&
		strings.EqualFold(strings.TrimSpace(header[0]), "key") &&
		strings.EqualFold(strings.TrimSpace(header[1]), "value")

	rec := Record{}
	if pairs {
		for {
			row, err := r.Read()
			if errors.Is(err, io.EOF) {
				break
			}
			if err != nil {
				return nil, fmt.Errorf("read csv row: %w", err)
			}
			if len(row) >= 2 {
				rec[row[0]] = row[1]
			}
		}
		if len(rec) == 0 {
			return nil, ErrNoDataRow
		}
		return rec, nil
	}

	row, err := r.Read()
	if errors.Is(err, io.EOF) {
		return nil, ErrNoDataRow
	}
	if err != nil {
		return nil, fmt.Errorf("read csv row: %w", err)
	}
	for i, k := range header {
		if i < len(row) {
			rec[k] = row[i]
		}
	}
	return rec, nil
}

func parseTXT(raw []byte) Record {
	rec := Record{}
	for _, line := range strings.Split(string(raw), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		i := strings.IndexAny(line, ":=")
		if i <= 0 {
			continue
		}
		rec[line[:i]] = strings.TrimSpace(line[i+1:])
	}
	return rec
}

func sanitizeRecord(in Record) Record {
	out := make(Record, len(in))
	for k, v := range in {
		k = strings.TrimSpace(strings.TrimPrefix(k, "\ufeff"))
		if k == "" {
			continue
		}
		out[k] = Sanitize(v)
	}
	return out
}

// Sanitize 去除标记与控制字符，限制长度
func Sanitize(v string) string {
	v = html.UnescapeString(strict.Sanitize(v))
	v = strings.Map(func(r rune) rune {
		switch {
		case r == '<' || r == '>':
			return -1
		case r == '\n' || r == '\t':
			return r
		case unicode.IsControl(r):
			return -1
		}
		return r
	}, v)
	v = strings.TrimSpace(v)
	if utf8.RuneCountInString(v) > MaxValueLength {
		v = string([]rune(v)[:MaxValueLength])
	}
	return v
}
