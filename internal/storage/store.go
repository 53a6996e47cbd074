package storage

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/schema"

	"formease/internal/logger"
	"formease/pkg/model"
)

// 设置项键名
const (
	SettingAnimationMS = "animationDurationMs"
)

// AliasRow 一条自定义别名映射，Aliases 为 JSON 数组文本
type AliasRow struct {
	DataKey   string `gorm:"primaryKey;size:128"`
	Aliases   string `gorm:"type:text;not null"`
	Priority  int    `gorm:"not null;default:0"`
	UpdatedAt time.Time
}

// SettingRow 键值设置
type SettingRow struct {
	Key       string `gorm:"column:setting_key;primaryKey;size:128"`
	Value     string `gorm:"type:text"`
	UpdatedAt time.Time
}

// Store 别名映射与设置的本地持久化
type Store struct {
	db  *gorm.DB
	log logger.Logger
}

// Open 打开 sqlite 数据库并迁移表结构，dsn 可为 ":memory:"
func Open(dsn, prefix string, l logger.Logger) (*Store, error) {
	if l == nil {
		l = logger.NewNop()
	}
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         NewGormLogger(l),
		NamingStrategy: schema.NamingStrategy{TablePrefix: prefix},
	})
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", dsn, err)
	}
	if sqlDB, err := db.DB(); err == nil {
		// 内存库每个连接独立，限制为单连接
		sqlDB.SetMaxOpenConns(1)
	}
	if err := db.AutoMigrate(&AliasRow{}, &SettingRow{}); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Store{db: db, log: l}, nil
}

// Close 关闭底层连接
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// SaveMappings 覆盖写入给定映射，其余映射保持不变
func (s *Store) SaveMappings(ctx context.Context, mappings map[string]model.AliasMapping) error {
	if len(mappings) == 0 {
		return nil
	}
	rows := make([]AliasRow, 0, len(mappings))
	for _, key := range sortedKeys(mappings) {
		k := strings.TrimSpace(key)
		if k == "" {
			return errors.New("data key must not be empty")
		}
		m := mappings[key]
		doc, err := encodeAliases(m.Aliases)
		if err != nil {
			return err
		}
		rows = append(rows, AliasRow{DataKey: k, Aliases: doc, Priority: m.Priority})
	}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "data_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"aliases", "priority", "updated_at"}),
	}).Create(&rows).Error
	if err != nil {
		return fmt.Errorf("save mappings: %w", err)
	}
	s.log.Info("别名映射已保存", "count", len(rows))
	return nil
}

// LoadMappings 读取全部自定义映射，没有记录时返回空 map
func (s *Store) LoadMappings(ctx context.Context) (map[string]model.AliasMapping, error) {
	var rows []AliasRow
	if err := s.db.WithContext(ctx).Order("data_key").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("load mappings: %w", err)
	}
	out := make(map[string]model.AliasMapping, len(rows))
	for _, r := range rows {
		out[r.DataKey] = model.NewAliasMapping(r.Priority, decodeAliases(r.Aliases)...)
	}
	return out, nil
}

// DeleteMapping 删除一个映射，返回是否存在
func (s *Store) DeleteMapping(ctx context.Context, dataKey string) (bool, error) {
	res := s.db.WithContext(ctx).Where("data_key = ?", dataKey).Delete(&AliasRow{})
	if res.Error != nil {
		return false, fmt.Errorf("delete mapping %s: %w", dataKey, res.Error)
	}
	return res.RowsAffected > 0, nil
}

// ResetMappings 清空自定义映射，之后匹配回到内置别名表
func (s *Store) ResetMappings(ctx context.Context) error {
	err := s.db.WithContext(ctx).Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&AliasRow{}).Error
	if err != nil {
		return fmt.Errorf("reset mappings: %w", err)
	}
	s.log.Info("别名映射已重置")
	return nil
}

// SetSetting 写入设置项
func (s *Store) SetSetting(ctx context.Context, key, value string) error {
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true}).
		Create(&SettingRow{Key: key, Value: value}).Error
	if err != nil {
		return fmt.Errorf("set setting %s: %w", key, err)
	}
	return nil
}

// GetSetting 读取设置项
func (s *Store) GetSetting(ctx context.Context, key string) (string, bool, error) {
	var row SettingRow
	err := s.db.WithContext(ctx).Where("setting_key = ?", key).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get setting %s: %w", key, err)
	}
	return row.Value, true, nil
}

// Settings 以 defaults 为底合并已保存的设置
func (s *Store) Settings(ctx context.Context, defaults model.Settings) (model.Settings, error) {
	out := defaults
	v, ok, err := s.GetSetting(ctx, SettingAnimationMS)
	if err != nil || !ok {
		return out, err
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		s.log.Warn("忽略无效的动画时长设置", "value", v)
		return out, nil
	}
	out.AnimationDurationMS = n
	return out, nil
}

// ExportJSON 导出全部映射与设置：{"mappings":{key:{"aliases":[...],"priority":n}},"settings":{...}}
func (s *Store) ExportJSON(ctx context.Context) (string, error) {
	var aliases []AliasRow
	if err := s.db.WithContext(ctx).Order("data_key").Find(&aliases).Error; err != nil {
		return "", fmt.Errorf("export mappings: %w", err)
	}
	var settings []SettingRow
	if err := s.db.WithContext(ctx).Order("setting_key").Find(&settings).Error; err != nil {
		return "", fmt.Errorf("export settings: %w", err)
	}

	doc := `{"mappings":{},"settings":{}}`
	var err error
	for _, r := range aliases {
		base := "mappings." + escapePath(r.DataKey)
		if doc, err = sjson.SetRaw(doc, base+".aliases", r.Aliases); err != nil {
			return "", err
		}
		if doc, err = sjson.Set(doc, base+".priority", r.Priority); err != nil {
			return "", err
		}
	}
	for _, r := range settings {
		if doc, err = sjson.Set(doc, "settings."+escapePath(r.Key), r.Value); err != nil {
			return "", err
		}
	}
	return doc, nil
}

// ParseAliasDocument 解析别名文件：ExportJSON 的导出格式，或 {key: [alias...]} 简写
func ParseAliasDocument(raw []byte) (map[string]model.AliasMapping, error) {
	if !gjson.ValidBytes(raw) {
		return nil, errors.New("malformed alias document")
	}
	root := gjson.ParseBytes(raw)
	if !root.IsObject() {
		return nil, errors.New("alias document must be an object")
	}
	if m := root.Get("mappings"); m.IsObject() {
		root = m
	}
	out := map[string]model.AliasMapping{}
	var bad error
	root.ForEach(func(k, v gjson.Result) bool {
		key := strings.TrimSpace(k.String())
		switch {
		case key == "":
		case v.IsArray():
			out[key] = model.NewAliasMapping(0, stringsOf(v)...)
		case v.IsObject():
			out[key] = model.NewAliasMapping(int(v.Get("priority").Int()), stringsOf(v.Get("aliases"))...)
		default:
			bad = fmt.Errorf("mapping %q: expected array or object", key)
			return false
		}
		return true
	})
	if bad != nil {
		return nil, bad
	}
	return out, nil
}

func encodeAliases(aliases []string) (string, error) {
	doc := `{"aliases":[]}`
	var err error
	for _, a := range aliases {
		if doc, err = sjson.Set(doc, "aliases.-1", a); err != nil {
			return "", fmt.Errorf("encode aliases: %w", err)
		}
	}
	return gjson.Get(doc, "aliases").Raw, nil
}

func decodeAliases(doc string) []string {
	return stringsOf(gjson.Parse(doc))
}

func stringsOf(v gjson.Result) []string {
	items := v.Array()
	out := make([]string, 0, len(items))
	for _, it := range items {
		out = append(out, it.String())
	}
	return out
}

// escapePath 转义 gjson/sjson 路径中的特殊字符
func escapePath(key string) string {
	var b strings.Builder
	for _, r := range key {
		switch r {
		case '.', '*', '?', '\\':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

func sortedKeys(m map[string]model.AliasMapping) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
