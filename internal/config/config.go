package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config 配置文件结构体
type Config struct {
	Version string `yaml:"version"`

	Sqlite struct {
		Dsn    string `yaml:"dsn"`
		Prefix string `yaml:"prefix"`
	} `yaml:"sqlite"`

	Log struct {
		Level  string   `yaml:"level"`
		Writer []string `yaml:"writer"`
		File   string   `yaml:"file"`
	} `yaml:"log"`

	CDP struct {
		DevToolsURL string `yaml:"devToolsURL"`
	} `yaml:"cdp"`

	Fill Fill `yaml:"fill"`
}

// Fill 填写流程的时间预算与调优参数，单位毫秒
type Fill struct {
	CacheCooldownMS   int  `yaml:"cacheCooldownMS"`
	RunTimeoutMS      int  `yaml:"runTimeoutMS"`
	FieldTimeoutMS    int  `yaml:"fieldTimeoutMS"`
	InterFieldDelayMS int  `yaml:"interFieldDelayMS"`
	OptionScanDelayMS int  `yaml:"optionScanDelayMS"`
	AnimationMS       int  `yaml:"animationMS"`
	StrictOptions     bool `yaml:"strictOptions"`
}

// NewConfig 创建默认配置
func NewConfig() *Config {
	cfg := &Config{Version: "1.0.0"}
	cfg.Sqlite.Dsn = "formease.sqlite3"
	cfg.Sqlite.Prefix = "formease_"
	cfg.Log.Level = "info"
	cfg.Log.Writer = []string{"console"}
	cfg.Log.File = "logs/formease.log"
	cfg.CDP.DevToolsURL = "http://127.0.0.1:9222"
	cfg.Fill = DefaultFill()
	return cfg
}

// DefaultFill 默认填写参数
func DefaultFill() Fill {
	return Fill{
		CacheCooldownMS:   1000,
		RunTimeoutMS:      30000,
		FieldTimeoutMS:    5000,
		InterFieldDelayMS: 100,
		OptionScanDelayMS: 300,
		AnimationMS:       600,
	}
}

// Load 读取 yaml 配置并覆盖默认值，path 为空时直接返回默认配置
func Load(path string) (*Config, error) {
	cfg := NewConfig()
	if path == "" {
		return cfg, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(b, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	cfg.Fill.normalize()
	return cfg, nil
}

// normalize 非法值回落到默认
func (f *Fill) normalize() {
	def := DefaultFill()
	if f.CacheCooldownMS < 0 {
		f.CacheCooldownMS = def.CacheCooldownMS
	}
	if f.RunTimeoutMS <= 0 {
		f.RunTimeoutMS = def.RunTimeoutMS
	}
	if f.FieldTimeoutMS <= 0 {
		f.FieldTimeoutMS = def.FieldTimeoutMS
	}
	if f.InterFieldDelayMS < 0 {
		f.InterFieldDelayMS = 0
	}
	if f.OptionScanDelayMS < 0 {
		f.OptionScanDelayMS = 0
	}
	if f.AnimationMS < 0 {
		f.AnimationMS = 0
	}
}

func ms(v int) time.Duration { return time.Duration(v) * time.Millisecond }

func (f Fill) CacheCooldown() time.Duration   { return ms(f.CacheCooldownMS) }
func (f Fill) RunTimeout() time.Duration      { return ms(f.RunTimeoutMS) }
func (f Fill) FieldTimeout() time.Duration    { return ms(f.FieldTimeoutMS) }
func (f Fill) InterFieldDelay() time.Duration { return ms(f.InterFieldDelayMS) }
func (f Fill) OptionScanDelay() time.Duration { return ms(f.OptionScanDelayMS) }
func (f Fill) Animation() time.Duration       { return ms(f.AnimationMS) }
