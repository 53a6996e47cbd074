package api

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"formease/internal/catalog"
	"formease/internal/config"
	"formease/internal/ctxkeys"
	"formease/internal/fill"
	"formease/internal/logger"
	"formease/internal/match"
	"formease/internal/orchestrator"
	"formease/internal/session"
	"formease/pkg/dom"
	"formease/pkg/model"
)

// MappingStore 已保存的别名映射与设置来源
type MappingStore interface {
	LoadMappings(ctx context.Context) (map[string]model.AliasMapping, error)
	Settings(ctx context.Context, defaults model.Settings) (model.Settings, error)
}

// Option 服务可选项
type Option func(*Service)

// WithStore 使用持久化的别名映射与设置
func WithStore(s MappingStore) Option {
	return func(svc *Service) { svc.store = s }
}

// WithClock 替换编排器时钟
func WithClock(c orchestrator.Clock) Option {
	return func(svc *Service) { svc.clock = c }
}

type docCatalog struct {
	doc dom.Document
	cat *catalog.Catalog
}

// Service 对外的填写入口：每次请求组装 检测 -> 匹配 -> 填写 流程，同一文档同时只允许一次运行
type Service struct {
	cfg    config.Fill
	log    logger.Logger
	store  MappingStore
	clock  orchestrator.Clock
	engine *match.Engine
	runs   *session.Manager

	mu       sync.Mutex
	catalogs map[string]docCatalog
}

// NewService 创建服务
func NewService(cfg config.Fill, l logger.Logger, opts ...Option) *Service {
	if l == nil {
		l = logger.NewNop()
	}
	s := &Service{
		cfg:      cfg,
		log:      l,
		clock:    orchestrator.RealClock(),
		engine:   match.New(l),
		runs:     session.NewManager(l),
		catalogs: make(map[string]docCatalog),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Fill 对文档执行一次填写，失败信息通过响应的 Category 与 Message 返回
func (s *Service) Fill(ctx context.Context, doc dom.Document, docID string, req model.RunRequest) model.RunResponse {
	runID := uuid.NewString()
	if doc == nil {
		return failure(runID, model.CategoryInvalidRequest, "no document", nil)
	}
	if len(req.Data) == 0 {
		return failure(runID, model.CategoryInvalidRequest, "data record is empty", nil)
	}

	release, err := s.runs.Acquire(docID, runID)
	if err != nil {
		return failure(runID, model.CategoryRunInProgress, err.Error(), nil)
	}
	defer release()

	ctx = ctxkeys.WithRunID(ctx, runID)
	log := s.log.With("runId", runID, "doc", docID)

	custom, err := s.mappings(ctx, req.Aliases)
	if err != nil {
		log.Err(err, "读取别名映射失败")
		return failure(runID, model.CategoryRunFailed, err.Error(), nil)
	}
	settings := s.settings(ctx, log, req.Settings)

	disp := fill.New(doc, fill.Config{
		Animation:       time.Duration(settings.AnimationDurationMS) * time.Millisecond,
		OptionScanDelay: s.cfg.OptionScanDelay(),
		StrictOptions:   s.cfg.StrictOptions,
		Now:             s.clock.Now,
		Sleep:           s.clock.Sleep,
		Logger:          log,
	})
	orch := orchestrator.New(s.catalog(doc, docID), s.engine, disp, orchestrator.Config{
		RunTimeout:      s.cfg.RunTimeout(),
		FieldTimeout:    s.cfg.FieldTimeout(),
		InterFieldDelay: s.cfg.InterFieldDelay(),
		Clock:           s.clock,
		Logger:          log,
	})

	res, err := orch.Run(ctx, req.Data, custom)
	res.RunID = runID
	if err != nil {
		log.Warn("填写运行失败", "error", err)
		return failure(runID, orchestrator.Category(err), err.Error(), res)
	}
	return model.RunResponse{
		RunID:   runID,
		Success: true,
		Message: fmt.Sprintf("filled %d of %d detected fields", res.Filled, res.Detected),
		Result:  res,
	}
}

// Detect 列出文档中的可填写字段，冷却期内复用缓存
func (s *Service) Detect(ctx context.Context, doc dom.Document, docID string) ([]*model.FieldDescriptor, error) {
	if doc == nil {
		return nil, errors.New("no document")
	}
	return s.catalog(doc, docID).Detect(ctx, false)
}

// Invalidate 丢弃文档的字段缓存
func (s *Service) Invalidate(docID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if dc, ok := s.catalogs[docID]; ok {
		dc.cat.Invalidate()
	}
}

// Runs 当前活动运行
func (s *Service) Runs() []session.Run {
	return s.runs.List()
}

// catalog 文档实例变化时重建目录
func (s *Service) catalog(doc dom.Document, docID string) *catalog.Catalog {
	s.mu.Lock()
	defer s.mu.Unlock()
	if dc, ok := s.catalogs[docID]; ok && dc.doc == doc {
		return dc.cat
	}
	cat := catalog.New(doc, catalog.Config{
		Cooldown: s.cfg.CacheCooldown(),
		Now:      s.clock.Now,
		Logger:   s.log.With("doc", docID),
	})
	s.catalogs[docID] = docCatalog{doc: doc, cat: cat}
	return cat
}

// mappings 合并已保存映射与请求中的别名，同键时请求优先；结果为空时使用内置表
func (s *Service) mappings(ctx context.Context, overrides map[string][]string) (map[string]model.AliasMapping, error) {
	merged := map[string]model.AliasMapping{}
	if s.store != nil {
		stored, err := s.store.LoadMappings(ctx)
		if err != nil {
			return nil, err
		}
		for k, v := range stored {
			merged[k] = v
		}
	}
	for k, v := range match.FromAliasLists(overrides) {
		if strings.TrimSpace(k) == "" {
			continue
		}
		merged[k] = v
	}
	if len(merged) == 0 {
		return nil, nil
	}
	return merged, nil
}

func (s *Service) settings(ctx context.Context, log logger.Logger, override *model.Settings) model.Settings {
	out := model.Settings{AnimationDurationMS: int(s.cfg.Animation().Milliseconds())}
	if s.store != nil {
		stored, err := s.store.Settings(ctx, out)
		if err != nil {
			log.Err(err, "读取设置失败，使用默认值")
		} else {
			out = stored
		}
	}
	if override != nil && override.AnimationDurationMS >= 0 {
		out.AnimationDurationMS = override.AnimationDurationMS
	}
	return out
}

func failure(runID string, cat model.FailureCategory, msg string, res *model.FillResult) model.RunResponse {
	if res == nil {
		res = model.NewFillResult()
		res.RunID = runID
	}
	return model.RunResponse{RunID: runID, Category: cat, Message: msg, Result: res}
}
