package cdp

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/mafredri/cdp"
	"github.com/mafredri/cdp/devtool"
	"github.com/mafredri/cdp/rpcc"

	"formease/internal/logger"
	"formease/pkg/model"
)

// ErrNoTarget 没有可附加的页面
var ErrNoTarget = errors.New("no page target")

// Session 一个已附加的页面目标
type Session struct {
	Target model.TargetInfo
	Client *cdp.Client
	conn   *rpcc.Conn
}

// Manager 管理浏览器页面目标的枚举与附加
type Manager struct {
	devtoolsURL string
	log         logger.Logger

	mu       sync.Mutex
	sessions map[string]*Session
}

// New 创建并初始化 Manager
func New(devtoolsURL string, l logger.Logger) *Manager {
	if l == nil {
		l = logger.NewNop()
	}
	return &Manager{
		devtoolsURL: devtoolsURL,
		log:         l,
		sessions:    make(map[string]*Session),
	}
}

// ListTargets 列出可填写的页面目标
func (m *Manager) ListTargets(ctx context.Context) ([]model.TargetInfo, error) {
	targets, err := devtool.New(m.devtoolsURL).List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list targets %s: %w", m.devtoolsURL, err)
	}
	out := make([]model.TargetInfo, 0, len(targets))
	for _, t := range targets {
		if t.Type != devtool.Page {
			continue
		}
		out = append(out, toTargetInfo(t))
	}
	return out, nil
}

// Attach 附加到目标，targetID 为空时选择第一个页面；已附加时复用
func (m *Manager) Attach(ctx context.Context, targetID string) (*Session, error) {
	targets, err := devtool.New(m.devtoolsURL).List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list targets %s: %w", m.devtoolsURL, err)
	}
	var sel *devtool.Target
	for _, t := range targets {
		if t.Type != devtool.Page {
			continue
		}
		if targetID == "" || t.ID == targetID {
			sel = t
			break
		}
	}
	if sel == nil {
		if targetID == "" {
			return nil, ErrNoTarget
		}
		return nil, fmt.Errorf("%w: %s", ErrNoTarget, targetID)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[sel.ID]; ok {
		return s, nil
	}

	conn, err := rpcc.DialContext(ctx, sel.WebSocketDebuggerURL)
	if err != nil {
		return nil, fmt.Errorf("dial target %s: %w", sel.ID, err)
	}
	s := &Session{Target: toTargetInfo(sel), Client: cdp.NewClient(conn), conn: conn}
	m.sessions[sel.ID] = s
	m.log.Info("已附加页面目标", "target", sel.ID, "url", sel.URL)
	return s, nil
}

// Detach 断开目标连接
func (m *Manager) Detach(targetID string) error {
	m.mu.Lock()
	s, ok := m.sessions[targetID]
	delete(m.sessions, targetID)
	m.mu.Unlock()
	if !ok {
		return nil
	}
	m.log.Info("断开页面目标", "target", targetID)
	return s.conn.Close()
}

// Close 断开全部目标
func (m *Manager) Close() error {
	m.mu.Lock()
	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	m.mu.Unlock()

	var errs []error
	for _, id := range ids {
		if err := m.Detach(id); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func toTargetInfo(t *devtool.Target) model.TargetInfo {
	return model.TargetInfo{ID: t.ID, Type: string(t.Type), URL: t.URL, Title: t.Title}
}
