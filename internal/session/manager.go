package session

import (
	"errors"
	"sort"
	"sync"
	"time"

	"formease/internal/logger"
)

// ErrRunInProgress 同一文档已有运行中的填写
var ErrRunInProgress = errors.New("a fill run is already in progress for this document")

// Run 一次活动运行
type Run struct {
	DocID     string    `json:"docId"`
	RunID     string    `json:"runId"`
	StartedAt time.Time `json:"startedAt"`
}

// Manager 保证每个文档同一时间只有一次填写运行
type Manager struct {
	mu   sync.Mutex
	runs map[string]Run
	log  logger.Logger
	now  func() time.Time
}

// NewManager 创建运行管理器
func NewManager(l logger.Logger) *Manager {
	if l == nil {
		l = logger.NewNop()
	}
	return &Manager{
		runs: make(map[string]Run),
		log:  l,
		now:  time.Now,
	}
}

// Acquire 占用文档，返回的 release 可重复调用
func (m *Manager) Acquire(docID, runID string) (release func(), err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if cur, ok := m.runs[docID]; ok {
		m.log.Warn("文档已有运行中的填写", "docId", docID, "runId", cur.RunID)
		return nil, ErrRunInProgress
	}
	m.runs[docID] = Run{DocID: docID, RunID: runID, StartedAt: m.now()}
	m.log.Debug("占用文档", "docId", docID, "runId", runID)

	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			defer m.mu.Unlock()
			if cur, ok := m.runs[docID]; ok && cur.RunID == runID {
				delete(m.runs, docID)
			}
			m.log.Debug("释放文档", "docId", docID, "runId", runID)
		})
	}, nil
}

// List 返回所有活动运行，按开始时间排序
func (m *Manager) List() []Run {
	m.mu.Lock()
	defer m.mu.Unlock()
	list := make([]Run, 0, len(m.runs))
	for _, r := range m.runs {
		list = append(list, r)
	}
	sort.Slice(list, func(i, j int) bool {
		if list[i].StartedAt.Equal(list[j].StartedAt) {
			return list[i].DocID < list[j].DocID
		}
		return list[i].StartedAt.Before(list[j].StartedAt)
	})
	return list
}
