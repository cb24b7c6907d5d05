package listview

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Page 控制器的非泛型视角，registry和handler通过它调度
type Page interface {
	SnapshotData() any
	SetFilter(field, value string)
	ToggleSort(field string) bool
	ToggleExpand(id int64) bool
	OpenDelete(id int64) bool
	CancelDelete()
	ConfirmDelete(ctx context.Context) error
	Reload()
	Close()
}

type entry struct {
	page       Page
	lastAccess time.Time
}

// Registry 按（会话，页面）维护控制器实例，空闲超时回收
type Registry struct {
	mu      sync.Mutex
	entries map[string]map[string]*entry // sessionID -> page name -> entry
	ttl     time.Duration
	stop    chan struct{}
	once    sync.Once
	logger  *zap.Logger
}

// NewRegistry 创建registry并启动回收协程
func NewRegistry(ttl time.Duration, logger *zap.Logger) *Registry {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	r := &Registry{
		entries: make(map[string]map[string]*entry),
		ttl:     ttl,
		stop:    make(chan struct{}),
		logger:  logger,
	}
	go r.janitor()
	return r
}

// Get 取会话的页面控制器，不存在时用build创建。
// 返回是否为新建，新建的页面由调用方决定是否立即加载。
func (r *Registry) Get(sessionID, page string, build func() Page) (Page, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	pages, ok := r.entries[sessionID]
	if !ok {
		pages = make(map[string]*entry)
		r.entries[sessionID] = pages
	}

	if e, ok := pages[page]; ok {
		e.lastAccess = time.Now()
		return e.page, false
	}

	p := build()
	pages[page] = &entry{page: p, lastAccess: time.Now()}
	r.logger.Debug("创建页面控制器",
		zap.String("session_id", sessionID),
		zap.String("page", page),
	)
	return p, true
}

// DropSession 关闭并移除一个会话的全部页面控制器（登出、401失效）
func (r *Registry) DropSession(sessionID string) {
	r.mu.Lock()
	pages := r.entries[sessionID]
	delete(r.entries, sessionID)
	r.mu.Unlock()

	for _, e := range pages {
		e.page.Close()
	}
}

// Shutdown 停止回收协程并关闭所有控制器
func (r *Registry) Shutdown() {
	r.once.Do(func() { close(r.stop) })

	r.mu.Lock()
	entries := r.entries
	r.entries = make(map[string]map[string]*entry)
	r.mu.Unlock()

	for _, pages := range entries {
		for _, e := range pages {
			e.page.Close()
		}
	}
}

func (r *Registry) janitor() {
	interval := r.ttl / 2
	if interval < time.Minute {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-r.stop:
			return
		case <-ticker.C:
			r.evictIdle()
		}
	}
}

func (r *Registry) evictIdle() {
	cutoff := time.Now().Add(-r.ttl)
	var victims []Page

	r.mu.Lock()
	for sid, pages := range r.entries {
		for name, e := range pages {
			if e.lastAccess.Before(cutoff) {
				victims = append(victims, e.page)
				delete(pages, name)
			}
		}
		if len(pages) == 0 {
			delete(r.entries, sid)
		}
	}
	r.mu.Unlock()

	for _, p := range victims {
		p.Close()
	}
	if len(victims) > 0 {
		r.logger.Debug("回收空闲页面控制器", zap.Int("count", len(victims)))
	}
}
