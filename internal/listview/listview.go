// Package listview 实现列表页状态机：idle → loading → success/error，
// 过滤输入去抖后重新加载，排序在本地完成，展开行单选，删除走两步确认。
// 每次加载携带单调递增的generation，只有最新一代的响应才允许更新状态，
// 过期响应一律丢弃。
package listview

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/autoflex/console/internal/autoflex"
)

// State 页面加载状态
type State string

const (
	StateIdle    State = "idle"
	StateLoading State = "loading"
	StateSuccess State = "success"
	StateError   State = "error"
)

// Direction 排序方向
type Direction string

const (
	Asc  Direction = "asc"
	Desc Direction = "desc"
)

// Sort 当前排序
type Sort struct {
	Field     string    `json:"field"`
	Direction Direction `json:"direction"`
}

// FieldSpec 可排序字段：数值字段按数值比较，其余按locale字符串比较
type FieldSpec[T any] struct {
	Numeric bool
	Number  func(T) float64
	String  func(T) string
}

// Config 页面控制器配置
type Config[T any] struct {
	Page        string
	Debounce    time.Duration
	CanManage   bool
	DefaultSort Sort
	Fields      map[string]FieldSpec[T]

	// ID 行标识，展开/删除定位用
	ID func(T) int64

	// Load 拉取数据。过滤条件传给上游还是本地匹配由页面决定：
	// Match为nil时过滤交给Load（上游query参数），否则在本地过滤。
	Load  func(ctx context.Context, filters map[string]string) ([]T, error)
	Match func(item T, query string) bool

	// Remove 删除一行，nil表示页面只读（如产能报表）
	Remove func(ctx context.Context, id int64) error

	// Expandable 是否支持展开行明细
	Expandable bool

	// OnChange 每次状态变化时收到快照（SSE推送）。
	// 回调在控制器锁内执行，不得再调用控制器方法。
	OnChange func(Snapshot[T])

	// OnUnauthorized 后台加载遇到上游401时触发（会话整体失效）
	OnUnauthorized func()

	Logger *zap.Logger
}

// Snapshot 页面状态快照，items已按当前过滤和排序整理
type Snapshot[T any] struct {
	Page          string            `json:"page"`
	State         State             `json:"state"`
	Items         []T               `json:"items"`
	Error         string            `json:"error,omitempty"`
	Filters       map[string]string `json:"filters"`
	Sort          Sort              `json:"sort"`
	ExpandedID    *int64            `json:"expanded_id,omitempty"`
	PendingDelete *int64            `json:"pending_delete,omitempty"`
	CanManage     bool              `json:"can_manage"`
	Generation    uint64            `json:"generation"`
}

// Controller 单个列表页的状态机。所有方法并发安全。
type Controller[T any] struct {
	cfg      Config[T]
	collator *collate.Collator

	mu            sync.Mutex
	state         State
	items         []T // 最近一次成功加载的数据
	errMsg        string
	filters       map[string]string
	sort          Sort
	expanded      *int64
	pendingDelete *int64
	gen           uint64 // 已发起的最新一代加载
	timer         *time.Timer
	closed        bool
}

// New 创建页面控制器，初始状态idle，不发起加载
func New[T any](cfg Config[T]) *Controller[T] {
	if cfg.Debounce <= 0 {
		cfg.Debounce = 700 * time.Millisecond
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Controller[T]{
		cfg:      cfg,
		collator: collate.New(language.English, collate.IgnoreCase),
		state:    StateIdle,
		filters:  map[string]string{},
		sort:     cfg.DefaultSort,
	}
}

// Reload 立即发起一次加载（页面挂载、删除后、表单提交后）
func (c *Controller[T]) Reload() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.startLoadLocked()
}

// SetFilter 记录过滤输入并重置去抖定时器；
// 定时器到期后才真正发起加载，快速输入被合并为一次。
func (c *Controller[T]) SetFilter(field, value string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}

	c.filters[field] = value
	if c.timer != nil {
		c.timer.Stop()
	}
	c.timer = time.AfterFunc(c.cfg.Debounce, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.closed {
			return
		}
		c.startLoadLocked()
	})
	c.notifyLocked()
}

// ToggleSort 同字段翻转方向，换字段回到升序。未知字段返回false。
func (c *Controller[T]) ToggleSort(field string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.cfg.Fields[field]; !ok {
		return false
	}

	if c.sort.Field == field {
		if c.sort.Direction == Asc {
			c.sort.Direction = Desc
		} else {
			c.sort.Direction = Asc
		}
	} else {
		c.sort = Sort{Field: field, Direction: Asc}
	}
	c.notifyLocked()
	return true
}

// ToggleExpand 展开行单选：再点同一行收起，点其他行切换
func (c *Controller[T]) ToggleExpand(id int64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.cfg.Expandable {
		return false
	}

	if c.expanded != nil && *c.expanded == id {
		c.expanded = nil
	} else {
		c.expanded = &id
	}
	c.notifyLocked()
	return true
}

// OpenDelete 打开删除确认对话框。只读页面返回false。
func (c *Controller[T]) OpenDelete(id int64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cfg.Remove == nil {
		return false
	}
	c.pendingDelete = &id
	c.notifyLocked()
	return true
}

// CancelDelete 取消确认，不产生任何变更请求
func (c *Controller[T]) CancelDelete() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pendingDelete = nil
	c.notifyLocked()
}

// ConfirmDelete 确认删除：先调上游删除，成功后重新加载列表。
// 失败时列表保持上次成功数据，错误以error状态呈现。
func (c *Controller[T]) ConfirmDelete(ctx context.Context) error {
	c.mu.Lock()
	if c.pendingDelete == nil {
		c.mu.Unlock()
		return errors.New("listview: no pending delete")
	}
	id := *c.pendingDelete
	c.pendingDelete = nil
	remove := c.cfg.Remove
	c.mu.Unlock()

	if err := remove(ctx, id); err != nil {
		c.mu.Lock()
		c.state = StateError
		c.errMsg = userMessage(err)
		c.notifyLocked()
		c.mu.Unlock()
		return err
	}

	c.Reload()
	return nil
}

// Snapshot 当前状态快照
func (c *Controller[T]) Snapshot() Snapshot[T] {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// SnapshotData 供registry/handler以非泛型方式取快照
func (c *Controller[T]) SnapshotData() any {
	return c.Snapshot()
}

// Close 停止定时器并丢弃后续所有响应
func (c *Controller[T]) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}

// startLoadLocked 发起新一代加载。已有加载在途时不取消，
// 但其响应会因generation过期而被丢弃。
func (c *Controller[T]) startLoadLocked() {
	if c.closed {
		return
	}
	c.gen++
	gen := c.gen
	c.state = StateLoading

	filters := make(map[string]string, len(c.filters))
	for k, v := range c.filters {
		filters[k] = strings.TrimSpace(v)
	}
	c.notifyLocked()

	go c.load(gen, filters)
}

func (c *Controller[T]) load(gen uint64, filters map[string]string) {
	items, err := c.cfg.Load(context.Background(), filters)

	unauthorized := err != nil && errors.Is(err, autoflex.ErrUnauthorized)

	c.mu.Lock()
	if c.closed || gen != c.gen {
		c.cfg.Logger.Debug("丢弃过期的列表响应",
			zap.String("page", c.cfg.Page),
			zap.Uint64("gen", gen),
			zap.Uint64("latest", c.gen),
		)
		c.mu.Unlock()
		return
	}

	if err != nil {
		// 列表保持上次成功数据
		c.state = StateError
		c.errMsg = userMessage(err)
		c.cfg.Logger.Warn("列表加载失败",
			zap.String("page", c.cfg.Page),
			zap.Error(err),
		)
	} else {
		c.state = StateSuccess
		c.errMsg = ""
		c.items = items
		c.pruneExpandedLocked()
	}
	c.notifyLocked()
	onUnauthorized := c.cfg.OnUnauthorized
	c.mu.Unlock()

	if unauthorized && onUnauthorized != nil {
		onUnauthorized()
	}
}

// pruneExpandedLocked 展开的行在新数据里不存在时收起
func (c *Controller[T]) pruneExpandedLocked() {
	if c.expanded == nil || c.cfg.ID == nil {
		return
	}
	for _, item := range c.items {
		if c.cfg.ID(item) == *c.expanded {
			return
		}
	}
	c.expanded = nil
}

func (c *Controller[T]) snapshotLocked() Snapshot[T] {
	filters := make(map[string]string, len(c.filters))
	for k, v := range c.filters {
		filters[k] = v
	}

	snap := Snapshot[T]{
		Page:       c.cfg.Page,
		State:      c.state,
		Items:      c.viewLocked(),
		Error:      c.errMsg,
		Filters:    filters,
		Sort:       c.sort,
		CanManage:  c.cfg.CanManage,
		Generation: c.gen,
	}
	if c.expanded != nil {
		id := *c.expanded
		snap.ExpandedID = &id
	}
	if c.pendingDelete != nil {
		id := *c.pendingDelete
		snap.PendingDelete = &id
	}
	return snap
}

// viewLocked 对最近一次成功数据应用本地过滤和排序
func (c *Controller[T]) viewLocked() []T {
	items := c.items

	if c.cfg.Match != nil {
		query := strings.ToLower(strings.TrimSpace(c.filters["search"]))
		if query != "" {
			filtered := make([]T, 0, len(items))
			for _, item := range items {
				if c.cfg.Match(item, query) {
					filtered = append(filtered, item)
				}
			}
			items = filtered
		}
	}

	view := make([]T, len(items))
	copy(view, items)

	spec, ok := c.cfg.Fields[c.sort.Field]
	if !ok || c.sort.Field == "" {
		return view
	}
	desc := c.sort.Direction == Desc

	sort.SliceStable(view, func(i, j int) bool {
		var less bool
		if spec.Numeric {
			less = spec.Number(view[i]) < spec.Number(view[j])
		} else {
			less = c.collator.CompareString(spec.String(view[i]), spec.String(view[j])) < 0
		}
		if desc {
			return !less && !c.equal(spec, view[i], view[j])
		}
		return less
	})
	return view
}

func (c *Controller[T]) equal(spec FieldSpec[T], a, b T) bool {
	if spec.Numeric {
		return spec.Number(a) == spec.Number(b)
	}
	return c.collator.CompareString(spec.String(a), spec.String(b)) == 0
}

func (c *Controller[T]) notifyLocked() {
	if c.cfg.OnChange == nil || c.closed {
		return
	}
	c.cfg.OnChange(c.snapshotLocked())
}

// userMessage 提取面向用户的错误文案：
// 上游错误用规范化message，其余用error原文
func userMessage(err error) string {
	var apiErr *autoflex.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Message
	}
	return err.Error()
}
