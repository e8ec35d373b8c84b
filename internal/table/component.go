package table

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/HerbHall/welfaredesk/internal/datastore"
	"github.com/HerbHall/welfaredesk/internal/filter"
	"github.com/HerbHall/welfaredesk/internal/paginate"
	"github.com/HerbHall/welfaredesk/pkg/models"
)

// Defaults for Config fields left zero.
const (
	DefaultSearchDebounce  = 300 * time.Millisecond
	DefaultFilterDelay     = 120 * time.Millisecond
	DefaultFilterThreshold = 100
)

// FilterObserver receives the duration of each filter application.
type FilterObserver interface {
	ObserveFilter(entity string, elapsed time.Duration)
}

// Config tunes a Component.
type Config struct {
	RowsPerPage    int
	SearchDebounce time.Duration
	// FilterDelay is how long the filtering placeholder shows before a
	// filter application over more than FilterThreshold records completes.
	FilterDelay     time.Duration
	FilterThreshold int
	Observer        FilterObserver
}

func (c Config) withDefaults() Config {
	if c.SearchDebounce <= 0 {
		c.SearchDebounce = DefaultSearchDebounce
	}
	if c.FilterDelay < 0 {
		c.FilterDelay = 0
	}
	if c.FilterThreshold <= 0 {
		c.FilterThreshold = DefaultFilterThreshold
	}
	return c
}

// Component is one mounted admin table: a DataStore plus its filter and
// page state. Every change ends in at most one repaint.
type Component struct {
	entity *models.Entity
	store  *datastore.Store
	cfg    Config
	logger *zap.Logger
	search *filter.SearchInput

	mu        sync.Mutex
	filters   filter.State
	page      paginate.State
	filtered  []models.Record
	filtering bool
	filterSeq uint64
	timer     *time.Timer
	repaint   []func(Frame)
	closed    bool
}

// NewComponent wraps store. Call Mount to load it.
func NewComponent(store *datastore.Store, cfg Config, logger *zap.Logger) *Component {
	cfg = cfg.withDefaults()
	c := &Component{
		entity:   store.Entity(),
		store:    store,
		cfg:      cfg,
		logger:   logger.With(zap.String("entity", store.Entity().Name)),
		filters:  filter.State{},
		page:     paginate.NewState(cfg.RowsPerPage),
		filtered: []models.Record{},
	}
	c.search = filter.NewSearchInput(cfg.SearchDebounce, func(v string) {
		c.SetFilter(models.FilterKeySearch, v)
	})
	store.OnChange(c.storeChanged)
	store.OnFetchStart(c.paint)
	return c
}

// Entity returns the table's entity.
func (c *Component) Entity() *models.Entity { return c.entity }

// Store returns the underlying DataStore.
func (c *Component) Store() *datastore.Store { return c.store }

// OnRepaint registers fn to receive every repainted frame.
func (c *Component) OnRepaint(fn func(Frame)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.repaint = append(c.repaint, fn)
}

// Mount loads the table: it repaints the loading state and fetches.
func (c *Component) Mount(ctx context.Context) datastore.Result {
	return c.Refresh(ctx)
}

// Refresh refetches the records. The loading placeholder is painted for
// the duration of the round trip.
func (c *Component) Refresh(ctx context.Context) datastore.Result {
	return c.store.Fetch(ctx)
}

// Search returns the debounced search box.
func (c *Component) Search() *filter.SearchInput { return c.search }

// SetFilter sets one filter value and reapplies the filters when it
// changed. The search box uses this once its debounce fires.
func (c *Component) SetFilter(key, value string) {
	c.mu.Lock()
	changed := c.filters.Set(key, value)
	c.mu.Unlock()
	if changed {
		c.ApplyFilters()
	}
}

// SetSort orders the rows by date.
func (c *Component) SetSort(order string) {
	switch order {
	case filter.SortNone, filter.SortDateAsc, filter.SortDateDesc:
		c.SetFilter(models.FilterKeySort, order)
	}
}

// ResetFilters clears every filter and the search box.
func (c *Component) ResetFilters() {
	c.search.Clear()
	c.mu.Lock()
	c.filters.Reset()
	c.mu.Unlock()
	c.ApplyFilters()
}

// Filters returns a copy of the current filter state.
func (c *Component) Filters() filter.State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.filters.Clone()
}

// ApplyFilters recomputes the filtered records and returns to page 1. Over
// large record sets the filtering placeholder is painted first and the
// result lands after the configured delay.
func (c *Component) ApplyFilters() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.page.Reset()
	c.stopTimerLocked()
	c.filterSeq++
	seq := c.filterSeq

	if c.cfg.FilterDelay == 0 || c.store.Len() <= c.cfg.FilterThreshold {
		c.applyLocked()
		frame, fns := c.frameLocked()
		c.mu.Unlock()
		c.emit(frame, fns)
		return
	}

	c.filtering = true
	c.timer = time.AfterFunc(c.cfg.FilterDelay, func() { c.finishDelayed(seq) })
	frame, fns := c.frameLocked()
	c.mu.Unlock()
	c.emit(frame, fns)
}

func (c *Component) finishDelayed(seq uint64) {
	c.mu.Lock()
	if seq != c.filterSeq || c.closed {
		c.mu.Unlock()
		return
	}
	c.timer = nil
	c.applyLocked()
	c.filtering = false
	if c.store.Loading() {
		// The fetch completion repaints.
		c.mu.Unlock()
		return
	}
	frame, fns := c.frameLocked()
	c.mu.Unlock()
	c.emit(frame, fns)
}

// Settle lands a pending delayed filter application now and repaints.
// Callers that must answer with final rows, such as a page request without
// a live channel, use it after changing filters.
func (c *Component) Settle() {
	c.mu.Lock()
	if !c.filtering || c.closed {
		c.mu.Unlock()
		return
	}
	c.stopTimerLocked()
	c.filterSeq++
	c.filtering = false
	c.applyLocked()
	frame, fns := c.frameLocked()
	c.mu.Unlock()
	c.emit(frame, fns)
}

// storeChanged runs after every fetch or local mutation. A pending delayed
// filter application is superseded by this synchronous one.
func (c *Component) storeChanged() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.stopTimerLocked()
	c.filterSeq++
	c.filtering = false
	c.applyLocked()
	c.page.Clamp(len(c.filtered))
	frame, fns := c.frameLocked()
	c.mu.Unlock()
	c.emit(frame, fns)
}

// GoToPage moves to page p if it exists. Moves are ignored while a
// delayed filter application is pending, since the page range is unknown.
func (c *Component) GoToPage(p int) bool {
	c.mu.Lock()
	if c.filtering {
		c.mu.Unlock()
		return false
	}
	moved := c.page.GoToPage(p, len(c.filtered))
	frame, fns := c.frameLocked()
	c.mu.Unlock()
	if moved {
		c.emit(frame, fns)
	}
	return moved
}

// SetRowsPerPage changes the page size and returns to page 1.
func (c *Component) SetRowsPerPage(n int) bool {
	c.mu.Lock()
	ok := c.page.SetRowsPerPage(n)
	frame, fns := c.frameLocked()
	c.mu.Unlock()
	if ok {
		c.emit(frame, fns)
	}
	return ok
}

// Frame returns the frame for the current state without repainting.
func (c *Component) Frame() Frame {
	c.mu.Lock()
	defer c.mu.Unlock()
	f, _ := c.frameLocked()
	return f
}

// Filtered returns the current filtered records.
func (c *Component) Filtered() []models.Record {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]models.Record, len(c.filtered))
	copy(out, c.filtered)
	return out
}

// Close stops pending timers. The component ignores later changes.
func (c *Component) Close() {
	c.search.Stop()
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	c.stopTimerLocked()
}

func (c *Component) paint() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	frame, fns := c.frameLocked()
	c.mu.Unlock()
	c.emit(frame, fns)
}

func (c *Component) applyLocked() {
	start := time.Now()
	c.filtered = filter.Apply(c.store.Records(), c.entity, c.filters)
	if c.cfg.Observer != nil {
		c.cfg.Observer.ObserveFilter(c.entity.Name, time.Since(start))
	}
}

func (c *Component) stopTimerLocked() {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}

func (c *Component) frameLocked() (Frame, []func(Frame)) {
	f := Render(c.entity, Input{
		Filtered:    c.filtered,
		RecordCount: c.store.Len(),
		Filters:     c.filters.Clone(),
		Page:        c.page,
		Loading:     c.store.Loading(),
		Filtering:   c.filtering,
	})
	fns := make([]func(Frame), len(c.repaint))
	copy(fns, c.repaint)
	return f, fns
}

func (c *Component) emit(f Frame, fns []func(Frame)) {
	for _, fn := range fns {
		fn(f)
	}
}
