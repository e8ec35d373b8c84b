// Package datastore holds the records of one entity table, loaded by a
// single endpoint round trip per refresh.
package datastore

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/HerbHall/welfaredesk/internal/endpoint"
	"github.com/HerbHall/welfaredesk/internal/event"
	"github.com/HerbHall/welfaredesk/pkg/models"
	"github.com/HerbHall/welfaredesk/pkg/plugin"
)

// StalePolicy decides what happens to a fetch response that arrives after a
// newer fetch was issued.
type StalePolicy string

const (
	// StaleDiscard drops responses older than the newest issued fetch.
	StaleDiscard StalePolicy = "discard"
	// StaleApply applies every response as it arrives; the last to land wins.
	StaleApply StalePolicy = "apply"
)

// ParseStalePolicy validates a configured policy name.
func ParseStalePolicy(s string) (StalePolicy, error) {
	switch StalePolicy(s) {
	case StaleDiscard, StaleApply:
		return StalePolicy(s), nil
	case "":
		return StaleDiscard, nil
	}
	return "", fmt.Errorf("datastore: unknown stale response policy %q", s)
}

// Fetcher loads every record of an entity.
type Fetcher interface {
	FetchAll(ctx context.Context, entity *models.Entity) ([]models.Record, error)
}

// Notifier surfaces transient messages to the administrator.
type Notifier interface {
	Error(ctx context.Context, message string)
}

// Result describes how a Fetch ended.
type Result struct {
	Applied bool
	Stale   bool
	Count   int
	Err     error
}

// Store is the DataStore of one entity table.
type Store struct {
	entity   *models.Entity
	fetcher  Fetcher
	notifier Notifier
	logger   *zap.Logger
	policy   StalePolicy

	mu       sync.RWMutex
	records  []models.Record
	issued   uint64
	inflight int
	loaded   bool
	onChange []func()
	onFetch  []func()
}

// Option configures a Store.
type Option func(*Store)

// WithPolicy sets the stale response policy. The default is StaleDiscard.
func WithPolicy(p StalePolicy) Option {
	return func(s *Store) { s.policy = p }
}

// WithNotifier installs the notifier used on fetch failure.
func WithNotifier(n Notifier) Option {
	return func(s *Store) { s.notifier = n }
}

// New creates an empty Store for entity.
func New(entity *models.Entity, fetcher Fetcher, logger *zap.Logger, opts ...Option) *Store {
	s := &Store{
		entity:  entity,
		fetcher: fetcher,
		logger:  logger.With(zap.String("entity", entity.Name)),
		policy:  StaleDiscard,
		records: []models.Record{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Entity returns the entity the store holds.
func (s *Store) Entity() *models.Entity { return s.entity }

// OnChange registers fn to run after the record set changes. fn runs
// without the store lock held.
func (s *Store) OnChange(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onChange = append(s.onChange, fn)
}

// OnFetchStart registers fn to run when a fetch is issued, after Loading
// reports true.
func (s *Store) OnFetchStart(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onFetch = append(s.onFetch, fn)
}

// Fetch replaces the records with the endpoint's current data. On any
// failure the records are cleared and an error notification is shown.
func (s *Store) Fetch(ctx context.Context) Result {
	s.mu.Lock()
	s.issued++
	gen := s.issued
	s.inflight++
	started := make([]func(), len(s.onFetch))
	copy(started, s.onFetch)
	s.mu.Unlock()
	notifyAll(started)

	recs, err := s.fetcher.FetchAll(ctx, s.entity)

	s.mu.Lock()
	s.inflight--
	if s.policy == StaleDiscard && gen != s.issued {
		// The newest response may already have landed while this one was
		// still counted in flight; listeners must see loading end.
		var settled []func()
		if s.inflight == 0 && s.loaded {
			settled = s.listenersLocked()
		}
		s.mu.Unlock()
		s.logger.Info("discarding stale fetch response",
			zap.Uint64("generation", gen),
			zap.Error(err),
		)
		notifyAll(settled)
		return Result{Stale: true, Err: err}
	}
	if err != nil {
		s.records = []models.Record{}
	} else {
		s.records = recs
	}
	s.loaded = true
	listeners := s.listenersLocked()
	s.mu.Unlock()

	if err != nil {
		s.logger.Warn("fetch failed", zap.Error(err))
		if s.notifier != nil {
			s.notifier.Error(ctx, fmt.Sprintf("Failed to load %s: %s", s.entity.Label, endpoint.UserMessage(err)))
		}
	} else {
		s.logger.Debug("fetched records", zap.Int("count", len(recs)))
	}
	notifyAll(listeners)
	return Result{Applied: true, Count: len(recs), Err: err}
}

// Loading reports whether a fetch is in flight.
func (s *Store) Loading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.inflight > 0
}

// Loaded reports whether at least one fetch has completed.
func (s *Store) Loaded() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loaded
}

// Records returns a snapshot of the records. The slice may be retained by
// the caller; records must not be mutated.
func (s *Store) Records() []models.Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Record, len(s.records))
	copy(out, s.records)
	return out
}

// Len returns the number of records.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// Get returns the record with id.
func (s *Store) Get(id string) (models.Record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i := s.indexLocked(id); i >= 0 {
		return s.records[i].Clone(), true
	}
	return nil, false
}

// Prepend inserts r at the front. A record already present under the same
// id is replaced in place instead.
func (s *Store) Prepend(r models.Record) {
	r = r.Clone()
	s.mu.Lock()
	if i := s.indexLocked(r.ID()); i >= 0 {
		s.records = replaceAt(s.records, i, r)
	} else {
		s.records = append([]models.Record{r}, s.records...)
	}
	listeners := s.listenersLocked()
	s.mu.Unlock()
	notifyAll(listeners)
}

// Replace swaps the record with r's id for r. It reports whether one was
// found.
func (s *Store) Replace(r models.Record) bool {
	r = r.Clone()
	s.mu.Lock()
	i := s.indexLocked(r.ID())
	if i < 0 {
		s.mu.Unlock()
		return false
	}
	s.records = replaceAt(s.records, i, r)
	listeners := s.listenersLocked()
	s.mu.Unlock()
	notifyAll(listeners)
	return true
}

// Subscribe wires the store to the bus: refresh events refetch, saved and
// updated events apply the carried record locally. It returns a function
// that removes every subscription.
func (s *Store) Subscribe(bus plugin.EventBus) func() {
	name := s.entity.Name
	unsubs := []func(){
		bus.Subscribe(event.RefreshTopic(name), func(ctx context.Context, _ plugin.Event) {
			s.Fetch(ctx)
		}),
		bus.Subscribe(event.SavedTopic(name), func(_ context.Context, e plugin.Event) {
			if p, ok := e.Payload.(event.RecordPayload); ok && p.Record != nil {
				s.Prepend(p.Record)
			}
		}),
		bus.Subscribe(event.UpdatedTopic(name), func(_ context.Context, e plugin.Event) {
			if p, ok := e.Payload.(event.RecordPayload); ok && p.Record != nil {
				if !s.Replace(p.Record) {
					s.Prepend(p.Record)
				}
			}
		}),
	}
	return func() {
		for _, u := range unsubs {
			u()
		}
	}
}

func (s *Store) indexLocked(id string) int {
	if id == "" {
		return -1
	}
	for i, r := range s.records {
		if r.ID() == id {
			return i
		}
	}
	return -1
}

func (s *Store) listenersLocked() []func() {
	out := make([]func(), len(s.onChange))
	copy(out, s.onChange)
	return out
}

// replaceAt copies records so snapshots handed out by Records stay intact.
func replaceAt(records []models.Record, i int, r models.Record) []models.Record {
	out := make([]models.Record, len(records))
	copy(out, records)
	out[i] = r
	return out
}

func notifyAll(fns []func()) {
	for _, fn := range fns {
		fn()
	}
}
