package store

import (
	"fmt"
	"log/slog"
	"reflect"
	"sort"
	"sync"

	"comictag/internal/logging"
)

// Change describes one key whose value differs from the value it replaced.
// Deleted is set when the key was removed by Clear.
type Change struct {
	Key     string
	Value   any
	Deleted bool
}

// Listener receives the changes produced by a single write, ordered by key.
type Listener func([]Change)

// Store is a thread-safe map with diff-based change notification.
type Store struct {
	logger *slog.Logger

	mu        sync.Mutex
	data      map[string]any
	listeners map[uint64]Listener
	order     []uint64
	nextID    uint64
}

// Subscription is the handle returned by Subscribe.
type Subscription struct {
	store *Store
	id    uint64
	once  sync.Once
}

// New creates an empty store. A nil logger discards subscriber failure reports.
func New(logger *slog.Logger) *Store {
	return &Store{
		logger:    logging.NewComponentLogger(logger, "store"),
		data:      make(map[string]any),
		listeners: make(map[uint64]Listener),
	}
}

// Get returns the value stored under key.
func (s *Store) Get(key string) (any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	value, ok := s.data[key]
	return value, ok
}

// Lookup returns the value under key converted to T. The second result is
// false when the key is absent or holds a value of another type.
func Lookup[T any](s *Store, key string) (T, bool) {
	var zero T
	value, ok := s.Get(key)
	if !ok {
		return zero, false
	}
	typed, ok := value.(T)
	if !ok {
		return zero, false
	}
	return typed, true
}

// Snapshot returns a shallow copy of the whole map.
func (s *Store) Snapshot() map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]any, len(s.data))
	for k, v := range s.data {
		out[k] = v
	}
	return out
}

// Set stores value under key and notifies subscribers when it changed.
func (s *Store) Set(key string, value any) {
	s.Update(map[string]any{key: value})
}

// Update stores every entry of values under one lock acquisition and
// delivers the keys that actually changed as a single batch.
func (s *Store) Update(values map[string]any) {
	if len(values) == 0 {
		return
	}
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	s.mu.Lock()
	changes := make([]Change, 0, len(keys))
	for _, key := range keys {
		value := values[key]
		if prev, ok := s.data[key]; ok && reflect.DeepEqual(prev, value) {
			continue
		}
		s.data[key] = value
		changes = append(changes, Change{Key: key, Value: value})
	}
	listeners := s.listenersLocked()
	s.mu.Unlock()

	s.dispatch(listeners, changes)
}

// Clear removes every key. Subscribers are told about each removed key.
func (s *Store) Clear() {
	s.mu.Lock()
	keys := make([]string, 0, len(s.data))
	for k := range s.data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	changes := make([]Change, 0, len(keys))
	for _, key := range keys {
		changes = append(changes, Change{Key: key, Deleted: true})
	}
	s.data = make(map[string]any)
	listeners := s.listenersLocked()
	s.mu.Unlock()

	s.dispatch(listeners, changes)
}

// Subscribe registers fn for future change batches.
func (s *Store) Subscribe(fn Listener) *Subscription {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	id := s.nextID
	s.listeners[id] = fn
	s.order = append(s.order, id)
	return &Subscription{store: s, id: id}
}

// Unsubscribe stops delivery to the subscription's listener. It is safe to
// call more than once and from inside a listener.
func (sub *Subscription) Unsubscribe() {
	if sub == nil || sub.store == nil {
		return
	}
	sub.once.Do(func() {
		s := sub.store
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.listeners, sub.id)
		for i, id := range s.order {
			if id == sub.id {
				s.order = append(s.order[:i], s.order[i+1:]...)
				break
			}
		}
	})
}

func (s *Store) listenersLocked() []Listener {
	out := make([]Listener, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.listeners[id])
	}
	return out
}

func (s *Store) dispatch(listeners []Listener, changes []Change) {
	if len(changes) == 0 {
		return
	}
	for _, fn := range listeners {
		s.deliver(fn, changes)
	}
}

func (s *Store) deliver(fn Listener, changes []Change) {
	defer func() {
		if r := recover(); r != nil {
			logging.WarnWithContext(s.logger, "store subscriber panicked", "store_subscriber_panic",
				logging.String("panic", fmt.Sprint(r)),
				logging.Int("changes", len(changes)),
				logging.String(logging.FieldErrorHint, "fix the subscriber callback"),
				logging.String(logging.FieldImpact, "the subscriber missed this change batch"),
			)
		}
	}()
	cp := make([]Change, len(changes))
	copy(cp, changes)
	fn(cp)
}
