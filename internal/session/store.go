// Package session holds the in-memory item collection of one user session.
package session

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"lookbook/internal/domain"
)

// EventKind describes what happened to an item.
type EventKind string

const (
	EventAdded   EventKind = "added"
	EventUpdated EventKind = "updated"
	EventRemoved EventKind = "removed"
)

// Event is published to watchers after every store mutation.
type Event struct {
	Kind EventKind
	Item domain.Item
}

// Options tunes how new items are identified and located.
type Options struct {
	// NewID returns a fresh identifier. Defaults to a random UUID.
	NewID func() string
	// PreviewURL builds the displayable preview locator for an item id.
	PreviewURL func(id string) string
}

// Store is the ordered, most-recent-first item collection. All operations are
// safe for concurrent use; reads return copies.
type Store struct {
	mu         sync.RWMutex
	items      []domain.Item
	newID      func() string
	previewURL func(string) string
	// issued holds every id handed out, including removed ones.
	issued map[string]struct{}

	watchers  map[int]chan Event
	nextWatch int
}

// NewStore creates an empty store.
func NewStore(opts Options) *Store {
	newID := opts.NewID
	if newID == nil {
		newID = uuid.NewString
	}
	previewURL := opts.PreviewURL
	if previewURL == nil {
		previewURL = DefaultPreviewURL
	}
	return &Store{
		newID:      newID,
		previewURL: previewURL,
		issued:     make(map[string]struct{}),
		watchers:   make(map[int]chan Event),
	}
}

// DefaultPreviewURL is the HTTP path the session server serves previews on.
func DefaultPreviewURL(id string) string {
	return fmt.Sprintf("/v1/items/%s/preview", id)
}

// DefaultResultURL is the HTTP path the session server serves results on.
func DefaultResultURL(id string) string {
	return fmt.Sprintf("/v1/items/%s/result", id)
}

// AddItems creates one idle item per source and places them, in input order,
// in front of the existing items.
func (s *Store) AddItems(sources []domain.SourceImage) []domain.Item {
	if len(sources) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	created := make([]domain.Item, 0, len(sources))
	for _, src := range sources {
		id := s.uniqueIDLocked()
		src.PreviewURL = s.previewURL(id)
		created = append(created, domain.Item{ID: id, Source: src, Status: domain.StatusIdle})
	}
	items := make([]domain.Item, 0, len(created)+len(s.items))
	items = append(items, created...)
	s.items = append(items, s.items...)
	for _, it := range created {
		s.publishLocked(Event{Kind: EventAdded, Item: it})
	}
	return created
}

func (s *Store) uniqueIDLocked() string {
	for {
		id := s.newID()
		if _, taken := s.issued[id]; !taken {
			s.issued[id] = struct{}{}
			return id
		}
	}
}

// RemoveItem deletes the item with id. Unknown ids are ignored.
func (s *Store) RemoveItem(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := s.indexLocked(id)
	if idx < 0 {
		return false
	}
	removed := s.items[idx]
	s.items = append(s.items[:idx:idx], s.items[idx+1:]...)
	s.publishLocked(Event{Kind: EventRemoved, Item: removed})
	return true
}

// UpdateItem replaces the lifecycle fields of the item with id. It reports
// false, without error, when the item no longer exists.
func (s *Store) UpdateItem(id string, patch domain.Patch) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := s.indexLocked(id)
	if idx < 0 {
		return false
	}
	updated := s.items[idx].Apply(patch)
	s.items[idx] = updated
	s.publishLocked(Event{Kind: EventUpdated, Item: updated})
	return true
}

// Eligible returns idle and failed items in store order.
func (s *Store) Eligible() []domain.Item {
	return s.filter(func(it domain.Item) bool { return it.Status.Eligible() })
}

// Completed returns completed items that carry a result image, in store order.
func (s *Store) Completed() []domain.Item {
	return s.filter(domain.Item.HasResult)
}

// Snapshot returns every item in store order.
func (s *Store) Snapshot() []domain.Item {
	return s.filter(func(domain.Item) bool { return true })
}

// Get looks up a single item.
func (s *Store) Get(id string) (domain.Item, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	idx := s.indexLocked(id)
	if idx < 0 {
		return domain.Item{}, false
	}
	return s.items[idx], true
}

// Len returns the number of items.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

func (s *Store) filter(keep func(domain.Item) bool) []domain.Item {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Item, 0, len(s.items))
	for _, it := range s.items {
		if keep(it) {
			out = append(out, it)
		}
	}
	return out
}

func (s *Store) indexLocked(id string) int {
	for i := range s.items {
		if s.items[i].ID == id {
			return i
		}
	}
	return -1
}

// Watch streams store events until ctx is done. A watcher whose buffer is
// full misses events rather than stalling the writer.
func (s *Store) Watch(ctx context.Context, buffer int) <-chan Event {
	if buffer <= 0 {
		buffer = 16
	}
	ch := make(chan Event, buffer)
	s.mu.Lock()
	key := s.nextWatch
	s.nextWatch++
	s.watchers[key] = ch
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		s.mu.Lock()
		delete(s.watchers, key)
		close(ch)
		s.mu.Unlock()
	}()
	return ch
}

func (s *Store) publishLocked(ev Event) {
	for _, ch := range s.watchers {
		select {
		case ch <- ev:
		default:
		}
	}
}
