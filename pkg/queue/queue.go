package queue

import (
	"errors"
	"fmt"
	"math"

	"github.com/sherine-k/procflow/pkg/states"
)

var (
	// ErrQueueEmpty is returned when an item is requested from an empty queue
	ErrQueueEmpty = errors.New("queue is empty")
	// ErrNoEligibleItem is returned when no queued item carries the requested match key
	ErrNoEligibleItem = errors.New("no item matches")
)

// Item is a unit of work moving through the model
type Item struct {
	ID          string
	MatchKey    string
	CreatedTick int64
	Attributes  map[string]string
}

// User is notified synchronously whenever a queue's contents change
type User interface {
	Name() string
	QueueChanged() error
}

// Clock reports the current simulated tick
type Clock interface {
	Now() int64
}

// KeyFunc computes the match key for an item at enqueue time
type KeyFunc func(item *Item) string

type entry struct {
	item         *Item
	key          string
	enqueuedTick int64
}

// Queue holds items in enqueue order. Which item leaves next is decided by
// the match value passed to RemoveFirstForMatch.
type Queue struct {
	name  string
	clock Clock
	key   KeyFunc
	users []User

	entries []entry

	// statistics since the last EarlyInit
	startTick     int64
	lastTick      int64
	lengthTicks   float64
	numberAdded   int64
	numberRemoved int64
	waitTicks     int64
	maxLength     int
}

// New creates an empty queue
func New(name string, clock Clock) *Queue {
	return &Queue{name: name, clock: clock}
}

// Name returns the queue name
func (q *Queue) Name() string {
	return q.name
}

// SetKeyFunc overrides how match keys are computed; nil restores Item.MatchKey
func (q *Queue) SetKeyFunc(fn KeyFunc) {
	q.key = fn
}

// AddUser registers u for change notifications; duplicates are ignored
func (q *Queue) AddUser(u User) {
	for _, existing := range q.users {
		if existing == u {
			return
		}
	}
	q.users = append(q.users, u)
}

// Users returns the registered users
func (q *Queue) Users() []User {
	out := make([]User, len(q.users))
	copy(out, q.users)
	return out
}

// EarlyInit empties the queue and clears its statistics
func (q *Queue) EarlyInit() {
	now := q.clock.Now()
	q.entries = nil
	q.startTick = now
	q.lastTick = now
	q.lengthTicks = 0
	q.numberAdded = 0
	q.numberRemoved = 0
	q.waitTicks = 0
	q.maxLength = 0
}

// Enqueue appends item and notifies every user before returning
func (q *Queue) Enqueue(item *Item) error {
	q.accumulate()

	key := item.MatchKey
	if q.key != nil {
		key = q.key(item)
	}
	q.entries = append(q.entries, entry{item: item, key: key, enqueuedTick: q.clock.Now()})
	q.numberAdded++
	if len(q.entries) > q.maxLength {
		q.maxLength = len(q.entries)
	}

	return q.notify()
}

// RemoveFirstForMatch removes and returns the earliest item whose key
// equals *m, or the earliest item overall when m is nil.
func (q *Queue) RemoveFirstForMatch(m *string) (*Item, error) {
	if len(q.entries) == 0 {
		return nil, fmt.Errorf("%s: remove: %w", q.name, ErrQueueEmpty)
	}

	idx := q.indexForMatch(m)
	if idx < 0 {
		return nil, fmt.Errorf("%s: remove for match %q: %w", q.name, *m, ErrNoEligibleItem)
	}

	q.accumulate()
	e := q.entries[idx]
	q.entries = append(q.entries[:idx], q.entries[idx+1:]...)
	q.numberRemoved++
	q.waitTicks += q.clock.Now() - e.enqueuedTick

	if err := q.notify(); err != nil {
		return e.item, err
	}
	return e.item, nil
}

func (q *Queue) indexForMatch(m *string) int {
	if m == nil {
		if len(q.entries) == 0 {
			return -1
		}
		return 0
	}
	for i, e := range q.entries {
		if e.key == *m {
			return i
		}
	}
	return -1
}

func (q *Queue) notify() error {
	for _, u := range q.users {
		if err := u.QueueChanged(); err != nil {
			return fmt.Errorf("%s: queue changed: %w", u.Name(), err)
		}
	}
	return nil
}

// Count returns the number of queued items
func (q *Queue) Count() int {
	return len(q.entries)
}

// CountForMatch returns the number of items eligible for m; nil matches all
func (q *Queue) CountForMatch(m *string) int {
	if m == nil {
		return len(q.entries)
	}
	n := 0
	for _, e := range q.entries {
		if e.key == *m {
			n++
		}
	}
	return n
}

// MatchKeys returns the distinct keys present, in first-enqueued order
func (q *Queue) MatchKeys() []string {
	seen := make(map[string]struct{})
	var keys []string
	for _, e := range q.entries {
		if _, ok := seen[e.key]; ok {
			continue
		}
		seen[e.key] = struct{}{}
		keys = append(keys, e.key)
	}
	return keys
}

// Items returns the queued items in enqueue order
func (q *Queue) Items() []*Item {
	out := make([]*Item, len(q.entries))
	for i, e := range q.entries {
		out[i] = e.item
	}
	return out
}

func (q *Queue) accumulate() {
	now := q.clock.Now()
	q.lengthTicks += float64(len(q.entries)) * float64(now-q.lastTick)
	q.lastTick = now
}

// Stats summarises a queue over a run
type Stats struct {
	NumberAdded   int64
	NumberRemoved int64
	MaxLength     int
	Length        int
	AverageLength float64
	AverageWait   float64 // ticks, over removed items
}

// Stats reports statistics up to upto. AverageLength is NaN when no time
// has elapsed, AverageWait is NaN when nothing has left the queue.
func (q *Queue) Stats(upto int64) (Stats, error) {
	s := Stats{
		NumberAdded:   q.numberAdded,
		NumberRemoved: q.numberRemoved,
		MaxLength:     q.maxLength,
		Length:        len(q.entries),
		AverageWait:   math.NaN(),
	}
	if q.numberRemoved > 0 {
		s.AverageWait = float64(q.waitTicks) / float64(q.numberRemoved)
	}
	avg, err := q.AverageLength(upto)
	s.AverageLength = avg
	return s, err
}

// AverageLength returns the time-weighted queue length since the last EarlyInit
func (q *Queue) AverageLength(upto int64) (float64, error) {
	if upto < q.lastTick {
		return math.NaN(), fmt.Errorf("%s: average length at %d (last change %d): %w", q.name, upto, q.lastTick, states.ErrQueryBeforeStateStart)
	}
	elapsed := upto - q.startTick
	if elapsed == 0 {
		return math.NaN(), fmt.Errorf("%s: %w", q.name, states.ErrNoElapsedTime)
	}
	total := q.lengthTicks + float64(len(q.entries))*float64(upto-q.lastTick)
	return total / float64(elapsed), nil
}
