package queue

import "sort"

// Ref names the queue a consumer draws from. Resolution is read-only.
type Ref interface {
	// Resolve returns the queue in force at tick, or nil
	Resolve(tick int64) *Queue
	// Queues lists every queue the reference can resolve to
	Queues() []*Queue
}

// StaticRef always resolves to the same queue
type StaticRef struct {
	Queue *Queue
}

// Resolve returns the fixed queue
func (r StaticRef) Resolve(int64) *Queue {
	return r.Queue
}

// Queues returns the fixed queue
func (r StaticRef) Queues() []*Queue {
	if r.Queue == nil {
		return nil
	}
	return []*Queue{r.Queue}
}

// TableEntry switches to Queue from FromTick onwards
type TableEntry struct {
	FromTick int64
	Queue    *Queue
}

// TimeTableRef resolves to the latest entry whose FromTick is not after the
// requested tick. Before the first entry it resolves to nil.
type TimeTableRef struct {
	entries []TableEntry
}

// NewTimeTableRef sorts entries by FromTick
func NewTimeTableRef(entries []TableEntry) *TimeTableRef {
	sorted := make([]TableEntry, len(entries))
	copy(sorted, entries)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].FromTick < sorted[j].FromTick })
	return &TimeTableRef{entries: sorted}
}

// Resolve returns the queue in force at tick
func (r *TimeTableRef) Resolve(tick int64) *Queue {
	i := sort.Search(len(r.entries), func(i int) bool { return r.entries[i].FromTick > tick })
	if i == 0 {
		return nil
	}
	return r.entries[i-1].Queue
}

// Queues returns the distinct queues in table order
func (r *TimeTableRef) Queues() []*Queue {
	var out []*Queue
	seen := make(map[*Queue]struct{})
	for _, e := range r.entries {
		if _, ok := seen[e.Queue]; ok || e.Queue == nil {
			continue
		}
		seen[e.Queue] = struct{}{}
		out = append(out, e.Queue)
	}
	return out
}
