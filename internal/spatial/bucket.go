package spatial

import (
	"sort"
	"sync"

	"github.com/golang/geo/s2"
)

// DefaultBucketLevel gives s2 cells a few hundred meters across, far wider
// than an area radius, so two fixes within one radius always share a bucket
// or sit in neighbouring buckets.
const DefaultBucketLevel = 14

// BucketLocker serializes work on nearby coordinates. Locking a coordinate
// holds its s2 cell and every neighbouring cell, so two callers whose points
// lie within one cell width of each other never run concurrently.
type BucketLocker struct {
	level int

	mu      sync.Mutex
	buckets map[s2.CellID]*bucket
}

type bucket struct {
	sync.Mutex
	refs int
}

// NewBucketLocker creates a locker using cells of the given s2 level.
func NewBucketLocker(level int) *BucketLocker {
	if level <= 0 || level > s2.MaxLevel {
		level = DefaultBucketLevel
	}
	return &BucketLocker{
		level:   level,
		buckets: make(map[s2.CellID]*bucket),
	}
}

// Lock blocks until the neighbourhood of (lat, lon) is free and returns the release func.
func (l *BucketLocker) Lock(lat, lon float64) (unlock func()) {
	ids := l.Cells(lat, lon)
	held := make([]*bucket, len(ids))

	l.mu.Lock()
	for i, id := range ids {
		b := l.buckets[id]
		if b == nil {
			b = &bucket{}
			l.buckets[id] = b
		}
		b.refs++
		held[i] = b
	}
	l.mu.Unlock()

	// ids are sorted, so every caller acquires in the same global order.
	for _, b := range held {
		b.Lock()
	}

	return func() {
		for i := len(held) - 1; i >= 0; i-- {
			held[i].Unlock()
		}

		l.mu.Lock()
		for i, id := range ids {
			held[i].refs--
			if held[i].refs == 0 {
				delete(l.buckets, id)
			}
		}
		l.mu.Unlock()
	}
}

// Cells returns the sorted bucket cell of (lat, lon) and its neighbours.
func (l *BucketLocker) Cells(lat, lon float64) []s2.CellID {
	cell := s2.CellIDFromLatLng(s2.LatLngFromDegrees(lat, lon)).Parent(l.level)
	ids := append([]s2.CellID{cell}, cell.AllNeighbors(l.level)...)
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	out := ids[:0]
	for i, id := range ids {
		if i > 0 && id == ids[i-1] {
			continue
		}
		out = append(out, id)
	}
	return out
}

// held reports how many buckets are currently tracked. Used by tests.
func (l *BucketLocker) held() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}
