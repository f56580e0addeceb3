// Package dedupe tracks recently seen submission fingerprints so a form posted
// twice is delivered once.
package dedupe

import (
	"container/list"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// Deduper records seen fingerprints to ensure at-most-once delivery.
type Deduper interface {
	// SeenAndRecord atomically checks if id was seen inside the window and
	// records it if not. Returns true for a duplicate.
	SeenAndRecord(ctx context.Context, id string) bool

	// Unrecord forgets id so a submission rejected downstream (queue
	// backpressure) can be retried.
	Unrecord(ctx context.Context, id string)

	Size() int64
}

type entry struct {
	id   string
	seen time.Time
}

// inMemoryDeduper keeps fingerprints in insertion order. The oldest entry is
// evicted when maxSize is reached; entries older than window are ignored and
// pruned lazily.
type inMemoryDeduper struct {
	mu      sync.Mutex
	index   map[string]*list.Element
	order   *list.List
	maxSize int
	window  time.Duration
	clock   clockwork.Clock
}

// NewInMemoryDeduper creates a new in-memory deduper with configuration options.
func NewInMemoryDeduper(opts ...Option) Deduper {
	d := &inMemoryDeduper{
		maxSize: 10_000,
		window:  24 * time.Hour,
		clock:   clockwork.NewRealClock(),
	}
	for _, opt := range opts {
		opt(d)
	}
	d.index = make(map[string]*list.Element)
	d.order = list.New()
	return d
}

func (d *inMemoryDeduper) SeenAndRecord(_ context.Context, id string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.clock.Now()
	d.pruneLocked(now)

	if _, ok := d.index[id]; ok {
		return true
	}
	if d.maxSize > 0 && d.order.Len() >= d.maxSize {
		d.removeLocked(d.order.Front())
	}
	d.index[id] = d.order.PushBack(entry{id: id, seen: now})
	return false
}

func (d *inMemoryDeduper) Unrecord(_ context.Context, id string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if el, ok := d.index[id]; ok {
		d.removeLocked(el)
	}
}

func (d *inMemoryDeduper) Size() int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return int64(d.order.Len())
}

// pruneLocked drops expired entries from the front of the list.
func (d *inMemoryDeduper) pruneLocked(now time.Time) {
	if d.window <= 0 {
		return
	}
	for el := d.order.Front(); el != nil; el = d.order.Front() {
		if now.Sub(el.Value.(entry).seen) < d.window {
			return
		}
		d.removeLocked(el)
	}
}

func (d *inMemoryDeduper) removeLocked(el *list.Element) {
	if el == nil {
		return
	}
	delete(d.index, el.Value.(entry).id)
	d.order.Remove(el)
}

// Fingerprint hashes normalized parts into a stable id. Case and surrounding
// whitespace do not change the result.
func Fingerprint(parts ...string) string {
	h := sha256.New()
	for _, p := range parts {
		h.Write([]byte(strings.ToLower(strings.Join(strings.Fields(p), " "))))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}
