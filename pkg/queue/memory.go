package queue

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryBackend is a process-local Backend for single-replica deployments
// and tests.
type MemoryBackend struct {
	mu      sync.Mutex
	lists   map[string][][]byte
	delayed map[string][]delayed
	notify  chan struct{}
}

type delayed struct {
	at   time.Time
	data []byte
}

func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{
		lists:   make(map[string][][]byte),
		delayed: make(map[string][]delayed),
		notify:  make(chan struct{}),
	}
}

func (b *MemoryBackend) Ping(context.Context) error { return nil }

func (b *MemoryBackend) Push(_ context.Context, list string, data []byte) error {
	b.mu.Lock()
	b.lists[list] = append([][]byte{append([]byte(nil), data...)}, b.lists[list]...)
	b.broadcast()
	b.mu.Unlock()
	return nil
}

// Pop takes the oldest message, waiting up to wait for one to arrive.
func (b *MemoryBackend) Pop(ctx context.Context, list string, wait time.Duration) ([]byte, error) {
	deadline := time.NewTimer(wait)
	defer deadline.Stop()
	for {
		b.mu.Lock()
		if l := b.lists[list]; len(l) > 0 {
			data := l[len(l)-1]
			b.lists[list] = l[:len(l)-1]
			b.mu.Unlock()
			return data, nil
		}
		ch := b.notify
		b.mu.Unlock()

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-deadline.C:
			return nil, ErrNoMessage
		case <-ch:
		}
	}
}

func (b *MemoryBackend) Schedule(_ context.Context, set string, data []byte, at time.Time) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	d := append(b.delayed[set], delayed{at: at, data: append([]byte(nil), data...)})
	sort.SliceStable(d, func(i, j int) bool { return d[i].at.Before(d[j].at) })
	b.delayed[set] = d
	return nil
}

func (b *MemoryBackend) PromoteDue(_ context.Context, set, list string, now time.Time) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	d := b.delayed[set]
	n := 0
	for n < len(d) && !d[n].at.After(now) {
		b.lists[list] = append([][]byte{d[n].data}, b.lists[list]...)
		n++
	}
	b.delayed[set] = d[n:]
	if n > 0 {
		b.broadcast()
	}
	return n, nil
}

// Len reports the number of messages waiting on list.
func (b *MemoryBackend) Len(list string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.lists[list])
}

// broadcast wakes every waiting Pop; callers hold mu.
func (b *MemoryBackend) broadcast() {
	close(b.notify)
	b.notify = make(chan struct{})
}
