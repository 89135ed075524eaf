package internal

import (
	"sync"
	"time"
)

// workerSlot is a single-frame mailbox owned by one worker
type workerSlot struct {
	mu    sync.Mutex
	cond  *sync.Cond
	frame *Frame
	seq   uint64

	lastConsumedAt   time.Time
	lastConsumedSeq  uint64
	consecutiveDrops uint64
	totalDrops       uint64
	consumed         uint64

	closed bool
}

func newWorkerSlot() *workerSlot {
	slot := &workerSlot{lastConsumedAt: time.Now()}
	slot.cond = sync.NewCond(&slot.mu)
	return slot
}

// offer stores frame, replacing any unread one
func (w *workerSlot) offer(frame *Frame, seq uint64) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return
	}
	if w.frame != nil {
		w.consecutiveDrops++
		w.totalDrops++
	}
	w.frame = frame
	w.seq = seq
	w.cond.Signal()
}

// take blocks until a frame is stored or the slot is closed
func (w *workerSlot) take() *Frame {
	w.mu.Lock()
	defer w.mu.Unlock()

	for w.frame == nil && !w.closed {
		w.cond.Wait()
	}
	if w.closed {
		return nil
	}

	frame := w.frame
	w.frame = nil
	w.lastConsumedAt = time.Now()
	w.lastConsumedSeq = w.seq
	w.consecutiveDrops = 0
	w.consumed++
	return frame
}

func (w *workerSlot) close() {
	w.mu.Lock()
	w.closed = true
	w.frame = nil
	w.cond.Broadcast()
	w.mu.Unlock()
}

func (w *workerSlot) stats(workerID string) WorkerStats {
	w.mu.Lock()
	defer w.mu.Unlock()

	return WorkerStats{
		WorkerID:         workerID,
		LastConsumedAt:   w.lastConsumedAt,
		LastConsumedSeq:  w.lastConsumedSeq,
		ConsecutiveDrops: w.consecutiveDrops,
		TotalDrops:       w.totalDrops,
		Consumed:         w.consumed,
		IsIdle:           time.Since(w.lastConsumedAt) > idleThreshold,
	}
}

// Subscribe registers workerID. Subscribing an id twice replaces the old
// slot and releases its reader.
func (s *supplier) Subscribe(workerID string) func() *Frame {
	if s.stopping.Load() {
		return func() *Frame { return nil }
	}

	slot := newWorkerSlot()
	if old, loaded := s.slots.Swap(workerID, slot); loaded {
		old.(*workerSlot).close()
	}

	// Stop may have drained the map between the check and the store
	if s.stopping.Load() {
		slot.close()
		s.slots.CompareAndDelete(workerID, slot)
	}

	return slot.take
}

func (s *supplier) Unsubscribe(workerID string) {
	val, ok := s.slots.LoadAndDelete(workerID)
	if !ok {
		return
	}
	val.(*workerSlot).close()
}
