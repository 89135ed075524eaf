// Package internal implements the frame supplier behind the public
// framesupplier API.
package internal

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
)

// supplier runs one distribution goroutine between the inbox and the worker slots.
type supplier struct {
	inboxMu    sync.Mutex
	inboxCond  *sync.Cond
	inboxFrame *Frame

	published   atomic.Uint64
	distributed atomic.Uint64
	inboxDrops  atomic.Uint64

	// workerID -> *workerSlot
	slots sync.Map

	distSeq uint64 // owned by distributionLoop

	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	stopping atomic.Bool

	startedMu sync.Mutex
	started   bool
}

// NewSupplier creates an unstarted supplier
func NewSupplier() *supplier {
	s := &supplier{}
	s.inboxCond = sync.NewCond(&s.inboxMu)
	return s
}

func (s *supplier) Start(ctx context.Context) error {
	s.startedMu.Lock()
	defer s.startedMu.Unlock()

	if s.started {
		return fmt.Errorf("supplier already started")
	}
	if s.stopping.Load() {
		return fmt.Errorf("supplier stopped")
	}

	s.ctx, s.cancel = context.WithCancel(ctx)
	s.started = true

	s.wg.Add(1)
	go s.distributionLoop()

	// Caller cancellation must also wake the loop out of inboxCond.Wait
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		<-s.ctx.Done()
		s.inboxMu.Lock()
		s.inboxCond.Broadcast()
		s.inboxMu.Unlock()
	}()

	return nil
}

func (s *supplier) Stop() error {
	s.startedMu.Lock()
	if !s.started {
		s.startedMu.Unlock()
		return nil
	}
	s.started = false
	s.stopping.Store(true)
	s.startedMu.Unlock()

	s.cancel()
	s.wg.Wait()

	// Release every worker blocked in its read function
	s.slots.Range(func(key, value any) bool {
		value.(*workerSlot).close()
		s.slots.Delete(key)
		return true
	})

	return nil
}

func (s *supplier) Publish(frame *Frame) {
	if frame == nil || s.stopping.Load() {
		return
	}

	s.inboxMu.Lock()
	if s.inboxFrame != nil {
		s.inboxDrops.Add(1)
	}
	s.inboxFrame = frame
	s.inboxCond.Signal()
	s.inboxMu.Unlock()

	s.published.Add(1)
}

func (s *supplier) distributionLoop() {
	defer s.wg.Done()

	for {
		s.inboxMu.Lock()
		for s.inboxFrame == nil && s.ctx.Err() == nil {
			s.inboxCond.Wait()
		}
		if s.ctx.Err() != nil {
			s.inboxMu.Unlock()
			return
		}

		frame := s.inboxFrame
		s.inboxFrame = nil
		s.inboxMu.Unlock()

		s.distribute(frame)
	}
}

// distribute copies the frame pointer into every worker slot. Worker counts
// are small (one pose worker, maybe a recorder) so this stays sequential.
func (s *supplier) distribute(frame *Frame) {
	s.distSeq++
	seq := s.distSeq

	s.slots.Range(func(_, value any) bool {
		value.(*workerSlot).offer(frame, seq)
		return true
	})
	s.distributed.Add(1)
}
