package bus

import (
	"context"
	"errors"

	"github.com/jitesh-kr/KineticCode/internal/types"
)

// Internal errors - mapped to public errors in anglebus package
var (
	ErrBusClosed          = errors.New("anglebus: bus is closed")
	ErrSubscriberExists   = errors.New("anglebus: subscriber already exists")
	ErrSubscriberNotFound = errors.New("anglebus: subscriber not found")
	ErrNilChannel         = errors.New("anglebus: nil channel provided")
	ErrReceiverClosed     = errors.New("anglebus: receiver is closed")
)

// DropPolicy defines how the bus handles samples when a subscriber cannot keep up
type DropPolicy int

const (
	// DropNew drops the incoming sample when the subscriber channel is full
	DropNew DropPolicy = iota
	// DropOld replaces the stored sample, the subscriber always sees the latest
	DropOld
)

func (p DropPolicy) String() string {
	switch p {
	case DropNew:
		return "drop_new"
	case DropOld:
		return "drop_old"
	default:
		return "unknown"
	}
}

// Sample is the event distributed by the bus
type Sample = types.AngleSample

// SampleReceiver provides latest-only access for DropOld subscribers
type SampleReceiver interface {
	// Receive blocks until a sample newer than the last one returned is available.
	Receive(ctx context.Context) (Sample, error)
	// TryReceive returns the latest sample without blocking or consuming it.
	TryReceive() (Sample, bool)
	Close()
}

// SubscriberStats tracks sample distribution metrics
type SubscriberStats struct {
	Policy  DropPolicy
	Sent    uint64
	Dropped uint64
}

// BusStats contains global and per-subscriber metrics
type BusStats struct {
	TotalPublished uint64
	TotalSent      uint64
	TotalDropped   uint64
	Subscribers    map[string]SubscriberStats
}

// Bus distributes angle samples to zero or more subscribers
type Bus interface {
	Subscribe(id string, ch chan<- Sample) error
	SubscribeLatest(id string) (SampleReceiver, error)
	Publish(sample Sample)
	Unsubscribe(id string) error
	Stats() BusStats
	Close()
}
