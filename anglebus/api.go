package anglebus

import "github.com/jitesh-kr/KineticCode/anglebus/internal/bus"

// Public API - re-export internal types as stable contract

// DropPolicy defines how the bus handles samples when a subscriber cannot keep up
type DropPolicy = bus.DropPolicy

const (
	// DropNew drops incoming samples if the subscriber's buffer is full
	DropNew = bus.DropNew
	// DropOld always accepts new samples, replacing the stored one
	DropOld = bus.DropOld
)

// Sample is the angle event distributed by the bus
type Sample = bus.Sample

// SampleReceiver provides blocking/non-blocking access for DropOld subscribers
type SampleReceiver = bus.SampleReceiver

// SubscriberStats tracks per-subscriber distribution metrics
type SubscriberStats = bus.SubscriberStats

// BusStats contains global and per-subscriber metrics
type BusStats = bus.BusStats

// Bus distributes angle samples to subscribers with configurable drop policies
type Bus = bus.Bus

var (
	ErrBusClosed          = bus.ErrBusClosed
	ErrSubscriberExists   = bus.ErrSubscriberExists
	ErrSubscriberNotFound = bus.ErrSubscriberNotFound
	ErrNilChannel         = bus.ErrNilChannel
	ErrReceiverClosed     = bus.ErrReceiverClosed
)
