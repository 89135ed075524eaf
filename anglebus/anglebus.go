package anglebus

import "github.com/jitesh-kr/KineticCode/anglebus/internal/bus"

// New creates a new bus instance. This is the only public constructor.
func New() Bus {
	return bus.New()
}
