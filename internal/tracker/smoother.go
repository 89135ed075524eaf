package tracker

import (
	"fmt"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// Smoother is an optional filtering stage between the raw per-frame angle and
// the published sample. Reset is called on every session start.
type Smoother interface {
	Apply(deg float64) float64
	Reset()
}

// Passthrough publishes every raw angle unchanged
type Passthrough struct{}

func (Passthrough) Apply(deg float64) float64 { return deg }
func (Passthrough) Reset()                    {}

// MedianSmoother replaces each angle with the median of the last Window raw
// angles. It rejects single-frame pose glitches at the cost of Window/2 frames
// of lag. Windows are not wrap-aware; elbow ROM stays well away from 0/360.
type MedianSmoother struct {
	window int
	buf    []float64
	next   int
	full   bool
	sorted []float64
}

// NewMedianSmoother returns a median filter over window samples (window >= 1)
func NewMedianSmoother(window int) (*MedianSmoother, error) {
	if window < 1 {
		return nil, fmt.Errorf("median window must be >= 1, got %d", window)
	}
	return &MedianSmoother{
		window: window,
		buf:    make([]float64, window),
		sorted: make([]float64, 0, window),
	}, nil
}

func (m *MedianSmoother) Apply(deg float64) float64 {
	m.buf[m.next] = deg
	m.next = (m.next + 1) % m.window
	if m.next == 0 {
		m.full = true
	}

	n := m.next
	if m.full {
		n = m.window
	}

	m.sorted = append(m.sorted[:0], m.buf[:n]...)
	sort.Float64s(m.sorted)
	return stat.Quantile(0.5, stat.Empirical, m.sorted, nil)
}

func (m *MedianSmoother) Reset() {
	m.next = 0
	m.full = false
}

// NewSmoother builds a smoother by name: "" or "none" → Passthrough, "median" → MedianSmoother
func NewSmoother(kind string, window int) (Smoother, error) {
	switch kind {
	case "", "none":
		return Passthrough{}, nil
	case "median":
		return NewMedianSmoother(window)
	default:
		return nil, fmt.Errorf("unknown smoothing %q (expected none or median)", kind)
	}
}
