package vpa

import (
	"math"
	"math/bits"
	"sort"
)

// Histogram is a log-spaced histogram over non-negative sample values: each
// power-of-two octave is divided into 2^groupingPower linear sub-buckets,
// giving roughly constant relative resolution (about 1/2^groupingPower)
// across the whole value range instead of a fixed absolute bucket width.
// Grounded on kuber_sim/src/autoscaler/vpa/vpa_pod_info.rs's use of the
// `histogram` crate's `Histogram::new(grouping_power, max_value_power)`.
//
// Unlike that crate, buckets are held in a map rather than a preallocated
// array sized by a max-value-power parameter: Go has no equivalent
// resource-quantity upper bound to preallocate against, and pod resource
// samples in this simulation are not bounded by a compile-time constant, so
// a sparse, dynamically sized bucket set is the natural fit. No histogram
// library appears anywhere in the retrieval pack, so this is implemented
// directly on stdlib `math`/`sort`.
type Histogram struct {
	groupingPower uint
	buckets       map[int]int64
	total         int64
}

// NewHistogram returns an empty histogram with the given grouping power
// (bits of linear resolution per octave).
func NewHistogram(groupingPower uint) *Histogram {
	return &Histogram{groupingPower: groupingPower, buckets: map[int]int64{}}
}

// Add records count occurrences of value. value is clamped to 0 since
// resource samples are never negative.
func (h *Histogram) Add(value int64, count int64) {
	if count <= 0 {
		return
	}
	idx := h.bucketIndex(value)
	h.buckets[idx] += count
	h.total += count
}

func (h *Histogram) bucketIndex(value int64) int {
	if value < 0 {
		value = 0
	}
	x := value + 1 // shift so value=0 maps to x=1, keeping log2 defined
	e := bits.Len64(uint64(x)) - 1
	perOctave := int64(1) << h.groupingPower
	base := int64(1) << uint(e)
	sub := (x - base) * perOctave / base
	return e*int(perOctave) + int(sub)
}

func (h *Histogram) bucketMidpoint(idx int) float64 {
	perOctave := 1 << h.groupingPower
	e := idx / perOctave
	sub := idx % perOctave
	base := math.Ldexp(1, e)
	width := base / float64(perOctave)
	mid := base + (float64(sub)+0.5)*width
	return mid - 1
}

// Percentile returns the value at percentile p (0-100). Returns 0 for an
// empty histogram.
func (h *Histogram) Percentile(p float64) float64 {
	if h.total == 0 {
		return 0
	}
	indices := make([]int, 0, len(h.buckets))
	for idx := range h.buckets {
		indices = append(indices, idx)
	}
	sort.Ints(indices)

	target := p / 100 * float64(h.total)
	var cumulative int64
	for _, idx := range indices {
		cumulative += h.buckets[idx]
		if float64(cumulative) >= target {
			return h.bucketMidpoint(idx)
		}
	}
	return h.bucketMidpoint(indices[len(indices)-1])
}
