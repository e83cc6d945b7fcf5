// Package loadprofile implements the four load profile variants a pod's
// spec may carry: constant-finite, constant-infinite, two-level
// alternating ("busybox"), and alternating-infinite. Each variant exposes
// Start and Update, returning the sampled (cpu, memory), the simulated
// seconds until the next sample is due, and whether the pod has finished.
package loadprofile

// Sample is the result of Start or Update: a resource reading, the delay
// until the next change, and whether the load (and therefore the pod) has
// finished.
type Sample struct {
	CPU         int64
	Memory      int64
	NextChangeS float64
	Finished    bool
}

// Profile is the capability every load profile variant implements.
type Profile interface {
	Start(now float64) Sample
	Update(now float64) Sample
}

// Constant reports a fixed (cpu, memory) for Duration seconds, then
// finishes.
type Constant struct {
	CPU      int64
	Memory   int64
	Duration float64

	startedAt float64
}

func (c *Constant) Start(now float64) Sample {
	c.startedAt = now
	return Sample{CPU: c.CPU, Memory: c.Memory, NextChangeS: c.Duration, Finished: c.Duration <= 0}
}

func (c *Constant) Update(now float64) Sample {
	return Sample{CPU: c.CPU, Memory: c.Memory, NextChangeS: 0, Finished: true}
}

// ConstantInfinite reports a fixed (cpu, memory) forever; it never
// finishes and schedules no further self-events (next change is reported
// as 0, meaning "no further change pending").
type ConstantInfinite struct {
	CPU    int64
	Memory int64
}

func (c *ConstantInfinite) Start(now float64) Sample {
	return Sample{CPU: c.CPU, Memory: c.Memory, NextChangeS: 0, Finished: false}
}

func (c *ConstantInfinite) Update(now float64) Sample {
	return Sample{CPU: c.CPU, Memory: c.Memory, NextChangeS: 0, Finished: false}
}

// Busybox alternates between a "down" level and an "up" level every Shift
// seconds, for Duration seconds total, then finishes.
type Busybox struct {
	CPUDown, MemoryDown int64
	CPUUp, MemoryUp     int64
	Duration            float64
	Shift               float64

	startedAt float64
	up        bool
}

func (b *Busybox) Start(now float64) Sample {
	b.startedAt = now
	b.up = false
	return Sample{CPU: b.CPUDown, Memory: b.MemoryDown, NextChangeS: b.nextShift(now), Finished: false}
}

func (b *Busybox) Update(now float64) Sample {
	if now-b.startedAt >= b.Duration {
		return Sample{Finished: true}
	}
	b.up = !b.up
	cpu, mem := b.CPUDown, b.MemoryDown
	if b.up {
		cpu, mem = b.CPUUp, b.MemoryUp
	}
	return Sample{CPU: cpu, Memory: mem, NextChangeS: b.nextShift(now), Finished: false}
}

// nextShift returns the smaller of Shift and the remaining lifetime, so
// the profile finishes exactly at startedAt+Duration rather than
// overshooting into one extra level flip.
func (b *Busybox) nextShift(now float64) float64 {
	remaining := b.startedAt + b.Duration - now
	if remaining < b.Shift {
		return remaining
	}
	return b.Shift
}

// BusyboxInfinite is Busybox without a lifetime: it alternates forever.
type BusyboxInfinite struct {
	CPUDown, MemoryDown int64
	CPUUp, MemoryUp     int64
	Shift               float64

	up bool
}

func (b *BusyboxInfinite) Start(now float64) Sample {
	b.up = false
	return Sample{CPU: b.CPUDown, Memory: b.MemoryDown, NextChangeS: b.Shift, Finished: false}
}

func (b *BusyboxInfinite) Update(now float64) Sample {
	b.up = !b.up
	cpu, mem := b.CPUDown, b.MemoryDown
	if b.up {
		cpu, mem = b.CPUUp, b.MemoryUp
	}
	return Sample{CPU: cpu, Memory: mem, NextChangeS: b.Shift, Finished: false}
}
