package traceio

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/vpsie/cluster-simulator/internal/loadprofile"
)

// ParseLoadProfile parses the load CSV grammar from spec.md §6:
// "<enum_index>;<inner>" where inner's fields are ';'-separated:
//
//	0 constant            cpu;memory;duration
//	1 constant-infinite   cpu;memory
//	2 busybox             cpu_down;memory_down;cpu_up;memory_up;duration;shift
//	3 busybox-infinite    cpu_down;memory_down;cpu_up;memory_up;shift
func ParseLoadProfile(s string) (loadprofile.Profile, error) {
	idx, rest, err := splitEnum(s)
	if err != nil {
		return nil, fmt.Errorf("traceio: load profile: %w", err)
	}
	fields := strings.Split(rest, ";")

	switch idx {
	case 0:
		if len(fields) != 3 {
			return nil, fmt.Errorf("traceio: load profile 0 (constant) wants 3 fields, got %d in %q", len(fields), s)
		}
		cpu, memory, duration, err := parseCPUMemoryAnd(fields[0], fields[1], fields[2])
		if err != nil {
			return nil, err
		}
		return &loadprofile.Constant{CPU: cpu, Memory: memory, Duration: duration}, nil
	case 1:
		if len(fields) != 2 {
			return nil, fmt.Errorf("traceio: load profile 1 (constant-infinite) wants 2 fields, got %d in %q", len(fields), s)
		}
		cpu, memory, err := parseCPUMemory(fields[0], fields[1])
		if err != nil {
			return nil, err
		}
		return &loadprofile.ConstantInfinite{CPU: cpu, Memory: memory}, nil
	case 2:
		if len(fields) != 6 {
			return nil, fmt.Errorf("traceio: load profile 2 (busybox) wants 6 fields, got %d in %q", len(fields), s)
		}
		vals, err := parseInts(fields[0], fields[1], fields[2], fields[3])
		if err != nil {
			return nil, err
		}
		duration, err := strconv.ParseFloat(fields[4], 64)
		if err != nil {
			return nil, fmt.Errorf("traceio: load profile 2 duration: %w", err)
		}
		shift, err := strconv.ParseFloat(fields[5], 64)
		if err != nil {
			return nil, fmt.Errorf("traceio: load profile 2 shift: %w", err)
		}
		return &loadprofile.Busybox{
			CPUDown: vals[0], MemoryDown: vals[1],
			CPUUp: vals[2], MemoryUp: vals[3],
			Duration: duration, Shift: shift,
		}, nil
	case 3:
		if len(fields) != 5 {
			return nil, fmt.Errorf("traceio: load profile 3 (busybox-infinite) wants 5 fields, got %d in %q", len(fields), s)
		}
		vals, err := parseInts(fields[0], fields[1], fields[2], fields[3])
		if err != nil {
			return nil, err
		}
		shift, err := strconv.ParseFloat(fields[4], 64)
		if err != nil {
			return nil, fmt.Errorf("traceio: load profile 3 shift: %w", err)
		}
		return &loadprofile.BusyboxInfinite{
			CPUDown: vals[0], MemoryDown: vals[1],
			CPUUp: vals[2], MemoryUp: vals[3],
			Shift: shift,
		}, nil
	default:
		return nil, fmt.Errorf("traceio: unknown load profile enum_index %d in %q", idx, s)
	}
}

// splitEnum splits "<enum_index>;<rest>" into its integer index and the
// remainder, which may itself contain further ';'-separated fields.
func splitEnum(s string) (int, string, error) {
	i := strings.IndexByte(s, ';')
	if i < 0 {
		return 0, "", fmt.Errorf("missing ';' after enum_index in %q", s)
	}
	idx, err := strconv.Atoi(strings.TrimSpace(s[:i]))
	if err != nil {
		return 0, "", fmt.Errorf("enum_index %q: %w", s[:i], err)
	}
	return idx, s[i+1:], nil
}

func parseCPUMemory(cpu, memory string) (int64, int64, error) {
	c, err := strconv.ParseInt(strings.TrimSpace(cpu), 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("traceio: cpu %q: %w", cpu, err)
	}
	m, err := strconv.ParseInt(strings.TrimSpace(memory), 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("traceio: memory %q: %w", memory, err)
	}
	return c, m, nil
}

func parseCPUMemoryAnd(cpu, memory, extra string) (int64, int64, float64, error) {
	c, m, err := parseCPUMemory(cpu, memory)
	if err != nil {
		return 0, 0, 0, err
	}
	x, err := strconv.ParseFloat(strings.TrimSpace(extra), 64)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("traceio: duration %q: %w", extra, err)
	}
	return c, m, x, nil
}

func parseInts(fields ...string) ([]int64, error) {
	out := make([]int64, len(fields))
	for i, f := range fields {
		v, err := strconv.ParseInt(strings.TrimSpace(f), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("traceio: field %q: %w", f, err)
		}
		out[i] = v
	}
	return out, nil
}
