package traceio

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/vpsie/cluster-simulator/internal/simtype"
)

// parsePodGroup parses an AddPodGroup payload:
//
//	{pod_count;group_duration;{request_cpu;request_memory;limit_cpu;limit_memory;priority;{load_profile}};{hpa_profile};{vpa_profile}}
//
// hpa_profile and vpa_profile are "{}" when absent. id is assigned by the
// caller's generator, matching the original's group_uid counter.
func parsePodGroup(payload string, id simtype.GroupID) (*simtype.PodGroup, error) {
	inner, err := stripBraces(payload)
	if err != nil {
		return nil, fmt.Errorf("traceio: pod group: %w", err)
	}
	fields := splitTopLevel(inner)
	if len(fields) != 5 {
		return nil, fmt.Errorf("traceio: pod group wants 5 fields, got %d in %q", len(fields), payload)
	}

	count, err := strconv.Atoi(strings.TrimSpace(fields[0]))
	if err != nil {
		return nil, fmt.Errorf("traceio: pod group pod_count %q: %w", fields[0], err)
	}
	duration, err := strconv.ParseFloat(strings.TrimSpace(fields[1]), 64)
	if err != nil {
		return nil, fmt.Errorf("traceio: pod group group_duration %q: %w", fields[1], err)
	}

	template, err := parsePodSpec(fields[2])
	if err != nil {
		return nil, fmt.Errorf("traceio: pod group template: %w", err)
	}
	hpa, err := parseHPAProfile(fields[3])
	if err != nil {
		return nil, fmt.Errorf("traceio: pod group hpa_profile: %w", err)
	}
	vpa, err := parseVPAProfile(fields[4])
	if err != nil {
		return nil, fmt.Errorf("traceio: pod group vpa_profile: %w", err)
	}

	group := &simtype.PodGroup{
		ID:         id,
		Template:   template,
		Count:      count,
		HPAProfile: hpa,
		VPAProfile: vpa,
	}
	if duration > 0 {
		group.DurationS = &duration
	}
	return group, nil
}

func parsePodSpec(payload string) (simtype.PodSpec, error) {
	inner, err := stripBraces(payload)
	if err != nil {
		return simtype.PodSpec{}, err
	}
	fields := splitTopLevel(inner)
	if len(fields) != 6 {
		return simtype.PodSpec{}, fmt.Errorf("pod spec wants 6 fields, got %d in %q", len(fields), payload)
	}

	requestCPU, err := strconv.ParseInt(strings.TrimSpace(fields[0]), 10, 64)
	if err != nil {
		return simtype.PodSpec{}, fmt.Errorf("request_cpu %q: %w", fields[0], err)
	}
	requestMemory, err := strconv.ParseInt(strings.TrimSpace(fields[1]), 10, 64)
	if err != nil {
		return simtype.PodSpec{}, fmt.Errorf("request_memory %q: %w", fields[1], err)
	}
	limitCPU, err := strconv.ParseInt(strings.TrimSpace(fields[2]), 10, 64)
	if err != nil {
		return simtype.PodSpec{}, fmt.Errorf("limit_cpu %q: %w", fields[2], err)
	}
	limitMemory, err := strconv.ParseInt(strings.TrimSpace(fields[3]), 10, 64)
	if err != nil {
		return simtype.PodSpec{}, fmt.Errorf("limit_memory %q: %w", fields[3], err)
	}
	priority, err := strconv.ParseInt(strings.TrimSpace(fields[4]), 10, 64)
	if err != nil {
		return simtype.PodSpec{}, fmt.Errorf("priority %q: %w", fields[4], err)
	}

	loadPayload, err := stripBraces(fields[5])
	if err != nil {
		return simtype.PodSpec{}, fmt.Errorf("load profile: %w", err)
	}
	profile, err := ParseLoadProfile(loadPayload)
	if err != nil {
		return simtype.PodSpec{}, err
	}

	return simtype.PodSpec{
		Request:         simtype.Resource{CPU: requestCPU, Memory: requestMemory},
		Limit:           simtype.Resource{CPU: limitCPU, Memory: limitMemory},
		Priority:        priority,
		LoadProfileSpec: profile,
	}, nil
}

func parseHPAProfile(payload string) (*simtype.HPAProfile, error) {
	inner, err := stripBraces(payload)
	if err != nil {
		return nil, err
	}
	if inner == "" {
		return nil, nil
	}
	fields := splitTopLevel(inner)
	if len(fields) != 6 {
		return nil, fmt.Errorf("hpa profile wants 6 fields, got %d in %q", len(fields), payload)
	}
	minSize, err := strconv.Atoi(strings.TrimSpace(fields[0]))
	if err != nil {
		return nil, fmt.Errorf("min_size %q: %w", fields[0], err)
	}
	maxSize, err := strconv.Atoi(strings.TrimSpace(fields[1]))
	if err != nil {
		return nil, fmt.Errorf("max_size %q: %w", fields[1], err)
	}
	fracs, err := parseFloats(fields[2], fields[3], fields[4], fields[5])
	if err != nil {
		return nil, err
	}
	return &simtype.HPAProfile{
		MinSize: minSize, MaxSize: maxSize,
		ScaleUpCPUFraction: fracs[0], ScaleUpMemoryFraction: fracs[1],
		ScaleDownCPUFraction: fracs[2], ScaleDownMemoryFraction: fracs[3],
	}, nil
}

func parseVPAProfile(payload string) (*simtype.VPAProfile, error) {
	inner, err := stripBraces(payload)
	if err != nil {
		return nil, err
	}
	if inner == "" {
		return nil, nil
	}
	fields := splitTopLevel(inner)
	if len(fields) != 4 {
		return nil, fmt.Errorf("vpa profile wants 4 fields, got %d in %q", len(fields), payload)
	}
	vals, err := parseInts(fields[0], fields[1], fields[2], fields[3])
	if err != nil {
		return nil, err
	}
	return &simtype.VPAProfile{
		MinAllowedCPU: vals[0], MaxAllowedCPU: vals[1],
		MinAllowedMemory: vals[2], MaxAllowedMemory: vals[3],
	}, nil
}

func parseFloats(fields ...string) ([]float64, error) {
	out := make([]float64, len(fields))
	for i, f := range fields {
		v, err := strconv.ParseFloat(strings.TrimSpace(f), 64)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", f, err)
		}
		out[i] = v
	}
	return out, nil
}
