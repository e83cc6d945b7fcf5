package traceio

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/vpsie/cluster-simulator/internal/config"
	"github.com/vpsie/cluster-simulator/internal/simtype"
)

// ParseTrace reads the trace CSV grammar from spec.md §6: one event per
// line, "<submit_time>;<enum_index>;<payload>", enum_index 0 =
// AddPodGroup. Blank lines are skipped. Every AddPodGroup line is assigned
// the next id from ids, matching the original's monotone group_uid
// counter.
func ParseTrace(r io.Reader, ids *simtype.IDGenerator) (config.InitTrace, error) {
	var trace config.InitTrace
	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		entry, err := parseTraceLine(line, ids)
		if err != nil {
			return config.InitTrace{}, fmt.Errorf("traceio: line %d: %w", lineNo, err)
		}
		trace.Entries = append(trace.Entries, entry)
	}
	if err := scanner.Err(); err != nil {
		return config.InitTrace{}, fmt.Errorf("traceio: reading trace: %w", err)
	}
	return trace, nil
}

func parseTraceLine(line string, ids *simtype.IDGenerator) (config.TraceEntry, error) {
	first := strings.IndexByte(line, ';')
	if first < 0 {
		return config.TraceEntry{}, fmt.Errorf("missing submit_time separator in %q", line)
	}
	submitTime, err := strconv.ParseFloat(strings.TrimSpace(line[:first]), 64)
	if err != nil {
		return config.TraceEntry{}, fmt.Errorf("submit_time %q: %w", line[:first], err)
	}

	rest := line[first+1:]
	second := strings.IndexByte(rest, ';')
	if second < 0 {
		return config.TraceEntry{}, fmt.Errorf("missing enum_index separator in %q", line)
	}
	enumIndex, err := strconv.Atoi(strings.TrimSpace(rest[:second]))
	if err != nil {
		return config.TraceEntry{}, fmt.Errorf("enum_index %q: %w", rest[:second], err)
	}

	payload := rest[second+1:]
	switch enumIndex {
	case 0:
		group, err := parsePodGroup(payload, simtype.GroupID(ids.Next()))
		if err != nil {
			return config.TraceEntry{}, err
		}
		return config.TraceEntry{SubmitTime: submitTime, Group: *group}, nil
	default:
		return config.TraceEntry{}, fmt.Errorf("unexpected enum_index %d in %q", enumIndex, line)
	}
}
