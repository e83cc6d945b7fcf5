// Package traceio parses the trace and load CSV grammars described in
// spec.md §6: a one-off brace-nested line format, not shaped like
// encoding/csv's comma dialect, so it is hand-rolled directly on stdlib
// bufio/strconv/strings rather than reached from a general CSV library.
//
// Grounded on kuber_sim/src/simulation/init_trace.rs.
package traceio

import "fmt"

// findMatchingBrace returns the index of the '}' that closes the '{' at
// open, honoring nested braces. Mirrors
// kuber_sim/src/simulation/init_trace.rs::find_matching_bracket.
func findMatchingBrace(s string, open int) (int, error) {
	if open >= len(s) || s[open] != '{' {
		return 0, fmt.Errorf("traceio: index %d is not an opening brace in %q", open, s)
	}
	depth := 0
	for i := open; i < len(s); i++ {
		switch s[i] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i, nil
			}
		}
	}
	return 0, fmt.Errorf("traceio: unmatched '{' at index %d in %q", open, s)
}

// stripBraces removes one layer of enclosing '{'/'}' from s, which must
// span the whole string.
func stripBraces(s string) (string, error) {
	if len(s) < 2 || s[0] != '{' || s[len(s)-1] != '}' {
		return "", fmt.Errorf("traceio: field %q is not brace-delimited", s)
	}
	close, err := findMatchingBrace(s, 0)
	if err != nil {
		return "", err
	}
	if close != len(s)-1 {
		return "", fmt.Errorf("traceio: field %q has trailing content after its closing brace", s)
	}
	return s[1 : len(s)-1], nil
}

// splitTopLevel splits s on ';' while skipping over any ';' nested inside
// braces, so a field like "{a;b};c" splits into ["{a;b}", "c"] rather than
// ["{a", "b}", "c"]. An empty s yields a single empty field, matching the
// grammar's use of "{}" for an absent optional payload's inner content.
func splitTopLevel(s string) []string {
	if s == "" {
		return []string{""}
	}
	var fields []string
	depth := 0
	start := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '{':
			depth++
		case '}':
			depth--
		case ';':
			if depth == 0 {
				fields = append(fields, s[start:i])
				start = i + 1
			}
		}
	}
	fields = append(fields, s[start:])
	return fields
}
