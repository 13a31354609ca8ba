package main

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// maxYearSpan bounds a single range such as 2000-2025.
const maxYearSpan = 100

// parseYears expands values like "2024", "2022,2023" and "2020-2024" into
// a sorted, duplicate-free list.
func parseYears(values []string) ([]int, error) {
	seen := make(map[int]bool)
	for _, v := range splitValues(values) {
		lo, hi, isRange := strings.Cut(v, "-")
		start, err := strconv.Atoi(strings.TrimSpace(lo))
		if err != nil {
			return nil, fmt.Errorf("invalid year %q", v)
		}
		end := start
		if isRange {
			if end, err = strconv.Atoi(strings.TrimSpace(hi)); err != nil {
				return nil, fmt.Errorf("invalid year range %q", v)
			}
		}
		if end < start || end-start > maxYearSpan {
			return nil, fmt.Errorf("invalid year range %q", v)
		}
		for y := start; y <= end; y++ {
			seen[y] = true
		}
	}
	years := make([]int, 0, len(seen))
	for y := range seen {
		years = append(years, y)
	}
	sort.Ints(years)
	return years, nil
}

// splitValues splits comma-separated flag values and drops blanks,
// preserving order.
func splitValues(values []string) []string {
	var out []string
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
