package testutil

import (
	"math/rand"
	"sort"
)

// Prefixes returns the cumulative prefixes of text obtained by cutting it at
// the given byte offsets. Offsets outside (0, len(text)) are ignored and the
// full text is always the final element.
func Prefixes(text string, offsets ...int) []string {
	cuts := append([]int(nil), offsets...)
	sort.Ints(cuts)

	out := make([]string, 0, len(cuts)+1)
	last := 0
	for _, c := range cuts {
		if c <= last || c >= len(text) {
			continue
		}
		out = append(out, text[:c])
		last = c
	}
	return append(out, text)
}

// RandomOffsets returns n distinct sorted cut offsets inside (0, length)
// drawn from r. Fewer are returned when length is too small.
func RandomOffsets(r *rand.Rand, length, n int) []int {
	if length < 2 {
		return nil
	}
	seen := map[int]bool{}
	for len(seen) < n && len(seen) < length-1 {
		seen[1+r.Intn(length-1)] = true
	}
	out := make([]int, 0, len(seen))
	for c := range seen {
		out = append(out, c)
	}
	sort.Ints(out)
	return out
}

// EveryPrefix returns every cumulative prefix of text, one byte at a time.
func EveryPrefix(text string) []string {
	out := make([]string, 0, len(text))
	for i := 1; i <= len(text); i++ {
		out = append(out, text[:i])
	}
	return out
}
