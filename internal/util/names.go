package util

import "strconv"

// DisambiguateFilename returns name when it is free, otherwise the first
// "n-name" (n >= 1) that taken does not report as used.
func DisambiguateFilename(name string, taken func(string) bool) string {
	if !taken(name) {
		return name
	}
	for n := 1; ; n++ {
		candidate := strconv.Itoa(n) + "-" + name
		if !taken(candidate) {
			return candidate
		}
	}
}
