package server

import "strings"

// Parse splits stored list text into entries. Lines are trimmed and blank
// lines dropped; duplicates are kept.
func Parse(text string) []string {
	if text == "" {
		return []string{}
	}
	lines := strings.Split(text, "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		out = append(out, line)
	}
	return out
}

// Serialize joins entries with a single newline.
func Serialize(entries []string) string {
	return strings.Join(entries, "\n")
}

// Dedupe removes repeated entries, keeping the first occurrence of each.
// Entries are compared byte for byte.
func Dedupe(entries []string) []string {
	seen := make(map[string]struct{}, len(entries))
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		if _, ok := seen[e]; ok {
			continue
		}
		seen[e] = struct{}{}
		out = append(out, e)
	}
	return out
}
