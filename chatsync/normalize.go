package chatsync

import "sort"

// Normalize deduplicates a history by DedupKey, keeping the first
// occurrence, then stable-sorts ascending by timestamp. Events without any
// de-dup key are discarded. Normalize is idempotent, so the cache stays
// correct no matter how often or in what order histories arrive.
func Normalize(events []Event) []Event {
	seen := make(map[string]struct{}, len(events))
	out := make([]Event, 0, len(events))
	for _, e := range events {
		key := e.DedupKey()
		if key == "" {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, e)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].TS < out[j].TS })
	return out
}
