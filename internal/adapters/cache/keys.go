package cache

import "drive-time-scheduler/internal/domain"

// normalizedKeys trims, collapses whitespace and dedupes cache keys.
func normalizedKeys(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, k := range in {
		k = domain.NormalizeLocation(k)
		if k == "" {
			continue
		}
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	return out
}
