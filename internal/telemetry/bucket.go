package telemetry

import "github.com/cespare/xxhash/v2"

// AssignVariant deterministically buckets this session (or identified user)
// into one of the variants. The same stable id always lands in the same
// bucket, so a visitor sees a consistent variant across page loads.
func (r *Recorder) AssignVariant(test string, variants []string) string {
	if len(variants) == 0 {
		return ""
	}
	r.mu.RLock()
	id := r.userID
	if id == "" {
		id = r.sessionID
	}
	r.mu.RUnlock()
	h := xxhash.Sum64String(test + ":" + id)
	return variants[h%uint64(len(variants))]
}

// BucketVariant is AssignVariant for callers outside a recorder session.
func BucketVariant(test, stableID string, variants []string) string {
	if len(variants) == 0 {
		return ""
	}
	h := xxhash.Sum64String(test + ":" + stableID)
	return variants[h%uint64(len(variants))]
}
