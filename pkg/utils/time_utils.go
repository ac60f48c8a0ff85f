package utils

import "time"

// LoadLocation resolves an IANA zone name, falling back to UTC-3 (Brasília)
// when the zone database is unavailable.
func LoadLocation(name string) *time.Location {
	if name == "" {
		return time.UTC
	}
	if loc, err := time.LoadLocation(name); err == nil {
		return loc
	}
	return time.FixedZone("BRT", -3*3600)
}

// Use explicit "seconds" variant for DB storage
func NowUnixSeconds() int64 { return time.Now().Unix() }

// FromUnixSeconds converts an epoch value in seconds to loc.
// Returns zero time if t<=0 to let callers decide how to render.
func FromUnixSeconds(t int64, loc *time.Location) time.Time {
	if t <= 0 {
		return time.Time{}
	}
	return time.Unix(t, 0).In(loc)
}

func FormatRFC3339(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.RFC3339)
}

func Int64Ptr(v int64) *int64 { return &v }
