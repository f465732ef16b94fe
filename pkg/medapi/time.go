package medapi

import (
	"bytes"
	"encoding/json"
	"time"
)

// zonelessLayouts are the ISO-8601 forms the service emits for naive UTC
// datetimes.
var zonelessLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
}

// Timestamp is a server datetime. It accepts RFC 3339 and zone-less
// ISO-8601 (read as UTC). A value that parses as neither decodes to the zero
// time instead of failing the whole response.
type Timestamp struct {
	time.Time
}

// NewTimestamp wraps t.
func NewTimestamp(t time.Time) Timestamp {
	return Timestamp{Time: t}
}

func (t *Timestamp) UnmarshalJSON(data []byte) error {
	t.Time = time.Time{}
	if bytes.Equal(data, []byte("null")) {
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil || s == "" {
		return nil
	}
	t.Time = ParseTime(s)
	return nil
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.Time.Format(time.RFC3339Nano))
}

// ParseTime parses s as RFC 3339 or zone-less ISO-8601 in UTC. It returns the
// zero time when s matches neither.
func ParseTime(s string) time.Time {
	if v, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return v
	}
	for _, layout := range zonelessLayouts {
		if v, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return v
		}
	}
	return time.Time{}
}
