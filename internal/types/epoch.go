package types

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// EpochMillis is a timestamp encoded as milliseconds since the Unix epoch,
// the format Habitica uses for history dates.
type EpochMillis struct {
	time.Time
}

// At wraps t as an EpochMillis.
func At(t time.Time) EpochMillis {
	return EpochMillis{Time: t}
}

// MarshalJSON writes the timestamp as a JSON number.
func (e EpochMillis) MarshalJSON() ([]byte, error) {
	return []byte(strconv.FormatInt(e.UnixMilli(), 10)), nil
}

// UnmarshalJSON accepts a number of milliseconds, the same number quoted,
// or an RFC 3339 string. Some legacy history entries use the last form.
func (e *EpochMillis) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		e.Time = time.Time{}
		return nil
	}

	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
			e.Time = time.UnixMilli(ms).UTC()
			return nil
		}
		t, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return fmt.Errorf("invalid epoch date %q: %w", s, err)
		}
		e.Time = t.UTC()
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("invalid epoch date %s: %w", data, err)
	}
	ms, err := n.Int64()
	if err != nil {
		f, ferr := n.Float64()
		if ferr != nil {
			return fmt.Errorf("invalid epoch date %s: %w", data, err)
		}
		ms = int64(f)
	}
	e.Time = time.UnixMilli(ms).UTC()
	return nil
}
