// Copyright (c) 2025 BVK Chaitanya

package exchange

import "time"

// RemoteTime wraps a timestamp reported by the exchange so that it can be
// gob-encoded independent of the local machine's time.Time representation.
type RemoteTime struct {
	time.Time
}

func (v RemoteTime) MarshalBinary() ([]byte, error) {
	return []byte(v.Time.Format(time.RFC3339Nano)), nil
}

func (v *RemoteTime) UnmarshalBinary(bs []byte) error {
	t, err := time.Parse(time.RFC3339Nano, string(bs))
	if err != nil {
		return err
	}
	v.Time = t
	return nil
}

// FromUnixMillis converts an exchange "event time" expressed in epoch
// milliseconds into a RemoteTime.
func FromUnixMillis(ms int64) RemoteTime {
	return RemoteTime{Time: time.UnixMilli(ms)}
}
