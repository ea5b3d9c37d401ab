// Copyright (c) 2025 BVK Chaitanya

package exchange

import (
	"bytes"
	"encoding/gob"
	"testing"
	"time"
)

func TestRemoteTimeGob(t *testing.T) {
	type GobType struct {
		Timepoint RemoteTime
	}

	// Zero timepoint round-trips.
	var zero GobType
	var zbuf bytes.Buffer
	if err := gob.NewEncoder(&zbuf).Encode(&zero); err != nil {
		t.Fatal(err)
	}
	zrecovered := new(GobType)
	if err := gob.NewDecoder(&zbuf).Decode(zrecovered); err != nil {
		t.Fatal(err)
	}
	if !zrecovered.Timepoint.Time.IsZero() {
		t.Fatalf("IsZero: want true, got false")
	}

	// Non-zero timepoint round-trips.
	v := GobType{Timepoint: RemoteTime{Time: time.Now()}}
	var vbuf bytes.Buffer
	if err := gob.NewEncoder(&vbuf).Encode(&v); err != nil {
		t.Fatal(err)
	}
	vrecovered := new(GobType)
	if err := gob.NewDecoder(&vbuf).Decode(vrecovered); err != nil {
		t.Fatal(err)
	}
	if !vrecovered.Timepoint.Equal(v.Timepoint.Time) {
		t.Fatalf("Equal: want true, got false")
	}
}

func TestFromUnixMillis(t *testing.T) {
	rt := FromUnixMillis(1700000000000)
	if rt.Time.Unix() != 1700000000 {
		t.Fatalf("unexpected unix seconds: %d", rt.Time.Unix())
	}
}
