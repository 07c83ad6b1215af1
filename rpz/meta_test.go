package rpz

import (
	"strings"
	"testing"
	"time"
)

func TestMetadataFormat(t *testing.T) {
	update := time.Unix(1700000000, 0)
	m := Metadata{
		First:  update.Add(-2 * time.Minute),
		Last:   update.Add(-30 * time.Second),
		Update: update,
		Count:  17,
		Trend:  4.5,
		Score:  1.25,
		Depth:  2,
	}

	s := m.Format()
	// Deltas are seen-minus-update: zero or negative.
	for _, want := range []string{"first=-120.0", "last=-30.0", "update=1700000000",
		"score=1.2500", "depth=2", "count=17", "trend=4.5"} {
		if !strings.Contains(s, want) {
			t.Errorf("Expected %s in %s", want, s)
		}
	}
}

func TestMetadataParse(t *testing.T) {
	update := time.Unix(1700000000, 0)
	m, err := ParseMetadata(`"first=-120.0;last=-30.0;update=1700000000;score=1.2500;depth=2;count=17;trend=4.5"`)
	if err != nil {
		t.Fatal(err)
	}
	if !m.Update.Equal(update) {
		t.Error("Wrong update", m.Update)
	}
	if !m.First.Equal(update.Add(-2 * time.Minute)) {
		t.Error("Wrong first", m.First)
	}
	if !m.Last.Equal(update.Add(-30 * time.Second)) {
		t.Error("Wrong last", m.Last)
	}
	if m.Count != 17 || m.Depth != 2 {
		t.Error("Wrong count/depth", m.Count, m.Depth)
	}
	if m.Score != 1.25 || m.Trend != 4.5 {
		t.Error("Wrong score/trend", m.Score, m.Trend)
	}
}

func TestMetadataParseDefaults(t *testing.T) {
	m, err := ParseMetadata("update=1700000000;future=stuff")
	if err != nil {
		t.Fatal("Unknown keys should be ignored:", err)
	}
	if m.Count != 1 || m.Depth != 1 {
		t.Error("Missing keys should default", m.Count, m.Depth)
	}

	if _, err = ParseMetadata("first=-10.0;last=-1.0"); err == nil {
		t.Error("Missing update timestamp should be an error")
	}
	if _, err = ParseMetadata("update=bogus"); err == nil {
		t.Error("Malformed value should be an error")
	}
}
