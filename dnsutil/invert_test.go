package dnsutil

import (
	"testing"
)

func TestInvertPtrToAddr(t *testing.T) {
	testCases := []struct {
		qName string
		want  string
		ok    bool
	}{
		{"2.1.168.192.in-addr.arpa.", "192.168.1.2", true},
		{"2.1.168.192.IN-ADDR.ARPA.", "192.168.1.2", true}, // Case
		{"2.1.168.192.in-addr.arpa", "192.168.1.2", true},  // No trailing dot
		{"1.0.0.0.0.0.0.0.0.0.0.0.0.0.0.0.0.0.0.0.0.0.0.0.8.b.d.0.1.0.0.2.ip6.arpa.",
			"2001:db8::1", true},
		{"1.168.192.in-addr.arpa.", "", false},   // Truncated
		{"256.1.168.192.in-addr.arpa.", "", false},
		{"02.1.168.192.in-addr.arpa.", "", false}, // Leading zero
		{"x.1.168.192.in-addr.arpa.", "", false},
		{"www.example.com.", "", false}, // Wrong suffix
		{"8.b.d.0.1.0.0.2.ip6.arpa.", "", false},  // Truncated v6
		{"zz.0.0.0.0.0.0.0.0.0.0.0.0.0.0.0.0.0.0.0.0.0.0.0.8.b.d.0.1.0.0.2.ip6.arpa.", "", false}, // Wide label
	}
	for _, tc := range testCases {
		got, err := InvertPtrToAddr(tc.qName)
		if tc.ok != (err == nil) {
			t.Errorf("'%s' expected ok=%t, got %v", tc.qName, tc.ok, err)
			continue
		}
		if got != tc.want {
			t.Errorf("'%s' expected '%s', got '%s'", tc.qName, tc.want, got)
		}
	}
}

func TestChompCanonicalName(t *testing.T) {
	testCases := []struct {
		in, want string
	}{
		{"WWW.Example.COM.", "www.example.com"},
		{"www.example.com", "www.example.com"},
		{".", ""},
		{"", ""},
	}
	for _, tc := range testCases {
		if got := ChompCanonicalName(tc.in); got != tc.want {
			t.Errorf("'%s' expected '%s', got '%s'", tc.in, tc.want, got)
		}
	}
}

func TestCountLabels(t *testing.T) {
	testCases := []struct {
		in   string
		want int
	}{
		{"www.example.com.", 3},
		{"example.com", 2},
		{"d.", 1},
		{".", 0},
	}
	for _, tc := range testCases {
		if got := CountLabels(tc.in); got != tc.want {
			t.Errorf("'%s' expected %d, got %d", tc.in, tc.want, got)
		}
	}
}
