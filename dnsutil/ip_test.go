package dnsutil

import (
	"testing"
)

func TestCanonicalAddr(t *testing.T) {
	testCases := []struct {
		in   string
		want string
		ok   bool
	}{
		{"10.2.66.5", "10.2.66.5", true},
		{"2001:db8::1", "2001:db8::1", true},
		{"2001:0db8:0000:0000:0000:0000:0000:0001", "2001:db8::1", true}, // Expanded
		{"2001:DB8::1", "2001:db8::1", true},                             // Case
		{"::ffff:10.2.66.5", "10.2.66.5", true},                          // Mapped
		{"fe80::1%eth0", "", false},                                      // Zoned
		{"10.2.66", "", false},
		{"example.com", "", false},
		{"", "", false},
	}
	for _, tc := range testCases {
		got, err := CanonicalAddr(tc.in)
		if tc.ok != (err == nil) {
			t.Errorf("'%s' expected ok=%t, got %v", tc.in, tc.ok, err)
			continue
		}
		if got != tc.want {
			t.Errorf("'%s' expected '%s', got '%s'", tc.in, tc.want, got)
		}
	}
}

func TestAddrToReverseQName(t *testing.T) {
	testCases := []struct {
		in   string
		want string
	}{
		{"10.2.66.5", "5.66.2.10.in-addr.arpa."},
		{"192.168.1.2", "2.1.168.192.in-addr.arpa."},
		{"fe80::8313:0434:b3d4:d6f3",
			"3.f.6.d.4.d.3.b.4.3.4.0.3.1.3.8.0.0.0.0.0.0.0.0.0.0.0.0.0.8.e.f.ip6.arpa."},
		{"bogus", ""},
	}
	for _, tc := range testCases {
		got := AddrToReverseQName(tc.in)
		if got != tc.want {
			t.Errorf("'%s' expected '%s', got '%s'", tc.in, tc.want, got)
		}
	}
}

func TestReverseRoundTrip(t *testing.T) {
	for _, address := range []string{"10.2.66.5", "203.0.113.77", "2001:db8::1", "fe80::1"} {
		back, err := InvertPtrToAddr(AddrToReverseQName(address))
		if err != nil {
			t.Error(address, err)
			continue
		}
		if back != address {
			t.Errorf("Round trip of %s came back %s", address, back)
		}
	}
}
