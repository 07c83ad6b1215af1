package dnsutil

import (
	"fmt"
	"net/netip"
	"strings"
)

// CanonicalAddr parses the supplied address literal and returns it in canonical form:
// dotted-quad for ipv4 and RFC 5952 compressed for ipv6. Expanded or otherwise
// non-canonical ipv6 input is accepted and canonicalized; mapped v4-in-v6 forms are
// unmapped. Anything which does not parse as a bare address (including zoned addresses)
// is an error.
func CanonicalAddr(s string) (string, error) {
	addr, err := netip.ParseAddr(s)
	if err != nil {
		return "", err
	}
	if addr.Zone() != "" {
		return "", fmt.Errorf("zoned address '%s' not acceptable", s)
	}

	return addr.Unmap().String(), nil
}

// AddrToReverseQName converts an address literal into the reverse-path qName used as the
// owner of the synthesized PTR. The result excludes the RPZ origin but includes the arpa
// suffix and is fully qualified, e.g. "10.2.66.5" becomes "5.66.2.10.in-addr.arpa.".
//
// An empty string is returned if the address cannot be parsed. This is not intended to
// be a high-speed function.
func AddrToReverseQName(s string) string {
	addr, err := netip.ParseAddr(s)
	if err != nil {
		return ""
	}
	addr = addr.Unmap()

	if addr.Is4() {
		b := addr.As4()
		return fmt.Sprintf("%d.%d.%d.%d%s", b[3], b[2], b[1], b[0], V4Suffix)
	}

	b := addr.As16()
	joiner := make([]string, 0, 32)
	for ix := 15; ix >= 0; ix-- {
		joiner = append(joiner, fmt.Sprintf("%x", b[ix]&0xf))
		joiner = append(joiner, fmt.Sprintf("%x", b[ix]&0xf0>>4))
	}

	return strings.Join(joiner, ".") + V6Suffix
}
