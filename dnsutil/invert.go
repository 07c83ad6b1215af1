package dnsutil

import (
	"fmt"
	"net/netip"
	"strings"
)

// InvertPtrToAddr extracts and inverts the purported IP address from a reverse qName and
// returns it as a canonical address literal. Like any name in the DNS, a reverse qName
// does not *have* to represent an IP address, but this code ignores all else. Truncated
// reverse names (fewer octets or nibbles than a full address) are an error here, unlike
// a reverse *zone* name, because the zone view only deals in complete addresses.
func InvertPtrToAddr(qName string) (string, error) {
	qName = lowerQualified(qName)
	if strings.HasSuffix(qName, V4Suffix) {
		return invertPtrToIPv4(strings.TrimSuffix(qName, V4Suffix))
	}
	if strings.HasSuffix(qName, V6Suffix) {
		return invertPtrToIPv6(strings.TrimSuffix(qName, V6Suffix))
	}

	return "", fmt.Errorf("unknown reverse suffix '%s'", qName)
}

// lowerQualified lower-cases and fully qualifies without dragging the dns package into
// every call site signature.
func lowerQualified(qName string) string {
	qName = strings.ToLower(qName)
	if !strings.HasSuffix(qName, ".") {
		qName += "."
	}

	return qName
}

// invertPtrToIPv4 takes the first part of the reverse qName from the ipv4 zone and
// converts it back into an ipv4 address literal, if possible. As a reminder, a dig -x
// 192.168.1.2 results in a qName of 2.1.168.192.in-addr.arpa. The suffix is removed by
// the caller leaving just 2.1.168.192. There are no guarantees the string is in reversed
// IP address format as anything at all can be written into a zone, thus all the checking.
func invertPtrToIPv4(qName string) (string, error) {
	reverse := strings.Split(qName, ".")
	if len(reverse) != 4 {
		return "", fmt.Errorf("reverse ipv4 qName '%s' does not have four octets", qName)
	}
	var octets [4]byte
	for ix, octet := range reverse {
		v := convertDecimalOctet(octet)
		if v == -1 {
			return "", fmt.Errorf("malformed reverse ipv4 qName '%s'", qName)
		}
		octets[3-ix] = byte(v)
	}

	return netip.AddrFrom4(octets).String(), nil
}

// invertPtrToIPv6 converts the nibble labels of an ip6.arpa name back into a compressed
// ipv6 address literal. Expected input looks something like
// 3.f.6.d.4.d.3.b.c.4.3.0.1.3.8.0.0.0.0.0.0.0.0.0.0.0.0.0.0.8.e.f less the suffix.
func invertPtrToIPv6(qName string) (string, error) {
	reverse := strings.Split(qName, ".")
	if len(reverse) != 32 {
		return "", fmt.Errorf("reverse ipv6 qName '%s' does not have 32 nibbles", qName)
	}
	var b [16]byte
	for ix, hStr := range reverse {
		if len(hStr) != 1 {
			return "", fmt.Errorf("malformed reverse ipv6 qName '%s'", qName)
		}
		h := hStr[0]
		var v byte
		switch {
		case h >= '0' && h <= '9':
			v = h - '0'
		case h >= 'a' && h <= 'f':
			v = h - 'a' + 10
		default:
			return "", fmt.Errorf("malformed reverse ipv6 qName '%s'", qName)
		}
		byteIx := 15 - ix/2
		if ix%2 == 0 {
			b[byteIx] |= v // Low nibble comes first in the reverse name
		} else {
			b[byteIx] |= v << 4
		}
	}

	return netip.AddrFrom16(b).String(), nil
}

// convertDecimalOctet strictly converts an ipv4 decimal octet to an int. Return -1 if
// conversion fails. Rules: no leading zeroes, numeric range 0-255, length 1-3 bytes and
// no non-digit characters.
func convertDecimalOctet(s string) (ret int) {
	if len(s) == 0 || len(s) > 3 {
		return -1
	}
	if s[0] == '0' && len(s) > 1 { // Don't allow leading zeroes
		return -1
	}

	for _, c := range s {
		if c < '0' || c > '9' {
			return -1
		}
		c -= '0'
		ret *= 10
		ret += int(c)
	}
	if ret > 255 {
		return -1
	}

	return
}
