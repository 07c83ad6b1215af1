package dnsutil

import (
	"github.com/miekg/dns"
)

// ChompCanonicalName makes a name canonical but loses the trailing dot. For logging and
// map keys the trailing dot is more of a hinderance than a help.
func ChompCanonicalName(n string) string {
	n = dns.CanonicalName(n)
	if len(n) > 0 && n[len(n)-1] == '.' {
		n = n[:len(n)-1]
	}

	return n
}

// CountLabels returns the number of labels in the fqdn, excluding the trailing root
// label. "www.example.com." has three.
func CountLabels(fqdn string) int {
	return dns.CountLabel(dns.CanonicalName(fqdn))
}
