package telemetry

import (
	"github.com/miekg/dns"

	"github.com/m3047/rear-view-rpz/dnsutil"
)

// Observation is one (address, chain) pair ready for the store. The chain is in walk
// order from the address outward; the final element is the terminal name.
type Observation struct {
	Address string
	Chain   []string
}

// ExtractChains turns the answer section of a client response into observations, one
// per address record. The answer section is treated as a set of edges (rdata -> owner)
// and each address is walked outward through the CNAME links until the edges run out,
// which is normally at the name the client asked for. A cyclic answer - illegal, but
// the wire will carry anything - terminates at the first repeated name.
func ExtractChains(response *dns.Msg) []Observation {
	associations := make(map[string]string)
	addresses := make([]string, 0, len(response.Answer))
	seenAddress := make(map[string]struct{})

	for _, rr := range response.Answer {
		owner := dnsutil.ChompCanonicalName(rr.Header().Name)
		var rval string
		switch rr := rr.(type) {
		case *dns.A:
			rval = rr.A.String()
			if _, ok := seenAddress[rval]; !ok {
				seenAddress[rval] = struct{}{}
				addresses = append(addresses, rval)
			}
		case *dns.AAAA:
			rval = rr.AAAA.String()
			if _, ok := seenAddress[rval]; !ok {
				seenAddress[rval] = struct{}{}
				addresses = append(addresses, rval)
			}
		case *dns.CNAME:
			rval = dnsutil.ChompCanonicalName(rr.Target)
		default:
			continue
		}
		associations[rval] = owner
	}

	observations := make([]Observation, 0, len(addresses))
	for _, address := range addresses {
		seen := make(map[string]struct{})
		chain := make([]string, 0, 4)
		lhs := address
		for {
			next, ok := associations[lhs]
			if !ok {
				break
			}
			if _, looped := seen[next]; looped {
				break
			}
			seen[next] = struct{}{}
			chain = append(chain, next)
			lhs = next
		}
		if len(chain) > 0 {
			observations = append(observations, Observation{Address: address, Chain: chain})
		}
	}

	return observations
}
