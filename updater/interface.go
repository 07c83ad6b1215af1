package updater

import (
	"context"

	"github.com/miekg/dns"
)

// Exchanged reports the wire costs of one request/response pair alongside the response
// itself. The batch log wants the byte counts, so they travel together.
type Exchanged struct {
	Response      *dns.Msg
	RequestBytes  int
	ResponseBytes int
}

// Updater sends one fully formed message to the zone master and returns the response.
// The supplied context bounds the whole exchange; implementations must honor its
// deadline and return its error on expiry. The message Id must already be set.
type Updater interface {
	Exchange(ctx context.Context, m *dns.Msg) (Exchanged, error)

	// Transfer runs an inbound AXFR of the named zone and delivers envelopes on the
	// returned channel, miekg style.
	Transfer(ctx context.Context, zone string) (chan *dns.Envelope, error)
}
