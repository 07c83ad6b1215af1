package updater

import (
	"context"
	"time"

	"github.com/miekg/dns"

	"github.com/m3047/rear-view-rpz/dnsutil"
)

const defaultExchangeTimeout = 5 * time.Second

// tcpUpdater talks to the zone master over TCP. Updates go over TCP rather than UDP
// because a batch routinely exceeds any sensible UDP payload and because the master is
// pretty much always a flavor of localhost.
type tcpUpdater struct {
	server  string // host:port of the zone master
	timeout time.Duration
}

// NewUpdater constructs an Updater aimed at server (host:port). A zero timeout selects
// the default.
func NewUpdater(server string, timeout time.Duration) Updater {
	if timeout <= 0 {
		timeout = defaultExchangeTimeout
	}

	return &tcpUpdater{server: server, timeout: timeout}
}

func (t *tcpUpdater) Exchange(ctx context.Context, m *dns.Msg) (Exchanged, error) {
	var ret Exchanged

	client := &dns.Client{Net: dnsutil.TCPNetwork, Timeout: t.timeout}
	response, _, err := client.ExchangeContext(ctx, m, t.server)
	if err != nil {
		return ret, err
	}

	ret.Response = response
	ret.RequestBytes = m.Len()
	ret.ResponseBytes = response.Len()

	return ret, nil
}

func (t *tcpUpdater) Transfer(ctx context.Context, zone string) (chan *dns.Envelope, error) {
	req := new(dns.Msg)
	req.SetAxfr(dns.CanonicalName(zone))
	transfer := &dns.Transfer{}

	return transfer.In(req, t.server)
}
