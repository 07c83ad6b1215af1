package mock

import (
	"context"
	"sync"

	"github.com/miekg/dns"

	"github.com/m3047/rear-view-rpz/updater"
)

// Updater is a canned-response implementation of updater.Updater which records every
// message it is asked to send.
type Updater struct {
	mu       sync.Mutex
	Requests []*dns.Msg

	Rcode    int           // Rcode of the synthesized response
	Fail     error         // Non-nil makes Exchange fail outright
	AXFR     []dns.RR      // Records delivered by Transfer
	AXFRFail error         // Non-nil makes Transfer fail
}

func (t *Updater) Exchange(ctx context.Context, m *dns.Msg) (updater.Exchanged, error) {
	t.mu.Lock()
	t.Requests = append(t.Requests, m.Copy())
	t.mu.Unlock()

	if t.Fail != nil {
		return updater.Exchanged{}, t.Fail
	}

	response := new(dns.Msg)
	response.SetReply(m)
	response.Rcode = t.Rcode

	return updater.Exchanged{
		Response:      response,
		RequestBytes:  m.Len(),
		ResponseBytes: response.Len(),
	}, nil
}

func (t *Updater) Transfer(ctx context.Context, zone string) (chan *dns.Envelope, error) {
	if t.AXFRFail != nil {
		return nil, t.AXFRFail
	}

	channel := make(chan *dns.Envelope, 1)
	channel <- &dns.Envelope{RR: t.AXFR}
	close(channel)

	return channel, nil
}

// RequestCount returns how many exchanges were attempted.
func (t *Updater) RequestCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	return len(t.Requests)
}

// LastRequest returns the most recent message, or nil.
func (t *Updater) LastRequest() *dns.Msg {
	t.mu.Lock()
	defer t.mu.Unlock()

	if len(t.Requests) == 0 {
		return nil
	}

	return t.Requests[len(t.Requests)-1]
}
