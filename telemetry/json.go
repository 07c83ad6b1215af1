package telemetry

import (
	"encoding/json"
	"fmt"
	"net"
	"sync"
	"sync/atomic"

	"github.com/m3047/rear-view-rpz/log"
)

const maxDatagram = 4096

// JSONListener accepts one observation per UDP datagram:
//
//	{"address": "10.2.66.5", "chain": ["svc.cdn.example.", "www.example.com."]}
//
// The chain is ordered from the address outward, original query name last, matching the
// engine's internal chain order. Datagrams which do not decode are counted and
// discarded; address validation is the store's business.
type JSONListener struct {
	Address string // host:port to listen on

	funnel *Funnel
	conn   net.PacketConn
	wg     sync.WaitGroup

	Datagrams atomic.Uint64
	Malformed atomic.Uint64
}

type jsonObservation struct {
	Address string   `json:"address"`
	Chain   []string `json:"chain"`
}

func NewJSONListener(address string, funnel *Funnel) *JSONListener {
	return &JSONListener{
		Address: address,
		funnel:  funnel,
	}
}

func (t *JSONListener) Start() error {
	var err error
	t.conn, err = net.ListenPacket("udp", t.Address)
	if err != nil {
		return fmt.Errorf("JSON listen on %s failed: %w", t.Address, err)
	}

	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		buf := make([]byte, maxDatagram)
		for {
			n, _, err := t.conn.ReadFrom(buf)
			if err != nil {
				return // Stop() closed the connection
			}
			t.Datagrams.Add(1)

			var obs jsonObservation
			if err := json.Unmarshal(buf[:n], &obs); err != nil {
				t.Malformed.Add(1)
				log.Debugf("malformed JSON observation: %s", err.Error())
				continue
			}
			t.funnel.Offer(Observation{Address: obs.Address, Chain: obs.Chain})
		}
	}()

	return nil
}

func (t *JSONListener) Stop() {
	if t.conn != nil {
		t.conn.Close()
	}
	t.wg.Wait()
}
