package telemetry

import (
	"fmt"
	"io"
	"net"
	"os"
	"sync"
	"sync/atomic"

	dnstap "github.com/dnstap/golang-dnstap"
	framestream "github.com/farsightsec/golang-framestream"
	"github.com/miekg/dns"
	"google.golang.org/protobuf/proto"

	"github.com/m3047/rear-view-rpz/log"
)

const dnstapContentType = "protobuf:dnstap.Dnstap"

// DnstapListener accepts framestream connections on a unix socket and feeds decoded
// client responses to the Funnel. Only CLIENT_RESPONSE messages with NOERROR answers to
// address queries are consumed; everything else passes by unremarked. Nameservers which
// send all message types work, they just cost decode cycles - a performance hint is
// logged once per connection.
type DnstapListener struct {
	SocketPath string

	funnel   *Funnel
	listener net.Listener
	wg       sync.WaitGroup

	Frames  atomic.Uint64 // Frames decoded
	Skipped atomic.Uint64 // Wrong type, bad rcode, or undecodable
}

func NewDnstapListener(socketPath string, funnel *Funnel) *DnstapListener {
	return &DnstapListener{
		SocketPath: socketPath,
		funnel:     funnel,
	}
}

// Start begins listening on the socket. An existing socket file is removed first, as
// it is almost certainly the debris of a previous run.
func (t *DnstapListener) Start() error {
	_ = os.Remove(t.SocketPath)

	var err error
	t.listener, err = net.Listen("unix", t.SocketPath)
	if err != nil {
		return fmt.Errorf("dnstap listen on %s failed: %w", t.SocketPath, err)
	}

	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		for {
			conn, err := t.listener.Accept()
			if err != nil {
				return // Stop() closed the listener
			}
			log.Minor("dnstap connection accepted")
			t.wg.Add(1)
			go t.handleConn(conn)
		}
	}()

	return nil
}

// Stop closes the socket and waits for all connection handlers to finish.
func (t *DnstapListener) Stop() {
	if t.listener != nil {
		t.listener.Close()
	}
	t.wg.Wait()
}

func (t *DnstapListener) handleConn(conn net.Conn) {
	defer t.wg.Done()
	defer conn.Close()

	decoder, err := framestream.NewDecoder(conn, &framestream.DecoderOptions{
		ContentType:   []byte(dnstapContentType),
		Bidirectional: true,
	})
	if err != nil {
		log.Minorf("framestream handshake failed: %s", err.Error())
		return
	}

	performanceHint := true
	for {
		buf, err := decoder.Decode()
		if err != nil {
			if err != io.EOF {
				log.Minorf("dnstap decode ended: %s", err.Error())
			}
			return
		}
		t.Frames.Add(1)

		var dt dnstap.Dnstap
		if err := proto.Unmarshal(buf, &dt); err != nil {
			t.Skipped.Add(1)
			continue
		}
		message := dt.GetMessage()
		if message == nil {
			t.Skipped.Add(1)
			continue
		}
		if message.GetType() != dnstap.Message_CLIENT_RESPONSE {
			if performanceHint {
				log.Major("performance hint: restrict dnstap to client response only")
				performanceHint = false
			}
			t.Skipped.Add(1)
			continue
		}

		wire := message.GetResponseMessage()
		if len(wire) == 0 {
			t.Skipped.Add(1)
			continue
		}
		response := new(dns.Msg)
		if err := response.Unpack(wire); err != nil {
			t.Skipped.Add(1)
			continue
		}

		if !ConsumableResponse(response) {
			t.Skipped.Add(1)
			continue
		}
		for _, obs := range ExtractChains(response) {
			t.funnel.Offer(obs)
		}
	}
}

// ConsumableResponse reports whether the response is one the engine learns from: a
// NOERROR answer to an A or AAAA question with at least one answer record. The message
// timestamp inside dnstap is ignored; arrival time is close enough, and the engine
// clocks observations itself.
func ConsumableResponse(response *dns.Msg) bool {
	if response.Rcode != dns.RcodeSuccess {
		return false
	}
	if len(response.Question) != 1 {
		return false
	}
	qType := response.Question[0].Qtype
	if qType != dns.TypeA && qType != dns.TypeAAAA {
		return false
	}

	return len(response.Answer) > 0
}
