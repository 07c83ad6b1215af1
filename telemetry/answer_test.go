package telemetry

import (
	"testing"

	"github.com/miekg/dns"
)

func newRR(t *testing.T, s string) dns.RR {
	t.Helper()
	rr, err := dns.NewRR(s)
	if err != nil {
		t.Fatal(s, err)
	}

	return rr
}

func responseWith(t *testing.T, qname string, qtype uint16, answers ...string) *dns.Msg {
	t.Helper()
	m := new(dns.Msg)
	m.SetQuestion(dns.CanonicalName(qname), qtype)
	m.Response = true
	for _, s := range answers {
		m.Answer = append(m.Answer, newRR(t, s))
	}

	return m
}

func TestExtractSimpleAnswer(t *testing.T) {
	response := responseWith(t, "www.example.com.", dns.TypeA,
		"www.example.com. 60 IN A 10.0.0.1")

	observations := ExtractChains(response)
	if len(observations) != 1 {
		t.Fatal("Expected one observation, not", len(observations))
	}
	obs := observations[0]
	if obs.Address != "10.0.0.1" {
		t.Error("Wrong address", obs.Address)
	}
	if len(obs.Chain) != 1 || obs.Chain[0] != "www.example.com" {
		t.Error("Wrong chain", obs.Chain)
	}
}

func TestExtractCNAMEChain(t *testing.T) {
	response := responseWith(t, "www.example.com.", dns.TypeA,
		"www.example.com. 60 IN CNAME services.example.net.",
		"services.example.net. 60 IN A 10.10.10.10")

	observations := ExtractChains(response)
	if len(observations) != 1 {
		t.Fatal("Expected one observation, not", len(observations))
	}
	obs := observations[0]
	if obs.Address != "10.10.10.10" {
		t.Error("Wrong address", obs.Address)
	}

	// Walk order: address record owner first, original query name last. The final
	// element is the terminal, the name published as the PTR.
	if len(obs.Chain) != 2 ||
		obs.Chain[0] != "services.example.net" ||
		obs.Chain[1] != "www.example.com" {
		t.Error("Wrong chain", obs.Chain)
	}
}

func TestExtractMultipleAddresses(t *testing.T) {
	response := responseWith(t, "www.example.com.", dns.TypeA,
		"www.example.com. 60 IN A 10.0.0.1",
		"www.example.com. 60 IN A 10.0.0.2",
		"www.example.com. 60 IN AAAA 2001:db8::1")

	observations := ExtractChains(response)
	if len(observations) != 3 {
		t.Fatal("Expected three observations, not", len(observations))
	}
	for _, obs := range observations {
		if len(obs.Chain) != 1 || obs.Chain[0] != "www.example.com" {
			t.Error("Wrong chain for", obs.Address, obs.Chain)
		}
	}
}

func TestExtractCyclicAnswer(t *testing.T) {
	// A malicious or broken answer with a CNAME loop must terminate.
	response := responseWith(t, "a.example.", dns.TypeA,
		"a.example. 60 IN CNAME b.example.",
		"b.example. 60 IN CNAME a.example.",
		"a.example. 60 IN A 10.0.0.1")

	observations := ExtractChains(response)
	if len(observations) != 1 {
		t.Fatal("Expected one observation, not", len(observations))
	}
	if len(observations[0].Chain) > 3 {
		t.Error("Cycle not bounded", observations[0].Chain)
	}
}

func TestExtractIgnoresOtherTypes(t *testing.T) {
	response := responseWith(t, "example.com.", dns.TypeA,
		"example.com. 60 IN TXT \"not an address\"",
		"example.com. 60 IN MX 10 mail.example.com.")

	if observations := ExtractChains(response); len(observations) != 0 {
		t.Error("Non-address answers should yield nothing", observations)
	}
}

func TestConsumableResponse(t *testing.T) {
	good := responseWith(t, "www.example.com.", dns.TypeA,
		"www.example.com. 60 IN A 10.0.0.1")
	if !ConsumableResponse(good) {
		t.Error("NOERROR address answer should be consumable")
	}

	servfail := responseWith(t, "www.example.com.", dns.TypeA,
		"www.example.com. 60 IN A 10.0.0.1")
	servfail.Rcode = dns.RcodeServerFailure
	if ConsumableResponse(servfail) {
		t.Error("SERVFAIL should not be consumable")
	}

	mx := responseWith(t, "example.com.", dns.TypeMX,
		"example.com. 60 IN MX 10 mail.example.com.")
	if ConsumableResponse(mx) {
		t.Error("MX question should not be consumable")
	}

	empty := responseWith(t, "www.example.com.", dns.TypeA)
	if ConsumableResponse(empty) {
		t.Error("Empty answer should not be consumable")
	}
}
