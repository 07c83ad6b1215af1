/*
Package telemetry is the ingress side of the agent: it watches live DNS resolution
activity and turns each observed answer into (address, chain) observations for the
telemetry store.

Two equivalent sources are supported. The dnstap listener accepts framestream
connections on a unix socket from a cooperating nameserver configured with something
like:

	dnstap { client response; };
	dnstap-output unix "/tmp/dnstap";

The JSON listener accepts one observation per UDP datagram, for environments where
dnstap is unavailable:

	{"address": "10.2.66.5", "chain": ["svc.cdn.example.", "www.example.com."]}

Both feed a Funnel which serializes delivery to the store on a single go-routine, so
observations are applied in arrival order and eviction passes never interleave with a
half-delivered answer.
*/
package telemetry
