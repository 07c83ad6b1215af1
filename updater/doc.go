/*
Package updater is the narrow interface between the engine and the zone master. It
covers exactly the two wire operations the agent performs: a dynamic update transaction
and an inbound AXFR. Keeping the interface this small makes the mock trivial and keeps
the rest of the program honest about what it is allowed to ask of the network.

The zone master serializes updates on its side, so implementations need no cross-process
coordination, but they must be safe for use from multiple go-routines.
*/
package updater
