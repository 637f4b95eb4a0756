// Package domain defines the race session entities and the wire event
// variants exchanged with participants.
//
// A Session owns the shared race lifecycle (Waiting, Racing, Completed) and
// the per-participant state relayed between connections. Inbound and outbound
// events are closed tagged-variant types so event dispatch is exhaustive and
// malformed payloads fail at construction time.
package domain
