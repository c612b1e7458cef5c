// Package ndp implements the endpoint-side pipeline of the Nanotransport
// Datagram Protocol (NDP), a receiver-driven, trimming-based transport for
// datacenter RPC workloads.
//
// The package exposes four collaborating pieces:
//
//   - [IngressPipe] classifies incoming NDP packets, maintains per-message
//     receive credit, and fires control-plane events;
//
//   - [EgressPipe] frames outgoing metadata+payload into wire packets and
//     serialises them onto the link at the configured rate;
//
//   - [PktGen] emits ACK/NACK/PULL control packets, coalescing them when
//     legal and pacing PULLs to bound the receiver-driven arrival rate;
//
//   - [Network] models a single top-of-rack hop: jitter, deterministic
//     trimming of data packets under congestion, and strict priority
//     between control and data traffic.
//
// Message assembly, message transmission scheduling and retransmission
// bookkeeping, and application-facing RX/TX APIs are NOT part of this
// package. [IngressPipe] and [PktGen] reach those collaborators only
// through the narrow function-typed externs documented on each type.
//
// See cmd/ndpsim for a runnable demonstration that wires every type in
// this package into a loopback pair of endpoints.
package ndp
