// Package tunnel establishes the outbound leg of a relay session.
//
// A Builder holds the immutable relay target and optional upstream proxy
// resolved at startup. Build dials the relay, negotiating an HTTP CONNECT
// tunnel through the upstream proxy when one is configured, optionally
// wrapping the result in TLS, and returns the ready transport together with
// a pending Proxy-Authorization credential when the target carries one.
package tunnel
