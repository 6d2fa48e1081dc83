// Package relay implements the listener-side relay engine.
//
// It contains the acceptor that spawns one session per inbound client, the
// session itself (a pair of unidirectional pumps with one-shot credential
// injection), the periodic reachability watchdog, and shared connection
// plumbing such as keepalive listeners and the pump buffer pool.
package relay
