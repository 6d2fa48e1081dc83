package tunnel

import (
	"bytes"
	"encoding/base64"
)

const headerSep = "\r\n\r\n"

// Credential is a precomputed Proxy-Authorization header line awaiting
// injection into the first client-to-relay frame of a session.
//
// It has exactly two states, pending and consumed, and transitions once.
// A Credential is owned by the single pump that may consume it and is not
// safe for concurrent use.
type Credential struct {
	line     string
	consumed bool
}

// NewCredential builds a pending HTTP Basic credential for user and pass.
func NewCredential(user, pass string) *Credential {
	enc := base64.StdEncoding.EncodeToString([]byte(user + ":" + pass))
	return &Credential{line: "Proxy-Authorization: Basic " + enc}
}

// Pending reports whether the credential has not yet been consumed.
// A nil Credential is never pending.
func (c *Credential) Pending() bool {
	return c != nil && !c.consumed
}

// Splice consumes the credential and returns frame with the header line
// inserted immediately before the first header/body separator.
//
// If the separator is not present in frame (headers split across reads),
// the frame is returned unmodified and the credential is consumed anyway:
// injection happens on the first frame or not at all. Best effort, never
// retried.
func (c *Credential) Splice(frame []byte) []byte {
	if !c.Pending() {
		return frame
	}
	c.consumed = true

	i := bytes.Index(frame, []byte(headerSep))
	if i < 0 {
		return frame
	}

	out := make([]byte, 0, len(frame)+2+len(c.line))
	out = append(out, frame[:i]...)
	out = append(out, '\r', '\n')
	out = append(out, c.line...)
	out = append(out, frame[i:]...)
	return out
}
