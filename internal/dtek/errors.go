package dtek

import (
	"fmt"
	"unicode/utf8"
)

// bodySnippetLimit bounds how much of a bad upstream body is carried around
// for diagnostics.
const bodySnippetLimit = 200

// SessionError means the browser session could not be established or
// navigation failed. Recoverable: the session is re-established on the next
// attempt.
type SessionError struct {
	Op  string
	Err error
}

func (e *SessionError) Error() string {
	return fmt.Sprintf("dtek session %s: %v", e.Op, e.Err)
}

func (e *SessionError) Unwrap() error { return e.Err }

// TimeoutError means a fetch exceeded its time budget. Propagated the same
// way as SessionError.
type TimeoutError struct {
	Err error
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("dtek fetch timed out: %v", e.Err)
}

func (e *TimeoutError) Unwrap() error { return e.Err }

// UpstreamFormatError means the provider answered with something other than
// the expected JSON document, typically the anti-bot interstitial.
type UpstreamFormatError struct {
	Status      int
	ContentType string
	BodyPrefix  string
}

func (e *UpstreamFormatError) Error() string {
	return fmt.Sprintf("upstream returned non-JSON: status=%d ct=%q body=%q",
		e.Status, e.ContentType, e.BodyPrefix)
}

// snippet truncates to the limit without splitting a multibyte rune; the
// portal's error bodies are Ukrainian HTML.
func snippet(s string) string {
	if len(s) <= bodySnippetLimit {
		return s
	}
	cut := bodySnippetLimit
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
