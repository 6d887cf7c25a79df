// Package session keeps the ordered turn history of each conversation in a
// key-value store.
//
// A Session is created implicitly the first time a key with no stored value
// is loaded, grows by appending on every answered message and is never
// deleted here. Load and Persist are separate round trips: two requests for
// the same key that run concurrently each load, append and write on their
// own, and the last writer wins. Callers that need stronger ordering hold a
// Locker across the pair.
package session

import "github.com/papercomputeco/relay/pkg/llm"

// Session is the full ordered history of one conversation.
type Session struct {
	// Key is the conversation identifier supplied by the gateway.
	Key string

	// Turns in conversational order. Turns are never removed or reordered.
	Turns []llm.Turn

	// Degraded is set when the stored history could not be read and the
	// session was started empty instead. It is never persisted.
	Degraded bool
}

// New returns an empty session for key.
func New(key string) *Session {
	return &Session{Key: key, Turns: []llm.Turn{}}
}

// Append returns a new session with turns added after the existing ones, in
// the order given. s is left untouched.
func Append(s *Session, turns ...llm.Turn) *Session {
	out := &Session{
		Key:      s.Key,
		Turns:    make([]llm.Turn, 0, len(s.Turns)+len(turns)),
		Degraded: s.Degraded,
	}
	out.Turns = append(out.Turns, s.Turns...)
	out.Turns = append(out.Turns, turns...)
	return out
}

// Len returns the number of turns.
func (s *Session) Len() int {
	return len(s.Turns)
}
