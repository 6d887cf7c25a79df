// Package prompt composes the turns sent to inference for a single request.
package prompt

import (
	"fmt"
	"strings"
	"time"

	"github.com/papercomputeco/relay/pkg/llm"
	"github.com/papercomputeco/relay/pkg/session"
)

// Config controls composition.
type Config struct {
	// System is a static instruction placed in the context turn.
	System string

	// InjectTime adds the current date and time to the context turn.
	InjectTime bool

	// Location and TimeLayout render the injected time.
	Location   *time.Location
	TimeLayout string

	// MaxHistoryTurns caps how many of the most recent stored turns are
	// sent. Zero sends the whole history. Stored history is never trimmed.
	MaxHistoryTurns int
}

// Composer builds prompt turns from a session and the new user text.
type Composer struct {
	config Config
	now    func() time.Time
}

// NewComposer creates a Composer.
func NewComposer(config Config) *Composer {
	if config.Location == nil {
		config.Location = time.UTC
	}
	if config.TimeLayout == "" {
		config.TimeLayout = time.RFC1123
	}
	return &Composer{config: config, now: time.Now}
}

// WithClock returns a copy of the composer that reads time from now.
func (c *Composer) WithClock(now func() time.Time) *Composer {
	cp := *c
	cp.now = now
	return &cp
}

// Build returns, in order: the optional context turn, the history turns and
// a user turn holding userText. history is not modified; the context turn
// exists only in the returned slice.
func (c *Composer) Build(history *session.Session, userText string) []llm.Turn {
	var past []llm.Turn
	if history != nil {
		past = history.Turns
	}
	if n := c.config.MaxHistoryTurns; n > 0 && len(past) > n {
		past = past[len(past)-n:]
	}

	turns := make([]llm.Turn, 0, len(past)+2)
	if ctxTurn, ok := c.contextTurn(); ok {
		turns = append(turns, ctxTurn)
	}
	turns = append(turns, past...)
	turns = append(turns, llm.UserTurn(userText))

	return turns
}

func (c *Composer) contextTurn() (llm.Turn, bool) {
	var parts []string
	if s := strings.TrimSpace(c.config.System); s != "" {
		parts = append(parts, s)
	}
	if c.config.InjectTime {
		now := c.now().In(c.config.Location)
		parts = append(parts, fmt.Sprintf("Current date and time: %s.", now.Format(c.config.TimeLayout)))
	}
	if len(parts) == 0 {
		return llm.Turn{}, false
	}
	return llm.SystemTurn(strings.Join(parts, "\n\n")), true
}
