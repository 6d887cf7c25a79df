// Package llm provides the role-tagged turns that make up a conversation
// and are exchanged with inference providers.
package llm

// Role tags who authored a turn.
type Role string

const (
	// RoleSystem marks synthetic context turns. They are only ever sent to
	// inference and never stored.
	RoleSystem Role = "system"

	// RoleUser marks turns authored by the counterpart on the gateway.
	RoleUser Role = "user"

	// RoleAssistant marks generated replies.
	RoleAssistant Role = "assistant"
)

// Valid reports whether r is a role that may appear in stored history.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAssistant
}

// Turn represents a single message in a conversation.
type Turn struct {
	Role    Role   `json:"role"`    // "user", "assistant" ("system" only in prompts)
	Content string `json:"content"` // Raw message text, no formatting or redaction
}

// UserTurn returns a turn authored by the counterpart.
func UserTurn(content string) Turn {
	return Turn{Role: RoleUser, Content: content}
}

// AssistantTurn returns a generated reply turn.
func AssistantTurn(content string) Turn {
	return Turn{Role: RoleAssistant, Content: content}
}

// SystemTurn returns a synthetic context turn.
func SystemTurn(content string) Turn {
	return Turn{Role: RoleSystem, Content: content}
}
