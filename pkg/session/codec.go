package session

import (
	"encoding/json"
	"fmt"

	"github.com/papercomputeco/relay/pkg/llm"
)

// Encode serializes turns as a JSON array of {role, content} records.
func Encode(turns []llm.Turn) (string, error) {
	if turns == nil {
		turns = []llm.Turn{}
	}
	data, err := json.Marshal(turns)
	if err != nil {
		return "", fmt.Errorf("encode turns: %w", err)
	}
	return string(data), nil
}

// Decode parses a value written by Encode. Records with a role other than
// user or assistant are rejected so a system turn can never leak back into
// history.
func Decode(value string) ([]llm.Turn, error) {
	var turns []llm.Turn
	if err := json.Unmarshal([]byte(value), &turns); err != nil {
		return nil, fmt.Errorf("decode turns: %w", err)
	}
	for i, t := range turns {
		if !t.Role.Valid() {
			return nil, fmt.Errorf("decode turns: record %d has role %q", i, t.Role)
		}
	}
	if turns == nil {
		turns = []llm.Turn{}
	}
	return turns, nil
}
