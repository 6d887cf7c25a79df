package llm

// Options contains model inference parameters.
type Options struct {
	// Sampling parameters
	Temperature *float64 `toml:"temperature"` // Creativity (0.0-2.0)
	TopP        *float64 `toml:"top_p"`       // Nucleus sampling threshold
	Seed        *int     `toml:"seed"`        // Random seed for reproducibility

	// Length parameters
	MaxTokens *int `toml:"max_tokens"` // Max tokens to generate

	// Stop sequences
	Stop []string `toml:"stop"` // Stop generation at these sequences
}

// DefaultTemperature matches the sampling temperature the relay has always
// used for replies.
const DefaultTemperature = 0.7

// Float64 returns a pointer to v, for filling optional Options fields.
func Float64(v float64) *float64 { return &v }

// Int returns a pointer to v, for filling optional Options fields.
func Int(v int) *int { return &v }
