package relay

// Config is the webhook server configuration.
type Config struct {
	// Address to listen on (e.g., ":5000")
	ListenAddr string

	// WebhookPath is where the gateway posts events (e.g., "/webhook")
	WebhookPath string
}
