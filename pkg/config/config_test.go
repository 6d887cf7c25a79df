package config

import (
	"os"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Config", func() {
	Describe("Default", func() {
		It("is valid", func() {
			Expect(Default().Validate()).To(Succeed())
		})

		It("listens on the original webhook port", func() {
			cfg := Default()
			Expect(cfg.Server.ListenAddr).To(Equal(":5000"))
			Expect(cfg.Server.WebhookPath).To(Equal("/webhook"))
		})

		It("uses a non-zero temperature", func() {
			Expect(*Default().Inference.Options.Temperature).To(BeNumerically("==", 0.7))
		})
	})

	Describe("Load", func() {
		It("reads a TOML file", func() {
			path := filepath.Join(GinkgoT().TempDir(), "relay.toml")
			Expect(os.WriteFile(path, []byte(`
[server]
listen = ":9000"
webhook_path = "/hooks/evolution"

[store]
driver = "sqlite"
timeout = "2s"

[store.sqlite]
path = "/tmp/relay-test.db"

[prompt]
max_history_turns = 20

[inference]
provider = "ollama"
model = "llama3.1:8b"
timeout = "90s"
`), 0o600)).To(Succeed())

			cfg, err := Load(path)
			Expect(err).NotTo(HaveOccurred())
			Expect(cfg.Server.ListenAddr).To(Equal(":9000"))
			Expect(cfg.Server.WebhookPath).To(Equal("/hooks/evolution"))
			Expect(cfg.Store.Driver).To(Equal(DriverSQLite))
			Expect(cfg.Store.Timeout.Duration).To(Equal(2 * time.Second))
			Expect(cfg.Store.SQLite.Path).To(Equal("/tmp/relay-test.db"))
			Expect(cfg.Prompt.MaxHistoryTurns).To(Equal(20))
			Expect(cfg.Inference.Provider).To(Equal(ProviderOllama))
			Expect(cfg.Inference.Timeout.Duration).To(Equal(90 * time.Second))
			// Untouched sections keep their defaults
			Expect(cfg.Gateway.Timeout.Duration).To(Equal(15 * time.Second))
		})

		It("rejects a malformed duration", func() {
			path := filepath.Join(GinkgoT().TempDir(), "relay.toml")
			Expect(os.WriteFile(path, []byte("[gateway]\ntimeout = \"soon\"\n"), 0o600)).To(Succeed())

			_, err := Load(path)
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("invalid duration"))
		})

		It("fails for a missing file", func() {
			_, err := Load(filepath.Join(GinkgoT().TempDir(), "nope.toml"))
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("applyEnv", func() {
		env := func(vars map[string]string) func(string) (string, bool) {
			return func(key string) (string, bool) {
				v, ok := vars[key]
				return v, ok
			}
		}

		It("maps the gateway deployment variables", func() {
			cfg := Default()
			Expect(cfg.applyEnv(env(map[string]string{
				"EVOLUTION_API_KEY": "secret",
				"EVOLUTION_API_URL": "http://gw:8080/message/sendText/bot",
				"REDIS_HOST":        "redis",
				"REDIS_PORT":        "6380",
				"REDIS_PASSWORD":    "pw",
				"OPENAI_API_KEY":    "sk-test",
			}))).To(Succeed())

			Expect(cfg.Gateway.APIKey).To(Equal("secret"))
			Expect(cfg.Gateway.URL).To(Equal("http://gw:8080/message/sendText/bot"))
			Expect(cfg.Store.Redis.Addr()).To(Equal("redis:6380"))
			Expect(cfg.Store.Redis.Password).To(Equal("pw"))
			Expect(cfg.Inference.APIKey).To(Equal("sk-test"))
		})

		It("maps the relay variables", func() {
			cfg := Default()
			Expect(cfg.applyEnv(env(map[string]string{
				"RELAY_LISTEN":             ":7000",
				"RELAY_STORE_DRIVER":       "memory",
				"RELAY_INFERENCE_PROVIDER": "ollama",
				"RELAY_MODEL":              "mistral",
				"RELAY_TIMEZONE":           "UTC",
			}))).To(Succeed())

			Expect(cfg.Server.ListenAddr).To(Equal(":7000"))
			Expect(cfg.Store.Driver).To(Equal(DriverMemory))
			Expect(cfg.Inference.Provider).To(Equal(ProviderOllama))
			Expect(cfg.Inference.Model).To(Equal("mistral"))
			Expect(cfg.Prompt.Timezone).To(Equal("UTC"))
		})

		It("ignores empty values", func() {
			cfg := Default()
			Expect(cfg.applyEnv(env(map[string]string{"REDIS_HOST": ""}))).To(Succeed())
			Expect(cfg.Store.Redis.Host).To(Equal("localhost"))
		})

		It("rejects a non-numeric port", func() {
			cfg := Default()
			err := cfg.applyEnv(env(map[string]string{"REDIS_PORT": "six"}))
			Expect(err).To(MatchError(ContainSubstring("REDIS_PORT")))
		})
	})

	Describe("Validate", func() {
		var cfg *Config

		BeforeEach(func() {
			cfg = Default()
		})

		It("rejects unknown store drivers", func() {
			cfg.Store.Driver = "etcd"
			Expect(cfg.Validate()).To(MatchError(ContainSubstring("unknown store driver")))
		})

		It("requires a DSN for postgres", func() {
			cfg.Store.Driver = DriverPostgres
			Expect(cfg.Validate()).To(MatchError(ContainSubstring("dsn")))
		})

		It("rejects unknown providers", func() {
			cfg.Inference.Provider = "carrier-pigeon"
			Expect(cfg.Validate()).To(MatchError(ContainSubstring("unknown inference provider")))
		})

		It("rejects invalid timezones", func() {
			cfg.Prompt.Timezone = "Mars/Olympus_Mons"
			Expect(cfg.Validate()).To(MatchError(ContainSubstring("prompt.timezone")))
		})

		It("skips the timezone check when time injection is off", func() {
			cfg.Prompt.InjectTime = false
			cfg.Prompt.Timezone = "Mars/Olympus_Mons"
			Expect(cfg.Validate()).To(Succeed())
		})

		It("rejects non-positive timeouts", func() {
			cfg.Gateway.Timeout = Duration{}
			Expect(cfg.Validate()).To(MatchError(ContainSubstring("gateway.timeout")))
		})

		It("rejects webhook paths without a leading slash", func() {
			cfg.Server.WebhookPath = "webhook"
			Expect(cfg.Validate()).To(HaveOccurred())
		})
	})
})
