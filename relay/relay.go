// Package relay receives gateway webhooks and answers them with a
// conversational reply, keeping per-conversation history in a session store.
package relay

import (
	"context"
	"errors"
	"expvar"
	"net"

	"github.com/gofiber/adaptor/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"go.uber.org/zap"

	"github.com/papercomputeco/relay/pkg/llm"
	"github.com/papercomputeco/relay/pkg/session"
)

// SessionReader is what the inspection endpoints need from the store.
type SessionReader interface {
	Ping(ctx context.Context) error
	Load(ctx context.Context, key string) (*session.Session, error)
	Keys(ctx context.Context) ([]string, error)
}

// Server is the webhook listener. It is stateless: every request is handed
// to the Manager and all conversation state lives in the session store.
type Server struct {
	config  Config
	manager *Manager
	store   SessionReader
	logger  *zap.Logger
	server  *fiber.App
}

// SessionListResponse is the body of the session listing endpoint.
type SessionListResponse struct {
	Keys []string `json:"keys"`
}

// SessionResponse is the body of the session inspection endpoint.
type SessionResponse struct {
	Key      string     `json:"key"`
	Turns    []llm.Turn `json:"turns"`
	Degraded bool       `json:"degraded,omitempty"`
}

// NewServer creates a Server. store is used for the health check and the
// session inspection endpoint and is normally the Manager's own store.
func NewServer(config Config, manager *Manager, store SessionReader, logger *zap.Logger) *Server {
	if config.WebhookPath == "" {
		config.WebhookPath = "/webhook"
	}

	app := fiber.New(fiber.Config{
		// Disable startup message for cleaner logs
		DisableStartupMessage: true,
		// Conversation keys carry '@' and may arrive escaped
		UnescapePath: true,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			var fe *fiber.Error
			if errors.As(err, &fe) {
				code = fe.Code
			}
			logger.Error("request failed",
				zap.String("path", c.Path()),
				zap.Int("code", code),
				zap.Error(err),
			)
			return c.Status(code).JSON(StatusResponse{Status: StatusInternalError})
		},
	})

	s := &Server{
		config:  config,
		manager: manager,
		store:   store,
		logger:  logger,
		server:  app,
	}

	app.Use(recover.New())

	s.registerRoutes(app)

	return s
}

func (s *Server) registerRoutes(app *fiber.App) {
	app.Post(s.config.WebhookPath, s.handleWebhook)
	app.Get("/health", s.handleHealth)
	app.Get("/sessions", s.handleListSessions)
	app.Get("/sessions/:key", s.handleGetSession)
	app.Get("/debug/vars", adaptor.HTTPHandler(expvar.Handler()))
}

// Run starts the server on the configured listening address.
func (s *Server) Run() error {
	s.logger.Info("starting relay server",
		zap.String("listen", s.config.ListenAddr),
		zap.String("webhook", s.config.WebhookPath),
	)

	return s.server.Listen(s.config.ListenAddr)
}

// RunWithListener starts the server on an existing listener.
func (s *Server) RunWithListener(ln net.Listener) error {
	s.logger.Info("starting relay server",
		zap.String("listen", ln.Addr().String()),
		zap.String("webhook", s.config.WebhookPath),
	)

	return s.server.Listener(ln)
}

// Shutdown stops accepting requests and waits for in-flight ones.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.ShutdownWithContext(ctx)
}

// handleWebhook runs one gateway event through the Manager.
//
// The pipeline runs on a fresh context: a gateway that hangs up early does
// not abort a half-done exchange. Each stage carries its own timeout.
func (s *Server) handleWebhook(c *fiber.Ctx) error {
	outcome := s.manager.Handle(context.Background(), c.Body())
	return c.Status(outcome.HTTPCode).JSON(outcome.Response())
}

// handleHealth reports whether the session store is reachable.
func (s *Server) handleHealth(c *fiber.Ctx) error {
	if err := s.store.Ping(c.UserContext()); err != nil {
		s.logger.Warn("health check failed", zap.Error(err))
		return c.Status(fiber.StatusServiceUnavailable).JSON(StatusResponse{Status: StatusStoreUnavailable})
	}
	return c.JSON(map[string]string{"status": "ok"})
}

// handleListSessions lists the conversation keys with stored history.
func (s *Server) handleListSessions(c *fiber.Ctx) error {
	keys, err := s.store.Keys(c.UserContext())
	if err != nil {
		s.logger.Warn("could not list sessions", zap.Error(err))
		return c.Status(fiber.StatusServiceUnavailable).JSON(StatusResponse{Status: StatusStoreUnavailable})
	}
	if keys == nil {
		keys = []string{}
	}
	return c.JSON(SessionListResponse{Keys: keys})
}

// handleGetSession returns the stored history for a conversation key.
func (s *Server) handleGetSession(c *fiber.Ctx) error {
	key := c.Params("key")
	if key == "" {
		return c.Status(fiber.StatusBadRequest).JSON(StatusResponse{Status: StatusInternalError, Reason: "key required"})
	}

	sess, err := s.store.Load(c.UserContext(), key)
	if err != nil {
		s.logger.Warn("could not load session", zap.String("key", key), zap.Error(err))
		return c.Status(fiber.StatusServiceUnavailable).JSON(StatusResponse{Status: StatusStoreUnavailable})
	}

	turns := sess.Turns
	if turns == nil {
		turns = []llm.Turn{}
	}

	return c.JSON(SessionResponse{
		Key:      key,
		Turns:    turns,
		Degraded: sess.Degraded,
	})
}
