// Package server serves the animations over HTTP and streams each session's
// frames over a websocket.
package server

import (
	_ "embed"
	"errors"
	"fmt"
	"log"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"golang.org/x/sync/semaphore"

	"github.com/openfluke/mlviz/anim"
	"github.com/openfluke/mlviz/config"
	"github.com/openfluke/mlviz/lab"
)

//go:embed static/index.html
var indexHTML []byte

// Server owns the fiber app and the session limit.
type Server struct {
	cfg       config.Config
	app       *fiber.App
	sessions  *semaphore.Weighted
	clock     anim.Clock
	accessLog bool
}

// Option customises a Server.
type Option func(*Server)

// WithClock drives every session from clock instead of wall time.
func WithClock(clock anim.Clock) Option {
	return func(s *Server) { s.clock = clock }
}

// WithoutAccessLog drops the request logger middleware.
func WithoutAccessLog() Option {
	return func(s *Server) { s.accessLog = false }
}

func newApp(accessLog bool) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:               "mlviz",
		DisableStartupMessage: true,
	})
	if accessLog {
		app.Use(logger.New())
	}
	app.Use(cors.New())
	return app
}

// New builds the server and registers its routes.
func New(cfg config.Config, opts ...Option) *Server {
	s := &Server{
		cfg:       cfg,
		sessions:  semaphore.NewWeighted(int64(cfg.Server.MaxSessions)),
		accessLog: true,
	}
	for _, o := range opts {
		o(s)
	}
	s.app = newApp(s.accessLog)
	s.routes()
	return s
}

// App exposes the fiber app, mainly for app.Test.
func (s *Server) App() *fiber.App { return s.app }

// Listen serves on the configured address until Shutdown.
func (s *Server) Listen() error {
	fmt.Printf("\n🧠 mlviz running at http://localhost%s\n", s.cfg.Server.Addr)
	return s.app.Listen(s.cfg.Server.Addr)
}

func (s *Server) Shutdown() error { return s.app.Shutdown() }

func (s *Server) routes() {
	s.app.Get("/", s.handleIndex)
	s.app.Get("/api/demos", s.handleList)
	s.app.Get("/api/demos/:name", s.handleSnapshot)
	s.app.Get("/api/demos/:name/svg", s.handleSVG)

	s.app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			c.Locals("allowed", true)
			return c.Next()
		}
		return c.SendStatus(fiber.StatusUpgradeRequired)
	})
	s.app.Get("/ws/:name", websocket.New(s.handleSession))
}

func (s *Server) handleIndex(c *fiber.Ctx) error {
	c.Set(fiber.HeaderContentType, fiber.MIMETextHTMLCharsetUTF8)
	return c.Send(indexHTML)
}

func (s *Server) handleList(c *fiber.Ctx) error {
	return c.JSON(lab.Demos())
}

// fresh builds a throwaway instance for the read-only endpoints.
func (s *Server) fresh(c *fiber.Ctx) (lab.Demo, error) {
	d, err := lab.New(c.Params("name"), s.cfg, s.clock)
	if errors.Is(err, lab.ErrUnknownDemo) {
		return nil, fiber.NewError(fiber.StatusNotFound, err.Error())
	}
	if err != nil {
		return nil, fiber.NewError(fiber.StatusInternalServerError, err.Error())
	}
	return d, nil
}

func (s *Server) handleSnapshot(c *fiber.Ctx) error {
	d, err := s.fresh(c)
	if err != nil {
		return err
	}
	defer d.Close()
	return c.JSON(fiber.Map{
		"name":   d.Name(),
		"title":  d.Title(),
		"params": d.Params(),
		"state":  d.Snapshot(),
	})
}

func (s *Server) handleSVG(c *fiber.Ctx) error {
	d, err := s.fresh(c)
	if err != nil {
		return err
	}
	defer d.Close()
	c.Set(fiber.HeaderContentType, "image/svg+xml")
	return c.SendString(d.SVG())
}

func (s *Server) handleSession(c *websocket.Conn) {
	name := c.Params("name")
	if !s.sessions.TryAcquire(1) {
		log.Printf("server: session limit reached, rejecting %s", name)
		_ = c.WriteJSON(errorMessage{Type: "error", Error: "too many sessions"})
		return
	}
	defer s.sessions.Release(1)

	d, err := lab.New(name, s.cfg, s.clock)
	if err != nil {
		_ = c.WriteJSON(errorMessage{Type: "error", Error: err.Error()})
		return
	}
	defer d.Close()

	sess := newSession(d)
	done := make(chan struct{})
	go sess.writeLoop(c, done)
	defer close(done)

	sess.send(sess.state("init"))
	for {
		var msg clientMessage
		if err := c.ReadJSON(&msg); err != nil {
			return
		}
		if out := sess.handle(msg); out != nil {
			sess.send(out)
		}
	}
}
