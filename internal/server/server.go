// Package server exposes relay runs over HTTP so a scheduler (cron, Cloud
// Scheduler, a webhook) can trigger them.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/joshsymonds/mailrelay/internal/format"
	"github.com/joshsymonds/mailrelay/internal/relay"
)

type Runner interface {
	Run(ctx context.Context, opts relay.Options) (relay.Result, error)
}

type Server struct {
	runner        Runner
	logger        *slog.Logger
	defaultFormat string
	e             *echo.Echo
}

type errorResponse struct {
	Error  string        `json:"error"`
	Kind   string        `json:"kind"`
	Result *relay.Result `json:"result,omitempty"`
}

func New(runner Runner, defaultFormat string, logger *slog.Logger) *Server {
	s := &Server{runner: runner, logger: logger, defaultFormat: defaultFormat, e: echo.New()}
	s.e.HideBanner = true
	s.e.HidePort = true
	s.e.POST("/hook", s.hook)
	s.e.GET("/healthz", func(c echo.Context) error {
		return c.String(http.StatusOK, "OK")
	})
	return s
}

func (s *Server) Handler() http.Handler { return s.e }

// ListenAndServe serves until ctx is cancelled, then drains in-flight runs.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	errCh := make(chan error, 1)
	go func() { errCh <- s.e.Start(addr) }()
	s.logger.Info("listening", slog.String("addr", addr))

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	return s.e.Shutdown(shutdownCtx)
}

func (s *Server) hook(c echo.Context) error {
	name := c.QueryParam("format")
	if name == "" {
		name = s.defaultFormat
	}
	f, err := format.Lookup(name)
	if err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error(), Kind: "request"})
	}

	// A client hanging up must not abort a run halfway through delivery.
	ctx := context.WithoutCancel(c.Request().Context())
	res, err := s.runner.Run(ctx, relay.Options{Formatter: f})
	if err != nil {
		if errors.Is(err, relay.ErrRunInProgress) {
			return c.JSON(http.StatusConflict, errorResponse{Error: err.Error(), Kind: "busy"})
		}
		kind := errorKind(err)
		s.logger.Error("run failed", slog.String("run_id", res.RunID), slog.String("kind", kind), slog.Any("error", err))
		return c.JSON(http.StatusInternalServerError, errorResponse{Error: err.Error(), Kind: kind, Result: &res})
	}
	return c.JSON(http.StatusOK, res)
}

func errorKind(err error) string {
	var (
		derr *relay.DeliveryError
		perr *relay.PersistenceError
	)
	switch {
	case errors.Is(err, relay.ErrConfiguration):
		return "configuration"
	case errors.As(err, &derr):
		return "delivery"
	case errors.As(err, &perr):
		return "persistence"
	default:
		return "mailbox"
	}
}
