package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"assistant/internal/config"
	"assistant/internal/transport/web"
	"assistant/internal/tui"
)

const (
	shutdownTimeout = 4 * time.Second
	janitorInterval = time.Minute
)

// Serve runs the HTTP API until SIGINT, SIGTERM or SIGHUP.
func Serve(cfg *config.AppConfig, l *zap.Logger) error {
	ctx, cancel := signal.NotifyContext(
		context.Background(),
		syscall.SIGINT,
		syscall.SIGTERM,
		syscall.SIGHUP,
	)
	defer cancel()

	c, err := Build(ctx, cfg, l)
	if err != nil {
		return fmt.Errorf("build components: %w", err)
	}
	defer func() {
		if err := c.Close(); err != nil {
			l.Warn("Failed to release resources", zap.Error(err))
		}
	}()

	srv := web.New(ctx, webConf(cfg, l), c.Assistant)
	go c.Assistant.RunJanitor(ctx, janitorInterval)

	go func() {
		<-ctx.Done()

		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := srv.Srv().Shutdown(ctx); err != nil {
			l.Error("Failed to stop http server", zap.Error(err))
		}
	}()

	l.Info("Application is running", zap.String("addr", cfg.Server.Addr))

	if err := srv.Srv().ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		l.Error("Failed to run http server", zap.Error(err))
		cancel()
		return err
	}

	l.Info("Application stopped gracefully")
	return nil
}

// Chat runs the terminal UI against a single fresh session.
func Chat(cfg *config.AppConfig, l *zap.Logger) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGHUP)
	defer cancel()

	c, err := Build(ctx, cfg, l)
	if err != nil {
		return fmt.Errorf("build components: %w", err)
	}
	defer c.Close()

	sessionID := uuid.NewString()
	defer func() {
		if err := c.Assistant.EndSession(context.Background(), sessionID); err != nil {
			l.Warn("Failed to end session", zap.String("session_id", sessionID), zap.Error(err))
		}
	}()

	l.Info("Chat session started", zap.String("session_id", sessionID))
	_, err = tea.NewProgram(tui.New(c.Assistant, sessionID), tea.WithAltScreen(), tea.WithContext(ctx)).Run()
	if errors.Is(err, tea.ErrProgramKilled) {
		return nil
	}
	return err
}

func webConf(cfg *config.AppConfig, l *zap.Logger) web.Conf {
	return web.Conf{
		L:              l,
		Addr:           cfg.Server.Addr,
		Mode:           cfg.Server.Mode,
		ReadTimeout:    time.Duration(cfg.Server.ReadTimeoutSecs) * time.Second,
		WriteTimeout:   time.Duration(cfg.Server.WriteTimeoutSecs) * time.Second,
		MaxUploadBytes: int64(cfg.Server.MaxUploadMB) << 20,
		RateLimit:      rate.Limit(cfg.Server.RateLimitRPS),
		RateBurst:      cfg.Server.RateLimitBurst,
		AllowOrigins:   cfg.Server.CORSOrigins,
	}
}
