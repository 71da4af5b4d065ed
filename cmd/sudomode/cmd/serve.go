package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/gin-gonic/gin"
	"github.com/layer-3/sudomode/adapters/clock"
	"github.com/layer-3/sudomode/adapters/members"
	"github.com/layer-3/sudomode/adapters/password"
	"github.com/layer-3/sudomode/adapters/tokenizer"
	"github.com/layer-3/sudomode/internal/config"
	"github.com/layer-3/sudomode/internal/i18n"
	"github.com/layer-3/sudomode/ports"
	"github.com/layer-3/sudomode/service"
	transport "github.com/layer-3/sudomode/transport/http"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cmd, configFile)
		if err != nil {
			return err
		}

		logger := watermill.NewStdLogger(cfg.Log.Debug, false)
		if !cfg.Log.Debug {
			gin.SetMode(gin.ReleaseMode)
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		router, cleanup, err := buildRouter(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer cleanup()

		server := &http.Server{
			Addr:              cfg.Listen,
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       15 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       60 * time.Second,
		}

		done := make(chan error, 1)
		go func() {
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				done <- fmt.Errorf("server failed: %w", err)
				return
			}
			done <- nil
		}()

		logger.Info("Starting server", watermill.LogFields{
			"listen":           cfg.Listen,
			"lifetime_minutes": cfg.LifetimeMinutes,
		})

		select {
		case <-ctx.Done():
			logger.Info("Shutting down", nil)
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := server.Shutdown(shutdownCtx); err != nil {
				return fmt.Errorf("server shutdown failed: %w", err)
			}
			return nil
		case err := <-done:
			return err
		}
	},
}

// buildRouter wires the services onto the configured backends
func buildRouter(ctx context.Context, cfg config.Config, logger watermill.LoggerAdapter) (*gin.Engine, func(), error) {
	list, err := members.LoadFile(cfg.MembersFile)
	if err != nil {
		return nil, nil, err
	}
	memberStore := members.NewMemoryStore(list...)

	key, err := signingKey(cfg.Session.SigningKeyFile, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load signing key: %w", err)
	}

	tr, err := i18n.New(cfg.Language)
	if err != nil {
		return nil, nil, err
	}

	b, err := openBackends(ctx, cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		if err := b.Close(); err != nil {
			logger.Error("Failed to close backends", err, nil)
		}
	}

	sysClock := clock.NewSystem()
	sudo, err := service.NewSudoModeService(cfg.SudoMode(),
		service.WithSudoClock(sysClock),
		service.WithSudoEventPublisher(b.Events),
		service.WithSudoLogger(logger),
	)
	if err != nil {
		cleanup()
		return nil, nil, err
	}

	auth := service.NewAuthService(memberStore,
		[]ports.Authenticator{password.NewAuthenticator(memberStore)},
		service.WithListeners(sudo),
		service.WithAuthEventPublisher(b.Events),
		service.WithAuthClock(sysClock),
		service.WithAuthLogger(logger),
	)

	router := transport.SetupRouter(transport.Dependencies{
		Sessions:      b.Sessions,
		Tokenizer:     tokenizer.NewJWTTokenizer(key),
		Auth:          auth,
		SudoMode:      sudo,
		Members:       service.NewMemberService(memberStore, sysClock, logger),
		SecurityToken: service.NewSecurityTokenService(cfg.SecurityToken.Enabled),
		Translator:    tr,
		Cookie: transport.CookieConfig{
			Name:   transport.DefaultCookieName,
			TTL:    cfg.Session.TTL,
			Secure: cfg.Session.CookieSecure,
		},
		HelpLink: cfg.HelpLink,
		Logger:   logger,
	})

	return router, cleanup, nil
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("listen", ":9000", "Address to listen on")
	serveCmd.Flags().Int("lifetime-minutes", 45, "How long sudo mode lasts after activation")
	serveCmd.Flags().String("session-backend", "memory", "Session store: memory, redis or bolt")
	serveCmd.Flags().String("events-backend", "none", "Event publisher: none, gochannel or redis")
	serveCmd.Flags().String("members-file", "members.yaml", "YAML file with the members allowed to log in")
	serveCmd.Flags().Bool("log-debug", false, "Enable debug logging")
}
