package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	app "informatik-booking/internal"
	"informatik-booking/internal/access"
	"informatik-booking/internal/config"
	"informatik-booking/internal/email"
	"informatik-booking/internal/google"
	"informatik-booking/internal/nonce"
	"informatik-booking/internal/routes"
	"informatik-booking/internal/storage"

	"github.com/spf13/cobra"
)

const shutdownTimeout = 10 * time.Second

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start the booking API server",
	Run: func(cmd *cobra.Command, args []string) {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if err := ServerMain(ctx, openStorage(ctx)); err != nil {
			slog.Error("Server failed", "error", err)
			os.Exit(1)
		}
	},
}

// LoadAccessRBAC loads the policy and grants the configured admins their role
// on top of any roles the policy file gives them.
func LoadAccessRBAC(cfg *config.Config) (*access.RBAC, error) {
	rbac := access.GetRBAC()
	if err := rbac.LoadPolicy(cfg.RBAC.PolicyFile); err != nil {
		return nil, fmt.Errorf("load RBAC policy %q: %w", cfg.RBAC.PolicyFile, err)
	}

	admins := cfg.RBAC.Admins
	if len(admins) == 0 {
		admins = []string{config.DEFAULT_ADMIN_EMAIL}
	}
	for _, admin := range admins {
		if err := access.ValidEmail(admin); err != nil {
			slog.Warn("Ignoring invalid admin identity", "admin", admin, "error", err)
			continue
		}
		rbac.AssignRole(admin, access.RoleAdmin)
	}
	return rbac, nil
}

// bookingNotifier returns the mail notifier, or nil when mail is not set up.
func bookingNotifier(cfg *config.Config) routes.BookingNotifier {
	if !cfg.Email.Enabled() {
		slog.Info("Booking notifications disabled")
		return nil
	}
	client, err := email.NewClient(cfg.Email)
	if err != nil {
		slog.Warn("Booking notifications disabled", "error", err)
		return nil
	}
	return client
}

func ServerMain(ctx context.Context, storageProvider storage.Provider) error {
	if config.Cfg == nil {
		panic("Config not initialized.")
	}
	cfg := config.Cfg

	if err := nonce.InitNonceStore(cfg, storageProvider); err != nil {
		return err
	}
	defer nonce.Store.Close()

	rbac, err := LoadAccessRBAC(cfg)
	if err != nil {
		return err
	}

	loc, err := cfg.Location()
	if err != nil {
		return err
	}

	if cfg.Google.ClientID == "" || cfg.Google.ClientSecret == "" {
		slog.Warn("Google OAuth client is not configured; token exchange will fail")
	}

	engine := app.HTTPServer(app.Services{
		Storage:  storageProvider,
		RBAC:     rbac,
		OAuth:    google.NewOAuth(cfg.Google),
		Calendar: google.NewConnector(cfg.Google),
		Notifier: bookingNotifier(cfg),
		Location: loc,
		StateTTL: cfg.Google.StateTTL,
	})

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("Booking server listening", "addr", cfg.ListenAddr, "storage", cfg.Storage.Type)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	slog.Info("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func init() {
	rootCmd.AddCommand(serverCmd)
}
