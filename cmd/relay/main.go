package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/relaykit/relaykit/config"
	"github.com/relaykit/relaykit/internal/core/app"
	"github.com/relaykit/relaykit/internal/core/mode"
	"github.com/relaykit/relaykit/pkg/logger"
	"github.com/relaykit/relaykit/web"
)

var (
	VERSION = ""
)

var cfg *config.Config

func main() {
	root := &cobra.Command{
		Use:   "relay",
		Short: "Request dispatch and offline reconciliation client",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			cfg = config.LoadConfig(VERSION)
			logger.Init(cfg.LogLevel)
		},
	}

	root.AddCommand(
		serveCmd(),
		modeCmd(),
		loginCmd(),
		logoutCmd(),
		profileCmd(),
		syncCmd(),
		queueCmd(),
		versionCmd(),
	)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

// newCore builds the client core, creating the data directory first.
func newCore() (*app.App, error) {
	if _, err := os.Stat(cfg.DataDir); os.IsNotExist(err) {
		log.Info().Str("dir", cfg.DataDir).Msg("Data directory not found. Creating a new one...")
		if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
			return nil, fmt.Errorf("create data directory: %w", err)
		}
	}
	return app.New(cfg)
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the client core with the local ops API",
		RunE: func(cmd *cobra.Command, args []string) error {
			core, err := newCore()
			if err != nil {
				return err
			}
			defer core.Close()

			if core.Modes.Mode() != mode.ModeOffline {
				ctx, cancel := context.WithTimeout(cmd.Context(), cfg.DispatchTimeout)
				if err := core.Stream.Connect(ctx); err != nil {
					log.Warn().Err(err).Msg("Stream connection unavailable, continuing without it")
				}
				cancel()
			}

			var fiberApp interface{ ShutdownWithContext(context.Context) error }
			if cfg.EnableOpsAPI {
				webServer, err := web.NewWebServer(&web.Config{
					Username:  cfg.Username,
					Password:  cfg.Password,
					JwtKey:    cfg.JwtSecret,
					Port:      cfg.OpsPort,
					ApiPrefix: "/api",
				}, core)
				if err != nil {
					return fmt.Errorf("create ops server: %w", err)
				}

				logfile, err := os.OpenFile("server.log", os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
				if err != nil {
					return fmt.Errorf("open log file: %w", err)
				}
				defer logfile.Close()

				srv := webServer.SetupApp(logfile)
				fiberApp = srv
				go func() {
					addr := ":" + cfg.OpsPort
					log.Info().Str("addr", addr).Msg("Starting ops API")
					if err := srv.Listen(addr); err != nil {
						log.Fatal().Err(err).Msg("Ops API error")
					}
				}()
			} else {
				log.Info().Msg("Ops API disabled")
			}

			stop := make(chan os.Signal, 1)
			signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
			<-stop
			log.Info().Msg("Shutting down...")

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if fiberApp != nil {
				if err := fiberApp.ShutdownWithContext(shutdownCtx); err != nil {
					log.Error().Err(err).Msg("Failed to shutdown ops API")
				}
			}
			log.Info().Msg("Stopped gracefully")
			return nil
		},
	}
}

func modeCmd() *cobra.Command {
	var apiOverride, streamOverride string
	cmd := &cobra.Command{
		Use:   "mode [local|online|offline]",
		Short: "Show or switch the operating mode",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			core, err := newCore()
			if err != nil {
				return err
			}
			defer core.Close()

			if len(args) == 0 {
				endpoints := core.Modes.Endpoints()
				fmt.Printf("mode:   %s\napi:    %s\nstream: %s\n",
					core.Modes.Mode(), endpoints.APIBaseURL, endpoints.StreamBaseURL)
				return nil
			}

			target, err := mode.Parse(args[0])
			if err != nil {
				return err
			}
			if err := core.Modes.SwitchMode(target, apiOverride, streamOverride); err != nil {
				return err
			}
			fmt.Printf("switched to %s\n", target)
			return nil
		},
	}
	cmd.Flags().StringVar(&apiOverride, "api", "", "override the API base URL")
	cmd.Flags().StringVar(&streamOverride, "stream", "", "override the stream base URL")
	return cmd
}

func loginCmd() *cobra.Command {
	var username, password string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Authenticate against the active endpoints",
		RunE: func(cmd *cobra.Command, args []string) error {
			core, err := newCore()
			if err != nil {
				return err
			}
			defer core.Close()

			profile, err := core.Sessions.Login(cmd.Context(), username, password)
			if err != nil {
				return err
			}
			fmt.Printf("logged in as %s\n", profile.Nickname())
			return nil
		},
	}
	cmd.Flags().StringVarP(&username, "username", "u", "", "account username")
	cmd.Flags().StringVarP(&password, "password", "p", "", "account password")
	cmd.MarkFlagRequired("username")
	cmd.MarkFlagRequired("password")
	return cmd
}

func logoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Clear the stored session",
		RunE: func(cmd *cobra.Command, args []string) error {
			core, err := newCore()
			if err != nil {
				return err
			}
			defer core.Close()

			core.Sessions.Logout()
			fmt.Println("logged out")
			return nil
		},
	}
}

func profileCmd() *cobra.Command {
	var refresh bool
	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Show the user profile",
		RunE: func(cmd *cobra.Command, args []string) error {
			core, err := newCore()
			if err != nil {
				return err
			}
			defer core.Close()

			profile := core.Sessions.Profile()
			if refresh {
				profile, err = core.Sessions.FetchProfile(cmd.Context())
				if err != nil {
					return err
				}
			}
			out, err := json.MarshalIndent(profile, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(out))
			return nil
		},
	}
	cmd.Flags().BoolVar(&refresh, "refresh", false, "fetch the profile from the server")
	return cmd
}

func syncCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Replay the offline queue against the active endpoints",
		RunE: func(cmd *cobra.Command, args []string) error {
			core, err := newCore()
			if err != nil {
				return err
			}
			defer core.Close()

			report, err := core.Syncer.Sync(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Printf("synced %d, failed %d\n", report.Synced, report.Failed)
			return nil
		},
	}
}

func queueCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "queue",
		Short: "List the offline queue in capture order",
		RunE: func(cmd *cobra.Command, args []string) error {
			core, err := newCore()
			if err != nil {
				return err
			}
			defer core.Close()

			entries, err := core.Outbox.Drain()
			if err != nil {
				return err
			}
			if len(entries) == 0 {
				fmt.Println("queue is empty")
				return nil
			}
			for _, entry := range entries {
				fmt.Printf("%s  %-6s %s  (queued %s)\n",
					entry.ID, entry.Method, entry.URL,
					entry.EnqueuedAt.Format(time.RFC3339))
			}
			return nil
		},
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the build version",
		Run: func(cmd *cobra.Command, args []string) {
			if VERSION == "" {
				fmt.Println("relay (dev build)")
				return
			}
			fmt.Println("relay " + VERSION)
		},
	}
}
