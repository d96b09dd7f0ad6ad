package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/khurramrashidd/BharatVotes/internal/alert"
	"github.com/khurramrashidd/BharatVotes/internal/api"
	"github.com/khurramrashidd/BharatVotes/internal/auth"
	"github.com/khurramrashidd/BharatVotes/internal/ballot"
	"github.com/khurramrashidd/BharatVotes/internal/booth"
	"github.com/khurramrashidd/BharatVotes/internal/config"
	"github.com/khurramrashidd/BharatVotes/internal/ledger"
	"github.com/khurramrashidd/BharatVotes/internal/roster"
	"github.com/khurramrashidd/BharatVotes/internal/storage"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "bharatvotes",
	Short: "BharatVotes - tamper-evident electronic voting backend",
	Long:  `Booth-ballot activation and a hash-linked, independently verifiable vote ledger`,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "bharatvotes.yaml", "config file path")
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(verifyCmd)
	rootCmd.AddCommand(officerCmd)
	rootCmd.AddCommand(candidateCmd)
}

func openStore(cfg *config.Config) (storage.Store, error) {
	switch cfg.Storage.Engine {
	case "postgres":
		return storage.NewPostgres(context.Background(), cfg.Database.ConnString())
	default:
		dbPath := filepath.Join(cfg.Node.DataDir, "bharatvotes.db")
		return storage.NewBolt(dbPath)
	}
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("bharatvotes v0.1.0")
		fmt.Println("Tamper-Evident Vote Ledger")
	},
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize the data directory and store",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		if cfg.Storage.Engine == "bolt" {
			if err := os.MkdirAll(cfg.Node.DataDir, 0755); err != nil {
				return fmt.Errorf("failed to create data directory: %w", err)
			}
		}

		store, err := openStore(cfg)
		if err != nil {
			return fmt.Errorf("failed to initialize storage: %w", err)
		}
		defer store.Close()

		fmt.Printf("Initialized %s store\n", cfg.Storage.Engine)
		fmt.Printf("Data directory: %s\n", cfg.Node.DataDir)
		fmt.Printf("Configured booths: %v\n", cfg.Booths)

		return nil
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the voting backend",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		store, err := openStore(cfg)
		if err != nil {
			return fmt.Errorf("failed to open storage: %w", err)
		}
		defer store.Close()

		voteLedger := ledger.New(store)
		ballots := ballot.NewActivation(store)
		casting := booth.NewCastingService(ballots, voteLedger)
		registry := roster.NewRegistry(store)
		officers := auth.NewOfficers(store)

		// Refuse to serve on top of a ledger that already fails
		// verification.
		report, err := voteLedger.VerifyIntegrity()
		if err != nil {
			return fmt.Errorf("startup verification failed: %w", err)
		}
		if !report.Valid {
			return fmt.Errorf("refusing to start: %w", report.Err())
		}
		fmt.Printf("Ledger verified: %d blocks, tail %s\n", report.ChainLength, report.LastBlockHash[:16])

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		alerts := alert.NewManager(cfg.Alerts.Enabled, cfg.Alerts.SlackWebhook)

		interval, err := time.ParseDuration(cfg.Node.VerifyInterval)
		if err != nil {
			return fmt.Errorf("invalid verify_interval: %w", err)
		}
		monitor := ledger.NewMonitor(voteLedger, interval, alerts)
		monitor.Start(ctx)
		defer monitor.Stop()

		server := api.NewServer(voteLedger, ballots, casting, registry, officers)
		httpServer := &http.Server{
			Addr:    cfg.Server.ListenAddr,
			Handler: server.Routes(),
		}

		errCh := make(chan error, 1)
		go func() {
			fmt.Printf("Listening on %s\n", cfg.Server.ListenAddr)
			if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
		}()

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

		select {
		case err := <-errCh:
			return fmt.Errorf("server failed: %w", err)
		case <-sigCh:
		}

		fmt.Println("\nShutting down...")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("failed to stop server: %w", err)
		}

		fmt.Println("Stopped")
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Display ledger and booth status",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		store, err := openStore(cfg)
		if err != nil {
			return fmt.Errorf("failed to open storage: %w", err)
		}
		defer store.Close()

		voteLedger := ledger.New(store)
		ballots := ballot.NewActivation(store)

		length, err := voteLedger.ChainLength()
		if err != nil {
			return fmt.Errorf("failed to read chain length: %w", err)
		}
		tail, err := voteLedger.TailHash()
		if err != nil {
			return fmt.Errorf("failed to read tail hash: %w", err)
		}

		fmt.Printf("Storage engine: %s\n", cfg.Storage.Engine)
		if b, ok := store.(*storage.Bolt); ok {
			version, err := b.SchemaVersion()
			if err != nil {
				return fmt.Errorf("failed to read schema version: %w", err)
			}
			fmt.Printf("Schema version: %s\n", version)
		}
		fmt.Printf("Chain length: %d\n", length)
		fmt.Printf("Tail hash: %s\n", tail)
		fmt.Printf("\nBooths:\n")

		for _, boothID := range cfg.Booths {
			session, err := ballots.CurrentSession(boothID)
			if err != nil {
				return fmt.Errorf("failed to read booth %s: %w", boothID, err)
			}
			if session == nil {
				fmt.Printf("  - %s: idle\n", boothID)
			} else {
				fmt.Printf("  - %s: active for voter %s (%s)\n",
					boothID, session.VoterID, session.ActivationNote)
			}
		}

		return nil
	},
}

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Verify the ledger hash chain",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		store, err := openStore(cfg)
		if err != nil {
			return fmt.Errorf("failed to open storage: %w", err)
		}
		defer store.Close()

		report, err := ledger.New(store).VerifyIntegrity()
		if err != nil {
			return fmt.Errorf("verification failed: %w", err)
		}

		fmt.Printf("Chain length: %d\n", report.ChainLength)
		fmt.Printf("Last block hash: %s\n", report.LastBlockHash)
		fmt.Printf("Checkpoint: %s\n", report.Checkpoint)

		if !report.Valid {
			fmt.Printf("❌ FAILED: %s\n", report.Reason)
			return report.Err()
		}

		fmt.Printf("✅ OK: %s\n", report.Reason)
		return nil
	},
}

var officerCmd = &cobra.Command{
	Use:   "officer [username] [booth]",
	Short: "Register a booth officer",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		password := os.Getenv("BHARATVOTES_OFFICER_PASSWORD")
		if password == "" {
			return fmt.Errorf("set BHARATVOTES_OFFICER_PASSWORD to register an officer")
		}

		store, err := openStore(cfg)
		if err != nil {
			return fmt.Errorf("failed to open storage: %w", err)
		}
		defer store.Close()

		if err := auth.NewOfficers(store).Register(args[0], password, args[1]); err != nil {
			return err
		}

		fmt.Printf("Registered officer %s for booth %s\n", args[0], args[1])
		return nil
	},
}

var candidateCmd = &cobra.Command{
	Use:   "candidate [id] [name] [party] [constituency]",
	Short: "Add a candidate to the roster",
	Args:  cobra.ExactArgs(4),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		store, err := openStore(cfg)
		if err != nil {
			return fmt.Errorf("failed to open storage: %w", err)
		}
		defer store.Close()

		candidate := &roster.Candidate{
			CandidateID:  args[0],
			Name:         args[1],
			Party:        args[2],
			Constituency: args[3],
		}
		if err := roster.NewRegistry(store).Add(candidate); err != nil {
			return err
		}

		fmt.Printf("Added candidate %s (%s, %s)\n", args[0], args[1], args[2])
		return nil
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
