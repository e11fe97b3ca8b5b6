package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/naveenspark/nftvault/internal/config"
	"github.com/naveenspark/nftvault/internal/identity"
	"github.com/naveenspark/nftvault/internal/logger"
	"github.com/naveenspark/nftvault/internal/login"
	"github.com/naveenspark/nftvault/internal/tui"
	"github.com/naveenspark/nftvault/internal/withdraw"
	"github.com/naveenspark/nftvault/pkg/client"
	"github.com/naveenspark/nftvault/pkg/domain"
)

// version is set at build time via -ldflags "-X main.version=..."
var version = "dev"

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, stdout io.Writer) error {
	if len(args) > 0 {
		switch args[0] {
		case "--version", "version", "-v":
			fmt.Fprintln(stdout, "nftvault "+version)
			return nil
		case "help", "--help", "-h":
			printHelp(stdout)
			return nil
		}
	}

	fs := pflag.NewFlagSet("nftvault", pflag.ContinueOnError)
	fs.SetOutput(io.Discard)
	launchURL := fs.String("launch-url", "", "launch link carrying ?user_id=")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w (see nftvault help)", err)
	}

	// .env is optional; real env vars win.
	_ = godotenv.Load() //nolint:errcheck

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	lc := identity.LaunchContext{
		URL:      *launchURL,
		UserID:   cfg.UserID,
		QueryID:  cfg.QueryID,
		InitData: cfg.InitData,
	}

	rest := fs.Args()
	cmd := ""
	if len(rest) > 0 {
		cmd = rest[0]
	}
	switch cmd {
	case "":
		return runTUI(cfg, lc, "", stdout)
	case "whoami":
		return runWhoami(lc, stdout)
	case "withdraw":
		if len(rest) < 2 {
			return errors.New("usage: nftvault withdraw <item link or id>")
		}
		ref, err := domain.ParseItemRef(rest[1])
		if err != nil {
			return fmt.Errorf("%q: %w", rest[1], err)
		}
		return runTUI(cfg, lc, ref.ID, stdout)
	default:
		return fmt.Errorf("unknown command %q (see nftvault help)", cmd)
	}
}

func runWhoami(lc identity.LaunchContext, stdout io.Writer) error {
	id, err := identity.NewResolver(nil).Resolve(lc)
	if errors.Is(err, identity.ErrNoIdentity) {
		printNoIdentity(stdout)
		return nil
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "user %s (from %s)\n", id.UserID, id.Source)
	return nil
}

func runTUI(cfg *config.Config, lc identity.LaunchContext, itemID string, stdout io.Writer) error {
	log, sink, err := logger.Init(logger.Config{Level: cfg.LogLevel, Dev: cfg.LogDev, File: cfg.LogFile})
	if err != nil {
		return err
	}
	defer sink.Close() //nolint:errcheck
	defer log.Sync()   //nolint:errcheck

	id, err := identity.NewResolver(log).Resolve(lc)
	if errors.Is(err, identity.ErrNoIdentity) {
		printNoIdentity(stdout)
		return nil
	}
	if err != nil {
		return err
	}

	log.Info("starting", zap.String("version", version), zap.String("api_url", cfg.APIURL),
		zap.Stringer("identity_source", id.Source))

	c := client.New(cfg.APIURL, log)
	c.SetTimeout(cfg.RequestTimeout)
	m := login.New(c, login.Options{Timeout: cfg.RequestTimeout, Logger: log})
	z := withdraw.New(m, c, withdraw.Options{
		Timeout:     cfg.RequestTimeout,
		RetryWindow: cfg.RetryWindow,
		Logger:      log,
	})

	app := tui.NewApp(c, z, id.UserID)
	if itemID != "" {
		app = app.WithWithdrawal(itemID)
	}

	p := tea.NewProgram(app, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("tui error: %w", err)
	}
	return nil
}
