// Copyright (c) 2025 BVK Chaitanya

package subcmds

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/bvk/alphavol/alpha"
	"github.com/bvk/alphavol/cli"
	"github.com/bvk/alphavol/config"
	"github.com/bvk/alphavol/creds"
	"github.com/bvk/alphavol/daemonize"
	"github.com/bvk/alphavol/exchange"
	"github.com/bvk/alphavol/logdir"
	"github.com/bvk/alphavol/notify"
	"github.com/bvk/alphavol/orchestrator"
	"github.com/bvk/alphavol/server"
	"github.com/bvk/alphavol/sglog"
	"github.com/bvk/alphavol/status"

	"github.com/nightlyone/lockfile"
)

type Run struct {
	ServerFlags

	background bool

	configPath  string
	secretsPath string
	dataDir     string
}

func (c *Run) Command() (*flag.FlagSet, cli.CmdFunc) {
	fset := flag.NewFlagSet("run", flag.ContinueOnError)
	c.ServerFlags.SetFlags(fset)
	fset.BoolVar(&c.background, "background", false, "runs the daemon in background")
	fset.StringVar(&c.configPath, "config-file", "", "path to the strategy configuration file")
	fset.StringVar(&c.secretsPath, "secrets-file", "", "path to credentials and notifier secrets file")
	fset.StringVar(&c.dataDir, "data-dir", "", "path to the data directory (logs, default config/secrets locations)")
	return fset, cli.CmdFunc(c.run)
}

func (c *Run) Synopsis() string {
	return "Runs the volume-building orchestrator in foreground or background"
}

func (c *Run) CommandHelp() string {
	return `

Command "run" loads the strategy configuration and user secrets files, then
starts every enabled strategy concurrently. The control plane listens on
-listen-ip:-listen-port for status queries and start/stop requests issued by
the "status" and "strategy" commands.

`
}

func (c *Run) run(ctx context.Context, args []string) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if len(c.dataDir) == 0 {
		c.dataDir = filepath.Join(os.Getenv("HOME"), ".alphavol")
	}
	if err := os.MkdirAll(c.dataDir, 0700); err != nil {
		return fmt.Errorf("could not create data directory %q: %w", c.dataDir, err)
	}
	dataDir, err := filepath.Abs(c.dataDir)
	if err != nil {
		return fmt.Errorf("could not determine data-dir %q absolute path: %w", c.dataDir, err)
	}

	if len(c.configPath) == 0 {
		c.configPath = filepath.Join(dataDir, "strategies.yaml")
	}
	if len(c.secretsPath) == 0 {
		c.secretsPath = filepath.Join(dataDir, "secrets.json")
	}

	if c.background {
		if err := daemonize.Daemonize(ctx, func(ctx context.Context) error {
			client := http.Client{Timeout: time.Second}
			resp, err := client.Get(fmt.Sprintf("http://%s/pid", c.ServerFlags.Addr()))
			if err != nil {
				return err
			}
			defer resp.Body.Close()
			if resp.StatusCode != http.StatusOK {
				return fmt.Errorf("http status: %d", resp.StatusCode)
			}
			return nil
		}); err != nil {
			return err
		}
	}

	logsDir := filepath.Join(dataDir, "logs")
	if err := os.MkdirAll(logsDir, 0700); err != nil {
		return fmt.Errorf("could not create logs directory %q: %w", logsDir, err)
	}

	backend := sglog.NewBackend(&sglog.Options{LogDirs: []string{logsDir}})
	defer backend.Close()
	slog.SetDefault(slog.New(backend.Handler()))

	// The stdlib log package (cli errors, http server internals) goes to its
	// own size-limited file so it cannot grow unbounded alongside the sglog
	// severity files.
	stdlog, err := logdir.New(logsDir, "alphavol.stdlog")
	if err != nil {
		return fmt.Errorf("could not create stdlib log backend: %w", err)
	}
	defer stdlog.Close()
	log.SetOutput(stdlog)
	log.SetFlags(log.Flags() | log.Lmicroseconds)

	lockPath := filepath.Join(dataDir, "alphavol.lock")
	flock, err := lockfile.New(lockPath)
	if err != nil {
		return fmt.Errorf("could not create lock file %q: %w", lockPath, err)
	}
	if err := flock.TryLock(); err != nil {
		return fmt.Errorf("could not get lock on file %q: %w", lockPath, err)
	}
	defer flock.Unlock()

	configs, err := config.Load(c.configPath)
	if err != nil {
		return fmt.Errorf("could not load strategy configuration: %w", err)
	}

	sf, err := creds.SecretsFromFile(c.secretsPath)
	if err != nil {
		return fmt.Errorf("could not load secrets file %q (run \"setup\" first): %w", c.secretsPath, err)
	}
	credStore, err := creds.NewFileStore(c.secretsPath)
	if err != nil {
		return fmt.Errorf("could not open credential store: %w", err)
	}

	var messengers notify.Multi
	if sf.Pushover != nil {
		pushover, err := notify.NewPushover(sf.Pushover)
		if err != nil {
			return fmt.Errorf("could not initialize pushover notifier: %w", err)
		}
		messengers = append(messengers, pushover)
	}
	var telegram *notify.Telegram
	if sf.Telegram != nil {
		telegram, err = notify.NewTelegram(ctx, *sf.Telegram)
		if err != nil {
			return fmt.Errorf("could not initialize telegram notifier: %w", err)
		}
		defer telegram.Close()
		messengers = append(messengers, telegram)
	}

	if v := os.Getenv("ALPHAVOL_REST_HOSTNAME"); v != "" {
		alpha.RestHostname = v
	}
	if v := os.Getenv("ALPHAVOL_WEBSOCKET_HOSTNAME"); v != "" {
		alpha.WebsocketHostname = v
	}

	client, err := alpha.New(nil)
	if err != nil {
		return fmt.Errorf("could not create exchange client: %w", err)
	}

	newStream := func() exchange.OrderEventStream {
		return alpha.NewStream(nil)
	}

	statusStore := status.NewStore()
	defer statusStore.Close()

	// Follow every status transition into the structured log, so operators
	// can reconstruct per-user history without polling the status api.
	go func() {
		receiver, err := statusStore.Subscribe(0, true)
		if err != nil {
			return
		}
		defer receiver.Close()

		stopf := context.AfterFunc(ctx, receiver.Close)
		defer stopf()

		for ctx.Err() == nil {
			r, err := receiver.Receive()
			if err != nil {
				return
			}
			slog.InfoContext(ctx, "user status changed", "strategy", r.StrategyID, "user", r.UserID, "state", r.State.String(), "volume", r.LastVolume, "message", r.Message)
		}
	}()

	if telegram != nil {
		err := telegram.AddCommand(ctx, "status", "Prints per-user run status", func(ctx context.Context, args []string) (string, error) {
			var sb strings.Builder
			for _, r := range statusStore.List() {
				fmt.Fprintf(&sb, "%s/%d: %s volume=%s %s\n", r.StrategyID, r.UserID, r.State, r.LastVolume.StringFixed(3), r.Message)
			}
			if sb.Len() == 0 {
				return "no strategies have run yet", nil
			}
			return sb.String(), nil
		})
		if err != nil {
			return fmt.Errorf("could not register telegram status command: %w", err)
		}
	}

	manager := orchestrator.NewManager(client, credStore, newStream, messengers, statusStore)
	manager.LoadConfigs(configs)

	srv, err := server.New(manager, statusStore)
	if err != nil {
		return fmt.Errorf("could not create control plane server: %w", err)
	}
	defer srv.Close()

	if err := srv.Start(ctx, c.ServerFlags.Addr()); err != nil {
		return fmt.Errorf("could not start control plane server: %w", err)
	}

	manager.StartAll(ctx)
	defer manager.StopAll()

	slog.InfoContext(ctx, "alphavol orchestrator started", "addr", c.ServerFlags.Addr(), "strategies", len(configs))
	<-ctx.Done()
	slog.InfoContext(ctx, "alphavol orchestrator is shutting down")
	return nil
}
