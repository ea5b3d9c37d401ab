// Copyright (c) 2025 BVK Chaitanya

// Package setup configures optional notifier secrets (Telegram, Pushover)
// using the visvasity/cli command surface; cmd/alphavol adapts these into
// the root cli.Command surface.
package setup

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/bvk/alphavol/creds"
	"github.com/bvk/alphavol/ctxutil"
	"github.com/bvk/alphavol/exchange"
	"github.com/bvk/alphavol/notify"

	"github.com/visvasity/cli"
)

type Telegram struct {
	dataDir     string
	secretsPath string
	skipTesting bool

	ownerID  string
	otherIDs string
	botToken string
}

func (c *Telegram) Purpose() string {
	return "Configures Telegram notifications"
}

func (c *Telegram) Command() (string, *flag.FlagSet, cli.CmdFunc) {
	fset := flag.NewFlagSet("telegram", flag.ContinueOnError)
	fset.StringVar(&c.dataDir, "data-dir", "", "path to the data directory")
	fset.StringVar(&c.secretsPath, "secrets-file", "", "path to credentials and notifier secrets file")
	fset.StringVar(&c.ownerID, "owner-id", "", "owner's telegram username")
	fset.StringVar(&c.otherIDs, "other-ids", "", "comma separated additional allow-listed telegram usernames")
	fset.StringVar(&c.botToken, "bot-token", "", "telegram bot authentication token")
	fset.BoolVar(&c.skipTesting, "skip-testing", false, "don't send a test message")
	return "telegram", fset, cli.CmdFunc(c.run)
}

func (c *Telegram) Description() string {
	return `

Command "setup telegram" configures notifications delivered through a
Telegram bot. Optional; only required to receive operator notifications on
AuthFailed and other terminal causes.

  $ alphavol setup telegram -owner-id=myusername -bot-token=111:AAbbcc...

`
}

func (c *Telegram) run(ctx context.Context, args []string) error {
	path, err := c.resolveSecretsPath()
	if err != nil {
		return err
	}

	sf, err := creds.SecretsFromFile(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return err
		}
		sf = &creds.SecretsFile{Users: make(map[creds.UserID]exchange.Credentials)}
	}

	var otherIDs []string
	if len(c.otherIDs) > 0 {
		otherIDs = splitComma(c.otherIDs)
	}
	sf.Telegram = &notify.TelegramSecrets{
		BotToken: c.botToken,
		OwnerID:  c.ownerID,
		OtherIDs: otherIDs,
	}
	if err := sf.Telegram.Check(); err != nil {
		return err
	}

	if !c.skipTesting {
		t, err := notify.NewTelegram(ctx, *sf.Telegram)
		if err != nil {
			return err
		}
		ctxutil.Sleep(ctx, time.Second)
		t.SendMessage(ctx, time.Now(), "Test message from alphavol telegram setup; please ignore.")
		t.Close()
	}

	return sf.Save(path)
}

func (c *Telegram) resolveSecretsPath() (string, error) {
	if len(c.secretsPath) > 0 {
		return c.secretsPath, nil
	}
	dataDir := c.dataDir
	if len(dataDir) == 0 {
		dataDir = filepath.Join(os.Getenv("HOME"), ".alphavol")
	}
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return "", fmt.Errorf("could not create data directory %q: %w", dataDir, err)
	}
	return filepath.Join(dataDir, "secrets.json"), nil
}

func splitComma(s string) []string {
	var out []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == ',' {
			out = append(out, s[start:i])
			start = i + 1
		}
	}
	out = append(out, s[start:])
	return out
}
