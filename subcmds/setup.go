// Copyright (c) 2025 BVK Chaitanya

package subcmds

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/bvk/alphavol/cli"
	"github.com/bvk/alphavol/creds"
	"github.com/bvk/alphavol/exchange"

	"golang.org/x/term"
)

// headerFlag accumulates repeated "-header name=value" flags into a map.
type headerFlag map[string]string

func (h headerFlag) String() string {
	var parts []string
	for k, v := range h {
		parts = append(parts, k+"="+v)
	}
	return strings.Join(parts, ",")
}

func (h headerFlag) Set(s string) error {
	name, value, ok := strings.Cut(s, "=")
	if !ok {
		return fmt.Errorf("expected name=value, got %q", s)
	}
	h[name] = value
	return nil
}

// Setup configures one user's exchange credentials in the secrets file
// used by "run". The exchange authenticates per end-user, so setup is run
// once per user id.
type Setup struct {
	dataDir     string
	secretsPath string

	userID int64
	cookie string
	headers headerFlag
}

func (c *Setup) Synopsis() string {
	return "Configures one user's exchange session credentials"
}

func (c *Setup) Command() (*flag.FlagSet, cli.CmdFunc) {
	c.headers = make(headerFlag)
	fset := flag.NewFlagSet("setup", flag.ContinueOnError)
	fset.StringVar(&c.dataDir, "data-dir", "", "path to the data directory")
	fset.StringVar(&c.secretsPath, "secrets-file", "", "path to credentials and notifier secrets file")
	fset.Int64Var(&c.userID, "user-id", 0, "user id to configure (required)")
	fset.Var(c.headers, "header", "name=value auth header, may be repeated")
	fset.StringVar(&c.cookie, "cookie", "", "session cookie string; prompted securely if omitted")
	return fset, cli.CmdFunc(c.run)
}

func (c *Setup) CommandHelp() string {
	return `

Command "setup" stores one user's exchange session credentials (auth
headers and/or a cookie string) into the secrets file "run" loads on
startup. When AuthFailed is reported for a user, re-run this command with
that user's refreshed session before restarting their strategy.

  $ alphavol setup -user-id=42 -header=X-Session-Token=abcd1234

`
}

func (c *Setup) run(ctx context.Context, args []string) error {
	if c.userID == 0 {
		return fmt.Errorf("-user-id is required")
	}

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
	if len(c.secretsPath) == 0 {
		c.secretsPath = filepath.Join(dataDir, "secrets.json")
	}

	sf, err := creds.SecretsFromFile(c.secretsPath)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("could not load secrets file %q: %w", c.secretsPath, err)
		}
		sf = &creds.SecretsFile{Users: make(map[creds.UserID]exchange.Credentials)}
	}

	cookie := c.cookie
	if len(cookie) == 0 && len(c.headers) == 0 {
		fmt.Print("Session cookie (input hidden): ")
		b, err := term.ReadPassword(int(os.Stdin.Fd()))
		fmt.Println()
		if err != nil {
			return fmt.Errorf("could not read cookie: %w", err)
		}
		cookie = strings.TrimSpace(string(b))
	}
	if len(cookie) == 0 && len(c.headers) == 0 {
		return fmt.Errorf("at least one of -header or a session cookie is required")
	}

	sf.Users[creds.UserID(c.userID)] = exchange.Credentials{
		Headers: map[string]string(c.headers),
		Cookies: cookie,
	}

	if err := sf.Save(c.secretsPath); err != nil {
		return err
	}
	fmt.Printf("stored credentials for user %d in %s\n", c.userID, c.secretsPath)
	return nil
}
