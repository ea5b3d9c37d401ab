// Copyright (c) 2025 BVK Chaitanya

package setup

import (
	"context"
	"errors"
	"flag"
	"os"
	"time"

	"github.com/bvk/alphavol/creds"
	"github.com/bvk/alphavol/exchange"
	"github.com/bvk/alphavol/notify"

	"github.com/visvasity/cli"
)

type Pushover struct {
	dataDir     string
	secretsPath string
	skipTesting bool

	applicationKey string
	userKey        string
}

func (c *Pushover) Purpose() string {
	return "Configures Pushover notifications"
}

func (c *Pushover) Command() (string, *flag.FlagSet, cli.CmdFunc) {
	fset := flag.NewFlagSet("pushover", flag.ContinueOnError)
	fset.StringVar(&c.dataDir, "data-dir", "", "path to the data directory")
	fset.StringVar(&c.secretsPath, "secrets-file", "", "path to credentials and notifier secrets file")
	fset.StringVar(&c.applicationKey, "application-key", "", "pushover application key")
	fset.StringVar(&c.userKey, "user-key", "", "pushover user key")
	fset.BoolVar(&c.skipTesting, "skip-testing", false, "don't send a test message")
	return "pushover", fset, cli.CmdFunc(c.run)
}

func (c *Pushover) Description() string {
	return `

Command "setup pushover" configures notifications delivered through the
Pushover mobile push service. Optional; only required to receive operator
notifications on AuthFailed and other terminal causes.

  $ alphavol setup pushover -application-key=awja5u... -user-key=uscjs2...

`
}

func (c *Pushover) run(ctx context.Context, args []string) error {
	path, err := (&Telegram{dataDir: c.dataDir, secretsPath: c.secretsPath}).resolveSecretsPath()
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

	sf.Pushover = &notify.PushoverKeys{
		ApplicationKey: c.applicationKey,
		UserKey:        c.userKey,
	}

	if !c.skipTesting {
		p, err := notify.NewPushover(sf.Pushover)
		if err != nil {
			return err
		}
		p.SendMessage(ctx, time.Now(), "Test message from alphavol pushover setup; please ignore.")
	}

	return sf.Save(path)
}
