// Copyright (c) 2025 BVK Chaitanya

package main

import (
	"context"
	"flag"
	"log"
	"os"

	"github.com/bvk/alphavol/cli"
	"github.com/bvk/alphavol/envfile"
	"github.com/bvk/alphavol/subcmds"
	"github.com/bvk/alphavol/subcmds/setup"

	vcli "github.com/visvasity/cli"
)

// visvasityCommand is the Command() shape exposed by subcmds/setup's
// commands, which are written against the visvasity/cli package instead of
// this repository's own cli package.
type visvasityCommand interface {
	Command() (string, *flag.FlagSet, vcli.CmdFunc)
}

// adaptVisvasity lets a visvasity/cli command slot into this repository's
// own cli.CommandGroup alongside every other command.
func adaptVisvasity(cmd visvasityCommand) cli.Command {
	return &visvasityAdapter{cmd: cmd}
}

type visvasityAdapter struct {
	cmd visvasityCommand
}

func (a *visvasityAdapter) Command() (*flag.FlagSet, cli.CmdFunc) {
	_, fset, fn := a.cmd.Command()
	return fset, cli.CmdFunc(fn)
}

func (a *visvasityAdapter) Synopsis() string {
	if p, ok := a.cmd.(interface{ Purpose() string }); ok {
		return p.Purpose()
	}
	return ""
}

func (a *visvasityAdapter) CommandHelp() string {
	if d, ok := a.cmd.(interface{ Description() string }); ok {
		return d.Description()
	}
	return ""
}

func main() {
	// Optional per-deployment overrides (hostnames, notifier tokens) come
	// from an env file in the current working directory.
	if err := envfile.UpdateEnv(".alphavol.env", envfile.SearchCurrentDir(false)); err != nil {
		log.Fatal(err)
	}

	strategyCmds := []cli.Command{
		new(subcmds.StrategyStart),
		new(subcmds.StrategyStop),
		new(subcmds.StrategyStopAll),
		new(subcmds.UserStop),
	}

	setupCmds := []cli.Command{
		new(subcmds.Setup),
		adaptVisvasity(new(setup.Telegram)),
		adaptVisvasity(new(setup.Pushover)),
	}

	cmds := []cli.Command{
		new(subcmds.Run),
		new(subcmds.Status),
		cli.CommandGroup("strategy", strategyCmds...),
		cli.CommandGroup("setup", setupCmds...),
	}
	if err := cli.Run(context.Background(), cmds, os.Args[1:]); err != nil {
		log.Fatal(err)
	}
}
