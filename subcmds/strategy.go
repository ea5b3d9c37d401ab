// Copyright (c) 2025 BVK Chaitanya

package subcmds

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"

	"github.com/bvk/alphavol/api"
	"github.com/bvk/alphavol/cli"
)

// StrategyStart issues api.StrategyStartPath against a running daemon.
type StrategyStart struct {
	ClientFlags
}

func (c *StrategyStart) Synopsis() string { return "Starts one enabled strategy" }

func (c *StrategyStart) Command() (*flag.FlagSet, cli.CmdFunc) {
	fset := flag.NewFlagSet("start", flag.ContinueOnError)
	c.ClientFlags.SetFlags(fset)
	return fset, cli.CmdFunc(c.run)
}

func (c *StrategyStart) run(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("this command takes one (strategy-id) argument")
	}
	resp, err := Post[api.StrategyStartResponse](ctx, &c.ClientFlags, api.StrategyStartPath, &api.StrategyStartRequest{StrategyID: args[0]})
	if err != nil {
		return err
	}
	return printJSON(resp)
}

// StrategyStop issues api.StrategyStopPath against a running daemon.
type StrategyStop struct {
	ClientFlags
}

func (c *StrategyStop) Synopsis() string { return "Stops one running strategy" }

func (c *StrategyStop) Command() (*flag.FlagSet, cli.CmdFunc) {
	fset := flag.NewFlagSet("stop", flag.ContinueOnError)
	c.ClientFlags.SetFlags(fset)
	return fset, cli.CmdFunc(c.run)
}

func (c *StrategyStop) run(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("this command takes one (strategy-id) argument")
	}
	resp, err := Post[api.StrategyStopResponse](ctx, &c.ClientFlags, api.StrategyStopPath, &api.StrategyStopRequest{StrategyID: args[0]})
	if err != nil {
		return err
	}
	return printJSON(resp)
}

// StrategyStopAll issues api.StrategyStopAllPath against a running daemon.
type StrategyStopAll struct {
	ClientFlags
}

func (c *StrategyStopAll) Synopsis() string { return "Stops every running strategy" }

func (c *StrategyStopAll) Command() (*flag.FlagSet, cli.CmdFunc) {
	fset := flag.NewFlagSet("stopall", flag.ContinueOnError)
	c.ClientFlags.SetFlags(fset)
	return fset, cli.CmdFunc(c.run)
}

func (c *StrategyStopAll) run(ctx context.Context, args []string) error {
	resp, err := Post[api.StrategyStopAllResponse](ctx, &c.ClientFlags, api.StrategyStopAllPath, &api.StrategyStopAllRequest{})
	if err != nil {
		return err
	}
	return printJSON(resp)
}

// UserStop issues api.UserStopPath against a running daemon.
type UserStop struct {
	ClientFlags
}

func (c *UserStop) Synopsis() string { return "Stops one user within a running strategy" }

func (c *UserStop) Command() (*flag.FlagSet, cli.CmdFunc) {
	fset := flag.NewFlagSet("user-stop", flag.ContinueOnError)
	c.ClientFlags.SetFlags(fset)
	return fset, cli.CmdFunc(c.run)
}

func (c *UserStop) run(ctx context.Context, args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("this command takes two (strategy-id user-id) arguments")
	}
	var userID int64
	if _, err := fmt.Sscanf(args[1], "%d", &userID); err != nil {
		return fmt.Errorf("invalid user id %q: %w", args[1], err)
	}
	resp, err := Post[api.UserStopResponse](ctx, &c.ClientFlags, api.UserStopPath, &api.UserStopRequest{StrategyID: args[0], UserID: userID})
	if err != nil {
		return err
	}
	return printJSON(resp)
}

func printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Printf("%s\n", data)
	return nil
}
