// Copyright (c) 2025 BVK Chaitanya

package subcmds

import (
	"context"
	"flag"
	"fmt"
	"os"
	"sort"
	"text/tabwriter"

	"github.com/bvk/alphavol/api"
	"github.com/bvk/alphavol/cli"
)

type Status struct {
	ClientFlags

	strategyID string
}

func (c *Status) Synopsis() string {
	return "Prints per-(strategy,user) status from a running daemon"
}

func (c *Status) Command() (*flag.FlagSet, cli.CmdFunc) {
	fset := flag.NewFlagSet("status", flag.ContinueOnError)
	c.ClientFlags.SetFlags(fset)
	fset.StringVar(&c.strategyID, "strategy", "", "restrict the listing to one strategy id (default: all)")
	return fset, cli.CmdFunc(c.run)
}

func (c *Status) run(ctx context.Context, args []string) error {
	req := &api.StatusListRequest{StrategyID: c.strategyID}
	resp, err := Post[api.StatusListResponse](ctx, &c.ClientFlags, api.StatusListPath, req)
	if err != nil {
		return fmt.Errorf("could not fetch status: %w", err)
	}

	items := resp.Items
	sort.Slice(items, func(i, j int) bool {
		if items[i].StrategyID != items[j].StrategyID {
			return items[i].StrategyID < items[j].StrategyID
		}
		return items[i].UserID < items[j].UserID
	})

	tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Strategy\tUser\tState\tVolume\tUpdated\tMessage\t\n")
	for _, it := range items {
		fmt.Fprintf(tw, "%s\t%d\t%s\t%s\t%s\t%s\t\n", it.StrategyID, it.UserID, it.State, it.LastVolume.StringFixed(3), it.UpdatedAt.Format("2006-01-02T15:04:05"), it.Message)
	}
	return tw.Flush()
}
