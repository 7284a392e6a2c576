package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

type options struct {
	configPath string
	character  string
	characters string
}

// main 是 AgentSwap 守护进程的入口。
func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "agentswapd 运行失败: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	opts := &options{}
	cmd := &cobra.Command{
		Use:   "agentswapd",
		Short: "Run conversational agents with same-chain token swaps",
		Long: `agentswapd loads character files, starts one agent runtime per character
and serves the direct client HTTP API.

Examples:
  agentswapd --config configs/agentswap.json
  agentswapd --characters characters/trader.json,characters/swapper.json`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			err := run(ctx, *opts)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}
	cmd.Flags().StringVar(&opts.configPath, "config", "", "path to the JSON config (default $AGENTSWAP_CONFIG or configs/agentswap.json)")
	cmd.Flags().StringVar(&opts.character, "character", "", "path to a single character file")
	cmd.Flags().StringVar(&opts.characters, "characters", "", "comma separated character file paths")
	return cmd
}
