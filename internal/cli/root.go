package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var cfg *Config

// NewRootCmd creates the root command
func NewRootCmd() *cobra.Command {
	cfg = DefaultConfig()

	rootCmd := &cobra.Command{
		Use:   "tttgame",
		Short: "CLI tool for the tic-tac-toe game server",
		Long: `tttgame is a CLI tool for playing on a tic-tac-toe game server.

Each command opens a websocket connection, authenticates as the configured
player, sends one request and prints the reply. The watch command stays
connected and streams game events.`,
		SilenceUsage: true,
	}

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfg.ServerURL, "server", cfg.ServerURL, "Websocket endpoint (env: TTTGAME_SERVER)")
	rootCmd.PersistentFlags().StringVarP(&cfg.Player, "player", "p", cfg.Player, "Player id (env: TTTGAME_PLAYER)")
	rootCmd.PersistentFlags().StringVar(&cfg.Token, "token", cfg.Token, "Identity token (env: TTTGAME_TOKEN)")
	rootCmd.PersistentFlags().StringVarP(&cfg.Output, "output", "o", cfg.Output, "Output format: text, json")
	rootCmd.PersistentFlags().BoolVarP(&cfg.Verbose, "verbose", "v", cfg.Verbose, "Print events received while waiting")
	rootCmd.PersistentFlags().DurationVar(&cfg.Timeout, "timeout", cfg.Timeout, "Request timeout")

	// Add subcommands
	rootCmd.AddCommand(newCreateCmd())
	rootCmd.AddCommand(newJoinCmd())
	rootCmd.AddCommand(newMoveCmd())
	rootCmd.AddCommand(newStateCmd())
	rootCmd.AddCommand(newAbandonCmd())
	rootCmd.AddCommand(newWatchCmd())
	rootCmd.AddCommand(newGamesCmd())
	rootCmd.AddCommand(newPingCmd())
	rootCmd.AddCommand(newStatsCmd())
	rootCmd.AddCommand(newHealthCmd())

	return rootCmd
}

// Execute runs the root command
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// withClient connects, authenticates when a player is configured and runs fn
// under the request timeout
func withClient(cmd *cobra.Command, requireAuth bool, fn func(ctx context.Context, c *Client, out *Output) error) error {
	if requireAuth {
		if err := cfg.RequirePlayer(); err != nil {
			return err
		}
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), cfg.Timeout)
	defer cancel()

	c, err := Dial(ctx, cfg.ServerURL, cfg.Timeout)
	if err != nil {
		return err
	}
	defer func() { _ = c.Close() }()

	out := NewOutput(cfg.Output, cmd.OutOrStdout())
	if cfg.Verbose {
		c.OnEvent = out.PrintEvent
	}

	if cfg.Player != "" {
		if _, err := c.Authenticate(ctx, cfg.Player, cfg.Token); err != nil {
			return fmt.Errorf("authentication failed: %w", err)
		}
	}

	return fn(ctx, c, out)
}
