package cli

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/mcoot/tictactoe-go/internal/protocol"
)

func newWatchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch <game-id>",
		Short: "Subscribe to a game and stream its events",
		Long: `Subscribe to a game and print events as they arrive.

Players receive their own game's events; anyone else joins as a spectator.
Events include:
  - player_joined: The second player joined
  - move_made: A mark was placed
  - game_ended: The game was won or drawn
  - game_abandoned: A player forfeited, disconnected or timed out
  - session_replaced: The player connected elsewhere

Press Ctrl+C to disconnect.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.RequirePlayer(); err != nil {
				return err
			}
			return watchGame(cmd, args[0])
		},
	}
}

func watchGame(cmd *cobra.Command, gameID string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dialCtx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	c, err := Dial(dialCtx, cfg.ServerURL, cfg.Timeout)
	if err != nil {
		return err
	}
	defer func() { _ = c.Close() }()

	out := NewOutput(cfg.Output, cmd.OutOrStdout())
	c.OnEvent = out.PrintEvent

	if _, err := c.Authenticate(dialCtx, cfg.Player, cfg.Token); err != nil {
		return err
	}
	var sub protocol.SubscribeResponse
	if err := c.Request(dialCtx, protocol.TypeSubscribeGame, protocol.GameRequest{GameID: gameID}, &sub); err != nil {
		return err
	}
	out.Print(sub)

	for {
		frame, err := c.ReadEvent(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				out.PrintMessage("Disconnected")
				return nil
			}
			return err
		}
		out.PrintEvent(frame)
	}
}
