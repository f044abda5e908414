package cli

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/mcoot/tictactoe-go/internal/protocol"
)

func newCreateCmd() *cobra.Command {
	var (
		timeLimit    time.Duration
		noSpectators bool
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a new game and wait for an opponent",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			req := protocol.CreateGameRequest{}
			if timeLimit > 0 || noSpectators {
				opts := &protocol.GameOptions{}
				if timeLimit > 0 {
					ms := int(timeLimit.Milliseconds())
					opts.TimeLimit = &ms
				}
				if noSpectators {
					allow := false
					opts.AllowSpectators = &allow
				}
				req.GameOptions = opts
			}

			return withClient(cmd, true, func(ctx context.Context, c *Client, out *Output) error {
				var result protocol.GameResponse
				if err := c.Request(ctx, protocol.TypeCreateGame, req, &result); err != nil {
					return err
				}
				out.Print(result)
				return nil
			})
		},
	}

	cmd.Flags().DurationVar(&timeLimit, "time-limit", 0, "Per-move time limit (30s to 10m)")
	cmd.Flags().BoolVar(&noSpectators, "no-spectators", false, "Disallow spectators")

	return cmd
}

func newJoinCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "join <game-id>",
		Short: "Join a waiting game as the second player",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return gameRequest(cmd, protocol.TypeJoinGame, args[0])
		},
	}
}

func newMoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "move <game-id> <position>",
		Short: "Place your mark on a cell (0-8, row-major)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			position, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("invalid position: %w", err)
			}

			req := protocol.MakeMoveRequest{GameID: args[0], Position: &position}
			return withClient(cmd, true, func(ctx context.Context, c *Client, out *Output) error {
				var result protocol.MoveResponse
				if err := c.Request(ctx, protocol.TypeMakeMove, req, &result); err != nil {
					return err
				}
				out.Print(result)
				return nil
			})
		},
	}
}

func newStateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "state <game-id>",
		Short: "Show the current state of a game",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return gameRequest(cmd, protocol.TypeGetGameState, args[0])
		},
	}
}

func newAbandonCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "abandon <game-id>",
		Short: "Forfeit a game",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return gameRequest(cmd, protocol.TypeAbandonGame, args[0])
		},
	}
}

// gameRequest sends a request addressed to one game and prints the game view
func gameRequest(cmd *cobra.Command, msgType, gameID string) error {
	return withClient(cmd, true, func(ctx context.Context, c *Client, out *Output) error {
		var result protocol.GameResponse
		if err := c.Request(ctx, msgType, protocol.GameRequest{GameID: gameID}, &result); err != nil {
			return err
		}
		out.Print(result)
		return nil
	})
}
