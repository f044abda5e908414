package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/mcoot/tictactoe-go/internal/protocol"
)

func newGamesCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "games",
		Short: "List your games and results",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cmd, true, func(ctx context.Context, c *Client, out *Output) error {
				var result protocol.PlayerGamesResponse
				if err := c.Request(ctx, protocol.TypeGetPlayerGames, protocol.PlayerGamesRequest{Limit: limit}, &result); err != nil {
					return err
				}
				out.Print(result)
				return nil
			})
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum number of games (1-100)")

	return cmd
}
