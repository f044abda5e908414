package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/mcoot/tictactoe-go/internal/model"
	"github.com/mcoot/tictactoe-go/internal/protocol"
)

// Output handles formatting output based on the configured format
type Output struct {
	format string
	w      io.Writer
}

// NewOutput creates a new Output formatter writing to w
func NewOutput(format string, w io.Writer) *Output {
	return &Output{format: format, w: w}
}

// Print outputs data in the configured format
func (o *Output) Print(data any) {
	if o.format == "json" {
		o.printJSON(data)
	} else {
		o.printText(data)
	}
}

// PrintMessage outputs a simple message
func (o *Output) PrintMessage(msg string) {
	if o.format == "json" {
		data, _ := json.Marshal(map[string]string{"message": msg})
		fmt.Fprintln(o.w, string(data))
	} else {
		fmt.Fprintln(o.w, msg)
	}
}

// PrintEvent outputs one pushed event, as a JSON line or a summary line
func (o *Output) PrintEvent(f Frame) {
	if o.format == "json" {
		data, _ := json.Marshal(f)
		fmt.Fprintln(o.w, string(data))
		return
	}

	ts := f.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	summary := string(f.Data)
	if len(summary) > 100 {
		summary = summary[:100] + "..."
	}
	fmt.Fprintf(o.w, "[%s] %s: %s\n", ts.Format("2006-01-02 15:04:05"), f.Type, summary)
}

func (o *Output) printJSON(data any) {
	enc := json.NewEncoder(o.w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(data)
}

func (o *Output) printText(data any) {
	switch v := data.(type) {
	case protocol.GameResponse:
		if v.Message != "" {
			fmt.Fprintln(o.w, v.Message)
		}
		o.printGame(v.Game)
	case protocol.MoveResponse:
		fmt.Fprintf(o.w, "Placed %s at %d\n", v.Move.Mark, v.Move.Cell)
		o.printGame(v.Game)
	case protocol.SubscribeResponse:
		fmt.Fprintf(o.w, "Watching game %s\n", v.Game.SessionID)
		o.printGame(v.Game)
	case protocol.PlayerGamesResponse:
		o.printPlayerGames(v)
	case protocol.StatsResponse:
		o.printStats(v.Stats)
	case protocol.PingResponse:
		fmt.Fprintf(o.w, "Pong (server time %s)\n", time.UnixMilli(v.ServerTime).UTC().Format(time.RFC3339))
	case HealthResult:
		fmt.Fprintf(o.w, "Status: %s\n", v.Status)
		if v.Version != "" {
			fmt.Fprintf(o.w, "Version: %s\n", v.Version)
		}
		fmt.Fprintf(o.w, "Uptime: %s\n", time.Duration(v.UptimeSeconds)*time.Second)
	default:
		// Fallback to JSON for unknown types
		o.printJSON(data)
	}
}

func (o *Output) printGame(g model.SessionView) {
	fmt.Fprintf(o.w, "Game: %s\n", g.SessionID)
	fmt.Fprintf(o.w, "Status: %s\n", g.Status)
	if g.PlayerA != "" {
		fmt.Fprintf(o.w, "X: %s\n", g.PlayerA)
	}
	if g.PlayerB != "" {
		fmt.Fprintf(o.w, "O: %s\n", g.PlayerB)
	}
	if g.Mark != "" {
		fmt.Fprintf(o.w, "You play: %s\n", g.Mark)
	}
	if g.CurrentMark != "" {
		turn := string(g.CurrentMark) + " to move"
		if g.IsCurrentTurn {
			turn += " (you)"
		}
		fmt.Fprintf(o.w, "Turn: %s\n", turn)
	}

	fmt.Fprintln(o.w)
	fmt.Fprint(o.w, RenderBoard(g.Board))

	switch {
	case g.Winner != "":
		fmt.Fprintf(o.w, "\nWinner: %s\n", g.Winner)
	case g.Draw:
		fmt.Fprintln(o.w, "\nDraw")
	}
}

// RenderBoard draws the board as three rows. Empty cells show their index.
func RenderBoard(board []model.Mark) string {
	var b strings.Builder
	for row := 0; row < 3; row++ {
		if row > 0 {
			b.WriteString("---+---+---\n")
		}
		for col := 0; col < 3; col++ {
			cell := row*3 + col
			symbol := fmt.Sprint(cell)
			if cell < len(board) && board[cell] != model.MarkNone {
				symbol = string(board[cell])
			}
			if col > 0 {
				b.WriteString("|")
			}
			b.WriteString(" " + symbol + " ")
		}
		b.WriteString("\n")
	}
	return b.String()
}

func (o *Output) printPlayerGames(r protocol.PlayerGamesResponse) {
	if r.Stats != nil {
		fmt.Fprintf(o.w, "Played: %d  Won: %d  Lost: %d  Drawn: %d\n",
			r.Stats.GamesPlayed, r.Stats.GamesWon, r.Stats.GamesLost, r.Stats.GamesDrawn)
	}
	fmt.Fprintf(o.w, "Games (%d):\n", len(r.Games))
	for _, g := range r.Games {
		result := ""
		switch {
		case g.Winner != "":
			result = " winner " + string(g.Winner)
		case g.Draw:
			result = " draw"
		}
		opponent := string(g.Opponent)
		if opponent == "" {
			opponent = "-"
		}
		fmt.Fprintf(o.w, "  - %s vs %s [%s]%s\n", g.GameID, opponent, g.Status, result)
	}
}

func (o *Output) printStats(s protocol.Stats) {
	fmt.Fprintf(o.w, "Sessions: %d waiting, %d active, %d in memory\n",
		s.Sessions.Waiting, s.Sessions.Active, s.Sessions.InMemory)
	fmt.Fprintf(o.w, "Games: %d created, %d completed, %d abandoned, %d moves\n",
		s.Sessions.GamesCreated, s.Sessions.GamesCompleted, s.Sessions.GamesAbandoned, s.Sessions.TotalMoves)
	fmt.Fprintf(o.w, "Connections: %d total, %d authenticated, %d players\n",
		s.Connections.Total, s.Connections.Authenticated, s.Connections.Players)
}
