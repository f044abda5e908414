package model

// PlayerID uniquely identifies a player across the system.
// It is supplied by the identity verifier and treated as opaque.
type PlayerID string

// PlayerStats are the aggregate results recorded for a player
type PlayerStats struct {
	PlayerID    PlayerID `json:"playerId"`
	GamesPlayed int      `json:"gamesPlayed"`
	GamesWon    int      `json:"gamesWon"`
	GamesLost   int      `json:"gamesLost"`
	GamesDrawn  int      `json:"gamesDrawn"`
}

// StatsDelta is an increment applied to a player's aggregate statistics
type StatsDelta struct {
	GamesPlayed int `json:"gamesPlayed"`
	GamesWon    int `json:"gamesWon"`
	GamesLost   int `json:"gamesLost"`
	GamesDrawn  int `json:"gamesDrawn"`
}

// Apply adds the delta to the stats
func (s *PlayerStats) Apply(d StatsDelta) {
	s.GamesPlayed += d.GamesPlayed
	s.GamesWon += d.GamesWon
	s.GamesLost += d.GamesLost
	s.GamesDrawn += d.GamesDrawn
}

// ResultDelta returns the statistics delta for one player of a finished session
func ResultDelta(s *Session, player PlayerID) StatsDelta {
	d := StatsDelta{GamesPlayed: 1}
	switch {
	case s.Outcome.Draw:
		d.GamesDrawn = 1
	case s.Outcome.Winner == player:
		d.GamesWon = 1
	case s.Outcome.Winner != "":
		d.GamesLost = 1
	}
	return d
}
