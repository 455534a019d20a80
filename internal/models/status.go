// internal/models/status.go
package models

import (
	"fmt"
	"strings"
)

// LobbyStatus is the session state of a lobby.
type LobbyStatus string

const (
	LobbyPregame LobbyStatus = "PREGAME"
	LobbyPlaying LobbyStatus = "PLAYING"
)

// PlayerStatus tracks a player through one round.
type PlayerStatus string

const (
	PlayerReady   PlayerStatus = "READY"
	PlayerPlaying PlayerStatus = "PLAYING"
	PlayerWon     PlayerStatus = "WON"
	PlayerLost    PlayerStatus = "LOST"
)

// GameMode selects the rule set a lobby plays with. It is fixed for the duration of a round.
type GameMode string

const (
	ModeStandard     GameMode = "STANDARD"
	ModeFusionFrenzy GameMode = "FUSIONFRENZY"
	ModeWomboCombo   GameMode = "WOMBOCOMBO"
)

// GameModes lists every mode a lobby may select.
var GameModes = []GameMode{ModeStandard, ModeFusionFrenzy, ModeWomboCombo}

// ParseGameMode accepts a mode name in any case.
func ParseGameMode(s string) (GameMode, error) {
	m := GameMode(strings.ToUpper(strings.TrimSpace(s)))
	for _, known := range GameModes {
		if m == known {
			return m, nil
		}
	}
	return "", fmt.Errorf("unknown game mode %q", s)
}

// Timed reports whether running out of time counts as a loss in this mode.
func (m GameMode) Timed() bool {
	return m != ModeStandard
}
