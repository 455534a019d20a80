// internal/models/player.go
package models

import (
	"slices"

	"github.com/google/uuid"
)

// PlayerStats holds the per-round statistics the move resolver keeps up to date.
type PlayerStats struct {
	CombinationsMade   int     `json:"combinationsMade"`
	Discoveries        int     `json:"discoveries"`
	RarestWord         string  `json:"rarestWord,omitempty"`
	RarestReachability float64 `json:"rarestReachability,omitempty"`
}

// Player is a participant of exactly one lobby. The lobby and the optional user are referenced by
// identifier only; the lobby owns the membership.
type Player struct {
	Token      uuid.UUID    `json:"token"`
	Name       string       `json:"name"`
	Status     PlayerStatus `json:"status"`
	LobbyCode  int64        `json:"lobbyCode"`
	Points     int          `json:"points"`
	Words      []string     `json:"words"`
	TargetWord string       `json:"targetWord,omitempty"`

	// UserID links an authenticated account, uuid.Nil for anonymous players.
	UserID uuid.UUID `json:"-"`

	Stats PlayerStats `json:"stats"`

	// Achievements are kept for the lifetime of the player, across rounds.
	Achievements []string `json:"achievements,omitempty"`
}

// NewPlayer creates a READY player with a fresh session token.
func NewPlayer(name string, lobbyCode int64) *Player {
	return &Player{
		Token:     uuid.New(),
		Name:      name,
		Status:    PlayerReady,
		LobbyCode: lobbyCode,
		Words:     []string{},
	}
}

// HasWord reports whether the player has the word in the inventory.
func (p *Player) HasWord(name string) bool {
	return slices.Contains(p.Words, NormalizeWord(name))
}

// AddWord appends the word to the inventory unless it is already there.
func (p *Player) AddWord(name string) {
	name = NormalizeWord(name)
	if name == "" || p.HasWord(name) {
		return
	}
	p.Words = append(p.Words, name)
}

// Reset puts the player back to the start of a round with the given inventory.
func (p *Player) Reset(startingWords []string) {
	p.Status = PlayerPlaying
	p.Points = 0
	p.TargetWord = ""
	p.Stats = PlayerStats{}
	p.Words = make([]string, 0, len(startingWords))
	for _, w := range startingWords {
		p.AddWord(w)
	}
}

// RecordCombination updates the ancillary statistics for one resolved move.
func (p *Player) RecordCombination(result Word) {
	p.Stats.CombinationsMade++
	if result.NewlyDiscovered {
		p.Stats.Discoveries++
	}
	if p.Stats.RarestWord == "" || result.Reachability < p.Stats.RarestReachability {
		p.Stats.RarestWord = result.Name
		p.Stats.RarestReachability = result.Reachability
	}
}

// Unlock records an achievement and reports whether it is new for this player.
func (p *Player) Unlock(title string) bool {
	if slices.Contains(p.Achievements, title) {
		return false
	}
	p.Achievements = append(p.Achievements, title)
	return true
}

// Clone returns a deep copy.
func (p *Player) Clone() *Player {
	c := *p
	c.Words = slices.Clone(p.Words)
	c.Achievements = slices.Clone(p.Achievements)
	return &c
}
