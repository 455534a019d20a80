// internal/models/lobby.go
package models

import (
	"time"

	"github.com/google/uuid"
)

// Lobby is a coded room grouping players for one session at a time.
type Lobby struct {
	Code      int64       `json:"code"`
	Name      string      `json:"name"`
	Public    bool        `json:"publicAccess"`
	Mode      GameMode    `json:"mode"`
	TimeLimit int         `json:"gameTime"` // seconds, 0 => untimed
	Status    LobbyStatus `json:"status"`

	// OwnerToken references the owning player, uuid.Nil once the owner is detached.
	OwnerToken uuid.UUID `json:"ownerToken"`

	Players []*Player `json:"players"`

	StartedAt    time.Time `json:"startTime"`
	LastActivity time.Time `json:"lastModified"`
}

// LobbySummary is the public listing view of a lobby.
type LobbySummary struct {
	Code        int64       `json:"code"`
	Name        string      `json:"name"`
	Mode        GameMode    `json:"mode"`
	Status      LobbyStatus `json:"status"`
	PlayerCount int         `json:"playerCount"`
}

// NewLobby returns a PREGAME lobby with the given code and name, public and untimed.
func NewLobby(code int64, name string, now time.Time) *Lobby {
	return &Lobby{
		Code:         code,
		Name:         name,
		Public:       true,
		Mode:         ModeStandard,
		Status:       LobbyPregame,
		Players:      []*Player{},
		LastActivity: now,
	}
}

// Player returns the member with the given token, or nil.
func (l *Lobby) Player(token uuid.UUID) *Player {
	for _, p := range l.Players {
		if p.Token == token {
			return p
		}
	}
	return nil
}

// Owner returns the owning player, or nil.
func (l *Lobby) Owner() *Player {
	if l.OwnerToken == uuid.Nil {
		return nil
	}
	return l.Player(l.OwnerToken)
}

// AddPlayer appends a member and points its back-reference at this lobby.
func (l *Lobby) AddPlayer(p *Player) {
	p.LobbyCode = l.Code
	l.Players = append(l.Players, p)
}

// RemovePlayer drops a member. If the owner leaves, ownership passes to the next player in join
// order. It reports whether the player was a member.
func (l *Lobby) RemovePlayer(token uuid.UUID) bool {
	for i, p := range l.Players {
		if p.Token != token {
			continue
		}
		l.Players = append(l.Players[:i], l.Players[i+1:]...)
		if l.OwnerToken == token {
			l.OwnerToken = uuid.Nil
			if len(l.Players) > 0 {
				l.OwnerToken = l.Players[0].Token
			}
		}
		return true
	}
	return false
}

// Touch records activity for the inactivity sweeper.
func (l *Lobby) Touch(now time.Time) {
	l.LastActivity = now
}

// AllPlayersReady reports whether every member is READY.
func (l *Lobby) AllPlayersReady() bool {
	for _, p := range l.Players {
		if p.Status != PlayerReady {
			return false
		}
	}
	return true
}

// AllPlayersLost reports whether every member is LOST.
func (l *Lobby) AllPlayersLost() bool {
	for _, p := range l.Players {
		if p.Status != PlayerLost {
			return false
		}
	}
	return true
}

// Summary builds the listing view.
func (l *Lobby) Summary() LobbySummary {
	return LobbySummary{
		Code:        l.Code,
		Name:        l.Name,
		Mode:        l.Mode,
		Status:      l.Status,
		PlayerCount: len(l.Players),
	}
}

// Clone returns a deep copy, used by stores to hand out snapshots and to stage mutations.
func (l *Lobby) Clone() *Lobby {
	c := *l
	c.Players = make([]*Player, len(l.Players))
	for i, p := range l.Players {
		c.Players[i] = p.Clone()
	}
	return &c
}
