// internal/broadcast/instruction.go
package broadcast

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Instruction is the closed set of event tags sent to clients.
type Instruction int

const (
	Start Instruction = iota
	Stop
	Kick
	UpdateLobbyList
	UpdateLobby
	UpdatePlayers
	UpdateTimer
	Achievement
	AbortGame
)

var instructionNames = [...]string{
	Start:           "START",
	Stop:            "STOP",
	Kick:            "KICK",
	UpdateLobbyList: "UPDATE_LOBBY_LIST",
	UpdateLobby:     "UPDATE_LOBBY",
	UpdatePlayers:   "UPDATE_PLAYERS",
	UpdateTimer:     "UPDATE_TIMER",
	Achievement:     "ACHIEVEMENT",
	AbortGame:       "ABORT_GAME",
}

func (i Instruction) String() string {
	if i < 0 || int(i) >= len(instructionNames) {
		return fmt.Sprintf("Instruction(%d)", int(i))
	}
	return instructionNames[i]
}

// MarshalText encodes the instruction in lower case, the form clients expect.
func (i Instruction) MarshalText() ([]byte, error) {
	if i < 0 || int(i) >= len(instructionNames) {
		return nil, fmt.Errorf("unknown instruction %d", int(i))
	}
	return []byte(strings.ToLower(instructionNames[i])), nil
}

// UnmarshalText accepts the instruction name in any case.
func (i *Instruction) UnmarshalText(text []byte) error {
	name := strings.ToUpper(string(text))
	for idx, n := range instructionNames {
		if n == name {
			*i = Instruction(idx)
			return nil
		}
	}
	return fmt.Errorf("unknown instruction %q", string(text))
}

// Message is one broadcast: an instruction plus a free-form string payload.
type Message struct {
	Instruction Instruction `json:"instruction"`
	Message     string      `json:"message"`
}

// Encode marshals the message for the wire.
func (m Message) Encode() ([]byte, error) {
	return json.Marshal(m)
}

// LobbyListChannel is the global channel carrying the public lobby list.
const LobbyListChannel = "lobbies"

// LobbyChannel is the per-lobby channel all members subscribe to.
func LobbyChannel(code int64) string {
	return fmt.Sprintf("%s/%d", LobbyListChannel, code)
}
