// internal/models/word.go
package models

import (
	"strings"

	"github.com/google/uuid"
)

// Word is a node of the discovery graph. Lower reachability means rarer.
type Word struct {
	Name         string  `json:"name"`
	Depth        int     `json:"depth"`
	Reachability float64 `json:"reachability"`

	// NewlyDiscovered is true only on the result of the combination that created the word.
	NewlyDiscovered bool `json:"newlyDiscovered"`
}

// Combination maps an unordered pair of words to a result. Word1 <= Word2 always holds.
type Combination struct {
	Word1  string `json:"word1"`
	Word2  string `json:"word2"`
	Result string `json:"result"`
}

// UserStats aggregates a linked account's results across sessions.
type UserStats struct {
	UserID             uuid.UUID `json:"userId"`
	Wins               int       `json:"wins"`
	Losses             int       `json:"losses"`
	CombinationsMade   int       `json:"combinationsMade"`
	DiscoveredWords    int       `json:"discoveredWords"`
	RarestWord         string    `json:"rarestWord,omitempty"`
	RarestReachability float64   `json:"rarestReachability,omitempty"`
}

// NormalizeWord gives the identity form of a word name.
func NormalizeWord(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// PairKey normalizes both names and orders them so (a, b) and (b, a) share one key.
func PairKey(a, b string) (string, string) {
	a, b = NormalizeWord(a), NormalizeWord(b)
	if b < a {
		a, b = b, a
	}
	return a, b
}

// NewCombination builds a combination with its pair in canonical order.
func NewCombination(a, b, result string) Combination {
	w1, w2 := PairKey(a, b)
	return Combination{Word1: w1, Word2: w2, Result: NormalizeWord(result)}
}
