// Package deck implements the per-player slot layout that drafted cards are
// placed into. The rest of the server treats a Deck as opaque: cards go in,
// positions can be swapped, and the deck reports when every slot is filled.
package deck

import (
	"encoding/json"

	"github.com/srcmax-studio/war-drafting-simulator-server/internal/card"
)

// Positions is the fixed slot order. AddCard fills slots front to back.
var Positions = []string{"leader", "strategist", "vanguard", "support", "flank", "reserve"}

type Deck struct {
	owner string
	slots map[string]*card.Card
}

func New(owner string) *Deck {
	return &Deck{
		owner: owner,
		slots: make(map[string]*card.Card, len(Positions)),
	}
}

func (d *Deck) Owner() string { return d.owner }

// AddCard places c into the first empty position. Adding to a complete deck
// is a no-op.
func (d *Deck) AddCard(c card.Card) {
	for _, key := range Positions {
		if d.slots[key] == nil {
			d.slots[key] = &c
			return
		}
	}
}

// IsComplete reports whether every position holds a card.
func (d *Deck) IsComplete() bool {
	for _, key := range Positions {
		if d.slots[key] == nil {
			return false
		}
	}
	return true
}

// SwitchPositions swaps the contents of two slots. Unknown keys are ignored.
func (d *Deck) SwitchPositions(a, b string) {
	if !validKey(a) || !validKey(b) {
		return
	}
	d.slots[a], d.slots[b] = d.slots[b], d.slots[a]
}

// Position returns the card at key, or nil when the slot is empty or unknown.
func (d *Deck) Position(key string) *card.Card {
	return d.slots[key]
}

// Snapshot returns the position→card mapping for prompt building and events.
// Empty slots map to nil.
func (d *Deck) Snapshot() map[string]*card.Card {
	out := make(map[string]*card.Card, len(Positions))
	for _, key := range Positions {
		out[key] = d.slots[key]
	}
	return out
}

// Serialize renders the deck as the JSON document sent in deckUpdate events.
func (d *Deck) Serialize() string {
	payload := struct {
		Owner     string                `json:"owner"`
		Positions map[string]*card.Card `json:"positions"`
	}{d.owner, d.Snapshot()}
	raw, _ := json.Marshal(payload)
	return string(raw)
}

func validKey(key string) bool {
	for _, k := range Positions {
		if k == key {
			return true
		}
	}
	return false
}
