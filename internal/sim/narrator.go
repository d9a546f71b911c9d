// Package sim is the narrative-simulation collaborator: it turns two finished
// decks into a prompt and streams generated narration back as text chunks.
package sim

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/srcmax-studio/war-drafting-simulator-server/internal/deck"
)

// Narrator streams narration for a prompt. The returned channel is an
// ordered, possibly empty, terminating sequence; it is closed when the
// narration ends or ctx is cancelled.
type Narrator interface {
	Stream(ctx context.Context, prompt string) (<-chan string, error)
}

// deckDataMarker is the placeholder in the prompt template that gets replaced
// with both decks' JSON.
const deckDataMarker = "##DECKDATA##"

// BuildPrompt renders the prompt template with both finished decks inlined.
// player1 is the deck of the player holding initiative when the draft ended.
func BuildPrompt(template string, player1, player2 *deck.Deck) string {
	payload := struct {
		Player1 any `json:"player1"`
		Player2 any `json:"player2"`
	}{player1.Snapshot(), player2.Snapshot()}
	raw, _ := json.Marshal(payload)
	return strings.ReplaceAll(template, deckDataMarker, string(raw))
}

// RewriteNames expands the P1/P2 markers the model emits into player names so
// streamed narration reads naturally on the client.
func RewriteNames(chunk, player1, player2 string) string {
	chunk = strings.ReplaceAll(chunk, "P1", player1+"(P1)")
	chunk = strings.ReplaceAll(chunk, "P2", player2+"(P2)")
	return chunk
}
