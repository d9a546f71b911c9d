// Package engine implements the draft-round state machine: pack dealing,
// timed turns, discard budgets and auto-resolution on timeout. Every method
// must be called from the orchestrator loop; the engine has no locking of its
// own.
package engine

import (
	"math/rand"
	"time"

	"go.uber.org/zap"

	"github.com/srcmax-studio/war-drafting-simulator-server/internal/card"
	"github.com/srcmax-studio/war-drafting-simulator-server/internal/protocol"
	"github.com/srcmax-studio/war-drafting-simulator-server/internal/session"
)

// Draft stages as they appear on the wire.
const (
	StageUninitialized  = -1
	StagePassiveDiscard = 1
	StageInit           = 2
	StagePassive        = 3
)

// PackSize is how many cards are dealt each round when the deck allows it.
const PackSize = 5

// Timings groups the stage durations. Tests shrink them to milliseconds.
type Timings struct {
	PassiveDiscard           time.Duration
	PassiveDiscardFirstBonus time.Duration
	Init                     time.Duration
	Passive                  time.Duration
}

func DefaultTimings() Timings {
	return Timings{
		PassiveDiscard:           30 * time.Second,
		PassiveDiscardFirstBonus: 8 * time.Second,
		Init:                     60 * time.Second,
		Passive:                  45 * time.Second,
	}
}

// Host is the engine's view of the orchestrator. Broadcast fans an event out
// to every connected session; After schedules a callback onto the
// orchestrator loop; SimulationReached fires once the initiative deck is
// complete and the draft is over.
type Host interface {
	Broadcast(ev protocol.Event)
	After(d time.Duration, fn func()) (stop func() bool)
	SimulationReached()
}

// Engine drives one game. It owns the shuffled deck, the current pack, the
// round counter and the single stage timer.
type Engine struct {
	host    Host
	log     *zap.Logger
	timings Timings

	players [2]*session.Player
	deck    []card.Card
	pack    []card.Card

	initiative     *session.Player
	stage          int
	round          int
	skipInitSwitch bool

	timer     *StageTimer
	lastDraft *protocol.DraftEvent
}

// New shuffles the catalog into a fresh deck, resets both players' budgets
// and decks, picks the initiative player at random, announces the game and
// starts round 1.
func New(host Host, log *zap.Logger, timings Timings, catalog []card.Card, players [2]*session.Player, rng *rand.Rand) *Engine {
	e := &Engine{
		host:    host,
		log:     log,
		timings: timings,
		players: players,
		stage:   StageUninitialized,
		timer:   NewStageTimer(host.After),
	}

	e.deck = make([]card.Card, len(catalog))
	copy(e.deck, catalog)
	rng.Shuffle(len(e.deck), func(i, j int) {
		e.deck[i], e.deck[j] = e.deck[j], e.deck[i]
	})

	for _, p := range players {
		p.ResetForGame()
	}
	e.initiative = players[rng.Intn(2)]

	host.Broadcast(protocol.NewGameStartEvent(e.initiative.Name))
	log.Info("game started", zap.String("initiative", e.initiative.Name))

	e.newRound(true)
	return e
}

// Terminate cancels the pending stage timer. Called when the game is torn
// down for any reason.
func (e *Engine) Terminate() { e.timer.Cancel() }

func (e *Engine) Stage() int { return e.stage }

func (e *Engine) Round() int { return e.round }

func (e *Engine) InitiativePlayer() *session.Player { return e.initiative }

func (e *Engine) PassivePlayer() *session.Player {
	if e.players[0] == e.initiative {
		return e.players[1]
	}
	return e.players[0]
}

func (e *Engine) Players() [2]*session.Player { return e.players }

// LastDraftEvent returns the most recent stage broadcast, used to resync a
// reconnecting client.
func (e *Engine) LastDraftEvent() *protocol.DraftEvent { return e.lastDraft }

// Timer exposes the stage timer for the reconnection manager's pause/resume.
func (e *Engine) Timer() *StageTimer { return e.timer }

func (e *Engine) switchInitiative() {
	if e.skipInitSwitch {
		e.skipInitSwitch = false
		return
	}
	e.initiative = e.PassivePlayer()
}

// newRound is the single entry point for round progression: both explicit
// settlements and timeouts funnel here.
func (e *Engine) newRound(first bool) {
	if e.initiative.Deck.IsComplete() {
		// Close the pick stage so a late cardSelect cannot settle against
		// the leftover pack and finish the draft twice.
		e.stage = StageUninitialized
		e.host.SimulationReached()
		return
	}

	if !first {
		e.switchInitiative()
	}
	e.round++
	e.dealPack()
}

func (e *Engine) dealPack() {
	n := PackSize
	if len(e.deck) < n {
		e.log.Warn("deck low, dealing short pack", zap.Int("remaining", len(e.deck)))
		n = len(e.deck)
	}
	pack := make([]card.Card, n)
	copy(pack, e.deck[:n])
	e.deck = e.deck[n:]
	e.pack = pack

	if e.PassivePlayer().PassiveDiscardRemaining > 0 {
		e.startPassiveDiscardStage()
	} else {
		e.startInitiativeStage()
	}
}

func (e *Engine) budgets() map[string]protocol.Budgets {
	out := make(map[string]protocol.Budgets, 2)
	for _, p := range e.players {
		out[p.Name] = protocol.Budgets{
			InitDiscard:    p.InitDiscardRemaining,
			PassiveDiscard: p.PassiveDiscardRemaining,
		}
	}
	return out
}

func (e *Engine) broadcastStage(stage int, duration time.Duration) {
	e.stage = stage
	pack := make([]card.Card, len(e.pack))
	copy(pack, e.pack)
	ev := protocol.NewDraftEvent(e.round, stage, e.initiative.Name, pack,
		time.Now().Add(duration).UnixMilli(), e.budgets())
	e.lastDraft = &ev
	e.host.Broadcast(ev)
}

func (e *Engine) startPassiveDiscardStage() {
	duration := e.timings.PassiveDiscard
	if e.round == 1 {
		duration += e.timings.PassiveDiscardFirstBonus
	}
	e.broadcastStage(StagePassiveDiscard, duration)
	e.timer.Arm(duration, func() { e.settlePassiveDiscard(false) })
}

func (e *Engine) startInitiativeStage() {
	e.broadcastStage(StageInit, e.timings.Init)
	e.timer.Arm(e.timings.Init, func() {
		e.settleFirstCard(e.initiative, e.startPassiveStage)
	})
}

func (e *Engine) startPassiveStage() {
	e.broadcastStage(StagePassive, e.timings.Passive)
	e.timer.Arm(e.timings.Passive, func() {
		e.settleFirstCard(e.PassivePlayer(), func() { e.newRound(false) })
	})
}

// settleFirstCard is the timeout path: pick the front of the pack so a timed
// stage resolves exactly like an explicit first-card selection.
func (e *Engine) settleFirstCard(p *session.Player, next func()) {
	if len(e.pack) == 0 {
		// Exhausted catalog dealt an empty pack; nothing to settle.
		next()
		return
	}
	e.settleSelect(p, e.pack[0].Name, next)
}

// settleSelect adds the named pack card to p's deck, replaces the pack with a
// filtered copy and advances. A name that is not in the pack is a silent
// no-op.
func (e *Engine) settleSelect(p *session.Player, name string, next func()) {
	chosen := -1
	for i, c := range e.pack {
		if c.Name == name {
			chosen = i
			break
		}
	}
	if chosen == -1 {
		return
	}

	p.Deck.AddCard(e.pack[chosen])
	e.BroadcastDecks()

	rest := make([]card.Card, 0, len(e.pack)-1)
	rest = append(rest, e.pack[:chosen]...)
	rest = append(rest, e.pack[chosen+1:]...)
	e.pack = rest

	next()
}

func (e *Engine) settlePassiveDiscard(discard bool) {
	if discard {
		e.PassivePlayer().PassiveDiscardRemaining--
		e.skipInitSwitch = true
		e.newRound(false)
	} else {
		e.startInitiativeStage()
	}
}

func (e *Engine) packHas(name string) bool {
	for _, c := range e.pack {
		if c.Name == name {
			return true
		}
	}
	return false
}

// HandleCardSelect settles the current pick stage for an explicit selection.
// Wrong-player, wrong-stage and unknown-card submissions are ignored.
func (e *Engine) HandleCardSelect(p *session.Player, name string) {
	switch e.stage {
	case StageInit:
		if p != e.initiative || !e.packHas(name) {
			return
		}
		e.timer.Cancel()
		e.settleSelect(p, name, e.startPassiveStage)
	case StagePassive:
		if p != e.PassivePlayer() || !e.packHas(name) {
			return
		}
		e.timer.Cancel()
		e.settleSelect(p, name, func() { e.newRound(false) })
	}
}

// HandlePassiveDiscard resolves the PassiveDiscard stage. Only the passive
// player may decide, and only while the stage is open.
func (e *Engine) HandlePassiveDiscard(p *session.Player, discard bool) {
	if e.stage != StagePassiveDiscard || p == e.initiative {
		return
	}
	e.timer.Cancel()
	e.settlePassiveDiscard(discard)
}

// HandleInitDiscard is the initiative player's early pass: forfeit the round
// for one point of budget. The pack is lost and initiative switches normally
// next round.
func (e *Engine) HandleInitDiscard(p *session.Player) {
	if e.stage != StageInit || p != e.initiative || p.InitDiscardRemaining < 1 {
		return
	}
	p.InitDiscardRemaining--
	e.timer.Cancel()
	e.newRound(false)
}

// HandleSwapPosition rearranges a player's own deck. Not stage-gated; legal
// whenever a game is active.
func (e *Engine) HandleSwapPosition(p *session.Player, source, target string) {
	if p.Deck == nil {
		return
	}
	p.Deck.SwitchPositions(source, target)
	e.BroadcastDecks()
}

// BroadcastDecks pushes both serialized decks to every session.
func (e *Engine) BroadcastDecks() {
	decks := make([]string, 0, 2)
	for _, p := range e.players {
		if p.Deck == nil {
			continue
		}
		decks = append(decks, p.Deck.Serialize())
	}
	e.host.Broadcast(protocol.NewDeckUpdateEvent(decks))
}
