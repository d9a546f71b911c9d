package protocol

import (
	"encoding/json"

	"github.com/srcmax-studio/war-drafting-simulator-server/internal/card"
)

// Event is an outbound frame. Every variant embeds its "event" discriminator
// through its constructor so the client can dispatch on one field.
type Event interface{ isEvent() }

// Marshal renders an event for the wire. Events are plain data; marshaling
// them cannot fail in practice.
func Marshal(ev Event) []byte {
	raw, _ := json.Marshal(ev)
	return raw
}

// ServerStatus is the public server description pushed on connect and on
// status requests.
type ServerStatus struct {
	Title           string `json:"title"`
	Owner           string `json:"owner"`
	LoadedCards     int    `json:"loadedCharacters"`
	OnlinePlayers   int    `json:"onlinePlayers"`
	Phase           int    `json:"phase"`
	RequirePassword bool   `json:"requirePassword"`
	TLS             bool   `json:"tls"`
}

// PlayerInfo is one roster entry in playerlist and joined events.
type PlayerInfo struct {
	Name  string `json:"name"`
	Ready bool   `json:"ready"`
}

// Budgets reports a player's remaining discard allowances inside draft events.
type Budgets struct {
	InitDiscard    int `json:"initDiscardRemaining"`
	PassiveDiscard int `json:"passiveDiscardRemaining"`
}

type StatusEvent struct {
	Event  string       `json:"event"`
	Status ServerStatus `json:"status"`
}

type PingEvent struct {
	Event string `json:"event"`
}

type SyncClockEvent struct {
	Event        string `json:"event"`
	ClientSentAt int64  `json:"clientSentAt"`
	ServerTime   int64  `json:"serverTime"`
}

type AuthenticatedEvent struct {
	Event string `json:"event"`
}

type ErrorEvent struct {
	Event   string `json:"event"`
	Message string `json:"message"`
}

type JoinedEvent struct {
	Event   string       `json:"event"`
	Name    string       `json:"name"`
	Players []PlayerInfo `json:"players"`
	Status  ServerStatus `json:"status"`
}

type PlayerListEvent struct {
	Event   string       `json:"event"`
	Players []PlayerInfo `json:"players"`
}

type MessageEvent struct {
	Event   string `json:"event"`
	Message string `json:"message"`
}

type CardsSyncEvent struct {
	Event string      `json:"event"`
	Cards []card.Card `json:"characters"`
}

type GameStartEvent struct {
	Event      string `json:"event"`
	Initiative string `json:"initiative"`
}

type GameEndEvent struct {
	Event string `json:"event"`
}

type DraftEvent struct {
	Event      string             `json:"event"`
	Round      int                `json:"round"`
	Stage      int                `json:"stage"`
	Initiative string             `json:"initiative"`
	Pack       []card.Card        `json:"pack"`
	EndsAt     int64              `json:"endsAt"`
	Budgets    map[string]Budgets `json:"budgets"`
}

type DeckUpdateEvent struct {
	Event string   `json:"event"`
	Decks []string `json:"decks"`
}

type OpponentHoverEvent struct {
	Event string `json:"event"`
	Card  string `json:"hovering"`
}

type OpponentUnhoverEvent struct {
	Event string `json:"event"`
}

type SelectEvent struct {
	Event string `json:"event"`
	Card  string `json:"selected"`
}

type SimulationStartEvent struct {
	Event string `json:"event"`
}

type SimulationStreamEvent struct {
	Event string `json:"event"`
	Text  string `json:"text"`
}

func (StatusEvent) isEvent()           {}
func (PingEvent) isEvent()             {}
func (SyncClockEvent) isEvent()        {}
func (AuthenticatedEvent) isEvent()    {}
func (ErrorEvent) isEvent()            {}
func (JoinedEvent) isEvent()           {}
func (PlayerListEvent) isEvent()       {}
func (MessageEvent) isEvent()          {}
func (CardsSyncEvent) isEvent()        {}
func (GameStartEvent) isEvent()        {}
func (GameEndEvent) isEvent()          {}
func (DraftEvent) isEvent()            {}
func (DeckUpdateEvent) isEvent()       {}
func (OpponentHoverEvent) isEvent()    {}
func (OpponentUnhoverEvent) isEvent()  {}
func (SelectEvent) isEvent()           {}
func (SimulationStartEvent) isEvent()  {}
func (SimulationStreamEvent) isEvent() {}

func NewStatusEvent(s ServerStatus) StatusEvent       { return StatusEvent{Event: "status", Status: s} }
func NewPingEvent() PingEvent                         { return PingEvent{Event: "ping"} }
func NewAuthenticatedEvent() AuthenticatedEvent       { return AuthenticatedEvent{Event: "authenticated"} }
func NewErrorEvent(msg string) ErrorEvent             { return ErrorEvent{Event: "error", Message: msg} }
func NewMessageEvent(msg string) MessageEvent         { return MessageEvent{Event: "message", Message: msg} }
func NewGameStartEvent(initiative string) GameStartEvent {
	return GameStartEvent{Event: "gameStart", Initiative: initiative}
}
func NewGameEndEvent() GameEndEvent { return GameEndEvent{Event: "gameEnd"} }

func NewSyncClockEvent(clientSentAt, serverTime int64) SyncClockEvent {
	return SyncClockEvent{Event: "syncClock", ClientSentAt: clientSentAt, ServerTime: serverTime}
}

func NewJoinedEvent(name string, players []PlayerInfo, status ServerStatus) JoinedEvent {
	return JoinedEvent{Event: "joined", Name: name, Players: players, Status: status}
}

func NewPlayerListEvent(players []PlayerInfo) PlayerListEvent {
	return PlayerListEvent{Event: "playerlist", Players: players}
}

func NewCardsSyncEvent(cards []card.Card) CardsSyncEvent {
	return CardsSyncEvent{Event: "charactersSync", Cards: cards}
}

func NewDraftEvent(round, stage int, initiative string, pack []card.Card, endsAt int64, budgets map[string]Budgets) DraftEvent {
	return DraftEvent{Event: "draft", Round: round, Stage: stage, Initiative: initiative, Pack: pack, EndsAt: endsAt, Budgets: budgets}
}

func NewDeckUpdateEvent(decks []string) DeckUpdateEvent {
	return DeckUpdateEvent{Event: "deckUpdate", Decks: decks}
}

func NewOpponentHoverEvent(card string) OpponentHoverEvent {
	return OpponentHoverEvent{Event: "opponentHover", Card: card}
}

func NewOpponentUnhoverEvent() OpponentUnhoverEvent {
	return OpponentUnhoverEvent{Event: "opponentUnhover"}
}

func NewSelectEvent(card string) SelectEvent { return SelectEvent{Event: "select", Card: card} }

func NewSimulationStartEvent() SimulationStartEvent {
	return SimulationStartEvent{Event: "simulationStart"}
}

func NewSimulationStreamEvent(text string) SimulationStreamEvent {
	return SimulationStreamEvent{Event: "simulationStream", Text: text}
}
