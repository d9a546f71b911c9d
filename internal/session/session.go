// Package session holds the connection-level types: a Client is any open
// transport connection, a Player is a client that joined with a name and
// occupies one of the two seats.
package session

import (
	"time"

	"github.com/srcmax-studio/war-drafting-simulator-server/internal/deck"
	"github.com/srcmax-studio/war-drafting-simulator-server/internal/protocol"
)

// Discard budgets granted to each player at game start.
const (
	DiscardMaxInitiative = 5
	DiscardMaxPassive    = 1
)

// Client is one open connection. Events are delivered through the Outbox
// channel, drained by the transport's writer goroutine. All fields are owned
// by the orchestrator loop.
type Client struct {
	ID            string
	RemoteAddr    string
	Authenticated bool
	Outbox        chan protocol.Event

	// CloseConn tears down the underlying transport with a status code.
	// Installed by the transport layer; a no-op for test fakes.
	CloseConn func(code int, reason string)
}

func NewClient(id, remoteAddr string, outbox chan protocol.Event, closeConn func(code int, reason string)) *Client {
	if closeConn == nil {
		closeConn = func(int, string) {}
	}
	return &Client{ID: id, RemoteAddr: remoteAddr, Outbox: outbox, CloseConn: closeConn}
}

// Send queues an event without blocking. It reports false when the outbox is
// full, which callers treat as a dead or stalled connection.
func (c *Client) Send(ev protocol.Event) bool {
	select {
	case c.Outbox <- ev:
		return true
	default:
		return false
	}
}

// Player is a seated participant. It embeds the client it currently speaks
// through; reconnection swaps that client out while the player survives.
type Player struct {
	*Client
	Name                    string
	Ready                   bool
	LastPong                time.Time
	InitDiscardRemaining    int
	PassiveDiscardRemaining int
	Deck                    *deck.Deck
}

func NewPlayer(c *Client, name string) *Player {
	return &Player{Client: c, Name: name, LastPong: time.Now()}
}

// Pong records a liveness response from the peer.
func (p *Player) Pong() { p.LastPong = time.Now() }

// Rebind attaches the player to a fresh connection after a reconnect and
// refreshes its liveness so the heartbeat does not immediately reap it.
func (p *Player) Rebind(c *Client) {
	p.Client = c
	p.LastPong = time.Now()
}

// ResetForGame hands out fresh discard budgets and an empty deck.
func (p *Player) ResetForGame() {
	p.InitDiscardRemaining = DiscardMaxInitiative
	p.PassiveDiscardRemaining = DiscardMaxPassive
	p.Deck = deck.New(p.Name)
}

// Info is the roster entry broadcast in playerlist events.
func (p *Player) Info() protocol.PlayerInfo {
	return protocol.PlayerInfo{Name: p.Name, Ready: p.Ready}
}
