package server

import (
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/srcmax-studio/war-drafting-simulator-server/internal/protocol"
	"github.com/srcmax-studio/war-drafting-simulator-server/internal/session"
)

// handleAction is the single dispatch point for inbound actions. Status,
// authenticate and join are connection-level; everything else requires a
// seated player.
func (s *Server) handleAction(id string, a protocol.Action) {
	c, ok := s.clients[id]
	if !ok {
		return
	}
	mActions.WithLabelValues(protocol.ActionName(a)).Inc()

	switch act := a.(type) {
	case protocol.Status:
		c.Send(protocol.NewStatusEvent(s.status()))
	case protocol.Authenticate:
		s.handleAuthenticate(c, act.Password)
	case protocol.Join:
		s.handleJoin(c, act.Name)
	default:
		p, ok := s.players[id]
		if !ok {
			c.Send(protocol.NewErrorEvent("Unauthenticated."))
			return
		}
		s.handlePlayerAction(p, a)
	}
}

func (s *Server) handlePlayerAction(p *session.Player, a protocol.Action) {
	switch act := a.(type) {
	case protocol.Pong:
		p.Pong()
		sentAt := act.ClientSentAt
		if sentAt == 0 {
			sentAt = time.Now().UnixMilli()
		}
		p.Send(protocol.NewSyncClockEvent(sentAt, time.Now().UnixMilli()))

	case protocol.RequestCards:
		p.Send(protocol.NewCardsSyncEvent(s.opts.Catalog))

	case protocol.Chat:
		s.broadcastMessage(p.Name + ": " + act.Message)

	case protocol.Ready:
		s.handleReady(p)

	case protocol.Hover:
		if o := s.opponent(p); o != nil {
			o.Send(protocol.NewOpponentHoverEvent(act.Card))
		}

	case protocol.Unhover:
		if o := s.opponent(p); o != nil {
			o.Send(protocol.NewOpponentUnhoverEvent())
		}

	case protocol.Select:
		s.Broadcast(protocol.NewSelectEvent(act.Card))

	case protocol.CardSelect:
		if s.game != nil {
			s.game.HandleCardSelect(p, act.Card)
		}

	case protocol.DecidePassiveDiscard:
		if s.game != nil {
			s.game.HandlePassiveDiscard(p, act.Discard)
		}

	case protocol.InitDiscard:
		if s.game != nil {
			s.game.HandleInitDiscard(p)
		}

	case protocol.SwapPosition:
		if s.game != nil {
			s.game.HandleSwapPosition(p, act.Source, act.Target)
		}
	}
}

func (s *Server) handleAuthenticate(c *session.Client, password string) {
	password = strings.TrimSpace(password)
	if password == "" {
		c.Send(protocol.NewErrorEvent("Password must not be empty."))
		return
	}
	if s.opts.Password == "" || password != s.opts.Password {
		s.log.Warn("client failed to authenticate", zap.String("remote", c.RemoteAddr))
		c.Send(protocol.NewErrorEvent("The provided password does not match."))
		return
	}
	c.Authenticated = true
	s.log.Info("client authenticated", zap.String("remote", c.RemoteAddr))
	c.Send(protocol.NewAuthenticatedEvent())
}

func (s *Server) handleJoin(c *session.Client, name string) {
	if len(s.players) >= Capacity {
		c.Send(protocol.NewErrorEvent("The server is full."))
		return
	}
	if s.opts.Password != "" && !c.Authenticated {
		c.Send(protocol.NewErrorEvent("Password authentication required."))
		return
	}
	name = strings.TrimSpace(name)
	if name == "" {
		c.Send(protocol.NewErrorEvent("Name must not be empty."))
		return
	}
	for _, p := range s.players {
		if p.Name == name {
			c.Send(protocol.NewErrorEvent("This name is already taken."))
			return
		}
	}

	// A pending reconnection slot with a matching name merges the joiner
	// into the saved session; any other join during an active game aborts
	// it before seating the newcomer.
	if s.saved != nil && s.saved.Name == name && s.game != nil {
		s.resumeGame(c)
		return
	}
	if s.game != nil {
		s.endGame()
		s.broadcastMessage("The previous game ended because a new player joined.")
	}

	p := session.NewPlayer(c, name)
	s.players[c.ID] = p
	mPlayersSeated.Inc()
	s.log.Info("player joined", zap.String("name", name), zap.Int("online", len(s.players)))

	p.Send(protocol.NewJoinedEvent(name, s.roster(), s.status()))
	s.broadcastPlayerList()
	s.broadcastMessage(name + " joined the server.")
}

// resumeGame merges a rejoining connection into the saved session: same
// identity and deck, new transport. The stage timer continues with the
// duration it had left when the disconnect happened.
func (s *Server) resumeGame(c *session.Client) {
	p := s.saved
	s.clearSlot()

	p.Rebind(c)
	s.players[c.ID] = p
	mPlayersSeated.Inc()
	s.log.Info("player reconnected", zap.String("name", p.Name))

	p.Send(protocol.NewJoinedEvent(p.Name, s.roster(), s.status()))
	s.broadcastPlayerList()
	s.broadcastMessage(p.Name + " joined the server.")

	s.Broadcast(protocol.NewGameStartEvent(s.game.InitiativePlayer().Name))
	s.game.Timer().Resume()
	s.game.BroadcastDecks()
	if last := s.game.LastDraftEvent(); last != nil {
		s.Broadcast(*last)
	}
	s.broadcastMessage("The game resumes after player reconnection.")
}

func (s *Server) handleReady(p *session.Player) {
	// Readiness only means anything in the lobby; a ready sent mid-game must
	// not restart the engine over a live one.
	if s.phase != PhaseLobby {
		return
	}
	p.Ready = true
	s.broadcastPlayerList()
	s.broadcastMessage(p.Name + " is ready.")

	if len(s.players) < Capacity {
		return
	}
	for _, q := range s.players {
		if !q.Ready {
			return
		}
	}
	s.startGame()
	s.broadcastMessage("All players ready. The game starts.")
}
