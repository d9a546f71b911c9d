// Package server is the session orchestrator: one goroutine owns the
// connection registry, the seated players, the lobby→draft→simulation phase
// machine and the reconnection slot. Transports, timers and the heartbeat
// all talk to it by posting messages to its inbox, so game state never needs
// a lock.
package server

import (
	"context"
	"math/rand"
	"time"

	"go.uber.org/zap"

	"github.com/srcmax-studio/war-drafting-simulator-server/internal/card"
	"github.com/srcmax-studio/war-drafting-simulator-server/internal/engine"
	"github.com/srcmax-studio/war-drafting-simulator-server/internal/protocol"
	"github.com/srcmax-studio/war-drafting-simulator-server/internal/session"
	"github.com/srcmax-studio/war-drafting-simulator-server/internal/sim"
)

// Server phases as they appear on the wire.
const (
	PhaseLobby      = 0
	PhaseDrafting   = 10
	PhaseSimulating = 20
)

// Capacity is the fixed number of seats.
const Capacity = 2

// HeartbeatCloseCode distinguishes liveness closes from ordinary ones.
const HeartbeatCloseCode = 4001

type msg interface{ isMsg() }

type connectMsg struct{ client *session.Client }

type disconnectMsg struct{ id string }

type actionMsg struct {
	id     string
	action protocol.Action
}

// callMsg carries a deferred callback (timer fire, simulation chunk) onto the
// loop.
type callMsg struct{ fn func() }

type viewMsg struct{ reply chan View }

type shutdownMsg struct{}

func (connectMsg) isMsg()    {}
func (disconnectMsg) isMsg() {}
func (actionMsg) isMsg()     {}
func (callMsg) isMsg()       {}
func (viewMsg) isMsg()       {}
func (shutdownMsg) isMsg()   {}

// Options configures a Server. Zero durations fall back to production
// defaults; tests shrink them.
type Options struct {
	Title          string
	Owner          string
	Password       string
	TLS            bool
	Catalog        []card.Card
	Narrator       sim.Narrator
	PromptTemplate string

	Timings           engine.Timings
	HeartbeatInterval time.Duration
	HeartbeatTimeout  time.Duration
	GraceWindow       time.Duration

	Rand   *rand.Rand
	Logger *zap.Logger
}

// Server is the orchestrator. All fields below the inbox are owned by the
// loop goroutine.
type Server struct {
	opts  Options
	log   *zap.Logger
	rng   *rand.Rand
	inbox chan msg

	ctx    context.Context
	cancel context.CancelFunc

	clients map[string]*session.Client
	players map[string]*session.Player
	phase   int
	game    *engine.Engine

	// reconnection slot: at most one disconnected player may be waiting.
	// slotGen invalidates grace fires already posted to the inbox when the
	// slot they were armed for is gone.
	saved     *session.Player
	slotGen   uint64
	stopGrace func() bool
}

func New(parent context.Context, opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Timings == (engine.Timings{}) {
		opts.Timings = engine.DefaultTimings()
	}
	if opts.HeartbeatInterval == 0 {
		opts.HeartbeatInterval = 2 * time.Second
	}
	if opts.HeartbeatTimeout == 0 {
		opts.HeartbeatTimeout = 5 * time.Second
	}
	if opts.GraceWindow == 0 {
		opts.GraceWindow = 60 * time.Second
	}
	if opts.Rand == nil {
		opts.Rand = rand.New(rand.NewSource(time.Now().UnixNano()))
	}

	ctx, cancel := context.WithCancel(parent)
	s := &Server{
		opts:    opts,
		log:     opts.Logger,
		rng:     opts.Rand,
		inbox:   make(chan msg, 64),
		ctx:     ctx,
		cancel:  cancel,
		clients: make(map[string]*session.Client),
		players: make(map[string]*session.Player),
		phase:   PhaseLobby,
	}
	go s.loop()
	return s
}

func (s *Server) post(m msg) {
	select {
	case s.inbox <- m:
	case <-s.ctx.Done():
	}
}

// Connect registers a new transport connection.
func (s *Server) Connect(c *session.Client) { s.post(connectMsg{client: c}) }

// Disconnect reports that a connection's transport is gone.
func (s *Server) Disconnect(id string) { s.post(disconnectMsg{id: id}) }

// Submit delivers a decoded client action to the loop.
func (s *Server) Submit(id string, a protocol.Action) { s.post(actionMsg{id: id, action: a}) }

// Shutdown stops the loop and closes every client outbox.
func (s *Server) Shutdown() { s.post(shutdownMsg{}) }

// After schedules fn onto the orchestrator loop after d. It satisfies the
// engine's Host contract; the returned stop only prevents fires that have not
// yet been posted.
func (s *Server) After(d time.Duration, fn func()) (stop func() bool) {
	t := time.AfterFunc(d, func() { s.post(callMsg{fn: fn}) })
	return t.Stop
}

func (s *Server) loop() {
	heartbeat := time.NewTicker(s.opts.HeartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-s.ctx.Done():
			s.shutdown()
			return

		case <-heartbeat.C:
			s.checkLiveness()

		case m := <-s.inbox:
			switch m := m.(type) {
			case connectMsg:
				s.handleConnect(m.client)
			case disconnectMsg:
				s.handleDisconnect(m.id)
			case actionMsg:
				s.handleAction(m.id, m.action)
			case callMsg:
				m.fn()
			case viewMsg:
				m.reply <- s.view()
			case shutdownMsg:
				s.shutdown()
				return
			}
		}
	}
}

func (s *Server) shutdown() {
	for id, c := range s.clients {
		close(c.Outbox)
		delete(s.clients, id)
	}
	clear(s.players)
	s.clearSlot()
	if s.game != nil {
		s.game.Terminate()
		s.game = nil
	}
	s.cancel()
}

func (s *Server) handleConnect(c *session.Client) {
	s.clients[c.ID] = c
	mConnectionsOpen.Inc()
	c.Send(protocol.NewStatusEvent(s.status()))
	s.log.Debug("client connected", zap.String("remote", c.RemoteAddr))
}

func (s *Server) handleDisconnect(id string) {
	c, ok := s.clients[id]
	if !ok {
		return
	}
	delete(s.clients, id)
	close(c.Outbox)
	mConnectionsOpen.Dec()

	p, ok := s.players[id]
	if !ok {
		return
	}
	delete(s.players, id)
	mPlayersSeated.Dec()
	s.log.Info("player left", zap.String("name", p.Name), zap.Int("online", len(s.players)))

	switch {
	case s.phase != PhaseLobby && s.game != nil && s.saved == nil:
		// Hold the seat open for a reconnect of the same name.
		s.saved = p
		s.slotGen++
		gen := s.slotGen
		s.game.Timer().Pause()
		s.stopGrace = s.After(s.opts.GraceWindow, func() { s.graceExpired(gen) })
		s.broadcastPlayerList()
		s.broadcastMessage(p.Name + " disconnected. Waiting for reconnection.")

	case s.phase != PhaseLobby:
		// Second disconnect while a slot is already pending: nobody is
		// left to play, abort.
		s.endGame()
		s.broadcastPlayerList()

	default:
		s.broadcastPlayerList()
		s.broadcastMessage(p.Name + " left the server.")
	}
}

func (s *Server) graceExpired(gen uint64) {
	// A fire can sit in the inbox behind the rejoin that cleared its slot;
	// the generation check drops it.
	if gen != s.slotGen || s.saved == nil {
		return
	}
	name := s.saved.Name
	s.saved = nil
	s.stopGrace = nil
	s.log.Info("reconnection window expired", zap.String("name", name))
	s.endGame()
	s.broadcastMessage(name + " did not reconnect in time. The game has ended.")
}

func (s *Server) clearSlot() {
	s.slotGen++
	if s.stopGrace != nil {
		s.stopGrace()
		s.stopGrace = nil
	}
	s.saved = nil
}

// endGame tears down any active game, clears the reconnection slot and
// returns to the lobby. Safe to call with no game active.
func (s *Server) endGame() {
	if s.game != nil {
		s.game.Terminate()
		s.game = nil
		mGamesEnded.Inc()
	}
	s.clearSlot()
	s.phase = PhaseLobby
	s.Broadcast(protocol.NewGameEndEvent())
}

func (s *Server) startGame() {
	var pair [2]*session.Player
	i := 0
	for _, p := range s.players {
		p.Ready = false
		pair[i] = p
		i++
	}
	s.phase = PhaseDrafting
	s.game = engine.New(s, s.log, s.opts.Timings, s.opts.Catalog, pair, s.rng)
	mGamesStarted.Inc()
}

// SimulationReached is called by the engine when the initiative deck is
// complete. The narration stream runs off-loop and feeds chunks back in, so
// chat and other actions keep flowing while it streams.
func (s *Server) SimulationReached() {
	s.phase = PhaseSimulating
	s.Broadcast(protocol.NewSimulationStartEvent())

	initiative := s.game.InitiativePlayer()
	passive := s.game.PassivePlayer()
	if s.opts.Narrator == nil {
		s.log.Warn("no narrator configured, skipping simulation stream")
		return
	}
	prompt := sim.BuildPrompt(s.opts.PromptTemplate, initiative.Deck, passive.Deck)
	go s.streamSimulation(prompt, initiative.Name, passive.Name)
}

func (s *Server) streamSimulation(prompt, player1, player2 string) {
	chunks, err := s.opts.Narrator.Stream(s.ctx, prompt)
	if err != nil {
		s.log.Error("failed to start narration stream", zap.Error(err))
		return
	}
	for chunk := range chunks {
		text := sim.RewriteNames(chunk, player1, player2)
		s.post(callMsg{fn: func() {
			s.Broadcast(protocol.NewSimulationStreamEvent(text))
		}})
	}
	s.log.Info("simulation stream complete")
}

// checkLiveness is the heartbeat tick: reap silent players, probe the rest.
func (s *Server) checkLiveness() {
	now := time.Now()
	for _, p := range s.players {
		if now.Sub(p.LastPong) > s.opts.HeartbeatTimeout {
			s.log.Info("closing player for heartbeat timeout", zap.String("name", p.Name))
			p.CloseConn(HeartbeatCloseCode, "heartbeat timeout")
		} else if !p.Send(protocol.NewPingEvent()) {
			s.log.Info("force terminating stalled player", zap.String("name", p.Name))
			p.CloseConn(HeartbeatCloseCode, "stalled connection")
		}
	}
}

// Broadcast sends an event to every seated player. Loop-owned; the engine
// calls it while handling actions and timer fires.
func (s *Server) Broadcast(ev protocol.Event) {
	mBroadcasts.Inc()
	for _, p := range s.players {
		if !p.Send(ev) {
			s.log.Warn("dropping event for stalled player", zap.String("name", p.Name))
		}
	}
}

func (s *Server) broadcastMessage(text string) {
	s.Broadcast(protocol.NewMessageEvent(text))
}

func (s *Server) broadcastPlayerList() {
	s.Broadcast(protocol.NewPlayerListEvent(s.roster()))
}

func (s *Server) roster() []protocol.PlayerInfo {
	out := make([]protocol.PlayerInfo, 0, len(s.players))
	for _, p := range s.players {
		out = append(out, p.Info())
	}
	return out
}

func (s *Server) status() protocol.ServerStatus {
	return protocol.ServerStatus{
		Title:           s.opts.Title,
		Owner:           s.opts.Owner,
		LoadedCards:     len(s.opts.Catalog),
		OnlinePlayers:   len(s.players),
		Phase:           s.phase,
		RequirePassword: s.opts.Password != "",
		TLS:             s.opts.TLS,
	}
}

func (s *Server) opponent(p *session.Player) *session.Player {
	for _, other := range s.players {
		if other != p {
			return other
		}
	}
	return nil
}

// View is a loop-consistent snapshot for tests and the status endpoint.
type View struct {
	Status      protocol.ServerStatus
	Players     []protocol.PlayerInfo
	GameActive  bool
	Round       int
	Stage       int
	Initiative  string
	SlotPending bool
	TimerPaused bool
	Budgets     map[string]protocol.Budgets
}

// View blocks until the loop answers, reflecting state without data races.
func (s *Server) View() View {
	reply := make(chan View, 1)
	s.post(viewMsg{reply: reply})
	select {
	case v := <-reply:
		return v
	case <-s.ctx.Done():
		return View{}
	}
}

func (s *Server) view() View {
	v := View{
		Status:      s.status(),
		Players:     s.roster(),
		GameActive:  s.game != nil,
		SlotPending: s.saved != nil,
		Budgets:     make(map[string]protocol.Budgets),
	}
	for _, p := range s.players {
		v.Budgets[p.Name] = protocol.Budgets{
			InitDiscard:    p.InitDiscardRemaining,
			PassiveDiscard: p.PassiveDiscardRemaining,
		}
	}
	if s.game != nil {
		v.Round = s.game.Round()
		v.Stage = s.game.Stage()
		v.Initiative = s.game.InitiativePlayer().Name
		v.TimerPaused = s.game.Timer().Paused()
	}
	return v
}
