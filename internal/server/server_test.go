package server

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/srcmax-studio/war-drafting-simulator-server/internal/card"
	"github.com/srcmax-studio/war-drafting-simulator-server/internal/engine"
	"github.com/srcmax-studio/war-drafting-simulator-server/internal/protocol"
	"github.com/srcmax-studio/war-drafting-simulator-server/internal/session"
)

func makeCatalog(n int) []card.Card {
	cards := make([]card.Card, n)
	for i := range cards {
		cards[i] = card.Card{
			UID:  fmt.Sprintf("u%03d", i),
			ID:   fmt.Sprintf("c%03d", i),
			Name: fmt.Sprintf("Card %03d", i),
		}
	}
	return cards
}

func newTestServer(t *testing.T, mutate func(*Options)) *Server {
	t.Helper()
	opts := Options{
		Title:   "test server",
		Catalog: makeCatalog(60),
		Logger:  zap.NewNop(),
	}
	if mutate != nil {
		mutate(&opts)
	}
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	return New(ctx, opts)
}

// connect registers a fake transport whose close hook reports a disconnect,
// the way the websocket layer does.
func connect(t *testing.T, s *Server, id string) (*session.Client, chan protocol.Event) {
	t.Helper()
	out := make(chan protocol.Event, 256)
	c := session.NewClient(id, "test", out, func(code int, reason string) { s.Disconnect(id) })
	s.Connect(c)
	recvMatch(t, out, func(ev protocol.Event) bool {
		_, ok := ev.(protocol.StatusEvent)
		return ok
	})
	return c, out
}

// recvMatch drains events until one matches, failing on timeout or a closed
// outbox.
func recvMatch(t *testing.T, ch chan protocol.Event, match func(protocol.Event) bool) protocol.Event {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				t.Fatalf("outbox closed while waiting for event")
			}
			if match(ev) {
				return ev
			}
		case <-deadline:
			t.Fatalf("timed out waiting for event")
		}
	}
}

func isEvent[E protocol.Event](ev protocol.Event) bool {
	_, ok := ev.(E)
	return ok
}

func join(t *testing.T, s *Server, c *session.Client, out chan protocol.Event, name string) {
	t.Helper()
	s.Submit(c.ID, protocol.Join{Name: name})
	recvMatch(t, out, isEvent[protocol.JoinedEvent])
}

func expectError(t *testing.T, s *Server, c *session.Client, out chan protocol.Event, a protocol.Action, want string) {
	t.Helper()
	s.Submit(c.ID, a)
	ev := recvMatch(t, out, isEvent[protocol.ErrorEvent])
	require.Equal(t, want, ev.(protocol.ErrorEvent).Message)
}

func startGame(t *testing.T, s *Server) (c1, c2 *session.Client, out1, out2 chan protocol.Event) {
	t.Helper()
	c1, out1 = connect(t, s, "c1")
	c2, out2 = connect(t, s, "c2")
	join(t, s, c1, out1, "Alice")
	join(t, s, c2, out2, "Bob")
	s.Submit(c1.ID, protocol.Ready{})
	s.Submit(c2.ID, protocol.Ready{})
	recvMatch(t, out1, isEvent[protocol.GameStartEvent])
	return c1, c2, out1, out2
}

func TestJoinCapacityAndNames(t *testing.T) {
	s := newTestServer(t, nil)

	c1, out1 := connect(t, s, "c1")
	c2, out2 := connect(t, s, "c2")
	c3, out3 := connect(t, s, "c3")

	join(t, s, c1, out1, "Alice")
	expectError(t, s, c2, out2, protocol.Join{Name: "Alice"}, "This name is already taken.")
	expectError(t, s, c2, out2, protocol.Join{Name: "   "}, "Name must not be empty.")
	join(t, s, c2, out2, "Bob")
	expectError(t, s, c3, out3, protocol.Join{Name: "Carol"}, "The server is full.")

	v := s.View()
	require.Equal(t, 2, v.Status.OnlinePlayers)
	require.Equal(t, PhaseLobby, v.Status.Phase)
}

func TestJoinRequiresAuthentication(t *testing.T) {
	s := newTestServer(t, func(o *Options) { o.Password = "hunter2" })
	c, out := connect(t, s, "c1")

	expectError(t, s, c, out, protocol.Join{Name: "Alice"}, "Password authentication required.")
	expectError(t, s, c, out, protocol.Authenticate{Password: ""}, "Password must not be empty.")
	expectError(t, s, c, out, protocol.Authenticate{Password: "wrong"}, "The provided password does not match.")

	s.Submit(c.ID, protocol.Authenticate{Password: "hunter2"})
	recvMatch(t, out, isEvent[protocol.AuthenticatedEvent])
	join(t, s, c, out, "Alice")
}

func TestPlayerActionBeforeJoinRejected(t *testing.T) {
	s := newTestServer(t, nil)
	c, out := connect(t, s, "c1")
	expectError(t, s, c, out, protocol.Ready{}, "Unauthenticated.")
}

func TestBothReadyStartsGame(t *testing.T) {
	s := newTestServer(t, nil)
	_, _, out1, out2 := startGame(t, s)

	start := recvMatch(t, out2, isEvent[protocol.GameStartEvent]).(protocol.GameStartEvent)
	require.Contains(t, []string{"Alice", "Bob"}, start.Initiative)

	draft := recvMatch(t, out1, isEvent[protocol.DraftEvent]).(protocol.DraftEvent)
	require.Equal(t, 1, draft.Round)
	require.Contains(t, []int{engine.StagePassiveDiscard, engine.StageInit}, draft.Stage)

	v := s.View()
	require.True(t, v.GameActive)
	require.Equal(t, PhaseDrafting, v.Status.Phase)
	require.Equal(t, 1, v.Round)
	for _, p := range v.Players {
		require.False(t, p.Ready, "readiness must be cleared at game start")
	}
}

func TestMidGameReadyDoesNotRestartEngine(t *testing.T) {
	s := newTestServer(t, nil)
	c1, c2, out1, _ := startGame(t, s)

	before := s.View()
	require.True(t, before.GameActive)
	require.Equal(t, 1, before.Round)

	// Both players spamming ready mid-game must not build a second engine
	// over the live one.
	s.Submit(c1.ID, protocol.Ready{})
	s.Submit(c2.ID, protocol.Ready{})
	s.Submit(c1.ID, protocol.Chat{Message: "still drafting"})

	ev := recvMatch(t, out1, func(ev protocol.Event) bool {
		if _, restarted := ev.(protocol.GameStartEvent); restarted {
			return true
		}
		m, ok := ev.(protocol.MessageEvent)
		return ok && m.Message == "Alice: still drafting"
	})
	require.IsType(t, protocol.MessageEvent{}, ev, "game must not restart on mid-game ready")

	after := s.View()
	require.True(t, after.GameActive)
	require.Equal(t, PhaseDrafting, after.Status.Phase)
	require.Equal(t, before.Round, after.Round)
	require.Equal(t, before.Stage, after.Stage)
	for _, p := range after.Players {
		require.False(t, p.Ready)
	}
}

func TestPongAnswersSyncClock(t *testing.T) {
	s := newTestServer(t, nil)
	c, out := connect(t, s, "c1")
	join(t, s, c, out, "Alice")

	s.Submit(c.ID, protocol.Pong{ClientSentAt: 12345})
	ev := recvMatch(t, out, isEvent[protocol.SyncClockEvent]).(protocol.SyncClockEvent)
	require.EqualValues(t, 12345, ev.ClientSentAt)
	require.NotZero(t, ev.ServerTime)
}

func TestChatIsBroadcastToEveryone(t *testing.T) {
	s := newTestServer(t, nil)
	c1, out1 := connect(t, s, "c1")
	c2, out2 := connect(t, s, "c2")
	join(t, s, c1, out1, "Alice")
	join(t, s, c2, out2, "Bob")

	s.Submit(c1.ID, protocol.Chat{Message: "good luck"})
	want := "Alice: good luck"
	for _, out := range []chan protocol.Event{out1, out2} {
		ev := recvMatch(t, out, func(ev protocol.Event) bool {
			m, ok := ev.(protocol.MessageEvent)
			return ok && m.Message == want
		})
		require.Equal(t, want, ev.(protocol.MessageEvent).Message)
	}
}

func TestHoverForwardedToOpponent(t *testing.T) {
	s := newTestServer(t, nil)
	c1, out1 := connect(t, s, "c1")
	c2, out2 := connect(t, s, "c2")
	join(t, s, c1, out1, "Alice")
	join(t, s, c2, out2, "Bob")

	s.Submit(c1.ID, protocol.Hover{Card: "Card 001"})
	ev := recvMatch(t, out2, isEvent[protocol.OpponentHoverEvent]).(protocol.OpponentHoverEvent)
	require.Equal(t, "Card 001", ev.Card)

	s.Submit(c1.ID, protocol.Unhover{})
	recvMatch(t, out2, isEvent[protocol.OpponentUnhoverEvent])
}

func TestRequestCardsSyncsCatalog(t *testing.T) {
	s := newTestServer(t, nil)
	c, out := connect(t, s, "c1")
	join(t, s, c, out, "Alice")

	s.Submit(c.ID, protocol.RequestCards{})
	ev := recvMatch(t, out, isEvent[protocol.CardsSyncEvent]).(protocol.CardsSyncEvent)
	require.Len(t, ev.Cards, 60)
}

func TestReconnectWithinGraceResumes(t *testing.T) {
	s := newTestServer(t, func(o *Options) { o.GraceWindow = 5 * time.Second })
	_, _, out1, out2 := startGame(t, s)

	before := recvMatch(t, out1, isEvent[protocol.DraftEvent]).(protocol.DraftEvent)

	s.Disconnect("c1")
	recvMatch(t, out2, func(ev protocol.Event) bool {
		m, ok := ev.(protocol.MessageEvent)
		return ok && m.Message == "Alice disconnected. Waiting for reconnection."
	})
	v := s.View()
	require.True(t, v.SlotPending)
	require.True(t, v.TimerPaused)
	require.True(t, v.GameActive)
	require.Equal(t, 1, v.Status.OnlinePlayers)

	c3, out3 := connect(t, s, "c3")
	join(t, s, c3, out3, "Alice")

	recvMatch(t, out3, isEvent[protocol.GameStartEvent])
	recvMatch(t, out3, isEvent[protocol.DeckUpdateEvent])
	replay := recvMatch(t, out3, isEvent[protocol.DraftEvent]).(protocol.DraftEvent)
	require.Equal(t, before.Round, replay.Round)
	require.Equal(t, before.Stage, replay.Stage)
	require.Equal(t, before.EndsAt, replay.EndsAt)

	v = s.View()
	require.False(t, v.SlotPending)
	require.False(t, v.TimerPaused)
	require.True(t, v.GameActive)
	require.Equal(t, 2, v.Status.OnlinePlayers)
}

func TestStaleGraceFireIgnoresNewerSlot(t *testing.T) {
	s := newTestServer(t, func(o *Options) { o.GraceWindow = time.Hour })
	_, _, _, out2 := startGame(t, s)

	s.Disconnect("c1")
	recvMatch(t, out2, func(ev protocol.Event) bool {
		m, ok := ev.(protocol.MessageEvent)
		return ok && m.Message == "Alice disconnected. Waiting for reconnection."
	})

	// Capture the generation the armed expiry carries for Alice's slot.
	genCh := make(chan uint64, 1)
	s.post(callMsg{fn: func() { genCh <- s.slotGen }})
	staleGen := <-genCh

	c3, out3 := connect(t, s, "c3")
	join(t, s, c3, out3, "Alice")
	recvMatch(t, out3, isEvent[protocol.DraftEvent])

	// Bob drops next, opening a fresh slot. An expiry for Alice's old slot
	// can still be queued behind all of this; replaying it must not abort
	// Bob's reconnection window.
	s.Disconnect("c2")
	s.post(callMsg{fn: func() { s.graceExpired(staleGen) }})

	v := s.View()
	require.True(t, v.GameActive)
	require.True(t, v.SlotPending)
	require.True(t, v.TimerPaused)
	require.Equal(t, PhaseDrafting, v.Status.Phase)
}

func TestGraceExpiryAbortsGame(t *testing.T) {
	s := newTestServer(t, func(o *Options) { o.GraceWindow = 40 * time.Millisecond })
	_, _, _, out2 := startGame(t, s)

	s.Disconnect("c1")
	recvMatch(t, out2, isEvent[protocol.GameEndEvent])

	require.Eventually(t, func() bool {
		v := s.View()
		return !v.GameActive && !v.SlotPending && v.Status.Phase == PhaseLobby
	}, 2*time.Second, 10*time.Millisecond)
}

func TestDifferentNameJoinDuringGraceAbortsGame(t *testing.T) {
	s := newTestServer(t, func(o *Options) { o.GraceWindow = 5 * time.Second })
	_, _, _, out2 := startGame(t, s)

	s.Disconnect("c1")
	c3, out3 := connect(t, s, "c3")
	join(t, s, c3, out3, "Carol")

	recvMatch(t, out2, isEvent[protocol.GameEndEvent])
	v := s.View()
	require.False(t, v.GameActive)
	require.False(t, v.SlotPending)
	require.Equal(t, PhaseLobby, v.Status.Phase)
	require.Equal(t, 2, v.Status.OnlinePlayers)
}

func TestHeartbeatClosesSilentPlayer(t *testing.T) {
	s := newTestServer(t, func(o *Options) {
		o.HeartbeatInterval = 20 * time.Millisecond
		o.HeartbeatTimeout = 50 * time.Millisecond
	})
	c, out := connect(t, s, "c1")
	join(t, s, c, out, "Alice")

	// The monitor probes first, then reaps once the silence exceeds the
	// timeout.
	recvMatch(t, out, isEvent[protocol.PingEvent])
	require.Eventually(t, func() bool {
		return s.View().Status.OnlinePlayers == 0
	}, 2*time.Second, 10*time.Millisecond)
}

type fakeNarrator struct{ chunks []string }

func (f fakeNarrator) Stream(ctx context.Context, prompt string) (<-chan string, error) {
	out := make(chan string)
	go func() {
		defer close(out)
		for _, c := range f.chunks {
			select {
			case out <- c:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

func TestDraftCompletionStreamsSimulation(t *testing.T) {
	s := newTestServer(t, func(o *Options) {
		o.Timings = engine.Timings{
			PassiveDiscard: 2 * time.Millisecond,
			Init:           2 * time.Millisecond,
			Passive:        2 * time.Millisecond,
		}
		o.Narrator = fakeNarrator{chunks: []string{"P1 strikes first. ", "P2 holds the line."}}
		o.PromptTemplate = "Simulate this battle: ##DECKDATA##"
	})
	_, _, _, out2 := startGame(t, s)

	recvMatch(t, out2, isEvent[protocol.SimulationStartEvent])
	first := recvMatch(t, out2, isEvent[protocol.SimulationStreamEvent]).(protocol.SimulationStreamEvent)
	require.Contains(t, first.Text, "(P1)")
	second := recvMatch(t, out2, isEvent[protocol.SimulationStreamEvent]).(protocol.SimulationStreamEvent)
	require.Contains(t, second.Text, "(P2)")

	require.Equal(t, PhaseSimulating, s.View().Status.Phase)
}

func TestEndGameIsSafeWithoutGame(t *testing.T) {
	s := newTestServer(t, nil)
	c, out := connect(t, s, "c1")
	join(t, s, c, out, "Alice")

	// Leaving in the lobby must not trip game teardown.
	s.Disconnect("c1")
	require.Eventually(t, func() bool {
		return s.View().Status.OnlinePlayers == 0
	}, time.Second, 5*time.Millisecond)
	require.Equal(t, PhaseLobby, s.View().Status.Phase)
}
