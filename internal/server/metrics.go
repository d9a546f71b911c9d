package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	mConnectionsOpen = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "wds_connections_open",
		Help: "Currently open transport connections.",
	})
	mPlayersSeated = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "wds_players_seated",
		Help: "Currently seated players.",
	})
	mActions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wds_actions_total",
		Help: "Inbound client actions by kind.",
	}, []string{"action"})
	mBroadcasts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "wds_events_broadcast_total",
		Help: "Events fanned out to all seated players.",
	})
	mGamesStarted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "wds_games_started_total",
		Help: "Games started.",
	})
	mGamesEnded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "wds_games_ended_total",
		Help: "Games ended, by completion or abort.",
	})
)
