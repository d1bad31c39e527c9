// Package server runs the periodic reconciliation pass over the arena and
// publishes its status.
package server

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/JJ-Intelligence/SR-Sea-Battle/pkg/arena"
	"github.com/JJ-Intelligence/SR-Sea-Battle/pkg/config"
)

// Server stores the dependencies of the reconciliation loop.
type Server struct {
	log   *zap.Logger
	arena *arena.Arena
	cfg   config.ServerConfig
	feed  *Feed
	now   func() time.Time
}

// NewServer constructs a new Server. feed may be nil when the status feed is
// disabled.
func NewServer(log *zap.Logger, a *arena.Arena, cfg config.ServerConfig, feed *Feed) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{
		log:   log,
		arena: a,
		cfg:   cfg,
		feed:  feed,
		now:   time.Now,
	}
}

// Run ticks until ctx is cancelled. It returns nil on cancellation and the
// first arena error otherwise.
func (s *Server) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.cfg.Tick)
	defer ticker.Stop()

	s.log.Info("Reconciliation loop started",
		zap.Duration("tick", s.cfg.Tick),
		zap.Duration("inactivityTimeout", s.cfg.InactivityTimeout))

	for iteration := 1; ; iteration++ {
		if err := s.Tick(iteration); err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			s.log.Info("Reconciliation loop stopped", zap.Int("iterations", iteration))
			return nil
		case <-ticker.C:
		}
	}
}

// Tick runs one reconciliation pass. Every StatusEvery iterations it also
// takes a status snapshot, logs it and sends it to the feed.
func (s *Server) Tick(iteration int) error {
	var (
		report Report
		status StatusBroadcast
	)
	withStatus := iteration%s.cfg.StatusEvery == 0

	err := s.arena.Do(func(st *arena.State) error {
		now := s.now()
		report = Reconcile(st, now, s.cfg.InactivityTimeout)
		if withStatus {
			status = Snapshot(st, now)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.logReport(report)
	if withStatus {
		s.logStatus(status)
		if s.feed != nil {
			s.feed.Broadcast(status)
		}
	}
	return nil
}

func (s *Server) logReport(r Report) {
	if r.Empty() {
		return
	}
	if len(r.Expired) > 0 {
		s.log.Info("Players marked offline after inactivity", zap.Strings("logins", r.Expired))
	}
	for _, g := range r.Started {
		s.log.Info("Game started",
			zap.Int("id", g.ID),
			zap.String("name", g.Name),
			zap.String("player1", g.Player1),
			zap.String("player2", g.Player2))
	}
	for _, g := range r.Finished {
		s.log.Info("Game finished",
			zap.Int("id", g.ID),
			zap.String("name", g.Name),
			zap.String("winner", g.PlayerOn(g.Winner)))
	}
}

func (s *Server) logStatus(st StatusBroadcast) {
	s.log.Info("Server status",
		zap.Int("players", st.Players),
		zap.Int("maxPlayers", st.MaxPlayers),
		zap.Int("online", st.Online),
		zap.Int("games", st.Games),
		zap.Int("maxGames", st.MaxGames),
		zap.Int("waiting", st.Waiting),
		zap.Int("placing", st.Placing),
		zap.Int("playing", st.Playing),
		zap.Int("finished", st.Finished),
		zap.Int("lockRecoveries", st.Recoveries),
		zap.Duration("uptime", time.Duration(st.Time-st.Created)*time.Second),
		zap.String("recent", st.Summary()))
}
