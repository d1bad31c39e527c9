package server

import (
	"time"

	"github.com/JJ-Intelligence/SR-Sea-Battle/pkg/arena"
	"github.com/JJ-Intelligence/SR-Sea-Battle/pkg/game"
	"github.com/JJ-Intelligence/SR-Sea-Battle/pkg/lobby"
)

// Report lists what one reconciliation pass changed.
type Report struct {
	Expired  []string
	Started  []game.Summary
	Finished []game.Summary
}

func (r Report) Empty() bool {
	return len(r.Expired) == 0 && len(r.Started) == 0 && len(r.Finished) == 0
}

// Reconcile performs the housekeeping no single client is positioned to see:
// idle players go offline, games whose fleets are both complete start, and
// games with a fully sunk side finish. The caller holds the arena lock.
func Reconcile(s *arena.State, now time.Time, inactivity time.Duration) Report {
	var r Report
	r.Expired = lobby.ExpireInactive(s, now, inactivity)

	for i := range s.Games() {
		g := &s.Games()[i]
		if _, ok := game.TryFinish(s, g); ok {
			r.Finished = append(r.Finished, game.Summarize(g))
		}
		if game.TryStart(g) {
			g.LastMove = now.Unix()
			r.Started = append(r.Started, game.Summarize(g))
		}
	}
	return r
}
