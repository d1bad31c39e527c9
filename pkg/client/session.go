// Package client is what the interactive menu calls into: one logged-in
// player acting on the arena.
package client

import (
	"context"
	"errors"
	"math/rand"
	"time"

	"go.uber.org/zap"

	"github.com/JJ-Intelligence/SR-Sea-Battle/pkg/arena"
	"github.com/JJ-Intelligence/SR-Sea-Battle/pkg/board"
	"github.com/JJ-Intelligence/SR-Sea-Battle/pkg/game"
	"github.com/JJ-Intelligence/SR-Sea-Battle/pkg/lobby"
)

var ErrNotLoggedIn = errors.New("log in first")

// Session holds one player's handle on the arena. Nothing read under one lock
// is trusted under the next; every call re-reads the player's binding.
type Session struct {
	log   *zap.Logger
	arena *arena.Arena
	poll  time.Duration
	now   func() time.Time

	login string
	// last is the game the player was seen in, kept so a finished game can
	// still be viewed after its bindings are cleared.
	last  int
}

func NewSession(log *zap.Logger, a *arena.Arena, poll time.Duration) *Session {
	if log == nil {
		log = zap.NewNop()
	}
	return &Session{
		log:   log,
		arena: a,
		poll:  poll,
		now:   time.Now,
		last:  arena.NoGame,
	}
}

func (s *Session) Login() string {
	return s.login
}

// LogIn registers login or brings an existing record back online.
func (s *Session) LogIn(login string) (resumed bool, err error) {
	err = s.arena.Do(func(st *arena.State) error {
		var err error
		_, resumed, err = lobby.RegisterOrResume(st, login, s.now())
		if err != nil {
			return err
		}
		s.login = login
		s.last = arena.NoGame
		if p, err := lobby.Lookup(st, login); err == nil && p.InGame() {
			s.last = int(p.GameID)
		}
		return nil
	})
	if err == nil {
		s.log.Info("Logged in", zap.String("login", login), zap.Bool("resumed", resumed))
	}
	return resumed, err
}

// LogOut marks the player offline. The session can log in again afterwards.
func (s *Session) LogOut() error {
	if s.login == "" {
		return nil
	}
	err := s.arena.Do(func(st *arena.State) error {
		return lobby.MarkOffline(st, s.login)
	})
	if err == nil {
		s.log.Info("Logged out", zap.String("login", s.login))
		s.login = ""
	}
	return err
}

// do runs fn under the lock after refreshing the player's activity. A player
// the server expired comes back online by acting.
func (s *Session) do(fn func(st *arena.State, p *arena.Player) error) error {
	if s.login == "" {
		return ErrNotLoggedIn
	}
	return s.arena.Do(func(st *arena.State) error {
		if err := lobby.Touch(st, s.login, s.now()); err != nil {
			return err
		}
		p, _ := lobby.Lookup(st, s.login)
		p.Online = true
		return fn(st, p)
	})
}

// current resolves the game the player acts in: the bound game, or the last
// one if it has finished since.
func (s *Session) current(st *arena.State, p *arena.Player) (*arena.Game, arena.Side, error) {
	id := s.last
	if p.InGame() {
		id = int(p.GameID)
	}
	g, ok := st.Game(id)
	if !ok {
		return nil, arena.NoSide, game.ErrNotInGame
	}
	if !p.InGame() && g.Status != arena.StatusFinished {
		return nil, arena.NoSide, game.ErrNotInGame
	}
	side, ok := g.SideOf(s.login)
	if !ok {
		return nil, arena.NoSide, game.ErrNotInGame
	}
	s.last = id
	return g, side, nil
}

func (s *Session) Create(name string) (game.Summary, error) {
	var sum game.Summary
	err := s.do(func(st *arena.State, p *arena.Player) error {
		g, err := game.Create(st, name, s.login, s.now())
		if err != nil {
			return err
		}
		s.last = int(g.ID)
		sum = game.Summarize(g)
		return nil
	})
	return sum, err
}

func (s *Session) Join(id int) (game.Summary, error) {
	var sum game.Summary
	err := s.do(func(st *arena.State, p *arena.Player) error {
		g, err := game.Join(st, id, s.login, s.now())
		if err != nil {
			return err
		}
		s.last = int(g.ID)
		sum = game.Summarize(g)
		return nil
	})
	return sum, err
}

// Leave gives up the player's seat. The game itself carries on without them.
// Leaving a game that has already finished only forgets it.
func (s *Session) Leave() error {
	return s.do(func(st *arena.State, p *arena.Player) error {
		if !p.InGame() {
			if _, _, err := s.current(st, p); err != nil {
				return err
			}
			s.last = arena.NoGame
			return nil
		}
		if err := game.Leave(st, s.login); err != nil {
			return err
		}
		s.last = arena.NoGame
		return nil
	})
}

func (s *Session) ListGames() ([]game.Summary, error) {
	var games []game.Summary
	err := s.do(func(st *arena.State, p *arena.Player) error {
		games = game.List(st)
		return nil
	})
	return games, err
}

func (s *Session) Joinable() ([]game.Summary, error) {
	var games []game.Summary
	err := s.do(func(st *arena.State, p *arena.Player) error {
		games = game.Joinable(st)
		return nil
	})
	return games, err
}

func (s *Session) Stats() (lobby.Stats, error) {
	var stats lobby.Stats
	err := s.do(func(st *arena.State, p *arena.Player) error {
		stats = lobby.StatsOf(p)
		return nil
	})
	return stats, err
}

// Players lists every registered player.
func (s *Session) Players() ([]lobby.Stats, error) {
	var players []lobby.Stats
	err := s.do(func(st *arena.State, p *arena.Player) error {
		players = lobby.List(st)
		return nil
	})
	return players, err
}

// View returns the player's side of their current game.
func (s *Session) View() (game.View, error) {
	var v game.View
	err := s.do(func(st *arena.State, p *arena.Player) error {
		g, side, err := s.current(st, p)
		if err != nil {
			return err
		}
		v = game.ViewOf(g, side)
		return nil
	})
	return v, err
}

func (s *Session) PlaceShip(pl board.Placement) (game.View, error) {
	var v game.View
	err := s.do(func(st *arena.State, p *arena.Player) error {
		g, side, err := s.current(st, p)
		if err != nil {
			return err
		}
		if err := game.PlaceShip(st, int(g.ID), side, pl, s.now()); err != nil {
			return err
		}
		v = game.ViewOf(g, side)
		return nil
	})
	return v, err
}

// AutoPlace places every pending ship at random. The packing is worked out
// on a copy and then committed ship by ship through the normal rules, all
// under one lock.
func (s *Session) AutoPlace(r *rand.Rand) (game.View, error) {
	var v game.View
	err := s.do(func(st *arena.State, p *arena.Player) error {
		g, side, err := s.current(st, p)
		if err != nil {
			return err
		}
		if g.Status != arena.StatusPlacingShips {
			return game.ErrWrongStatus
		}

		b, f := *g.Board(side), *g.Fleet(side)
		already := len(f.Placed())
		if err := board.RandomFleet(&b, &f, r); err != nil {
			return err
		}
		for _, ship := range f.Placed()[already:] {
			pl := board.Placement{Origin: ship.Origin, Size: int(ship.Size), Dir: ship.Dir}
			if err := game.PlaceShip(st, int(g.ID), side, pl, s.now()); err != nil {
				return err
			}
		}
		v = game.ViewOf(g, side)
		return nil
	})
	return v, err
}

// Fire shoots at target on the opponent's board.
func (s *Session) Fire(target board.Point) (board.Shot, game.View, error) {
	var (
		shot board.Shot
		v    game.View
	)
	err := s.do(func(st *arena.State, p *arena.Player) error {
		g, side, err := s.current(st, p)
		if err != nil {
			return err
		}
		shot, err = game.Fire(st, int(g.ID), side, target, s.now())
		if err != nil {
			return err
		}
		v = game.ViewOf(g, side)
		return nil
	})
	if err == nil && v.Status == arena.StatusFinished {
		s.log.Info("Game over",
			zap.String("game", v.Name),
			zap.Bool("won", v.Winner == v.Side))
	}
	return shot, v, err
}

// WaitTurn polls until the player has something to do: their turn, ships
// left to place, or a finished game. It gives up when ctx is done.
func (s *Session) WaitTurn(ctx context.Context) (game.View, error) {
	ticker := time.NewTicker(s.poll)
	defer ticker.Stop()

	for {
		v, err := s.View()
		if err != nil {
			return v, err
		}
		if Ready(v) {
			return v, nil
		}
		select {
		case <-ctx.Done():
			return v, ctx.Err()
		case <-ticker.C:
		}
	}
}

// Ready reports whether v needs the player's input.
func Ready(v game.View) bool {
	switch v.Status {
	case arena.StatusPlacingShips:
		return len(v.Pending) > 0
	case arena.StatusPlaying:
		return v.MyTurn()
	case arena.StatusFinished:
		return true
	}
	return false
}
