// Package game is the match state machine: Waiting, PlacingShips, Playing,
// Finished. Every function expects the caller to hold the arena lock and
// re-checks ids and status itself.
package game

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/JJ-Intelligence/SR-Sea-Battle/pkg/arena"
	"github.com/JJ-Intelligence/SR-Sea-Battle/pkg/board"
	"github.com/JJ-Intelligence/SR-Sea-Battle/pkg/lobby"
)

const MaxName = arena.MaxName - 1

var (
	ErrInvalidName   = fmt.Errorf("game name must be 1-%d characters", MaxName)
	ErrNameTaken     = errors.New("game name is already taken")
	ErrNotFound      = errors.New("game not found")
	ErrNotJoinable   = errors.New("game is not waiting for a player")
	ErrAlreadyFull   = errors.New("game already has two players")
	ErrSelfJoin      = errors.New("cannot join your own game")
	ErrAlreadyInGame = errors.New("player is already in a game")
	ErrNotInGame     = errors.New("player is not in a game")
	ErrWrongStatus   = errors.New("game is not in the right phase")
	ErrNotYourTurn   = errors.New("not your turn")
	ErrAlreadyShot   = errors.New("cell was already shot")
)

// Create opens a new game named name with creator seated as player 1.
func Create(s *arena.State, name, creator string, now time.Time) (*arena.Game, error) {
	if strings.TrimSpace(name) == "" || len(name) > MaxName {
		return nil, fmt.Errorf("%q: %w", name, ErrInvalidName)
	}
	p, err := lobby.Lookup(s, creator)
	if err != nil {
		return nil, err
	}
	if p.InGame() {
		return nil, fmt.Errorf("%s: %w", creator, ErrAlreadyInGame)
	}
	if _, taken := FindByName(s, name); taken {
		return nil, fmt.Errorf("%q: %w", name, ErrNameTaken)
	}

	g, err := s.AddGame()
	if err != nil {
		return nil, fmt.Errorf("create %q: %w", name, err)
	}
	g.SetName(name)
	g.SetPlayer(arena.Side1, creator)
	g.Status = arena.StatusWaiting
	g.LastMove = now.Unix()
	if err := lobby.Bind(s, creator, int(g.ID)); err != nil {
		return nil, err
	}
	return g, nil
}

// Join seats joiner as player 2 and moves the game to ship placement.
func Join(s *arena.State, id int, joiner string, now time.Time) (*arena.Game, error) {
	g, err := get(s, id)
	if err != nil {
		return nil, err
	}
	p, err := lobby.Lookup(s, joiner)
	if err != nil {
		return nil, err
	}

	switch {
	case g.Status != arena.StatusWaiting:
		return nil, fmt.Errorf("game %d: %w", id, ErrNotJoinable)
	case g.Player(arena.Side2) != "":
		return nil, fmt.Errorf("game %d: %w", id, ErrAlreadyFull)
	case g.Player(arena.Side1) == joiner:
		return nil, ErrSelfJoin
	case p.InGame():
		return nil, fmt.Errorf("%s: %w", joiner, ErrAlreadyInGame)
	}

	g.SetPlayer(arena.Side2, joiner)
	g.Status = arena.StatusPlacingShips
	g.LastMove = now.Unix()
	if err := lobby.Bind(s, joiner, int(g.ID)); err != nil {
		return nil, err
	}
	return g, nil
}

// PlaceShip adds one ship to side's fleet. The game only moves on to Playing
// through TryStart.
func PlaceShip(s *arena.State, id int, side arena.Side, pl board.Placement, now time.Time) error {
	g, err := get(s, id)
	if err != nil {
		return err
	}
	if !side.Valid() {
		return ErrNotInGame
	}
	if g.Status != arena.StatusPlacingShips {
		return fmt.Errorf("place ship in game %d (%s): %w", id, g.Status, ErrWrongStatus)
	}

	if err := g.Fleet(side).Add(g.Board(side), pl.Origin, pl.Size, pl.Dir); err != nil {
		return err
	}
	g.LastMove = now.Unix()
	return nil
}

// TryStart moves g to Playing once both fleets are complete. It is safe to
// call any number of times from any process holding the lock.
func TryStart(g *arena.Game) bool {
	if g.Status != arena.StatusPlacingShips {
		return false
	}
	if !g.Fleet(arena.Side1).Complete() || !g.Fleet(arena.Side2).Complete() {
		return false
	}
	g.Status = arena.StatusPlaying
	g.Turn = arena.Side1
	return true
}

// Fire resolves a shot by side at the opponent's board. A miss passes the
// turn; a hit or a sinking keeps it. Sinking the last ship finishes the game.
func Fire(s *arena.State, id int, side arena.Side, target board.Point, now time.Time) (board.Shot, error) {
	g, err := get(s, id)
	if err != nil {
		return board.Miss, err
	}
	if !side.Valid() {
		return board.Miss, ErrNotInGame
	}
	if g.Status != arena.StatusPlaying {
		return board.Miss, fmt.Errorf("fire in game %d (%s): %w", id, g.Status, ErrWrongStatus)
	}
	if g.Turn != side {
		return board.Miss, ErrNotYourTurn
	}

	defender := side.Opponent()
	shot, err := board.ResolveShot(g.Board(defender), g.Fleet(defender), target)
	if err != nil {
		return board.Miss, err
	}
	if shot == board.AlreadyShot {
		return shot, fmt.Errorf("(%d,%d): %w", target.X, target.Y, ErrAlreadyShot)
	}

	g.LastMove = now.Unix()
	switch shot {
	case board.Miss:
		g.Turn = defender
	case board.Sunk:
		if g.Fleet(defender).Remaining() == 0 {
			finish(s, g, side)
		}
	}
	return shot, nil
}

// TryFinish ends a Playing game in which one side has nothing left afloat.
// Fire normally does this itself; TryFinish lets the server close games a
// client left behind.
func TryFinish(s *arena.State, g *arena.Game) (arena.Side, bool) {
	if g.Status != arena.StatusPlaying {
		return arena.NoSide, false
	}
	for _, side := range []arena.Side{arena.Side1, arena.Side2} {
		if g.Fleet(side.Opponent()).Remaining() == 0 {
			finish(s, g, side)
			return side, true
		}
	}
	return arena.NoSide, false
}

func finish(s *arena.State, g *arena.Game, winner arena.Side) {
	g.Status = arena.StatusFinished
	g.Winner = winner

	for _, side := range []arena.Side{arena.Side1, arena.Side2} {
		login := g.Player(side)
		if err := lobby.RecordResult(s, login, side == winner); err != nil {
			continue
		}
		// A player who left may already sit in another game.
		if p, _ := lobby.Lookup(s, login); p.GameID == g.ID {
			lobby.Unbind(s, login)
		}
	}
}

// Leave clears login's game binding. The game itself is left untouched, so an
// opponent keeps waiting on an absent peer.
func Leave(s *arena.State, login string) error {
	p, err := lobby.Lookup(s, login)
	if err != nil {
		return err
	}
	if !p.InGame() {
		return ErrNotInGame
	}
	return lobby.Unbind(s, login)
}

func FindByName(s *arena.State, name string) (*arena.Game, bool) {
	for i := range s.Games() {
		if s.Games()[i].Name() == name {
			return &s.Games()[i], true
		}
	}
	return nil, false
}

func get(s *arena.State, id int) (*arena.Game, error) {
	g, ok := s.Game(id)
	if !ok {
		return nil, fmt.Errorf("game %d: %w", id, ErrNotFound)
	}
	return g, nil
}
