package game

import (
	"github.com/JJ-Intelligence/SR-Sea-Battle/pkg/arena"
	"github.com/JJ-Intelligence/SR-Sea-Battle/pkg/board"
)

// Summary is a copy of a game's public fields, safe to use after the lock is
// released.
type Summary struct {
	ID       int          `json:"id" msgpack:"id"`
	Name     string       `json:"name" msgpack:"name"`
	Player1  string       `json:"player1" msgpack:"player1"`
	Player2  string       `json:"player2" msgpack:"player2"`
	Status   arena.Status `json:"status" msgpack:"status"`
	Turn     arena.Side   `json:"turn" msgpack:"turn"`
	Winner   arena.Side   `json:"winner" msgpack:"winner"`
	Placed   [2]int       `json:"placed" msgpack:"placed"`
	LastMove int64        `json:"lastMove" msgpack:"lastMove"`
}

// PlayerOn returns the login seated on side.
func (sm Summary) PlayerOn(side arena.Side) string {
	if side == arena.Side2 {
		return sm.Player2
	}
	return sm.Player1
}

func Summarize(g *arena.Game) Summary {
	return Summary{
		ID:      int(g.ID),
		Name:    g.Name(),
		Player1: g.Player(arena.Side1),
		Player2: g.Player(arena.Side2),
		Status:  g.Status,
		Turn:    g.Turn,
		Winner:  g.Winner,
		Placed: [2]int{
			int(g.Fleet(arena.Side1).Count),
			int(g.Fleet(arena.Side2).Count),
		},
		LastMove: g.LastMove,
	}
}

// List summarizes every game in creation order.
func List(s *arena.State) []Summary {
	games := s.Games()
	out := make([]Summary, len(games))
	for i := range games {
		out[i] = Summarize(&games[i])
	}
	return out
}

// Joinable summarizes the games still waiting for a second player.
func Joinable(s *arena.State) []Summary {
	var out []Summary
	for i := range s.Games() {
		g := &s.Games()[i]
		if g.Status == arena.StatusWaiting && g.Player(arena.Side2) == "" {
			out = append(out, Summarize(g))
		}
	}
	return out
}

// View is what one side may see of a game: its own board in full and the
// opponent's board with unhit ships left for the renderer to hide.
type View struct {
	Summary
	Side    arena.Side
	Own     board.Board
	Enemy   board.Board
	Pending []int
	Afloat  int
}

func (v View) MyTurn() bool {
	return v.Status == arena.StatusPlaying && v.Turn == v.Side
}

func ViewOf(g *arena.Game, side arena.Side) View {
	return View{
		Summary: Summarize(g),
		Side:    side,
		Own:     *g.Board(side),
		Enemy:   *g.Board(side.Opponent()),
		Pending: g.Fleet(side).Pending(),
		Afloat:  g.Fleet(side).Remaining(),
	}
}
