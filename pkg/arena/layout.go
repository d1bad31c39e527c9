package arena

import (
	"bytes"
	"errors"
	"unsafe"

	"github.com/google/uuid"

	"github.com/JJ-Intelligence/SR-Sea-Battle/pkg/board"
)

const (
	MaxPlayers = 20
	MaxGames   = 10

	// MaxLogin and MaxName include the terminating zero byte.
	MaxLogin = 30
	MaxName  = 50

	// RegionSize is the byte length of the shared region.
	RegionSize = 65536

	// NoGame marks a player that is not bound to any game.
	NoGame = -1

	sentinel      = 12345
	layoutVersion = 1
)

// The layout must fit in the region.
var _ [RegionSize - unsafe.Sizeof(State{})]byte

var ErrCapacity = errors.New("capacity exceeded")

type Status int32

const (
	StatusWaiting      Status = 0
	StatusPlacingShips Status = 1
	StatusPlaying      Status = 2
	StatusFinished     Status = 3
)

func (s Status) String() string {
	switch s {
	case StatusWaiting:
		return "waiting for player 2"
	case StatusPlacingShips:
		return "placing ships"
	case StatusPlaying:
		return "in progress"
	case StatusFinished:
		return "finished"
	}
	return "unknown"
}

// Side is 1 for the creator of a game and 2 for the player who joined.
// The zero Side means nobody, which is how an undecided winner is stored.
type Side int32

const (
	NoSide Side = 0
	Side1  Side = 1
	Side2  Side = 2
)

func (s Side) Valid() bool {
	return s == Side1 || s == Side2
}

func (s Side) Opponent() Side {
	if s == Side1 {
		return Side2
	}
	return Side1
}

func (s Side) index() int {
	return int(s) - 1
}

type Player struct {
	login    [MaxLogin]byte
	Wins     int32
	Losses   int32
	Online   bool
	GameID   int32
	LastSeen int64
}

func (p *Player) Login() string {
	return cString(p.login[:])
}

func (p *Player) SetLogin(login string) {
	setCString(p.login[:], login)
}

func (p *Player) InGame() bool {
	return p.GameID != NoGame
}

type Game struct {
	ID       int32
	name     [MaxName]byte
	player1  [MaxLogin]byte
	player2  [MaxLogin]byte
	boards   [2]board.Board
	fleets   [2]board.Fleet
	Status   Status
	Turn     Side
	Winner   Side
	LastMove int64
}

func (g *Game) Name() string {
	return cString(g.name[:])
}

func (g *Game) SetName(name string) {
	setCString(g.name[:], name)
}

// Player returns the login seated on side, or "" if the seat is empty.
func (g *Game) Player(side Side) string {
	if side == Side2 {
		return cString(g.player2[:])
	}
	return cString(g.player1[:])
}

func (g *Game) SetPlayer(side Side, login string) {
	if side == Side2 {
		setCString(g.player2[:], login)
		return
	}
	setCString(g.player1[:], login)
}

// SideOf returns the seat login occupies in g.
func (g *Game) SideOf(login string) (Side, bool) {
	switch login {
	case "":
		return NoSide, false
	case g.Player(Side1):
		return Side1, true
	case g.Player(Side2):
		return Side2, true
	}
	return NoSide, false
}

func (g *Game) Board(side Side) *board.Board {
	return &g.boards[side.index()]
}

func (g *Game) Fleet(side Side) *board.Fleet {
	return &g.fleets[side.index()]
}

// Reset clears g for reuse as a new game in slot id.
func (g *Game) Reset(id int) {
	*g = Game{ID: int32(id), Turn: Side1}
}

// Limits are the soft capacities the server chose at initialization. They
// never exceed MaxPlayers and MaxGames.
type Limits struct {
	MaxPlayers int32
	MaxGames   int32
}

func DefaultLimits() Limits {
	return Limits{MaxPlayers: MaxPlayers, MaxGames: MaxGames}
}

func (l Limits) clamp() Limits {
	if l.MaxPlayers < 1 || l.MaxPlayers > MaxPlayers {
		l.MaxPlayers = MaxPlayers
	}
	if l.MaxGames < 1 || l.MaxGames > MaxGames {
		l.MaxGames = MaxGames
	}
	return l
}

type lockRecord struct {
	holder     [16]byte
	pid        int32
	recoveries int32
}

// State is the typed view of the shared region. It contains no pointers, so
// the same bytes mean the same thing in every process running this build.
// Fields are laid out as player table, game table, counters, lock record and
// initialization sentinel, followed by header extensions.
type State struct {
	players     [MaxPlayers]Player
	games       [MaxGames]Game
	playerCount int32
	gameCount   int32
	lock        lockRecord
	initialized int32
	version     int32
	instance    [16]byte
	limits      Limits
	created     int64
}

// NewState returns an initialized State on the heap, for callers that do not
// need cross-process sharing.
func NewState(limits Limits) *State {
	s := new(State)
	s.reset(limits, uuid.New(), 0)
	return s
}

func (s *State) reset(limits Limits, instance uuid.UUID, now int64) {
	*s = State{}
	s.limits = limits.clamp()
	s.instance = instance
	s.created = now
	s.version = layoutVersion
	s.initialized = sentinel
}

func (s *State) valid() bool {
	return s.initialized == sentinel && s.version == layoutVersion
}

func (s *State) Limits() Limits {
	return s.limits
}

// Instance identifies one initialization of the region.
func (s *State) Instance() uuid.UUID {
	return uuid.UUID(s.instance)
}

// Created is the unix time the region was initialized.
func (s *State) Created() int64 {
	return s.created
}

// Recoveries counts how often a dead lock holder was detected.
func (s *State) Recoveries() int {
	return int(s.lock.recoveries)
}

// Players returns the occupied player slots in arrival order. The slice
// aliases the region.
func (s *State) Players() []Player {
	return s.players[:clampCount(s.playerCount, MaxPlayers)]
}

// Games returns the occupied game slots in creation order. The slice aliases
// the region.
func (s *State) Games() []Game {
	return s.games[:clampCount(s.gameCount, MaxGames)]
}

func (s *State) Player(i int) (*Player, bool) {
	if i < 0 || i >= len(s.Players()) {
		return nil, false
	}
	return &s.players[i], true
}

func (s *State) Game(id int) (*Game, bool) {
	if id < 0 || id >= len(s.Games()) {
		return nil, false
	}
	return &s.games[id], true
}

// AddPlayer claims the next free player slot.
func (s *State) AddPlayer() (int, *Player, error) {
	i := len(s.Players())
	if i >= int(s.limits.MaxPlayers) {
		return 0, nil, ErrCapacity
	}
	s.players[i] = Player{GameID: NoGame}
	s.playerCount = int32(i + 1)
	return i, &s.players[i], nil
}

// AddGame claims the next free game slot.
func (s *State) AddGame() (*Game, error) {
	id := len(s.Games())
	if id >= int(s.limits.MaxGames) {
		return nil, ErrCapacity
	}
	g := &s.games[id]
	g.Reset(id)
	s.gameCount = int32(id + 1)
	return g, nil
}

func clampCount(n int32, max int) int {
	if n < 0 {
		return 0
	}
	if int(n) > max {
		return max
	}
	return int(n)
}

func cString(b []byte) string {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		return string(b[:i])
	}
	return string(b)
}

// setCString stores v zero terminated, truncating to fit.
func setCString(b []byte, v string) {
	for i := range b {
		b[i] = 0
	}
	copy(b[:len(b)-1], v)
}
