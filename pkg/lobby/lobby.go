// Package lobby is the player registry kept in the arena. Every function
// expects the caller to hold the arena lock.
package lobby

import (
	"errors"
	"fmt"
	"time"
	"unicode"

	"github.com/go-playground/validator/v10"

	"github.com/JJ-Intelligence/SR-Sea-Battle/pkg/arena"
)

const (
	MinLogin = 3
	MaxLogin = arena.MaxLogin - 1
)

var (
	ErrInvalidLogin  = fmt.Errorf("login must be %d-%d bytes without control characters", MinLogin, MaxLogin)
	ErrUnknownPlayer = errors.New("unknown player")
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// Logins are stored in a fixed byte array, so the limit is on bytes.
	err := v.RegisterValidation("login", func(fl validator.FieldLevel) bool {
		login := fl.Field().String()
		if len(login) < MinLogin || len(login) > MaxLogin {
			return false
		}
		for _, r := range login {
			if unicode.IsControl(r) {
				return false
			}
		}
		return true
	})
	if err != nil {
		panic(err)
	}
	return v
}

func ValidateLogin(login string) error {
	if err := validate.Var(login, "required,login"); err != nil {
		return fmt.Errorf("%q: %w", login, ErrInvalidLogin)
	}
	return nil
}

// Find returns the slot of login using an exact, case sensitive match.
func Find(s *arena.State, login string) (int, bool) {
	for i := range s.Players() {
		if s.Players()[i].Login() == login {
			return i, true
		}
	}
	return 0, false
}

func Lookup(s *arena.State, login string) (*arena.Player, error) {
	i, ok := Find(s, login)
	if !ok {
		return nil, fmt.Errorf("%q: %w", login, ErrUnknownPlayer)
	}
	p, _ := s.Player(i)
	return p, nil
}

// RegisterOrResume brings login online. A known login keeps its record and
// statistics; a new one takes the next slot. resumed tells the two apart.
func RegisterOrResume(s *arena.State, login string, now time.Time) (idx int, resumed bool, err error) {
	if err := ValidateLogin(login); err != nil {
		return 0, false, err
	}

	if i, ok := Find(s, login); ok {
		p, _ := s.Player(i)
		p.Online = true
		p.LastSeen = now.Unix()
		return i, true, nil
	}

	i, p, err := s.AddPlayer()
	if err != nil {
		return 0, false, fmt.Errorf("register %q: %w", login, err)
	}
	p.SetLogin(login)
	p.Online = true
	p.LastSeen = now.Unix()
	return i, false, nil
}

func MarkOffline(s *arena.State, login string) error {
	p, err := Lookup(s, login)
	if err != nil {
		return err
	}
	p.Online = false
	return nil
}

// Touch refreshes the last activity time of login.
func Touch(s *arena.State, login string, now time.Time) error {
	p, err := Lookup(s, login)
	if err != nil {
		return err
	}
	p.LastSeen = now.Unix()
	return nil
}

func RecordResult(s *arena.State, login string, won bool) error {
	p, err := Lookup(s, login)
	if err != nil {
		return err
	}
	if won {
		p.Wins++
	} else {
		p.Losses++
	}
	return nil
}

// Bind records that login is seated in gameID.
func Bind(s *arena.State, login string, gameID int) error {
	p, err := Lookup(s, login)
	if err != nil {
		return err
	}
	p.GameID = int32(gameID)
	return nil
}

func Unbind(s *arena.State, login string) error {
	return Bind(s, login, arena.NoGame)
}

// ExpireInactive marks offline every online player idle for longer than
// timeout and returns their logins. Statistics and game bindings are kept.
func ExpireInactive(s *arena.State, now time.Time, timeout time.Duration) []string {
	var expired []string
	cutoff := now.Add(-timeout).Unix()
	for i := range s.Players() {
		p := &s.Players()[i]
		if p.Online && p.LastSeen < cutoff {
			p.Online = false
			expired = append(expired, p.Login())
		}
	}
	return expired
}

// Stats is a copy of one player's record.
type Stats struct {
	Login  string `json:"login" msgpack:"login"`
	Wins   int    `json:"wins" msgpack:"wins"`
	Losses int    `json:"losses" msgpack:"losses"`
	Online bool   `json:"online" msgpack:"online"`
	GameID int    `json:"gameID" msgpack:"gameID"`
}

func (st Stats) Total() int {
	return st.Wins + st.Losses
}

// WinRate is the share of games won in percent, or 0 before the first game.
func (st Stats) WinRate() float64 {
	if st.Total() == 0 {
		return 0
	}
	return float64(st.Wins) / float64(st.Total()) * 100
}

func StatsOf(p *arena.Player) Stats {
	return Stats{
		Login:  p.Login(),
		Wins:   int(p.Wins),
		Losses: int(p.Losses),
		Online: p.Online,
		GameID: int(p.GameID),
	}
}

// List copies every player record in arrival order.
func List(s *arena.State) []Stats {
	players := s.Players()
	stats := make([]Stats, len(players))
	for i := range players {
		stats[i] = StatsOf(&players[i])
	}
	return stats
}
