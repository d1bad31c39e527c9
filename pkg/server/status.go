package server

import (
	"fmt"
	"strings"
	"time"

	"github.com/JJ-Intelligence/SR-Sea-Battle/pkg/arena"
	"github.com/JJ-Intelligence/SR-Sea-Battle/pkg/lobby"
)

const recentPlayers = 5

// StatusBroadcast is the periodic server status, logged and sent to feed
// subscribers.
type StatusBroadcast struct {
	Instance   string        `json:"instance" msgpack:"instance"`
	Created    int64         `json:"created" msgpack:"created"`
	Time       int64         `json:"time" msgpack:"time"`
	Players    int           `json:"players" msgpack:"players"`
	MaxPlayers int           `json:"maxPlayers" msgpack:"maxPlayers"`
	Online     int           `json:"online" msgpack:"online"`
	Games      int           `json:"games" msgpack:"games"`
	MaxGames   int           `json:"maxGames" msgpack:"maxGames"`
	Waiting    int           `json:"waiting" msgpack:"waiting"`
	Placing    int           `json:"placing" msgpack:"placing"`
	Playing    int           `json:"playing" msgpack:"playing"`
	Finished   int           `json:"finished" msgpack:"finished"`
	Recoveries int           `json:"recoveries" msgpack:"recoveries"`
	Recent     []lobby.Stats `json:"recent" msgpack:"recent"`
}

// Snapshot copies the status out of s. The caller holds the arena lock.
func Snapshot(s *arena.State, now time.Time) StatusBroadcast {
	limits := s.Limits()
	st := StatusBroadcast{
		Instance:   s.Instance().String(),
		Created:    s.Created(),
		Time:       now.Unix(),
		Players:    len(s.Players()),
		MaxPlayers: int(limits.MaxPlayers),
		Games:      len(s.Games()),
		MaxGames:   int(limits.MaxGames),
		Recoveries: s.Recoveries(),
	}

	for i, p := range lobby.List(s) {
		if p.Online {
			st.Online++
		}
		if i < recentPlayers {
			st.Recent = append(st.Recent, p)
		}
	}

	for _, g := range s.Games() {
		switch g.Status {
		case arena.StatusWaiting:
			st.Waiting++
		case arena.StatusPlacingShips:
			st.Placing++
		case arena.StatusPlaying:
			st.Playing++
		case arena.StatusFinished:
			st.Finished++
		}
	}
	return st
}

// Summary renders the recent players as "login W/L state" entries.
func (st StatusBroadcast) Summary() string {
	entries := make([]string, len(st.Recent))
	for i, p := range st.Recent {
		state := "offline"
		if p.Online {
			state = "online"
		}
		entries[i] = fmt.Sprintf("%s %dW/%dL %s", p.Login, p.Wins, p.Losses, state)
	}
	return strings.Join(entries, ", ")
}
