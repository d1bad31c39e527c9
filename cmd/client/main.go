package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sasha-s/go-deadlock"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/JJ-Intelligence/SR-Sea-Battle/pkg/arena"
	"github.com/JJ-Intelligence/SR-Sea-Battle/pkg/client"
	"github.com/JJ-Intelligence/SR-Sea-Battle/pkg/config"
	"github.com/JJ-Intelligence/SR-Sea-Battle/pkg/game"
)

var configPath = flag.String("config", os.Getenv(config.EnvPath), "Path to the YAML config file")

// newLogger keeps the menu readable: outside development only warnings and
// errors reach stderr.
func newLogger(development bool) *zap.Logger {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zapcore.WarnLevel)
	if development {
		cfg = zap.NewDevelopmentConfig()
	}
	log, err := cfg.Build()
	if err != nil {
		return zap.NewNop()
	}
	return log
}

func main() {
	os.Exit(run())
}

func run() int {
	flag.Parse()

	cfg, err := config.ParseConfig(config.Path(*configPath))
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	log := newLogger(cfg.Log.Development)
	defer log.Sync()

	deadlock.Opts.Disable = !cfg.Debug.DeadlockDetection
	deadlock.Opts.DeadlockTimeout = cfg.Debug.DeadlockTimeout

	a, err := arena.Open(cfg.Arena.Path, arena.WithLogger(log))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Cannot reach the game server at %s (%v). Start the server first.\n", cfg.Arena.Path, err)
		return 1
	}
	defer a.Close()

	m := &menu{
		console: newConsole(os.Stdin, os.Stdout),
		session: client.NewSession(log, a, cfg.Client.Poll),
		rand:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	err = m.run()
	if logoutErr := m.session.LogOut(); err == nil {
		err = logoutErr
	}
	if errors.Is(err, arena.ErrReset) {
		fmt.Fprintln(os.Stderr, "The server was restarted. Please start the client again.")
		return 1
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	return 0
}

type menu struct {
	*console
	session *client.Session
	rand    *rand.Rand
}

// run drives the menus until the player exits or input ends. Only errors the
// player cannot act on are returned.
func (m *menu) run() error {
	if err := m.logIn(); err != nil || m.session.Login() == "" {
		return err
	}

	for {
		v, err := m.session.View()
		var done bool
		switch {
		case errors.Is(err, game.ErrNotInGame):
			done, err = m.lobbyMenu()
		case err == nil:
			done, err = m.gameMenu(v)
		}
		if err != nil || done {
			return err
		}
	}
}

func (m *menu) logIn() error {
	for {
		login, ok := m.askLine("Login: ")
		if !ok {
			return nil
		}
		resumed, err := m.session.LogIn(login)
		if err != nil {
			if fatal(err) {
				return err
			}
			m.printf("%v\n", err)
			continue
		}
		if resumed {
			m.printf("Welcome back, %s.\n", login)
		} else {
			m.printf("Welcome, %s.\n", login)
		}
		return nil
	}
}

// fatal picks out errors that end the session rather than a single action.
func fatal(err error) bool {
	return errors.Is(err, arena.ErrReset) || errors.Is(err, arena.ErrLock) || errors.Is(err, arena.ErrClosed)
}

// report prints a recoverable error and passes fatal ones up.
func (m *menu) report(err error) error {
	if err == nil || fatal(err) {
		return err
	}
	m.printf("Error: %v\n", err)
	return nil
}

func (m *menu) lobbyMenu() (bool, error) {
	m.printf("\n1) Create game  2) Join game  3) List games  4) Statistics  5) Exit\n")
	choice, ok := m.choose("> ", 5)
	if !ok {
		return true, nil
	}

	switch choice {
	case 1:
		name, ok := m.ask("Game name: ")
		if !ok {
			return true, nil
		}
		g, err := m.session.Create(name)
		if err == nil {
			m.printf("Created game %d %q. Waiting for an opponent.\n", g.ID, g.Name)
		}
		return false, m.report(err)

	case 2:
		games, err := m.session.Joinable()
		if err != nil {
			return false, m.report(err)
		}
		if len(games) == 0 {
			m.printf("No games are waiting for a player.\n")
			return false, nil
		}
		m.printGames(games)
		line, ok := m.ask("Game id: ")
		if !ok {
			return true, nil
		}
		var id int
		if _, err := fmt.Sscan(line, &id); err != nil {
			m.printf("Not a game id.\n")
			return false, nil
		}
		g, err := m.session.Join(id)
		if err == nil {
			m.printf("Joined %q against %s. Place your ships.\n", g.Name, g.Player1)
		}
		return false, m.report(err)

	case 3:
		games, err := m.session.ListGames()
		if err != nil {
			return false, m.report(err)
		}
		if len(games) == 0 {
			m.printf("No games yet.\n")
		}
		m.printGames(games)
		return false, nil

	case 4:
		return false, m.report(m.printStats())
	}
	return true, nil
}

func (m *menu) gameMenu(v game.View) (bool, error) {
	m.printf("\nGame %q (%s)\n", v.Name, v.Status)
	m.printf("1) Play  2) Info  3) Leave game  4) Exit\n")
	choice, ok := m.choose("> ", 4)
	if !ok {
		return true, nil
	}

	switch choice {
	case 1:
		return false, m.play()
	case 2:
		m.printView(v)
		return false, nil
	case 3:
		err := m.session.Leave()
		if err == nil {
			m.printf("You left %q.\n", v.Name)
		}
		return false, m.report(err)
	}
	return true, nil
}

// play handles whatever the game needs next: placing ships, firing, or
// waiting for the opponent. Ctrl-C during a wait returns to the menu.
func (m *menu) play() error {
	for {
		v, err := m.session.View()
		if err != nil {
			return m.report(err)
		}

		if !client.Ready(v) {
			m.printf("Waiting for %s... (Ctrl-C to return to the menu)\n", waitingFor(v))
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			v, err = m.session.WaitTurn(ctx)
			stop()
			if errors.Is(err, context.Canceled) {
				m.printf("\n")
				return nil
			}
			if err != nil {
				return m.report(err)
			}
		}

		var again bool
		switch v.Status {
		case arena.StatusPlacingShips:
			again, err = m.placeShips(v)
		case arena.StatusPlaying:
			again, err = m.fire(v)
		case arena.StatusFinished:
			m.printView(v)
			if v.Winner == v.Side {
				m.printf("You won!\n")
			} else {
				m.printf("You lost.\n")
			}
			return nil
		}
		if err != nil || !again {
			return err
		}
	}
}

func waitingFor(v game.View) string {
	switch v.Status {
	case arena.StatusWaiting:
		return "an opponent to join"
	case arena.StatusPlacingShips:
		return "your opponent to place their ships"
	}
	return "your turn"
}

// placeShips prompts for placements until the fleet is complete. It reports
// whether play should continue.
func (m *menu) placeShips(v game.View) (bool, error) {
	for len(v.Pending) > 0 {
		m.printf("\n%s", v.Own.Render(true))
		m.printf("Ships to place: %v\n", v.Pending)
		line, ok := m.ask("Place \"size x y h|v\", \"a\" to place the rest at random, empty to go back: ")
		if !ok || line == "" {
			return false, nil
		}

		var (
			next game.View
			err  error
		)
		if line == "a" || line == "auto" {
			next, err = m.session.AutoPlace(m.rand)
		} else {
			pl, perr := parsePlacement(line)
			if perr != nil {
				m.printf("%v\n", perr)
				continue
			}
			next, err = m.session.PlaceShip(pl)
		}
		if err != nil {
			if err := m.report(err); err != nil {
				return false, err
			}
			if errors.Is(err, game.ErrWrongStatus) || errors.Is(err, game.ErrNotInGame) {
				return false, nil
			}
			continue
		}
		v = next
	}
	m.printf("\n%sFleet complete.\n", v.Own.Render(true))
	return true, nil
}

// fire prompts for shots while it is the player's turn.
func (m *menu) fire(v game.View) (bool, error) {
	for v.MyTurn() {
		m.printView(v)
		line, ok := m.ask("Fire at \"x y\", empty to go back: ")
		if !ok || line == "" {
			return false, nil
		}
		target, err := parseTarget(line)
		if err != nil {
			m.printf("%v\n", err)
			continue
		}

		shot, next, err := m.session.Fire(target)
		if err != nil {
			if err := m.report(err); err != nil {
				return false, err
			}
			if errors.Is(err, game.ErrNotYourTurn) || errors.Is(err, game.ErrWrongStatus) {
				return true, nil
			}
			continue
		}
		m.printf("(%d,%d): %s\n", target.X, target.Y, shot)
		v = next
	}
	return true, nil
}

func (m *menu) printGames(games []game.Summary) {
	for _, g := range games {
		m.printf("%3d  %-20s %-13s %s vs %s\n", g.ID, g.Name, g.Status, g.Player1, orDash(g.Player2))
	}
}

func (m *menu) printStats() error {
	players, err := m.session.Players()
	if err != nil {
		return err
	}
	for _, p := range players {
		marker := " "
		if p.Login == m.session.Login() {
			marker = "*"
		}
		state := "offline"
		if p.Online {
			state = "online"
		}
		m.printf("%s %-29s %3dW %3dL %5.1f%% %s\n", marker, p.Login, p.Wins, p.Losses, p.WinRate(), state)
	}
	return nil
}

func (m *menu) printView(v game.View) {
	m.printf("\nGame %d %q: %s vs %s, %s\n", v.ID, v.Name, v.Player1, orDash(v.Player2), v.Status)
	if v.Status == arena.StatusPlaying {
		if v.MyTurn() {
			m.printf("Your turn.\n")
		} else {
			m.printf("%s's turn.\n", v.PlayerOn(v.Turn))
		}
	}
	m.printf("\nYour fleet (%d afloat):\n%s", v.Afloat, v.Own.Render(true))
	m.printf("\nEnemy waters:\n%s", v.Enemy.Render(false))
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
