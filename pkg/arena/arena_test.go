package arena

import (
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func regionPath(t *testing.T) string {
	return filepath.Join(t.TempDir(), "sea_battle_shm")
}

func createArena(t *testing.T, path string) *Arena {
	t.Helper()
	a, err := Create(path, DefaultLimits(), WithFatalHandler(func(err error) {
		t.Errorf("unexpected fatal lock error: %v", err)
	}))
	require.NoError(t, err)
	return a
}

func TestCreateInitializes(t *testing.T) {
	path := regionPath(t)
	a := createArena(t, path)
	defer a.Destroy()

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, int64(RegionSize), info.Size())
	assert.NotEqual(t, uuid.Nil, a.Instance())

	err = a.Do(func(s *State) error {
		assert.Empty(t, s.Players())
		assert.Empty(t, s.Games())
		assert.Equal(t, DefaultLimits(), s.Limits())
		assert.Equal(t, a.Instance(), s.Instance())
		return nil
	})
	require.NoError(t, err)
}

func TestCreateAttachesToExistingRegion(t *testing.T) {
	path := regionPath(t)
	a := createArena(t, path)
	require.NoError(t, a.Do(func(s *State) error {
		_, p, err := s.AddPlayer()
		p.SetLogin("alice")
		return err
	}))
	instance := a.Instance()
	require.NoError(t, a.Close())

	b := createArena(t, path)
	defer b.Destroy()
	assert.Equal(t, instance, b.Instance())
	require.NoError(t, b.Do(func(s *State) error {
		require.Len(t, s.Players(), 1)
		assert.Equal(t, "alice", s.Players()[0].Login())
		return nil
	}))
}

func TestOpenRequiresServer(t *testing.T) {
	path := regionPath(t)
	_, err := Open(path)
	assert.ErrorIs(t, err, ErrNotInitialized)

	require.NoError(t, os.WriteFile(path, make([]byte, RegionSize), 0666))
	_, err = Open(path)
	assert.ErrorIs(t, err, ErrNotInitialized)
}

func TestOpenSharesState(t *testing.T) {
	path := regionPath(t)
	server := createArena(t, path)
	defer server.Destroy()

	client, err := Open(path)
	require.NoError(t, err)
	defer client.Close()
	assert.Equal(t, server.Instance(), client.Instance())

	require.NoError(t, client.Do(func(s *State) error {
		g, err := s.AddGame()
		g.SetName("Alpha")
		return err
	}))
	require.NoError(t, server.Do(func(s *State) error {
		require.Len(t, s.Games(), 1)
		assert.Equal(t, "Alpha", s.Games()[0].Name())
		return nil
	}))
}

func TestDeadHolderIsRecovered(t *testing.T) {
	path := regionPath(t)
	server := createArena(t, path)
	defer server.Destroy()

	recovered, err := server.Recover()
	require.NoError(t, err)
	assert.False(t, recovered)

	// A process that dies inside Do leaves its holder record behind.
	server.state.lock.holder = uuid.New()
	server.state.lock.pid = 4242

	client, err := Open(path)
	require.NoError(t, err)
	defer client.Close()

	require.NoError(t, client.Do(func(s *State) error {
		assert.Equal(t, 1, s.Recoveries())
		return nil
	}))
	recovered, err = server.Recover()
	require.NoError(t, err)
	assert.False(t, recovered)
}

// crashRegionEnv makes the test binary act as a client that dies while
// holding the lock.
const crashRegionEnv = "SEABATTLE_CRASH_REGION"

func TestCrashInsideDoIsRecovered(t *testing.T) {
	if path := os.Getenv(crashRegionEnv); path != "" {
		a, err := Open(path)
		if err != nil {
			os.Exit(2)
		}
		a.Do(func(s *State) error {
			if _, err := s.AddGame(); err != nil {
				os.Exit(2)
			}
			os.Exit(3)
			return nil
		})
		os.Exit(2)
	}

	path := regionPath(t)
	server := createArena(t, path)
	defer server.Destroy()

	cmd := exec.Command(os.Args[0], "-test.run=^TestCrashInsideDoIsRecovered$")
	cmd.Env = append(os.Environ(), crashRegionEnv+"="+path)
	var exitErr *exec.ExitError
	require.ErrorAs(t, cmd.Run(), &exitErr)
	assert.Equal(t, 3, exitErr.ExitCode())

	require.NoError(t, server.Do(func(s *State) error {
		assert.Equal(t, 1, s.Recoveries())
		assert.Len(t, s.Games(), 1)
		return nil
	}))
}

func TestServerRestartRecoversLock(t *testing.T) {
	path := regionPath(t)
	a := createArena(t, path)
	a.state.lock.holder = uuid.New()
	require.NoError(t, a.Close())

	b := createArena(t, path)
	defer b.Destroy()
	require.NoError(t, b.Do(func(s *State) error {
		assert.Equal(t, 1, s.Recoveries())
		return nil
	}))
}

func TestDoReleasesOnEveryPath(t *testing.T) {
	path := regionPath(t)
	server := createArena(t, path)
	defer server.Destroy()
	client, err := Open(path)
	require.NoError(t, err)
	defer client.Close()

	errBoom := errors.New("boom")
	assert.ErrorIs(t, server.Do(func(*State) error { return errBoom }), errBoom)
	assert.Panics(t, func() {
		server.Do(func(*State) error { panic("boom") })
	})

	// Would block forever if either exit path leaked the lock.
	assert.NoError(t, client.Do(func(s *State) error {
		assert.Equal(t, 0, s.Recoveries())
		return nil
	}))
}

func TestDoSerializesHandles(t *testing.T) {
	path := regionPath(t)
	server := createArena(t, path)
	defer server.Destroy()
	client, err := Open(path)
	require.NoError(t, err)
	defer client.Close()

	require.NoError(t, server.Do(func(s *State) error {
		_, _, err := s.AddPlayer()
		return err
	}))

	const workers, rounds = 4, 50
	var wg sync.WaitGroup
	for _, a := range []*Arena{server, client} {
		for w := 0; w < workers; w++ {
			wg.Add(1)
			go func(a *Arena) {
				defer wg.Done()
				for i := 0; i < rounds; i++ {
					a.Do(func(s *State) error {
						p, _ := s.Player(0)
						wins := p.Wins
						p.Wins = wins + 1
						return nil
					})
				}
			}(a)
		}
	}
	wg.Wait()

	require.NoError(t, server.Do(func(s *State) error {
		p, _ := s.Player(0)
		assert.Equal(t, int32(2*workers*rounds), p.Wins)
		return nil
	}))
}

func TestDestroyResetsClients(t *testing.T) {
	path := regionPath(t)
	server := createArena(t, path)
	client, err := Open(path)
	require.NoError(t, err)
	defer client.Close()

	require.NoError(t, server.Destroy())
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))
	assert.ErrorIs(t, client.Do(func(*State) error { return nil }), ErrReset)

	// A new server on the same path is a different region.
	again := createArena(t, path)
	defer again.Destroy()
	assert.ErrorIs(t, client.Do(func(*State) error { return nil }), ErrReset)
}

func TestLockFailureIsFatal(t *testing.T) {
	path := regionPath(t)
	server := createArena(t, path)
	defer os.Remove(path)

	var fatal error
	client, err := Open(path, WithFatalHandler(func(err error) { fatal = err }))
	require.NoError(t, err)
	require.NoError(t, client.file.Close())

	err = client.Do(func(*State) error { return nil })
	assert.ErrorIs(t, err, ErrLock)
	assert.ErrorIs(t, fatal, ErrLock)
	require.NoError(t, server.Close())
}

func TestCapacity(t *testing.T) {
	s := NewState(Limits{MaxPlayers: 2, MaxGames: 1})

	for i := 0; i < 2; i++ {
		idx, p, err := s.AddPlayer()
		require.NoError(t, err)
		assert.Equal(t, i, idx)
		assert.Equal(t, int32(NoGame), p.GameID)
	}
	_, _, err := s.AddPlayer()
	assert.ErrorIs(t, err, ErrCapacity)
	assert.Len(t, s.Players(), 2)

	g, err := s.AddGame()
	require.NoError(t, err)
	assert.Equal(t, int32(0), g.ID)
	assert.Equal(t, StatusWaiting, g.Status)
	_, err = s.AddGame()
	assert.ErrorIs(t, err, ErrCapacity)
	assert.Len(t, s.Games(), 1)
}

func TestLimitsAreClamped(t *testing.T) {
	s := NewState(Limits{MaxPlayers: 500, MaxGames: 0})
	assert.Equal(t, DefaultLimits(), s.Limits())
}

func TestLoginTruncatedToLayout(t *testing.T) {
	var p Player
	long := "abcdefghijklmnopqrstuvwxyz0123456789"
	p.SetLogin(long)
	assert.Equal(t, long[:MaxLogin-1], p.Login())

	p.SetLogin("bob")
	assert.Equal(t, "bob", p.Login())
}

func TestGameSeats(t *testing.T) {
	var g Game
	g.Reset(3)
	g.SetPlayer(Side1, "alice")
	g.SetPlayer(Side2, "bob")

	side, ok := g.SideOf("bob")
	assert.True(t, ok)
	assert.Equal(t, Side2, side)
	_, ok = g.SideOf("carol")
	assert.False(t, ok)
	_, ok = g.SideOf("")
	assert.False(t, ok)
	assert.Equal(t, Side1, Side2.Opponent())
}

func TestClosedHandle(t *testing.T) {
	path := regionPath(t)
	server := createArena(t, path)
	defer server.Destroy()

	client, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, client.Close())
	assert.NoError(t, client.Close())
	assert.ErrorIs(t, client.Do(func(*State) error { return nil }), ErrClosed)
	assert.ErrorIs(t, client.Destroy(), ErrClosed)

	_, err = os.Stat(path)
	assert.NoError(t, err, "a closed client leaves the region in place")
}
