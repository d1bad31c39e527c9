// Package arena maps the shared region that holds every player and game and
// serializes access to it across processes.
package arena

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/sasha-s/go-deadlock"
	"go.uber.org/zap"
)

// ErrReset is returned to a handle whose region was torn down or
// re-initialized after it attached.
var ErrReset = errors.New("arena was reset by the server")

var ErrClosed = errors.New("arena handle is closed")

// Arena is one process's handle on the shared region.
type Arena struct {
	log     *zap.Logger
	onFatal func(error)

	path  string
	file  *os.File
	data  []byte
	state *State

	// token identifies this handle as lock holder.
	token    uuid.UUID
	instance uuid.UUID
	owner    bool

	mu deadlock.Mutex
}

type Option func(*Arena)

func WithLogger(log *zap.Logger) Option {
	return func(a *Arena) {
		a.log = log
	}
}

// WithFatalHandler replaces the default behaviour for unrecoverable lock
// failures, which is to log and exit.
func WithFatalHandler(fn func(error)) Option {
	return func(a *Arena) {
		a.onFatal = fn
	}
}

func newArena(path string, owner bool, opts []Option) *Arena {
	a := &Arena{
		log:   zap.NewNop(),
		path:  path,
		token: uuid.New(),
		owner: owner,
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.onFatal == nil {
		a.onFatal = func(err error) {
			a.log.Fatal("arena lock is unusable", zap.Error(err))
		}
	}
	return a
}

// Create maps the region at path, creating it if needed. The first opener
// that finds it uninitialized zeroes it and stamps limits and a new instance
// id. Later openers attach and recover the lock.
func Create(path string, limits Limits, opts ...Option) (*Arena, error) {
	a := newArena(path, true, opts)
	file, data, err := mapRegion(path, true)
	if err != nil {
		return nil, err
	}
	a.file, a.data, a.state = file, data, stateOf(data)

	if _, err := a.acquire(); err != nil {
		unmapRegion(a.file, a.data)
		return nil, err
	}
	fresh := !a.state.valid()
	if fresh {
		a.state.reset(limits, uuid.New(), time.Now().Unix())
	}
	a.instance = a.state.Instance()
	if err := a.release(); err != nil {
		unmapRegion(a.file, a.data)
		return nil, err
	}

	log := a.log.With(zap.String("path", path), zap.String("instance", a.instance.String()))
	if fresh {
		log.Info("initialized new arena",
			zap.Int32("maxPlayers", a.state.limits.MaxPlayers),
			zap.Int32("maxGames", a.state.limits.MaxGames))
		return a, nil
	}

	log.Info("attached to existing arena")
	if _, err := a.Recover(); err != nil {
		unmapRegion(a.file, a.data)
		return nil, err
	}
	return a, nil
}

// Open attaches to a region the server already initialized.
func Open(path string, opts ...Option) (*Arena, error) {
	a := newArena(path, false, opts)
	file, data, err := mapRegion(path, false)
	if err != nil {
		return nil, err
	}
	a.file, a.data, a.state = file, data, stateOf(data)

	if _, err := a.acquire(); err != nil {
		unmapRegion(a.file, a.data)
		return nil, err
	}
	valid := a.state.valid()
	a.instance = a.state.Instance()
	if err := a.release(); err != nil {
		unmapRegion(a.file, a.data)
		return nil, err
	}

	if !valid {
		unmapRegion(a.file, a.data)
		return nil, fmt.Errorf("%s: %w", path, ErrNotInitialized)
	}
	a.log.Debug("attached to arena", zap.String("path", path), zap.String("instance", a.instance.String()))
	return a, nil
}

func (a *Arena) Path() string {
	return a.path
}

// Instance is the id stamped when the region was initialized.
func (a *Arena) Instance() uuid.UUID {
	return a.instance
}

// Do runs fn with the arena locked. The lock is released on every exit path,
// including a panic in fn. fn must re-validate whatever it read in an earlier
// critical section.
func (a *Arena) Do(fn func(s *State) error) (err error) {
	if a.state == nil {
		return ErrClosed
	}
	if _, err := a.acquire(); err != nil {
		return err
	}
	defer func() {
		if rerr := a.release(); rerr != nil && err == nil {
			err = rerr
		}
	}()

	if err := a.checkInstance(); err != nil {
		return err
	}
	return fn(a.state)
}

// Recover takes and releases the lock once, marking it consistent if its last
// holder died. It reports whether a recovery happened.
func (a *Arena) Recover() (bool, error) {
	recovered, err := a.acquire()
	if err != nil {
		return false, err
	}
	return recovered, a.release()
}

// checkInstance detects a handle that outlived its region, either because the
// file was unlinked and recreated or because the contents were re-initialized.
func (a *Arena) checkInstance() error {
	if a.owner {
		return nil
	}
	if !a.state.valid() || a.state.Instance() != a.instance {
		return ErrReset
	}
	onDisk, err := os.Stat(a.path)
	if err != nil {
		return ErrReset
	}
	mapped, err := a.file.Stat()
	if err != nil || !os.SameFile(onDisk, mapped) {
		return ErrReset
	}
	return nil
}

// Close unmaps the region and leaves it in place for other processes.
func (a *Arena) Close() error {
	err := unmapRegion(a.file, a.data)
	a.file, a.data, a.state = nil, nil, nil
	return err
}

// Destroy invalidates the region for every attached process, unmaps it and
// unlinks the file.
func (a *Arena) Destroy() error {
	if a.state == nil {
		return ErrClosed
	}
	var errs []error
	if _, err := a.acquire(); err != nil {
		errs = append(errs, err)
	} else {
		a.state.initialized = 0
		if err := a.release(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := a.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := os.Remove(a.path); err != nil && !os.IsNotExist(err) {
		errs = append(errs, fmt.Errorf("remove region: %w", err))
	}
	return errors.Join(errs...)
}
