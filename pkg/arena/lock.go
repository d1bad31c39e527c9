package arena

import (
	"errors"
	"fmt"
	"os"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sys/unix"
)

// ErrLock is a lock failure other than a dead holder. The process is not
// expected to survive it.
var ErrLock = errors.New("arena lock failed")

// acquire takes the in-process mutex and then the advisory lock on the region
// file. The kernel drops the advisory lock when its holder dies, so a holder
// record that is still set after we get the lock belongs to a process that
// died inside its critical section. That record is overwritten and the
// contents are used as they are. acquire reports whether that happened.
func (a *Arena) acquire() (bool, error) {
	a.mu.Lock()
	if err := flock(a.file, unix.LOCK_EX); err != nil {
		a.mu.Unlock()
		return false, a.fatal(fmt.Errorf("%w: acquire: %v", ErrLock, err))
	}

	// An uninitialized region has no meaningful holder record.
	recovered := a.state.valid() && a.recoverHolder()
	a.state.lock.holder = a.token
	a.state.lock.pid = int32(os.Getpid())
	return recovered, nil
}

func (a *Arena) release() error {
	a.state.lock.holder = uuid.Nil
	a.state.lock.pid = 0
	err := flock(a.file, unix.LOCK_UN)
	a.mu.Unlock()
	if err != nil {
		return a.fatal(fmt.Errorf("%w: release: %v", ErrLock, err))
	}
	return nil
}

// recoverHolder marks the lock consistent if its previous holder died.
func (a *Arena) recoverHolder() bool {
	held := a.state.lock
	if uuid.UUID(held.holder) == uuid.Nil {
		return false
	}

	a.state.lock.recoveries++
	a.log.Warn("previous arena lock holder died, marking lock consistent",
		zap.String("holder", uuid.UUID(held.holder).String()),
		zap.Int32("pid", held.pid),
		zap.Int32("recoveries", a.state.lock.recoveries),
	)
	return true
}

func (a *Arena) fatal(err error) error {
	a.onFatal(err)
	return err
}

func flock(f *os.File, how int) error {
	for {
		err := unix.Flock(int(f.Fd()), how)
		if !errors.Is(err, unix.EINTR) {
			return err
		}
	}
}
