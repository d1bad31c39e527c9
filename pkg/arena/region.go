package arena

import (
	"errors"
	"fmt"
	"os"
	"unsafe"

	"golang.org/x/sys/unix"
)

var ErrNotInitialized = errors.New("arena is not initialized, start the server first")

// mapRegion opens the region file and maps RegionSize bytes of it shared.
// Only the creating side may create or grow the file.
func mapRegion(path string, create bool) (*os.File, []byte, error) {
	flags := os.O_RDWR
	if create {
		flags |= os.O_CREATE
	}
	f, err := os.OpenFile(path, flags, 0666)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil, fmt.Errorf("%s: %w", path, ErrNotInitialized)
		}
		return nil, nil, fmt.Errorf("open region: %w", err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, nil, fmt.Errorf("stat region: %w", err)
	}
	if info.Size() < RegionSize {
		if !create {
			f.Close()
			return nil, nil, fmt.Errorf("%s: %w", path, ErrNotInitialized)
		}
		if err := unix.Ftruncate(int(f.Fd()), RegionSize); err != nil {
			f.Close()
			return nil, nil, fmt.Errorf("size region: %w", err)
		}
	}

	data, err := unix.Mmap(int(f.Fd()), 0, RegionSize, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		f.Close()
		return nil, nil, fmt.Errorf("map region: %w", err)
	}
	return f, data, nil
}

func stateOf(data []byte) *State {
	return (*State)(unsafe.Pointer(&data[0]))
}

func unmapRegion(f *os.File, data []byte) error {
	var errs []error
	if data != nil {
		if err := unix.Munmap(data); err != nil {
			errs = append(errs, fmt.Errorf("unmap region: %w", err))
		}
	}
	if f != nil {
		if err := f.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close region: %w", err))
		}
	}
	return errors.Join(errs...)
}
