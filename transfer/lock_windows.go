//go:build windows
// +build windows

package transfer

import (
	"os"

	"golang.org/x/sys/windows"
)

func tryExclusiveLock(file *os.File) bool {
	if file == nil {
		return false
	}
	handle := windows.Handle(file.Fd())
	ol := new(windows.Overlapped)
	const maxUint32 = ^uint32(0)
	err := windows.LockFileEx(handle, windows.LOCKFILE_EXCLUSIVE_LOCK|windows.LOCKFILE_FAIL_IMMEDIATELY, 0, maxUint32, maxUint32, ol)
	return err == nil
}

func unlockFile(file *os.File) {
	if file == nil {
		return
	}
	handle := windows.Handle(file.Fd())
	ol := new(windows.Overlapped)
	const maxUint32 = ^uint32(0)
	_ = windows.UnlockFileEx(handle, 0, maxUint32, maxUint32, ol)
}
