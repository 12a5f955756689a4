//go:build !(linux || darwin || freebsd || netbsd || openbsd || dragonfly || windows)

package platform

import "os"

func lockFile(*os.File) error {
	return ErrLockUnsupported
}

func unlockFile(*os.File) error {
	return ErrLockUnsupported
}
