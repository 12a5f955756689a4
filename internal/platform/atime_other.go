//go:build !(linux || openbsd || dragonfly || solaris || darwin || freebsd || netbsd || windows)

package platform

import (
	"io/fs"
	"time"
)

func accessTime(fs.FileInfo) (time.Time, bool) {
	return time.Time{}, false
}
