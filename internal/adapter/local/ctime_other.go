//go:build !linux

package local

import (
	"os"
	"time"
)

func statCtime(info os.FileInfo) time.Time {
	return info.ModTime()
}
