//go:build unix

package scanner

import (
	"io/fs"
	"syscall"
)

// getSysInfo extracts the device and inode numbers when the platform
// exposes them.
func getSysInfo(info fs.FileInfo) (uint64, uint64, bool) {
	stat, ok := info.Sys().(*syscall.Stat_t)
	if !ok {
		return 0, 0, false
	}
	return uint64(stat.Dev), uint64(stat.Ino), true
}
