//go:build !unix

package scanner

import "io/fs"

func getSysInfo(fs.FileInfo) (uint64, uint64, bool) {
	return 0, 0, false
}
