package entities

import (
	"encoding/hex"
)

// Digest holds the raw bytes produced by a hash algorithm over a file's
// full content. It is a string so it can key a map directly.
type Digest string

// Hex returns the lowercase hexadecimal form of the digest.
func (d Digest) Hex() string {
	return hex.EncodeToString([]byte(d))
}

func (d Digest) String() string {
	return d.Hex()
}

// FileInfo represents a file on disk with the metadata gathered at filter time.
type FileInfo struct {
	Path     string `json:"path"`
	Size     int64  `json:"size_bytes"`
	DeviceID uint64 `json:"device_id"`
	Inode    uint64 `json:"inode"`
}

// Bucket is the set of files sharing one digest, in arrival order.
type Bucket struct {
	Digest Digest      `json:"digest"`
	Files  []*FileInfo `json:"files"`
}

// Add appends a file to the bucket.
func (b *Bucket) Add(f *FileInfo) {
	b.Files = append(b.Files, f)
}

// Len returns the number of files in the bucket.
func (b *Bucket) Len() int {
	return len(b.Files)
}

// Paths returns the bucket's paths in their recorded order.
func (b *Bucket) Paths() []string {
	paths := make([]string, len(b.Files))
	for i, f := range b.Files {
		paths[i] = f.Path
	}
	return paths
}

// Bytes returns the summed size of every file in the bucket.
func (b *Bucket) Bytes() int64 {
	var total int64
	for _, f := range b.Files {
		total += f.Size
	}
	return total
}
