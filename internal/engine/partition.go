package engine

import (
	"github.com/soyunomas/dupescan/internal/entities"
)

// IsDuplicate reports whether a bucket holds more than one file.
func IsDuplicate(b *entities.Bucket) bool {
	return b.Len() > 1
}

// Partition splits buckets by pred, keeping input order on both sides.
// Every bucket lands in exactly one of the two results.
func Partition(buckets []entities.Bucket, pred func(*entities.Bucket) bool) (matched, rest []entities.Bucket) {
	for i := range buckets {
		if pred(&buckets[i]) {
			matched = append(matched, buckets[i])
		} else {
			rest = append(rest, buckets[i])
		}
	}
	return matched, rest
}
