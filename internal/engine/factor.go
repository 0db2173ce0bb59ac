package engine

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/soyunomas/dupescan/internal/entities"
)

// FactorOp compares a bucket's size against a Factor's count.
type FactorOp int

const (
	FactorUnder FactorOp = iota + 1
	FactorEqual
	FactorOver
)

var factorOps = map[FactorOp]string{
	FactorUnder: "under",
	FactorEqual: "equal",
	FactorOver:  "over",
}

// Factor selects buckets by how many copies they hold. The zero value is
// unset and behaves as DefaultFactor.
type Factor struct {
	Op FactorOp
	N  int
}

// DefaultFactor selects duplicate groups: buckets with more than one file.
var DefaultFactor = Factor{Op: FactorOver, N: 1}

// ParseFactor reads "under:n", "equal:n" or "over:n". "equal:1" selects
// unique files, "under:10" files with fewer than ten copies.
func ParseFactor(s string) (Factor, error) {
	op, count, ok := strings.Cut(strings.ToLower(strings.TrimSpace(s)), ":")
	if !ok {
		return Factor{}, errors.Errorf("invalid replication factor %q (want under|equal|over:n)", s)
	}
	n, err := strconv.Atoi(strings.TrimSpace(count))
	if err != nil || n < 0 {
		return Factor{}, errors.Errorf("invalid replication count %q", count)
	}
	for o, name := range factorOps {
		if name == strings.TrimSpace(op) {
			return Factor{Op: o, N: n}, nil
		}
	}
	return Factor{}, errors.Errorf("invalid replication operator %q (want under, equal or over)", op)
}

func (f Factor) orDefault() Factor {
	if _, ok := factorOps[f.Op]; !ok {
		return DefaultFactor
	}
	return f
}

func (f Factor) String() string {
	f = f.orDefault()
	return factorOps[f.Op] + ":" + strconv.Itoa(f.N)
}

// Match is a Partition predicate.
func (f Factor) Match(b *entities.Bucket) bool {
	f = f.orDefault()
	switch f.Op {
	case FactorUnder:
		return b.Len() < f.N
	case FactorEqual:
		return b.Len() == f.N
	default:
		return b.Len() > f.N
	}
}
