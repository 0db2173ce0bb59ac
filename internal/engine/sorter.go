package engine

import (
	"sort"
	"strings"

	"github.com/facette/natsort"
	"github.com/pkg/errors"

	"github.com/soyunomas/dupescan/internal/entities"
)

// Order selects how duplicate groups are arranged for output.
type Order int

const (
	OrderArrival Order = iota // as accumulated; not stable across runs
	OrderNatural              // paths and groups in natural path order
	OrderSize                 // groups by total bytes, largest first
)

var orderNames = map[Order]string{
	OrderArrival: "arrival",
	OrderNatural: "natural",
	OrderSize:    "size",
}

func (o Order) String() string {
	if name, ok := orderNames[o]; ok {
		return name
	}
	return "unknown"
}

// ParseOrder maps a user-facing name onto an Order.
func ParseOrder(name string) (Order, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for o, n := range orderNames {
		if n == name {
			return o, nil
		}
	}
	return 0, errors.Errorf("unsupported order: %q (supported: arrival, natural, size)", name)
}

// sortGroups arranges groups in place. With OrderArrival nothing moves.
func sortGroups(groups []entities.Bucket, order Order) {
	if order == OrderArrival {
		return
	}

	for i := range groups {
		files := groups[i].Files
		sort.SliceStable(files, func(a, b int) bool {
			return natsort.Compare(files[a].Path, files[b].Path)
		})
	}

	sort.SliceStable(groups, func(i, j int) bool {
		g1, g2 := &groups[i], &groups[j]

		if order == OrderSize {
			if b1, b2 := g1.Bytes(), g2.Bytes(); b1 != b2 {
				return b1 > b2
			}
		}

		// tie-breaker: first path in natural order
		return natsort.Compare(firstPath(g1), firstPath(g2))
	})
}

func firstPath(b *entities.Bucket) string {
	if len(b.Files) == 0 {
		return ""
	}
	return b.Files[0].Path
}
