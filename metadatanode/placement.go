package metadatanode

import (
	"math/rand"
	"sort"

	. "github.com/tali0517/ST0263-p1/common"
)

// Every upload goes to exactly this many DataNodes.
const UploadReplicas = 2

// Immutable view of one live DataNode. Placement only ever sees these, never
// the registry itself.
type NodeView struct {
	Address string
	Load    int
	Files   map[string]bool
}

type byLoad []NodeView

func (s byLoad) Len() int {
	return len(s)
}
func (s byLoad) Swap(i, j int) {
	s[i], s[j] = s[j], s[i]
}
func (s byLoad) Less(i, j int) bool {
	return s[i].Load < s[j].Load
}

// Holders returns the sorted addresses of the nodes reporting file.
func Holders(nodes []NodeView, file string) []string {
	var addrs []string
	for _, n := range nodes {
		if n.Files[file] {
			addrs = append(addrs, n.Address)
		}
	}
	sort.Strings(addrs)
	return addrs
}

// PickDownload picks one holder of file uniformly at random.
func PickDownload(nodes []NodeView, file string, rng *rand.Rand) (string, error) {
	holders := Holders(nodes, file)
	if len(holders) == 0 {
		return "", ErrNotFound
	}
	return holders[rng.Intn(len(holders))], nil
}

// PickUpload returns the count least loaded nodes. Ties are broken at random
// so equally loaded nodes share new uploads.
func PickUpload(nodes []NodeView, count int, rng *rand.Rand) ([]string, error) {
	if len(nodes) < count {
		return nil, ErrInsufficientCapacity
	}
	candidates := make([]NodeView, len(nodes))
	copy(candidates, nodes)
	rng.Shuffle(len(candidates), func(i, j int) {
		candidates[i], candidates[j] = candidates[j], candidates[i]
	})
	sort.Stable(byLoad(candidates))

	addrs := make([]string, 0, count)
	for _, n := range candidates[:count] {
		addrs = append(addrs, n.Address)
	}
	return addrs, nil
}

// Union lists every file reported by at least one node, sorted.
func Union(nodes []NodeView) []string {
	seen := map[string]bool{}
	var files []string
	for _, n := range nodes {
		for f := range n.Files {
			if !seen[f] {
				seen[f] = true
				files = append(files, f)
			}
		}
	}
	sort.Strings(files)
	return files
}
