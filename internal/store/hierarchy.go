package store

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/vk/scopeflow/internal/hashing"
)

// levelEntry is one (level name, parent path) population counter. Entries
// are created lazily on first use and never removed for the run's lifetime.
type levelEntry struct {
	name       string
	parentHash uint64
	count      atomic.Uint64
}

// LevelHierarchy tracks how many scope instances were seen at each level of
// the run-time hierarchy, keyed by level name within its parent context.
// Counting is lock-free and safe for concurrent use; it exists for reporting
// only and sits on no correctness path.
type LevelHierarchy struct {
	levels sync.Map // levelKey -> *levelEntry
}

// NewLevelHierarchy returns an empty hierarchy.
func NewLevelHierarchy() *LevelHierarchy {
	return &LevelHierarchy{}
}

// IncrementCount records one scope instance at id's level, creating counter
// entries along id's path on first use. Only the deepest level's counter is
// advanced; ancestor counters were advanced when their own scopes were
// counted.
func (h *LevelHierarchy) IncrementCount(id *LevelID) {
	for cur := id.Parent(); cur != nil; cur = cur.Parent() {
		h.entry(cur)
	}
	h.entry(id).count.Add(1)
}

// levelKey hashes the path of level names only, ignoring instance numbers,
// so sibling scopes (event:0, event:1, ...) share one counter.
func levelKey(id *LevelID) uint64 {
	k := hashing.Hash("job")
	for _, seg := range id.Segments() {
		k = hashing.CombineString(k, seg.Name)
	}
	return k
}

func (h *LevelHierarchy) entry(id *LevelID) *levelEntry {
	key := levelKey(id)
	if e, ok := h.levels.Load(key); ok {
		return e.(*levelEntry)
	}
	parentKey := key
	if id.Parent() != nil {
		parentKey = levelKey(id.Parent())
	}
	e, _ := h.levels.LoadOrStore(key, &levelEntry{name: id.LevelName(), parentHash: parentKey})
	return e.(*levelEntry)
}

// CountFor sums the population of levelName across all parent contexts.
func (h *LevelHierarchy) CountFor(levelName string) uint64 {
	var total uint64
	h.levels.Range(func(_, v any) bool {
		e := v.(*levelEntry)
		if e.name == levelName {
			total += e.count.Load()
		}
		return true
	})
	return total
}

// Render returns an indented tree of level populations. It snapshots the
// counters without synchronization guarantees beyond the atomic loads; it is
// a reporting convenience, not a consistent cut.
func (h *LevelHierarchy) Render() string {
	type row struct {
		hash  uint64
		name  string
		count uint64
	}
	children := map[uint64][]row{}
	var rootHash uint64
	h.levels.Range(func(k, v any) bool {
		e := v.(*levelEntry)
		hash := k.(uint64)
		if hash == e.parentHash {
			rootHash = hash
			return true
		}
		children[e.parentHash] = append(children[e.parentHash], row{hash: hash, name: e.name, count: e.count.Load()})
		return true
	})
	for _, rows := range children {
		sort.Slice(rows, func(i, j int) bool { return rows[i].name < rows[j].name })
	}

	var b strings.Builder
	var walk func(hash uint64, indent string)
	walk = func(hash uint64, indent string) {
		for _, r := range children[hash] {
			fmt.Fprintf(&b, "%s%s: %d\n", indent, r.name, r.count)
			walk(r.hash, indent+"  ")
		}
	}
	if root, ok := h.levels.Load(rootHash); ok {
		e := root.(*levelEntry)
		fmt.Fprintf(&b, "%s: %d\n", e.name, e.count.Load())
		walk(rootHash, "  ")
	}
	return b.String()
}
