package store

import (
	"fmt"
	"strings"

	"github.com/vk/scopeflow/internal/hashing"
)

// Segment is one step of a level path: the instance number within the parent
// scope plus the level's name (e.g. 3:"event").
type Segment struct {
	Number uint64
	Name   string
}

func (s Segment) String() string {
	return fmt.Sprintf("%s:%d", s.Name, s.Number)
}

// LevelID identifies a scope instance's position in the run-time hierarchy
// as the ordered path of segments from the root. A child always extends its
// parent's path by exactly one segment. LevelIDs are immutable once built
// and freely shared between stores referencing the same ancestor path.
type LevelID struct {
	parent   *LevelID
	segments []Segment
	hash     uint64
}

var baseID = &LevelID{hash: hashing.Hash("job")}

// BaseID returns the root path shared by every hierarchy.
func BaseID() *LevelID { return baseID }

// Extend returns a new path one segment deeper than id.
func (id *LevelID) Extend(number uint64, name string) *LevelID {
	segments := make([]Segment, len(id.segments)+1)
	copy(segments, id.segments)
	segments[len(id.segments)] = Segment{Number: number, Name: name}
	return &LevelID{
		parent:   id,
		segments: segments,
		hash:     hashing.CombineString(hashing.Combine(id.hash, number), name),
	}
}

// Parent returns the path one segment shorter, or nil at the root.
func (id *LevelID) Parent() *LevelID { return id.parent }

// Depth is the number of segments below the root.
func (id *LevelID) Depth() int { return len(id.segments) }

// Segments returns the path from the root. Callers must not mutate it.
func (id *LevelID) Segments() []Segment { return id.segments }

// LevelName is the name of the deepest segment, or "job" at the root.
func (id *LevelID) LevelName() string {
	if len(id.segments) == 0 {
		return "job"
	}
	return id.segments[len(id.segments)-1].Name
}

// Number is the instance number of the deepest segment, zero at the root.
func (id *LevelID) Number() uint64 {
	if len(id.segments) == 0 {
		return 0
	}
	return id.segments[len(id.segments)-1].Number
}

// Hash is a stable hash of the whole path.
func (id *LevelID) Hash() uint64 { return id.hash }

// ParentHash is the hash of the path with the deepest segment removed.
func (id *LevelID) ParentHash() uint64 {
	if id.parent == nil {
		return id.hash
	}
	return id.parent.hash
}

// Equal reports whether two paths are identical.
func (id *LevelID) Equal(other *LevelID) bool {
	if id == other {
		return true
	}
	if id == nil || other == nil || len(id.segments) != len(other.segments) {
		return false
	}
	for i, seg := range id.segments {
		if other.segments[i] != seg {
			return false
		}
	}
	return true
}

// HasPrefix reports whether prefix is an ancestor of (or equal to) id.
func (id *LevelID) HasPrefix(prefix *LevelID) bool {
	if prefix == nil {
		return true
	}
	if len(prefix.segments) > len(id.segments) {
		return false
	}
	for i, seg := range prefix.segments {
		if id.segments[i] != seg {
			return false
		}
	}
	return true
}

// AncestorWithName returns the deepest prefix of id whose level name equals
// name, or nil if no segment along the path carries that name. The root
// answers to "job".
func (id *LevelID) AncestorWithName(name string) *LevelID {
	for cur := id; cur != nil; cur = cur.parent {
		if cur.LevelName() == name {
			return cur
		}
	}
	return nil
}

func (id *LevelID) String() string {
	if len(id.segments) == 0 {
		return "job"
	}
	parts := make([]string, len(id.segments))
	for i, seg := range id.segments {
		parts[i] = seg.String()
	}
	return "job/" + strings.Join(parts, "/")
}
