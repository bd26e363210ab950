package catalog

import (
	"fmt"
	"sort"
	"strings"

	"github.com/vk/scopeflow/internal/names"
)

// Catalog maps full qualified names to node descriptors. Keys are unique;
// inserting a duplicate keeps the first registration and records a
// diagnostic instead of aborting, so every conflict across all plugin
// builders is collected before the build is refused.
//
// The catalog is not safe for concurrent writers; the build phase is
// single-threaded by contract.
type Catalog struct {
	nodes  map[string]*Node
	errors []string
}

// New returns an empty catalog.
func New() *Catalog {
	return &Catalog{nodes: make(map[string]*Node)}
}

// TryInsert installs node under its full name. On a key collision the
// existing entry is kept, the new node is discarded and a diagnostic is
// appended to the build-error list. The returned bool reports insertion.
func (c *Catalog) TryInsert(node *Node) bool {
	name := node.FullName()
	if _, exists := c.nodes[name]; exists {
		c.errors = append(c.errors, fmt.Sprintf("duplicate algorithm name: %s", name))
		return false
	}
	c.nodes[name] = node
	return true
}

// AddError records a build diagnostic that is not tied to an insertion.
func (c *Catalog) AddError(msg string) {
	c.errors = append(c.errors, msg)
}

// Lookup returns the node registered under the full qualified name.
func (c *Catalog) Lookup(fullName string) (*Node, bool) {
	n, ok := c.nodes[fullName]
	return n, ok
}

// Nodes returns all descriptors ordered by qualified name.
func (c *Catalog) Nodes() []*Node {
	out := make([]*Node, 0, len(c.nodes))
	for _, n := range c.nodes {
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Name.Compare(out[j].Name) < 0
	})
	return out
}

// Len reports the number of registered nodes.
func (c *Catalog) Len() int { return len(c.nodes) }

// PredicatesMatching returns the full names of predicate nodes whose
// algorithm name matches ref, which may be partial ("algorithm" or
// "plugin:algorithm"). An unset half of the reference matches anything, so a
// predicate can be gated on by bare algorithm name when it is unambiguous.
func (c *Catalog) PredicatesMatching(ref string) ([]string, error) {
	want, err := names.ParseAlgorithmName(ref)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, n := range c.Nodes() {
		if n.Kind != KindPredicate {
			continue
		}
		if want.Match(n.AlgorithmName()) {
			out = append(out, n.FullName())
		}
	}
	return out, nil
}

// Validate resolves every node's upstream predicate references, appending a
// diagnostic for each reference that matches no predicate node or more than
// one. It is called once, after all plugin builders have run.
func (c *Catalog) Validate() {
	for _, n := range c.Nodes() {
		for _, ref := range n.Predicates {
			matches, err := c.PredicatesMatching(ref)
			switch {
			case err != nil:
				c.errors = append(c.errors, fmt.Sprintf("node %s: bad predicate reference %q: %v", n.FullName(), ref, err))
			case len(matches) == 0:
				c.errors = append(c.errors, fmt.Sprintf("node %s: no predicate matches %q", n.FullName(), ref))
			case len(matches) > 1:
				c.errors = append(c.errors, fmt.Sprintf("node %s: predicate reference %q is ambiguous: %s", n.FullName(), ref, strings.Join(matches, ", ")))
			}
		}
	}
}

// Err aggregates the collected build diagnostics into a single error, or
// returns nil when the build is clean. A non-nil result is a fatal
// configuration error: the framework must refuse to execute.
func (c *Catalog) Err() error {
	if len(c.errors) == 0 {
		return nil
	}
	return fmt.Errorf("graph construction failed:\n- %s", strings.Join(c.errors, "\n- "))
}

// Diagnostics returns a copy of the collected build-error list.
func (c *Catalog) Diagnostics() []string {
	return append([]string(nil), c.errors...)
}
