// Package names identifies algorithms and the data items they produce.
//
// An algorithm is addressed by a plugin name plus an algorithm name; either
// half may be left unspecified, in which case it acts as a wildcard during
// matching. A qualified name combines an algorithm qualifier with the bare
// label of one produced data item and is the canonical identity of a product
// across independently loaded plugins.
package names

import (
	"fmt"
	"strings"
)

// Separator splits the plugin half from the algorithm half in a spec string.
const Separator = ":"

// specifiedFields records which halves of an AlgorithmName were given
// explicitly. An unset half is a wildcard for Match.
type specifiedFields int

const (
	neither specifiedFields = iota
	either
	both
)

// ParseError reports a malformed name spec string.
type ParseError struct {
	Spec   string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("invalid name spec %q: %s", e.Spec, e.Reason)
}

// AlgorithmName identifies an algorithm within a plugin. The zero value has
// neither field specified and matches any algorithm.
type AlgorithmName struct {
	plugin    string
	algorithm string
	fields    specifiedFields
}

// NewAlgorithmName builds a fully specified name from its two halves.
func NewAlgorithmName(plugin, algorithm string) AlgorithmName {
	return AlgorithmName{plugin: plugin, algorithm: algorithm, fields: both}
}

// PluginQualifier builds a name with only the plugin half set; the algorithm
// half is a wildcard. Used to qualify a node by the plugin that declared it.
func PluginQualifier(plugin string) AlgorithmName {
	return AlgorithmName{plugin: plugin, fields: either}
}

// ParseAlgorithmName parses a spec string of the form "plugin:algorithm" or
// just "algorithm". An empty spec or one with more than one separator is a
// build-time error.
func ParseAlgorithmName(spec string) (AlgorithmName, error) {
	if spec == "" {
		return AlgorithmName{}, &ParseError{Spec: spec, Reason: "empty spec"}
	}
	parts := strings.Split(spec, Separator)
	switch len(parts) {
	case 1:
		return AlgorithmName{algorithm: parts[0], fields: either}, nil
	case 2:
		return AlgorithmName{plugin: parts[0], algorithm: parts[1], fields: both}, nil
	}
	return AlgorithmName{}, &ParseError{Spec: spec, Reason: "more than one ':' separator"}
}

// MustAlgorithmName is ParseAlgorithmName for literals known to be valid.
// It panics on a malformed spec.
func MustAlgorithmName(spec string) AlgorithmName {
	n, err := ParseAlgorithmName(spec)
	if err != nil {
		panic(err)
	}
	return n
}

// Plugin returns the plugin half, empty if unspecified.
func (n AlgorithmName) Plugin() string { return n.plugin }

// Algorithm returns the algorithm half, empty if unspecified.
func (n AlgorithmName) Algorithm() string { return n.algorithm }

// Empty reports whether neither half was specified.
func (n AlgorithmName) Empty() bool { return n.fields == neither }

// Full renders the canonical "plugin:algorithm" form. A name with only one
// half set renders that half alone.
func (n AlgorithmName) Full() string {
	if n.plugin == "" {
		return n.algorithm
	}
	if n.algorithm == "" {
		return n.plugin
	}
	return n.plugin + Separator + n.algorithm
}

// Match reports whether two names agree on every half that is present in
// both. A half unspecified in either name matches anything, which allows a
// predicate or fold to be referenced by algorithm name alone when the plugin
// is unambiguous.
func (n AlgorithmName) Match(other AlgorithmName) bool {
	if n.plugin != "" && other.plugin != "" && n.plugin != other.plugin {
		return false
	}
	if n.algorithm != "" && other.algorithm != "" && n.algorithm != other.algorithm {
		return false
	}
	return true
}

// Compare orders names lexicographically on (plugin, algorithm), so listings
// keyed by name come out deterministic. It returns -1, 0 or +1.
func (n AlgorithmName) Compare(other AlgorithmName) int {
	if c := strings.Compare(n.plugin, other.plugin); c != 0 {
		return c
	}
	return strings.Compare(n.algorithm, other.algorithm)
}

// QualifiedName is an algorithm qualifier plus the bare label of one data
// item that algorithm produces or consumes.
type QualifiedName struct {
	qualifier AlgorithmName
	name      string
}

// NewQualifiedName combines a qualifier and a bare data item label.
func NewQualifiedName(qualifier AlgorithmName, name string) QualifiedName {
	return QualifiedName{qualifier: qualifier, name: name}
}

// ParseQualifiedName parses "plugin:algorithm/name", "algorithm/name" or a
// bare "name".
func ParseQualifiedName(spec string) (QualifiedName, error) {
	if spec == "" {
		return QualifiedName{}, &ParseError{Spec: spec, Reason: "empty spec"}
	}
	idx := strings.LastIndex(spec, "/")
	if idx < 0 {
		return QualifiedName{name: spec}, nil
	}
	qual, err := ParseAlgorithmName(spec[:idx])
	if err != nil {
		return QualifiedName{}, err
	}
	if spec[idx+1:] == "" {
		return QualifiedName{}, &ParseError{Spec: spec, Reason: "missing data item name after '/'"}
	}
	return QualifiedName{qualifier: qual, name: spec[idx+1:]}, nil
}

// Qualifier returns the algorithm qualifier.
func (q QualifiedName) Qualifier() AlgorithmName { return q.qualifier }

// Plugin is shorthand for Qualifier().Plugin().
func (q QualifiedName) Plugin() string { return q.qualifier.plugin }

// Algorithm is shorthand for Qualifier().Algorithm().
func (q QualifiedName) Algorithm() string { return q.qualifier.algorithm }

// Name returns the bare data item label.
func (q QualifiedName) Name() string { return q.name }

// Full renders the canonical "plugin:algorithm/name" form.
func (q QualifiedName) Full() string {
	if q.qualifier.Full() == "" {
		return q.name
	}
	return q.qualifier.Full() + "/" + q.name
}

// Compare orders qualified names by qualifier first, then by bare name.
func (q QualifiedName) Compare(other QualifiedName) int {
	if c := q.qualifier.Compare(other.qualifier); c != 0 {
		return c
	}
	return strings.Compare(q.name, other.name)
}

// QualifyAll pairs each output label with the same algorithm qualifier.
func QualifyAll(qualifier AlgorithmName, labels []string) []QualifiedName {
	out := make([]QualifiedName, len(labels))
	for i, l := range labels {
		out[i] = NewQualifiedName(qualifier, l)
	}
	return out
}
