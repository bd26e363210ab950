package names

import "strings"

// Label references an input data item. The qualifier is optional; an
// unqualified label resolves to the nearest producer in scope at bind time,
// while a qualified label disambiguates same-named outputs from different
// producers.
type Label struct {
	Name      string
	Qualifier AlgorithmName
}

// ParseLabel parses "name" or "name@plugin:algorithm".
func ParseLabel(spec string) (Label, error) {
	if spec == "" {
		return Label{}, &ParseError{Spec: spec, Reason: "empty label"}
	}
	name, qual, found := strings.Cut(spec, "@")
	if !found {
		return Label{Name: name}, nil
	}
	if name == "" {
		return Label{}, &ParseError{Spec: spec, Reason: "missing data item name before '@'"}
	}
	q, err := ParseAlgorithmName(qual)
	if err != nil {
		return Label{}, err
	}
	return Label{Name: name, Qualifier: q}, nil
}

// MustLabel is ParseLabel for literals known to be valid.
func MustLabel(spec string) Label {
	l, err := ParseLabel(spec)
	if err != nil {
		panic(err)
	}
	return l
}

// Qualified reports whether the label carries a producer qualifier.
func (l Label) Qualified() bool { return !l.Qualifier.Empty() }

// String renders the label in its spec form.
func (l Label) String() string {
	if l.Qualifier.Empty() {
		return l.Name
	}
	return l.Name + "@" + l.Qualifier.Full()
}
