// Package selector compiles css-like selector strings into rule groups.
//
// Compilation never fails: fragments that cannot be parsed are skipped and
// unknown pseudo classes compile to predicates that never match.
package selector

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Combinator describes how a rule selects its candidates relative to the
// nodes matched by the previous rule of its group.
type Combinator int

const (
	Descendant Combinator = iota
	Child
	Adjacent
	Sibling
)

// Predicate is one of IDPredicate, ClassPredicate, AttributePredicate,
// PositionalPredicate and PseudoPredicate.
type Predicate interface {
	fmt.Stringer
	Kind() string
	predicate()
}

type IDPredicate struct {
	ID string
}

type ClassPredicate struct {
	Classes []string
}

type AttributePredicate struct {
	Tests []AttributeTest
}

// AttributeTest checks a single attribute. An empty Matcher only checks for
// presence; Negate matches nodes lacking the attribute and ignores Value.
type AttributeTest struct {
	Key     string
	Matcher string
	Value   string
	Negate  bool
}

// PositionalPredicate matches the 1-indexed position among the parent's
// children. Negative indexes count from the end, -1 being the last child.
type PositionalPredicate struct {
	Index  int
	OfType bool
}

// PseudoPredicate is an unrecognized pseudo class. It never matches.
type PseudoPredicate struct {
	Name string
}

// Rule is one compound selector. A rule without tag and predicates is a
// dangling combinator and matches nothing.
type Rule struct {
	Tag        string
	Combinator Combinator
	Predicates []Predicate
}

type Group []Rule

type Groups []Group

var Combinators = map[string]Combinator{
	" ": Descendant,
	">": Child,
	"+": Adjacent,
	"~": Sibling,
}

var Matchers = map[string]func(string, string) bool{
	"=":  func(av, sv string) bool { return av == sv },
	"!=": func(av, sv string) bool { return av != sv },
	"^=": func(av, sv string) bool { return strings.HasPrefix(av, sv) },
	"$=": func(av, sv string) bool { return strings.HasSuffix(av, sv) },
	"*=": func(av, sv string) bool { return strings.Contains(av, sv) },
	"~=": func(av, sv string) bool { return includes(strings.Fields(av), sv) },
	"|=": func(av, sv string) bool { return av == sv || strings.HasPrefix(av, sv+"-") },
	"":   func(string, string) bool { return true },
}

func (IDPredicate) predicate()         {}
func (ClassPredicate) predicate()      {}
func (AttributePredicate) predicate()  {}
func (PositionalPredicate) predicate() {}
func (PseudoPredicate) predicate()     {}

func (IDPredicate) Kind() string         { return "id" }
func (ClassPredicate) Kind() string      { return "class" }
func (AttributePredicate) Kind() string  { return "attribute" }
func (PositionalPredicate) Kind() string { return "position" }
func (PseudoPredicate) Kind() string     { return "pseudo" }

// IsMarker reports whether r is a bare combinator without anything to match.
func (r Rule) IsMarker() bool { return (r.Tag == "") && len(r.Predicates) == 0 }

func (c Combinator) String() string {
	switch c {
	case Child:
		return ">"
	case Adjacent:
		return "+"
	case Sibling:
		return "~"
	default:
		return " "
	}
}

func (c Combinator) MarshalText() ([]byte, error) {
	switch c {
	case Child:
		return []byte("child"), nil
	case Adjacent:
		return []byte("adjacent"), nil
	case Sibling:
		return []byte("sibling"), nil
	default:
		return []byte("descendant"), nil
	}
}

func (t AttributeTest) Match(value string, ok bool) bool {
	if t.Negate {
		return !ok
	} else if !ok {
		return false
	}
	match := Matchers[t.Matcher]
	return match != nil && match(value, t.Value)
}

func (p IDPredicate) String() string { return "#" + EscapeIdentifier(p.ID) }

func (p ClassPredicate) String() string {
	out := ""
	for _, c := range p.Classes {
		out += "." + EscapeIdentifier(c)
	}
	return out
}

func (p AttributePredicate) String() string {
	out := ""
	for _, t := range p.Tests {
		out += t.String()
	}
	return out
}

func (t AttributeTest) String() string {
	out := "[" + EscapeIdentifier(t.Key)
	if t.Negate {
		out = "[!" + EscapeIdentifier(t.Key)
	}
	if t.Matcher != "" {
		out += t.Matcher + EscapeString(t.Value)
	}
	return out + "]"
}

func (p PositionalPredicate) String() string {
	name, index := "nth", p.Index
	if index < 0 {
		name, index = name+"-last", -index
	}
	if p.OfType {
		name += "-of-type"
	} else {
		name += "-child"
	}
	return ":" + name + "(" + strconv.Itoa(index) + ")"
}

func (p PseudoPredicate) String() string { return ":" + p.Name }

func (r Rule) String() string {
	out := ""
	if r.Combinator != Descendant {
		out = r.Combinator.String()
		if r.IsMarker() {
			return out
		}
		out += " "
	}
	if r.Tag == "*" {
		out += "*"
	} else {
		out += EscapeIdentifier(r.Tag)
	}
	for _, p := range r.Predicates {
		out += p.String()
	}
	return out
}

func (g Group) String() string {
	ss := make([]string, len(g))
	for i, r := range g {
		ss[i] = r.String()
	}
	return strings.Join(ss, " ")
}

func (gs Groups) String() string {
	ss := make([]string, len(gs))
	for i, g := range gs {
		ss[i] = g.String()
	}
	return strings.Join(ss, ", ")
}

func (r Rule) MarshalJSON() ([]byte, error) {
	ps := make([]map[string]any, len(r.Predicates))
	for i, p := range r.Predicates {
		ps[i] = map[string]any{"kind": p.Kind(), "value": p}
	}
	return json.Marshal(struct {
		Tag        string           `json:"tag,omitempty"`
		Combinator Combinator       `json:"combinator"`
		Predicates []map[string]any `json:"predicates,omitempty"`
	}{r.Tag, r.Combinator, ps})
}

func includes(vs []string, v string) bool {
	for _, x := range vs {
		if x == v {
			return true
		}
	}
	return false
}
