// Package seek evaluates compiled selector groups against a document tree.
package seek

import (
	"strings"

	"github.com/niklasfasching/soup/selector"
	"golang.org/x/exp/slices"
)

// Seek applies a single rule to the context nodes. The rule's combinator
// decides the candidates: descendants (default), children, the next sibling
// or all following siblings of each context node. Candidates in excluded are
// rejected. The result is in visiting order and free of duplicates.
func Seek(ctx []Node, r selector.Rule, excluded Set) []Node {
	if len(ctx) == 0 || r.IsMarker() {
		return nil
	}
	out, seen := []Node{}, Set{}
	visit := func(n Node) bool {
		if seen.Has(n) {
			return false
		}
		seen.Add(n)
		if !excluded.Has(n) && Match(n, r) {
			out = append(out, n)
		}
		return true
	}
	for _, n := range ctx {
		switch r.Combinator {
		case selector.Child:
			for _, c := range n.Children() {
				visit(c)
			}
		case selector.Adjacent:
			if ss := n.NextSiblings(); len(ss) != 0 {
				visit(ss[0])
			}
		case selector.Sibling:
			for _, s := range n.NextSiblings() {
				visit(s)
			}
		default:
			walk(n, visit)
		}
	}
	return out
}

// Match reports whether n itself satisfies the tag and predicates of r.
// Combinators are not considered.
func Match(n Node, r selector.Rule) bool {
	if r.IsMarker() {
		return false
	} else if r.Tag != "" && r.Tag != "*" && !strings.EqualFold(n.TagName(), r.Tag) {
		return false
	}
	for _, p := range r.Predicates {
		if !matchPredicate(n, p) {
			return false
		}
	}
	return true
}

func matchPredicate(n Node, p selector.Predicate) bool {
	switch p := p.(type) {
	case selector.PositionalPredicate:
		return matchPosition(n, p)
	case selector.ClassPredicate:
		v, ok := n.Lookup("class")
		if !ok {
			return false
		}
		classes := strings.Fields(v)
		for _, c := range p.Classes {
			if !slices.Contains(classes, c) {
				return false
			}
		}
		return true
	case selector.IDPredicate:
		v, ok := n.Lookup("id")
		return ok && v == p.ID
	case selector.AttributePredicate:
		for _, t := range p.Tests {
			if v, ok := n.Lookup(t.Key); !t.Match(v, ok) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

func matchPosition(n Node, p selector.PositionalPredicate) bool {
	parent := n.ParentNode()
	if parent == nil || p.Index == 0 {
		return false
	}
	position, count := 0, 0
	for _, s := range parent.Children() {
		if p.OfType && !strings.EqualFold(s.TagName(), n.TagName()) {
			continue
		}
		if count++; s == n {
			position = count
		}
	}
	if position == 0 {
		return false
	} else if p.Index > 0 {
		return position == p.Index
	}
	return count-position+1 == -p.Index
}
