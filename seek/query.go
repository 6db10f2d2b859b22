package seek

import "github.com/niklasfasching/soup/selector"

// SeekGroup feeds the result of each rule into the next one. Only the last
// rule honors excluded. An empty group matches nothing.
func SeekGroup(ctx []Node, g selector.Group, excluded Set) []Node {
	if len(g) == 0 {
		return nil
	}
	ns := ctx
	for i, r := range g {
		ex := Set(nil)
		if i == len(g)-1 {
			ex = excluded
		}
		if ns = Seek(ns, r, ex); len(ns) == 0 {
			return nil
		}
	}
	return ns
}

// SeekAll returns the union of all groups in first seen order.
func SeekAll(ctx []Node, gs selector.Groups) []Node {
	out, matched := []Node{}, Set{}
	for _, g := range gs {
		ns := SeekGroup(ctx, g, matched)
		matched.Add(ns...)
		out = append(out, ns...)
	}
	return out
}

func First(ctx []Node, gs selector.Groups) Node {
	if ns := SeekAll(ctx, gs); len(ns) != 0 {
		return ns[0]
	}
	return nil
}

// Find compiles s and seeks it below n.
func Find(n Node, s string) []Node {
	return SeekAll([]Node{n}, selector.Compile(s))
}
