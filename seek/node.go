package seek

// Node is the view of a document tree the seeker needs. Implementations must
// be comparable (pointers or small structs such as arena indexes) since nodes
// are deduplicated through maps. ParentNode returns an untyped nil for roots.
type Node interface {
	TagName() string
	Lookup(attr string) (string, bool)
	ParentNode() Node
	Children() []Node
	NextSiblings() []Node
}

type Set map[Node]struct{}

func NewSet(ns ...Node) Set {
	s := make(Set, len(ns))
	s.Add(ns...)
	return s
}

func (s Set) Add(ns ...Node) {
	for _, n := range ns {
		s[n] = struct{}{}
	}
}

func (s Set) Has(n Node) bool {
	_, ok := s[n]
	return ok
}

// walk visits the descendants of n in document order. Subtrees of nodes for
// which f returns false are not entered.
func walk(n Node, f func(Node) bool) {
	for _, c := range n.Children() {
		if f(c) {
			walk(c, f)
		}
	}
}
