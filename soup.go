// soup queries net/html documents with css-like selectors.
//
// Selectors are compiled by package selector and evaluated by package seek;
// this package adapts html.Node to seek.Node and adds the usual helpers for
// loading documents and extracting text.
package soup

import (
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/niklasfasching/soup/seek"
	"github.com/niklasfasching/soup/selector"
	"golang.org/x/net/html"
)

type Node html.Node
type Nodes []*Node

func Parse(r io.Reader) (*Node, error) {
	htmlNode, err := html.Parse(r)
	return AsNode(htmlNode), err
}

func MustParse(r io.Reader) *Node {
	n, err := Parse(r)
	if err != nil {
		panic(err)
	}
	return n
}

func Load(client *http.Client, url string) (*Node, error) {
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	return LoadReq(client, req)
}

func LoadReq(client *http.Client, req *http.Request) (*Node, error) {
	res, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()
	if res.StatusCode >= 300 {
		return nil, fmt.Errorf("%s %s: status %d", req.Method, req.URL, res.StatusCode)
	}
	return Parse(res.Body)
}

func (n *Node) TagName() string {
	if n.Type != html.ElementNode {
		return ""
	}
	return n.Data
}

func (n *Node) Lookup(key string) (string, bool) {
	for _, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

func (n *Node) ParentNode() seek.Node {
	if n.Parent == nil {
		return nil
	}
	return AsNode(n.Parent)
}

func (n *Node) Children() []seek.Node {
	ns := []seek.Node{}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode {
			ns = append(ns, AsNode(c))
		}
	}
	return ns
}

func (n *Node) NextSiblings() []seek.Node {
	ns := []seek.Node{}
	for s := n.NextSibling; s != nil; s = s.NextSibling {
		if s.Type == html.ElementNode {
			ns = append(ns, AsNode(s))
		}
	}
	return ns
}

func (n *Node) First(s string) *Node { return n.FirstSel(selector.Compile(s)) }
func (n *Node) FirstSel(gs selector.Groups) *Node {
	if n == nil {
		return nil
	}
	if f := seek.First([]seek.Node{n}, gs); f != nil {
		return f.(*Node)
	}
	return nil
}

func (n *Node) Find(s string) Nodes { return n.FindSel(selector.Compile(s)) }
func (n *Node) FindSel(gs selector.Groups) Nodes {
	if n == nil {
		return nil
	}
	return asNodes(seek.SeekAll([]seek.Node{n}, gs))
}

func (n *Node) Text() string {
	if n == nil {
		return ""
	}
	var out strings.Builder
	appendText(&out, AsHTMLNode(n))
	return out.String()
}

func (n *Node) TrimmedText() string {
	return trimmed(n.Text())
}

func (n *Node) OuterHTML() string {
	if n == nil {
		return ""
	}
	var out strings.Builder
	if err := html.Render(&out, AsHTMLNode(n)); err != nil {
		panic(fmt.Sprintf("Could not render html: %s", err))
	}
	return out.String()
}

func (n *Node) HTML() string {
	if n == nil {
		return ""
	}
	var out strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if err := html.Render(&out, c); err != nil {
			panic(fmt.Sprintf("Could not render html: %s", err))
		}
	}
	return out.String()
}

func (n *Node) Attribute(key string) string {
	if n == nil {
		return ""
	}
	v, _ := n.Lookup(key)
	return v
}

// Attributes returns all attributes as a map, later duplicates win.
func (n *Node) Attributes() map[string]string {
	m := map[string]string{}
	if n == nil {
		return m
	}
	for _, a := range n.Attr {
		m[a.Key] = a.Val
	}
	return m
}

func (ns Nodes) Eq(i int) *Node {
	if i < 0 || i >= len(ns) {
		return nil
	}
	return ns[i]
}

func (ns Nodes) Len() int {
	return len(ns)
}

func (ns Nodes) Text(sep string) string {
	ss := make([]string, len(ns))
	for i, n := range ns {
		ss[i] = n.Text()
	}
	return strings.Join(ss, sep)
}

func (ns Nodes) Attribute(key string) []string {
	as := make([]string, len(ns))
	for i, n := range ns {
		as[i] = n.Attribute(key)
	}
	return as
}

func (ns Nodes) First(s string) *Node { return ns.FirstSel(selector.Compile(s)) }
func (ns Nodes) FirstSel(gs selector.Groups) *Node {
	for _, n := range ns {
		if f := n.FirstSel(gs); f != nil {
			return f
		}
	}
	return nil
}

// Find evaluates s once against all nodes, so the result is free of the
// duplicates overlapping nodes would otherwise produce.
func (ns Nodes) Find(s string) Nodes { return ns.FindSel(selector.Compile(s)) }
func (ns Nodes) FindSel(gs selector.Groups) Nodes {
	ctx := make([]seek.Node, len(ns))
	for i, n := range ns {
		ctx[i] = n
	}
	return asNodes(seek.SeekAll(ctx, gs))
}

func (ns Nodes) HTML() string {
	ss := make([]string, len(ns))
	for i, n := range ns {
		ss[i] = n.OuterHTML()
	}
	return strings.Join(ss, "\n")
}
