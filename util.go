package soup

import (
	"regexp"
	"strings"
	"unsafe"

	"github.com/niklasfasching/soup/seek"
	"golang.org/x/net/html"
)

func AsHTMLNode(n *Node) *html.Node { return (*html.Node)(unsafe.Pointer(n)) }
func AsNode(n *html.Node) *Node     { return (*Node)(unsafe.Pointer(n)) }

var duplicateWhitespace = regexp.MustCompile(`\s+(\n)\s*|\s*(\n)\s+|(\s)\s+`)

func asNodes(ns []seek.Node) Nodes {
	out := make(Nodes, len(ns))
	for i, n := range ns {
		out[i] = n.(*Node)
	}
	return out
}

func appendText(out *strings.Builder, n *html.Node) {
	switch {
	case n == nil || n.Type == html.CommentNode:
		return
	case n.Type == html.TextNode:
		out.WriteString(n.Data)
	default:
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			appendText(out, c)
		}
	}
}

func trimmed(s string) string {
	return duplicateWhitespace.ReplaceAllString(strings.TrimSpace(s), "$1$2$3")
}
