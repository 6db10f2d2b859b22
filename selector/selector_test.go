package selector

import (
	"encoding/json"
	"reflect"
	"strings"
	"testing"
)

var compileTests = []struct {
	selector string
	expected Groups
}{
	{"div", Groups{{{Tag: "div"}}}},
	{"DIV", Groups{{{Tag: "div"}}}},
	{"*", Groups{{{Tag: "*"}}}},
	{"#main", Groups{{{Predicates: []Predicate{IDPredicate{"main"}}}}}},
	{"a.b.c", Groups{{{Tag: "a", Predicates: []Predicate{ClassPredicate{[]string{"b", "c"}}}}}}},
	{"div > p.intro", Groups{{
		{Tag: "div"},
		{Tag: "p", Combinator: Child, Predicates: []Predicate{ClassPredicate{[]string{"intro"}}}},
	}}},
	{"div>p", Groups{{{Tag: "div"}, {Tag: "p", Combinator: Child}}}},
	{"ul + li ~ p", Groups{{{Tag: "ul"}, {Tag: "li", Combinator: Adjacent}, {Tag: "p", Combinator: Sibling}}}},
	{"div/p", Groups{{{Tag: "div"}, {Tag: "p"}}}},
	{"a[href^='http']", Groups{{{Tag: "a", Predicates: []Predicate{
		AttributePredicate{[]AttributeTest{{Key: "href", Matcher: "^=", Value: "http"}}},
	}}}}},
	{`a[href$=.pdf]`, Groups{{{Tag: "a", Predicates: []Predicate{
		AttributePredicate{[]AttributeTest{{Key: "href", Matcher: "$=", Value: ".pdf"}}},
	}}}}},
	{`[ title = "x y" ]`, Groups{{{Predicates: []Predicate{
		AttributePredicate{[]AttributeTest{{Key: "title", Matcher: "=", Value: "x y"}}},
	}}}}},
	{"input[!disabled]", Groups{{{Tag: "input", Predicates: []Predicate{
		AttributePredicate{[]AttributeTest{{Key: "disabled", Negate: true}}},
	}}}}},
	{"[@Title]", Groups{{{Predicates: []Predicate{
		AttributePredicate{[]AttributeTest{{Key: "title"}}},
	}}}}},
	{"[a!=1]", Groups{{{Predicates: []Predicate{
		AttributePredicate{[]AttributeTest{{Key: "a", Matcher: "!=", Value: "1"}}},
	}}}}},
	{"[a=1][b*=2][c]", Groups{{{Predicates: []Predicate{
		AttributePredicate{[]AttributeTest{{Key: "a", Matcher: "=", Value: "1"}, {Key: "b", Matcher: "*=", Value: "2"}, {Key: "c"}}},
	}}}}},
	{"p[xml:lang=en]", Groups{{{Tag: "p", Predicates: []Predicate{
		AttributePredicate{[]AttributeTest{{Key: "xml:lang", Matcher: "=", Value: "en"}}},
	}}}}},
	{"li:first-child", Groups{{{Tag: "li", Predicates: []Predicate{PositionalPredicate{1, false}}}}}},
	{"li:last-child", Groups{{{Tag: "li", Predicates: []Predicate{PositionalPredicate{-1, false}}}}}},
	{"li:first-of-type", Groups{{{Tag: "li", Predicates: []Predicate{PositionalPredicate{1, true}}}}}},
	{"li:last-of-type", Groups{{{Tag: "li", Predicates: []Predicate{PositionalPredicate{-1, true}}}}}},
	{"li:nth-child(2)", Groups{{{Tag: "li", Predicates: []Predicate{PositionalPredicate{2, false}}}}}},
	{":nth-last-child(3)", Groups{{{Tag: "*", Predicates: []Predicate{PositionalPredicate{-3, false}}}}}},
	{"p:nth-of-type( 4 )", Groups{{{Tag: "p", Predicates: []Predicate{PositionalPredicate{4, true}}}}}},
	{"p:nth-last-of-type(2)", Groups{{{Tag: "p", Predicates: []Predicate{PositionalPredicate{-2, true}}}}}},
	{"p:hover", Groups{{{Tag: "p", Predicates: []Predicate{PseudoPredicate{"hover"}}}}}},
	{"p:nth-child(odd)", Groups{{{Tag: "p", Predicates: []Predicate{PseudoPredicate{"nth-child(odd)"}}}}}},
	{"p:nth-child(2n+1)", Groups{{{Tag: "p", Predicates: []Predicate{PseudoPredicate{"nth-child(2n+1)"}}}}}},
	{"p::before", Groups{{{Tag: "p", Predicates: []Predicate{PseudoPredicate{":before"}}}}}},
	{"li.item#x[a]:first-child", Groups{{{Tag: "li", Predicates: []Predicate{
		PositionalPredicate{1, false},
		ClassPredicate{[]string{"item"}},
		IDPredicate{"x"},
		AttributePredicate{[]AttributeTest{{Key: "a"}}},
	}}}}},
	{"a, b", Groups{{{Tag: "a"}}, {{Tag: "b"}}}},
	{"a ,b , c", Groups{{{Tag: "a"}}, {{Tag: "b"}}, {{Tag: "c"}}}},
	{"a,,b", Groups{{{Tag: "a"}}, {}, {{Tag: "b"}}}},
	{"a,", Groups{{{Tag: "a"}}, {}}},
	{",a", Groups{{}, {{Tag: "a"}}}},
	{"div >, p", Groups{{{Tag: "div"}, {Combinator: Child}}, {{Tag: "p"}}}},
	{"div >", Groups{{{Tag: "div"}, {Combinator: Child}}}},
	{"div > > p", Groups{{{Tag: "div"}, {Combinator: Child}, {Tag: "p", Combinator: Child}}}},
	{"> p", Groups{{{Tag: "p", Combinator: Child}}}},
	{"div $ p", Groups{{{Tag: "div"}, {Tag: "p"}}}},
	{"[a b] p", Groups{{{Tag: "p"}}}},
	{"", Groups{{}}},
	{"   ", Groups{{}}},
	{" , ", Groups{{}, {}}},
	{"[a=1][b]", Groups{{{Predicates: []Predicate{
		AttributePredicate{[]AttributeTest{{Key: "a", Matcher: "=", Value: "1"}, {Key: "b"}}},
	}}}}},
}

func TestCompile(t *testing.T) {
	for _, test := range compileTests {
		actual := Compile(test.selector)
		if !reflect.DeepEqual(actual, test.expected) {
			t.Errorf("%q\ngot:\n\t%s\n\nexpected:\n\t%s", test.selector, jsonify(actual), jsonify(test.expected))
		}
	}
}

func TestStringRoundTrip(t *testing.T) {
	for _, test := range compileTests {
		compiled := Compile(test.selector)
		recompiled := Compile(compiled.String())
		if !reflect.DeepEqual(compiled, recompiled) {
			t.Errorf("%q: bad string conversion %q\ngot:\n\t%s\n\nexpected:\n\t%s",
				test.selector, compiled.String(), jsonify(recompiled), jsonify(compiled))
		}
	}
}

func TestCommaConcatenation(t *testing.T) {
	selectors := []string{"div > p.intro", "a[href^=http]", "li:last-child", "ul ~ p", "#x.y", "div >", "p:hover", "", " ", "a, b", "a,", ",,"}
	for _, s1 := range selectors {
		for _, s2 := range selectors {
			actual, expected := Compile(s1+","+s2), append(Compile(s1), Compile(s2)...)
			if !reflect.DeepEqual(actual, expected) {
				t.Errorf("%q, %q\ngot:\n\t%s\n\nexpected:\n\t%s", s1, s2, jsonify(actual), jsonify(expected))
			}
		}
	}
}

func TestParse(t *testing.T) {
	if _, err := Parse("div > p.intro, a[href]"); err != nil {
		t.Errorf("unexpected error: %s", err)
	}
	for _, s := range []string{"div $ p", "[a b]", "a[", "div.", "p^"} {
		if _, err := Parse(s); err == nil {
			t.Errorf("%q: expected error", s)
		}
	}
	gs, err := Parse("div $ p")
	if err == nil || !strings.Contains(err.Error(), `"$"`) {
		t.Errorf("got %v, expected error mentioning $", err)
	}
	if expected := Compile("div $ p"); !reflect.DeepEqual(gs, expected) {
		t.Errorf("got %s, expected %s", jsonify(gs), jsonify(expected))
	}
}

func TestLex(t *testing.T) {
	tokens := lex(`div > p.a[href^='x'], *:first-child`)
	expected := []token{
		{tokenIdent, "div", 0},
		{tokenSpace, " ", 3},
		{tokenCombinator, ">", 4},
		{tokenSpace, " ", 5},
		{tokenIdent, "p", 6},
		{tokenClass, "a", 8},
		{tokenBracketOpen, "[", 9},
		{tokenIdent, "href", 10},
		{tokenMatcher, "^=", 14},
		{tokenString, "x", 17},
		{tokenBracketClose, "]", 19},
		{tokenComma, ",", 20},
		{tokenSpace, " ", 21},
		{tokenUniversal, "*", 22},
		{tokenPseudo, "first-child", 24},
		{tokenEOF, "", 35},
	}
	if !reflect.DeepEqual(tokens, expected) {
		t.Errorf("got:\n\t%#v\n\nexpected:\n\t%#v", tokens, expected)
	}
}

func TestLexNeverFails(t *testing.T) {
	for _, s := range []string{`"unterminated`, `[a="x`, `:nth-child(`, `\`, `#`, `.`, `|`, `a:nth-child("(")`} {
		tokens := lex(s)
		if len(tokens) == 0 || tokens[len(tokens)-1].category != tokenEOF {
			t.Errorf("%q: expected tokens ending in EOF, got %#v", s, tokens)
		}
		Compile(s)
	}
}

func TestUnescape(t *testing.T) {
	tests := map[string]string{
		`a\:b`:      "a:b",
		`\31 a`:     "1a",
		`\0041`:     "A",
		`plain`:     "plain",
		`trailing\`: `trailing\`,
		`\110000`:   "�",
	}
	for in, expected := range tests {
		if actual := Unescape(in); actual != expected {
			t.Errorf("%q: got %q, expected %q", in, actual, expected)
		}
	}
	for _, s := range []string{"1a", "-1", "-", "a:b", "with space", "ü"} {
		if actual := Unescape(EscapeIdentifier(s)); actual != s {
			t.Errorf("%q: got %q after escaping as %q", s, actual, EscapeIdentifier(s))
		}
	}
}

func TestAttributeTestMatch(t *testing.T) {
	tests := []struct {
		test     AttributeTest
		value    string
		ok       bool
		expected bool
	}{
		{AttributeTest{Key: "a"}, "", true, true},
		{AttributeTest{Key: "a"}, "", false, false},
		{AttributeTest{Key: "a", Matcher: "=", Value: "x"}, "x", true, true},
		{AttributeTest{Key: "a", Matcher: "=", Value: "x"}, "xy", true, false},
		{AttributeTest{Key: "a", Matcher: "!=", Value: "x"}, "y", true, true},
		{AttributeTest{Key: "a", Matcher: "!=", Value: "x"}, "", false, false},
		{AttributeTest{Key: "a", Matcher: "^=", Value: "ht"}, "http", true, true},
		{AttributeTest{Key: "a", Matcher: "$=", Value: "tp"}, "http", true, true},
		{AttributeTest{Key: "a", Matcher: "*=", Value: "tt"}, "http", true, true},
		{AttributeTest{Key: "a", Matcher: "*=", Value: "x"}, "http", true, false},
		{AttributeTest{Key: "a", Matcher: "~=", Value: "b"}, "a b c", true, true},
		{AttributeTest{Key: "a", Matcher: "|=", Value: "en"}, "en-US", true, true},
		{AttributeTest{Key: "a", Negate: true}, "", false, true},
		{AttributeTest{Key: "a", Negate: true, Matcher: "=", Value: "x"}, "x", true, false},
		{AttributeTest{Key: "a", Negate: true, Matcher: "=", Value: "x"}, "", false, true},
	}
	for _, test := range tests {
		if actual := test.test.Match(test.value, test.ok); actual != test.expected {
			t.Errorf("%s on (%q, %v): got %v, expected %v", test.test, test.value, test.ok, actual, test.expected)
		}
	}
}

func TestMarshalJSON(t *testing.T) {
	bs, err := json.Marshal(Compile("div > p.intro"))
	if err != nil {
		t.Fatal(err)
	}
	expected := `[[{"combinator":"descendant","tag":"div"},{"combinator":"child","predicates":[{"kind":"class","value":{"Classes":["intro"]}}],"tag":"p"}]]`
	if actual := normalizeJSON(t, bs); actual != expected {
		t.Errorf("got:\n\t%s\n\nexpected:\n\t%s", actual, expected)
	}
}

func normalizeJSON(t *testing.T, bs []byte) string {
	var v any
	if err := json.Unmarshal(bs, &v); err != nil {
		t.Fatal(err)
	}
	bs, err := json.Marshal(v)
	if err != nil {
		t.Fatal(err)
	}
	return string(bs)
}

func jsonify(v interface{}) string {
	bs, err := json.MarshalIndent(v, "\t", "  ")
	if err != nil {
		panic(err)
	}
	return string(bs)
}
