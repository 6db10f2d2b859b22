package selector

import (
	"fmt"
	"strconv"
	"strings"
)

type parser struct {
	tokens  []token
	index   int
	skipped []token
}

var pseudoAliases = map[string]string{
	"first-child":   "nth-child(1)",
	"last-child":    "nth-last-child(1)",
	"first-of-type": "nth-of-type(1)",
	"last-of-type":  "nth-last-of-type(1)",
}

var positionals = map[string]PositionalPredicate{
	"nth-child":        {1, false},
	"nth-last-child":   {-1, false},
	"nth-of-type":      {1, true},
	"nth-last-of-type": {-1, true},
}

// Compile compiles a selector into its comma separated groups. Every comma
// closes a group, even an empty one, so the result always holds one group
// more than the selector has top level commas.
func Compile(selector string) Groups {
	gs, _ := compile(selector)
	return gs
}

// Parse is the strict variant of Compile: it also reports the first fragment
// that had to be skipped.
func Parse(selector string) (Groups, error) {
	gs, skipped := compile(selector)
	if len(skipped) != 0 {
		t := skipped[0]
		return gs, fmt.Errorf("invalid selector %q: unexpected %s %q at %d", selector, t.category, t.string, t.index)
	}
	return gs, nil
}

func compile(selector string) (Groups, []token) {
	p := &parser{tokens: lex(selector)}
	gs := p.parseGroups()
	if len(gs) == 0 {
		gs = Groups{Group{}}
	}
	return gs, p.skipped
}

func (p *parser) next() token {
	if p.index == len(p.tokens) {
		return token{category: tokenEOF}
	}
	t := p.tokens[p.index]
	p.index++
	return t
}

func (p *parser) peek() token {
	if p.index == len(p.tokens) {
		return token{category: tokenEOF}
	}
	return p.tokens[p.index]
}

func (p *parser) backup() {
	if p.index == 0 {
		panic("cannot backup at start")
	}
	p.index--
}

func (p *parser) acceptRun(c tokenCategory) {
	for p.next().category == c {
	}
	p.backup()
}

func (p *parser) accept(c tokenCategory) (token, bool) {
	if t := p.next(); t.category == c {
		return t, true
	}
	p.backup()
	return token{}, false
}

// skip drops everything up to the next separator outside of brackets.
func (p *parser) skip() {
	for depth := 0; ; {
		switch t := p.peek(); {
		case t.category == tokenEOF:
			return
		case depth == 0 && (t.category == tokenSpace || t.category == tokenComma || t.category == tokenCombinator):
			return
		case t.category == tokenBracketOpen:
			depth++
		case t.category == tokenBracketClose && depth > 0:
			depth--
		}
		p.skipped = append(p.skipped, p.next())
	}
}

func (p *parser) parseGroups() Groups {
	gs, g := Groups{}, Group{}
	combinator, pending := Descendant, false
	flush := func() {
		if pending {
			g = append(g, Rule{Combinator: combinator})
		}
		combinator, pending = Descendant, false
	}
	for {
		switch t := p.peek(); t.category {
		case tokenEOF:
			// the group after a trailing comma is kept, even if empty
			if flush(); len(g) != 0 || len(gs) != 0 {
				gs = append(gs, g)
			}
			return gs
		case tokenSpace:
			p.next()
		case tokenComma:
			p.next()
			flush()
			gs, g = append(gs, g), Group{}
		case tokenCombinator:
			p.next()
			flush()
			combinator, pending = Combinators[t.string], true
		default:
			start := p.index
			r, ok := p.parseCompound()
			if !ok {
				p.index = start
				p.skip()
				continue
			}
			r.Combinator, combinator, pending = combinator, Descendant, false
			g = append(g, r)
			p.skip()
		}
	}
}

// parseCompound parses a tag followed by any number of id, class, attribute
// and pseudo class selectors. Predicates are collected in evaluation order:
// position, class, id, attribute, unknown pseudo classes.
func (p *parser) parseCompound() (Rule, bool) {
	r, consumed := Rule{}, false
	switch t := p.peek(); t.category {
	case tokenIdent:
		r.Tag, consumed = strings.ToLower(p.next().string), true
	case tokenUniversal:
		r.Tag, consumed = p.next().string, true
	}
	var positions, pseudos []Predicate
	ids, classes, attributes := []Predicate{}, ClassPredicate{}, AttributePredicate{}
loop:
	for {
		switch t := p.peek(); t.category {
		case tokenID:
			ids = append(ids, IDPredicate{p.next().string})
		case tokenClass:
			classes.Classes = append(classes.Classes, p.next().string)
		case tokenBracketOpen:
			test, ok := p.parseAttribute()
			if !ok {
				return Rule{}, false
			}
			attributes.Tests = append(attributes.Tests, test)
		case tokenPseudo:
			pred := p.parsePseudo()
			if _, ok := pred.(PositionalPredicate); ok {
				positions = append(positions, pred)
			} else {
				pseudos = append(pseudos, pred)
			}
			if r.Tag == "" {
				r.Tag = "*"
			}
		default:
			break loop
		}
		consumed = true
	}
	if !consumed {
		return Rule{}, false
	}
	r.Predicates = append(r.Predicates, positions...)
	if len(classes.Classes) != 0 {
		r.Predicates = append(r.Predicates, classes)
	}
	r.Predicates = append(r.Predicates, ids...)
	if len(attributes.Tests) != 0 {
		r.Predicates = append(r.Predicates, attributes)
	}
	r.Predicates = append(r.Predicates, pseudos...)
	return r, true
}

// parseAttribute parses [name], [!name], [@name] and [name<matcher>value].
func (p *parser) parseAttribute() (AttributeTest, bool) {
	test := AttributeTest{}
	p.next()
	p.acceptRun(tokenSpace)
	p.accept(tokenAt)
	if _, ok := p.accept(tokenBang); ok {
		test.Negate = true
	}
	t, ok := p.accept(tokenIdent)
	if !ok {
		return test, false
	}
	test.Key = strings.ToLower(t.string)
	for t, ok := p.accept(tokenPseudo); ok; t, ok = p.accept(tokenPseudo) {
		test.Key += ":" + strings.ToLower(t.string)
	}
	p.acceptRun(tokenSpace)
	if t, ok := p.accept(tokenMatcher); ok {
		test.Matcher = t.string
		switch v := p.next(); v.category {
		case tokenValue, tokenString:
			test.Value = v.string
		default:
			return test, false
		}
		p.acceptRun(tokenSpace)
	}
	if _, ok := p.accept(tokenBracketClose); !ok {
		return test, false
	}
	return test, true
}

func (p *parser) parsePseudo() Predicate {
	name, args := strings.ToLower(p.next().string), ""
	if t, ok := p.accept(tokenArguments); ok {
		args = t.string
	}
	pseudo := name + args
	if alias, ok := pseudoAliases[pseudo]; ok {
		pseudo = alias
	}
	if i := strings.IndexByte(pseudo, '('); i != -1 && strings.HasSuffix(pseudo, ")") {
		n, ok := parseIndex(pseudo[i+1 : len(pseudo)-1])
		if pos, known := positionals[pseudo[:i]]; known && ok {
			return PositionalPredicate{pos.Index * n, pos.OfType}
		}
	}
	return PseudoPredicate{pseudo}
}

// parseIndex accepts only plain digits; signs and an+b forms are rejected.
func parseIndex(s string) (int, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	for _, r := range s {
		if !isDigit(r) {
			return 0, false
		}
	}
	n, err := strconv.Atoi(s)
	return n, err == nil
}
