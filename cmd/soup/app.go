package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/niklasfasching/soup"
	"github.com/niklasfasching/soup/config"
	"github.com/niklasfasching/soup/selector"
	"github.com/niklasfasching/soup/store"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

type app struct {
	cfg    config.Config
	log    *zap.Logger
	client *http.Client
	db     *store.DB
	json   bool
	stdin  io.Reader
	out    io.Writer
}

type line struct {
	Source   string `json:"source"`
	Query    string `json:"query"`
	Position int    `json:"position"`
	Value    string `json:"value"`
}

// process evaluates qs against all inputs concurrently and prints the
// matches in input order. Without inputs stdin is read.
func (a *app) process(ctx context.Context, qs []config.Query, inputs []string) error {
	if len(inputs) == 0 {
		inputs = []string{"-"}
	}
	gs := make([]selector.Groups, len(qs))
	for i, q := range qs {
		gs[i] = selector.Compile(q.Selector)
		a.log.Debug("compiled", zap.String("query", q.Name), zap.Stringer("selector", gs[i]))
	}
	results := make([][]store.Match, len(inputs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.cfg.Jobs)
	for i, input := range inputs {
		i, input := i, input
		g.Go(func() error {
			doc, err := a.load(gctx, input)
			if err != nil {
				return fmt.Errorf("%s: %w", input, err)
			}
			results[i] = extract(input, doc, qs, gs)
			a.log.Debug("extracted", zap.String("source", input), zap.Int("matches", len(results[i])))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	ms := []store.Match{}
	for _, r := range results {
		ms = append(ms, r...)
	}
	if a.db != nil {
		if err := a.db.Insert(ctx, ms); err != nil {
			return fmt.Errorf("store matches: %w", err)
		}
		a.log.Info("stored", zap.String("db", a.cfg.DB), zap.Int("matches", len(ms)))
	}
	return a.print(qs, ms, len(inputs) > 1)
}

func (a *app) load(ctx context.Context, input string) (*soup.Node, error) {
	switch {
	case input == "-":
		return soup.Parse(a.stdin)
	case strings.HasPrefix(input, "http://") || strings.HasPrefix(input, "https://"):
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, input, nil)
		if err != nil {
			return nil, err
		}
		return soup.LoadReq(a.client, req)
	default:
		f, err := os.Open(input)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		return soup.Parse(f)
	}
}

func extract(source string, doc *soup.Node, qs []config.Query, gs []selector.Groups) []store.Match {
	ms := []store.Match{}
	for i, q := range qs {
		for j, n := range doc.FindSel(gs[i]) {
			ms = append(ms, store.Match{
				Source:   source,
				Query:    q.Name,
				Selector: q.Selector,
				Position: j,
				Tag:      n.TagName(),
				Text:     n.TrimmedText(),
				HTML:     n.OuterHTML(),
				Attrs:    n.Attributes(),
			})
		}
	}
	return ms
}

func value(q config.Query, m store.Match) string {
	switch q.Output {
	case "html":
		return m.HTML
	case "attr":
		return m.Attrs[q.Attr]
	default:
		return m.Text
	}
}

func (a *app) print(qs []config.Query, ms []store.Match, prefix bool) error {
	byName := map[string]config.Query{}
	for _, q := range qs {
		byName[q.Name] = q
	}
	enc := json.NewEncoder(a.out)
	for _, m := range ms {
		v := value(byName[m.Query], m)
		switch {
		case a.json:
			if err := enc.Encode(line{m.Source, m.Query, m.Position, v}); err != nil {
				return err
			}
		case prefix:
			fmt.Fprintf(a.out, "%s:%s\n", m.Source, v)
		default:
			fmt.Fprintln(a.out, v)
		}
	}
	return nil
}
