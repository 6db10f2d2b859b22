package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/niklasfasching/soup"
	"github.com/niklasfasching/soup/config"
	"github.com/niklasfasching/soup/selector"
	"github.com/niklasfasching/soup/store"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type flags struct {
	config, logLevel, db, attr string
	jobs                       int
	html, json, strict         bool
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	f, a := &flags{}, &app{}
	rootCmd := &cobra.Command{
		Use:   "soup",
		Short: "Query html documents with css selectors",
		Long: `soup compiles css selectors and evaluates them against html files,
urls or stdin. Matches are printed and optionally stored in sqlite.`,
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVarP(&f.config, "config", "c", "", "yaml configuration file")
	rootCmd.PersistentFlags().StringVar(&f.logLevel, "log-level", "", "override log.level (debug, info, warn, error, none)")
	rootCmd.PersistentFlags().StringVar(&f.db, "db", "", "sqlite database to store matches in")
	rootCmd.PersistentFlags().IntVarP(&f.jobs, "jobs", "j", 0, "number of inputs processed concurrently")
	rootCmd.PersistentFlags().BoolVar(&f.json, "json", false, "print matches as json lines")

	setup := func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(f.config)
		if err != nil {
			return err
		}
		if f.logLevel != "" {
			cfg.Log.Level = f.logLevel
		}
		if cmd.Flags().Changed("jobs") {
			cfg.Jobs = f.jobs
		}
		if f.db != "" {
			cfg.DB = f.db
		}
		if err := cfg.Validate(); err != nil {
			return err
		}
		log, err := cfg.Log.New(zapcore.AddSync(cmd.ErrOrStderr()))
		if err != nil {
			return err
		}
		*a = app{cfg: cfg, log: log, json: f.json, stdin: cmd.InOrStdin(), out: cmd.OutOrStdout()}
		a.client = newClient(cfg.HTTP, log)
		if cfg.DB != "" {
			if a.db, err = store.Open(cfg.DB); err != nil {
				return err
			}
		}
		return nil
	}
	withApp := func(run func(cmd *cobra.Command, args []string) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			if err := setup(cmd, args); err != nil {
				return err
			}
			defer a.log.Sync()
			err := run(cmd, args)
			if a.db != nil {
				err = errors.Join(err, a.db.Close())
			}
			return err
		}
	}

	compileCmd := &cobra.Command{
		Use:   "compile <selector>",
		Short: "Print the compiled selector as json",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			gs := selector.Compile(args[0])
			if f.strict {
				var err error
				if gs, err = selector.Parse(args[0]); err != nil {
					return err
				}
			}
			bs, err := json.MarshalIndent(gs, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(bs))
			return nil
		},
	}
	compileCmd.Flags().BoolVar(&f.strict, "strict", false, "fail on fragments that would be skipped")

	queryCmd := &cobra.Command{
		Use:   "query <selector> [inputs...]",
		Short: "Print all nodes matched by selector in files, urls or stdin (-)",
		Args:  cobra.MinimumNArgs(1),
		RunE: withApp(func(cmd *cobra.Command, args []string) error {
			q := config.Query{Name: "query", Selector: args[0], Attr: f.attr, Output: "text"}
			if f.html {
				q.Output = "html"
			} else if f.attr != "" {
				q.Output = "attr"
			}
			return a.process(cmd.Context(), []config.Query{q}, args[1:])
		}),
	}
	queryCmd.Flags().StringVarP(&f.attr, "attr", "a", "", "print attribute instead of text")
	queryCmd.Flags().BoolVar(&f.html, "html", false, "print outer html instead of text")

	runCmd := &cobra.Command{
		Use:   "run [inputs...]",
		Short: "Run all configured queries against files, urls or stdin (-)",
		RunE: withApp(func(cmd *cobra.Command, args []string) error {
			if len(a.cfg.Queries) == 0 {
				return fmt.Errorf("no queries configured")
			}
			return a.process(cmd.Context(), a.cfg.Queries, args)
		}),
	}

	rootCmd.AddCommand(compileCmd, queryCmd, runCmd)
	return rootCmd
}

func newClient(c config.HTTPConfig, log *zap.Logger) *http.Client {
	t := soup.Transport{
		RetryCount: c.Retries,
		UserAgent:  c.UserAgent,
		Timeout:    c.Timeout,
		Logger:     log,
	}
	if c.CacheDir != "" {
		t.Cache = &soup.FileCache{Root: c.CacheDir}
	}
	if c.RateLimit > 0 {
		t.RateLimiter = time.Tick(c.RateLimit)
	}
	return t.Client()
}
