package cli

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/dyike/cortexdesk/config"
	"github.com/dyike/cortexdesk/models"
)

// runFlags are the per-run overrides shared by analyze and batch.
type runFlags struct {
	date         string
	analysts     string
	debateRounds int
	riskRounds   int
	online       bool
}

func (f *runFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.date, "date", "", "Trade date in YYYY-MM-DD format (today if not provided)")
	cmd.Flags().StringVar(&f.analysts, "analysts", "", "Comma separated analysts in run order: market,social,news,fundamentals")
	cmd.Flags().IntVar(&f.debateRounds, "debate-rounds", 0, "Bull/bear debate rounds")
	cmd.Flags().IntVar(&f.riskRounds, "risk-rounds", 0, "Risk debate rounds")
	cmd.Flags().BoolVar(&f.online, "online", true, "Use online data tools instead of cached datasets")
}

// apply returns a copy of cfg with the flags the user actually set.
func (f *runFlags) apply(cmd *cobra.Command, cfg *config.Config) (*config.Config, error) {
	out := cfg.Clone()
	if cmd.Flags().Changed("analysts") {
		out.SelectedAnalysts = config.ParseAnalysts(f.analysts)
	}
	if cmd.Flags().Changed("debate-rounds") {
		out.MaxDebateRounds = f.debateRounds
	}
	if cmd.Flags().Changed("risk-rounds") {
		out.MaxRiskDiscussRounds = f.riskRounds
	}
	if cmd.Flags().Changed("online") {
		out.OnlineTools = f.online
	}
	if err := out.Validate(); err != nil {
		return nil, err
	}
	return out, nil
}

func (f *runFlags) tradeDate() (string, error) {
	return resolveDate(f.date, time.Now())
}

// resolveDate defaults to today and rejects dates in the future.
func resolveDate(date string, now time.Time) (string, error) {
	if strings.TrimSpace(date) == "" {
		return now.Format(time.DateOnly), nil
	}
	d, err := time.Parse(time.DateOnly, strings.TrimSpace(date))
	if err != nil {
		return "", fmt.Errorf("invalid date %q, expected YYYY-MM-DD", date)
	}
	if d.After(now) {
		return "", fmt.Errorf("date %s is in the future", date)
	}
	return d.Format(time.DateOnly), nil
}

func progressPrinter(w io.Writer) func(models.AgentEvent) {
	return func(ev models.AgentEvent) {
		fmt.Fprintln(w, renderEvent(ev))
	}
}

func newAnalyzeCmd(a *app) *cobra.Command {
	var (
		flags   runFlags
		quiet   bool
		reports bool
	)
	cmd := &cobra.Command{
		Use:   "analyze SYMBOL",
		Short: "Run the trading committee for a stock symbol",
		Long: `Run the full committee for one ticker on one trade date.
Example: cortexdesk analyze AAPL --date=2024-05-10 --analysts=market,news`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := flags.apply(cmd, a.cfg)
			if err != nil {
				return err
			}
			date, err := flags.tradeDate()
			if err != nil {
				return err
			}
			var progress func(models.AgentEvent)
			if !quiet {
				progress = progressPrinter(cmd.ErrOrStderr())
			}
			return a.analyze(cmd.Context(), cfg, args[0], date, progress, reports)
		},
	}
	flags.register(cmd)
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "Do not print agent progress")
	cmd.Flags().BoolVar(&reports, "reports", true, "Print the report sections after the run")
	return cmd
}

func (a *app) analyze(ctx context.Context, cfg *config.Config, ticker, date string, progress func(models.AgentEvent), showReports bool) error {
	if ctx == nil {
		ctx = context.Background()
	}
	eng, err := a.openEngine(a)
	if err != nil {
		return err
	}
	defer eng.Close()

	fmt.Fprintln(a.out, renderHeader(strings.ToUpper(ticker), date, cfg.SelectedAnalysts))
	res, err := eng.analyze(ctx, cfg, ticker, date, progress)
	if res != nil {
		fmt.Fprintln(a.out, renderResult(res, showReports))
	}
	if err != nil {
		return err
	}
	return res.Err
}

func newBatchCmd(a *app) *cobra.Command {
	var (
		flags       runFlags
		concurrency int
	)
	cmd := &cobra.Command{
		Use:   "batch SYMBOL...",
		Short: "Run the committee for several symbols",
		Long: `Run the committee for several tickers on the same trade date.
With --config, edits to the config file (debate rounds, analysts, tool mode)
are picked up between tickers.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := flags.apply(cmd, a.cfg)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("concurrency") {
				cfg.BatchConcurrency = concurrency
			}
			date, err := flags.tradeDate()
			if err != nil {
				return err
			}
			return a.batch(cmd.Context(), cfg, dedupeTickers(args), date)
		},
	}
	flags.register(cmd)
	cmd.Flags().IntVar(&concurrency, "concurrency", 1, "Committees running at once")
	return cmd
}

func (a *app) batch(ctx context.Context, cfg *config.Config, tickers []string, date string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	eng, err := a.openEngine(a)
	if err != nil {
		return err
	}
	defer eng.Close()

	var mu sync.Mutex
	current := cfg.Clone()
	if a.mgr != nil {
		watchCtx, cancel := context.WithCancel(ctx)
		defer cancel()
		err := a.mgr.Watch(watchCtx, func(fresh config.Config) {
			next := config.Reloadable(cfg, fresh)
			if err := next.Validate(); err != nil {
				a.logger.Warn("ignoring reloaded config", zap.Error(err))
				return
			}
			mu.Lock()
			current = next
			mu.Unlock()
			a.logger.Info("config reloaded for remaining tickers",
				zap.Int("debate_rounds", next.MaxDebateRounds),
				zap.Int("risk_rounds", next.MaxRiskDiscussRounds),
				zap.Bool("online_tools", next.OnlineTools))
		})
		if err != nil {
			a.logger.Warn("config watch unavailable", zap.Error(err))
		}
	}

	limit := cfg.BatchConcurrency
	if limit < 1 {
		limit = 1
	}
	results := make([]*runResult, len(tickers))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i, ticker := range tickers {
		g.Go(func() error {
			mu.Lock()
			runCfg := current.Clone()
			mu.Unlock()

			res, err := eng.analyze(gctx, runCfg, ticker, date, nil)
			if err != nil {
				// storage failures abort the batch, run failures do not
				return err
			}
			results[i] = res
			status := completedStyle.Render("done")
			if res.Err != nil {
				status = errorStyle.Render("failed")
			}
			mu.Lock()
			fmt.Fprintf(a.out, "%s %s %s\n", status, res.Ticker, renderSignal(res.Signal))
			mu.Unlock()
			return nil
		})
	}
	waitErr := g.Wait()

	fmt.Fprintln(a.out)
	failed := 0
	for i, res := range results {
		if res == nil {
			fmt.Fprintf(a.out, "%-8s %s\n", strings.ToUpper(tickers[i]), mutedStyle.Render("not run"))
			failed++
			continue
		}
		line := fmt.Sprintf("%-8s %-6s %s", res.Ticker, renderSignal(res.Signal), mutedStyle.Render(res.SessionID))
		if res.Err != nil {
			failed++
			line += " " + errorStyle.Render(res.Err.Error())
		}
		fmt.Fprintln(a.out, line)
	}
	if waitErr != nil {
		return waitErr
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d runs failed", failed, len(tickers))
	}
	return nil
}

func dedupeTickers(args []string) []string {
	seen := make(map[string]bool, len(args))
	var out []string
	for _, arg := range args {
		for _, t := range strings.Split(arg, ",") {
			t = strings.ToUpper(strings.TrimSpace(t))
			if t == "" || seen[t] {
				continue
			}
			seen[t] = true
			out = append(out, t)
		}
	}
	return out
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "cortexdesk %s\n", Version)
		},
	}
}
