package cli

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/dyike/cortexdesk/internal/dataflows"
)

// newDataCmd exposes the analyst data adapters directly, which is handy for
// checking API keys and local datasets before running a committee.
func newDataCmd(a *app) *cobra.Command {
	var (
		date     string
		lookback int
		online   bool
	)
	dataCmd := &cobra.Command{
		Use:   "data",
		Short: "Query the data adapters the analysts use",
	}
	dataCmd.PersistentFlags().StringVar(&date, "date", "", "Reference date in YYYY-MM-DD format (today if not provided)")
	dataCmd.PersistentFlags().IntVar(&lookback, "lookback", 7, "Days to look back from --date")
	dataCmd.PersistentFlags().BoolVar(&online, "online", true, "Use online sources where both exist")

	// run resolves the shared flags and prints what fetch returns.
	run := func(cmd *cobra.Command, fetch func(ctx context.Context, di *dataflows.Interface, day string, useOnline bool) (string, error)) error {
		day, err := resolveDate(date, time.Now())
		if err != nil {
			return err
		}
		useOnline := a.cfg.OnlineTools
		if cmd.Flags().Changed("online") {
			useOnline = online
		}
		cfg := a.cfg.Clone()
		cfg.OnlineTools = useOnline
		if err := cfg.EnsureDirectories(); err != nil {
			return err
		}
		text, err := fetch(cmd.Context(), dataflows.New(cfg), day, useOnline)
		if err != nil {
			return err
		}
		if strings.TrimSpace(text) == "" {
			fmt.Fprintln(a.out, mutedStyle.Render("no data"))
			return nil
		}
		fmt.Fprintln(a.out, text)
		return nil
	}

	dataCmd.AddCommand(&cobra.Command{
		Use:   "prices SYMBOL",
		Short: "Daily OHLCV bars for the lookback window",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, func(ctx context.Context, di *dataflows.Interface, day string, useOnline bool) (string, error) {
				end, _ := time.Parse(time.DateOnly, day)
				start := end.AddDate(0, 0, -lookback).Format(time.DateOnly)
				if useOnline {
					return di.GetYFinDataOnline(ctx, args[0], start, day)
				}
				return di.GetYFinData(ctx, args[0], start, day)
			})
		},
	})

	dataCmd.AddCommand(&cobra.Command{
		Use:   "indicator SYMBOL NAME",
		Short: "Technical indicator values, e.g. rsi, macd, boll_ub",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, func(ctx context.Context, di *dataflows.Interface, day string, useOnline bool) (string, error) {
				return di.GetStockStatsIndicatorsWindow(ctx, args[0], strings.ToLower(args[1]), day, lookback, useOnline)
			})
		},
	})

	dataCmd.AddCommand(&cobra.Command{
		Use:   "news QUERY",
		Short: "Google News search results",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, func(ctx context.Context, di *dataflows.Interface, day string, _ bool) (string, error) {
				return di.GetGoogleNews(ctx, strings.Join(args, " "), day, lookback)
			})
		},
	})

	dataCmd.AddCommand(&cobra.Command{
		Use:   "finnhub TICKER",
		Short: "Company news and insider activity from Finnhub",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, func(ctx context.Context, di *dataflows.Interface, day string, _ bool) (string, error) {
				var parts []string
				for _, get := range []func(context.Context, string, string, int) (string, error){
					di.GetFinnhubNews,
					di.GetFinnhubCompanyInsiderSentiment,
					di.GetFinnhubCompanyInsiderTransactions,
				} {
					text, err := get(ctx, args[0], day, lookback)
					if err != nil {
						return "", err
					}
					if text != "" {
						parts = append(parts, text)
					}
				}
				return strings.Join(parts, "\n\n"), nil
			})
		},
	})

	var maxPerDay int
	reddit := &cobra.Command{
		Use:   "reddit [TICKER]",
		Short: "Top Reddit posts, global news without a ticker",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, func(ctx context.Context, di *dataflows.Interface, day string, _ bool) (string, error) {
				if len(args) == 0 {
					return di.GetRedditGlobalNews(ctx, day, lookback, maxPerDay)
				}
				return di.GetRedditCompanyNews(ctx, args[0], day, lookback, maxPerDay)
			})
		},
	}
	reddit.Flags().IntVar(&maxPerDay, "max", 5, "Posts per day")
	dataCmd.AddCommand(reddit)

	return dataCmd
}
