package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dyike/cortexdesk/consts"
	"github.com/dyike/cortexdesk/internal/storage"
	"github.com/dyike/cortexdesk/models"
)

func (a *app) openStore() (*storage.Store, error) {
	if err := a.cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("failed to create directories: %w", err)
	}
	return storage.Open(a.cfg.DBPath)
}

func newHistoryCmd(a *app) *cobra.Command {
	var (
		symbol string
		limit  int
	)
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded committee runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := a.openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			sessions, err := store.ListSessions(cmd.Context(), strings.ToUpper(symbol), limit)
			if err != nil {
				return err
			}
			fmt.Fprint(a.out, renderSessions(sessions))
			return nil
		},
	}
	cmd.Flags().StringVar(&symbol, "symbol", "", "Only show runs for this ticker")
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum number of runs to list")

	var events bool
	show := &cobra.Command{
		Use:   "show SESSION_ID",
		Short: "Show the message log of one run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := a.openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			ctx := cmd.Context()
			sess, err := store.GetSession(ctx, args[0])
			if err != nil {
				return err
			}
			fmt.Fprint(a.out, renderSessions([]models.SessionRecord{*sess}))
			if sess.Error != "" {
				fmt.Fprintln(a.out, errorStyle.Render(sess.Error))
			}
			fmt.Fprintln(a.out)

			msgs, err := store.ListMessages(ctx, sess.ID)
			if err != nil {
				return err
			}
			fmt.Fprint(a.out, renderMessages(msgs))

			if events {
				evs, err := store.ListEvents(ctx, sess.ID)
				if err != nil {
					return err
				}
				for _, ev := range evs {
					fmt.Fprintln(a.out, renderEvent(ev))
				}
			}
			return nil
		},
	}
	show.Flags().BoolVar(&events, "events", false, "Also print the recorded progress events")
	cmd.AddCommand(show)
	return cmd
}

func newReflectCmd(a *app) *cobra.Command {
	var returns string
	cmd := &cobra.Command{
		Use:   "reflect SESSION_ID",
		Short: "Reflect on a finished run given its realised returns",
		Long: `Reflect on a recorded run once the outcome of the position is known.
Each role (bull, bear, trader, research manager, risk manager) writes one
lesson into its memory; later runs recall the closest lessons.
Example: cortexdesk reflect 6f1c... --returns=-0.042`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := strconv.ParseFloat(strings.TrimSpace(returns), 64)
			if err != nil {
				return fmt.Errorf("invalid --returns %q: %w", returns, err)
			}
			eng, err := a.openEngine(a)
			if err != nil {
				return err
			}
			defer eng.Close()

			ctx := cmd.Context()
			sess, err := eng.reflect(ctx, a.cfg, args[0], r)
			if err != nil {
				return err
			}
			counts, err := eng.store.CountMemories(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "%s %s %s (%s)\n", completedStyle.Render("reflected"), sess.Symbol, sess.TradeDate, renderSignal(sess.Signal))
			for _, role := range consts.AllMemories {
				fmt.Fprintf(a.out, "%s%d lessons\n", labelStyle.Render(role), counts[role])
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&returns, "returns", "", "Realised returns of the position, e.g. 0.031 or -0.02")
	_ = cmd.MarkFlagRequired("returns")
	return cmd
}
