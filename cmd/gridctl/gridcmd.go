package main

import (
	"context"
	"fmt"
	"io"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/matthewbaird/entitygrid/internal/cache"
	"github.com/matthewbaird/entitygrid/internal/grid"
	"github.com/matthewbaird/entitygrid/internal/push"
)

var (
	flagGridSort    string
	flagGridDesc    bool
	flagGridQuick   []string
	flagGridRows    int
	flagGridOffline bool
	flagGridFollow  bool
	flagGridReset   bool
)

var gridCmd = &cobra.Command{
	Use:   "grid <type>",
	Short: "Draw a grid of cached entities",
	Long: `Grid draws the entities of a type as a table using the view in
<views_dir>/<type>.yaml, or every schema field when there is no view.

Sort order and quick filters are remembered per view. --quick takes
column=text pairs; an empty text clears that column's filter.

Example:
  gridctl grid Order --sort Total --desc
  gridctl grid Order --quick CustomerID=acme --rows 20`,
	Args: cobra.ExactArgs(1),
	RunE: runGrid,
}

func init() {
	gridCmd.Flags().StringVar(&flagGridSort, "sort", "", "column to sort by")
	gridCmd.Flags().BoolVar(&flagGridDesc, "desc", false, "sort descending")
	gridCmd.Flags().StringArrayVar(&flagGridQuick, "quick", nil, "quick filter as column=text (repeatable)")
	gridCmd.Flags().IntVar(&flagGridRows, "rows", 50, "maximum rows to draw, 0 for all")
	gridCmd.Flags().BoolVar(&flagGridOffline, "offline", false, "draw from the saved cache without pulling")
	gridCmd.Flags().BoolVar(&flagGridFollow, "follow", false, "redraw when the server pushes changes")
	gridCmd.Flags().BoolVar(&flagGridReset, "reset", false, "clear saved quick filters first")
}

// openGrid builds and renders the grid of typ over the cache.
func openGrid(ctx context.Context, a *app, typ string, out io.Writer, maxRows int) (*grid.Grid, *textWidget, error) {
	if a.schema.Entity(typ) == nil {
		return nil, nil, fmt.Errorf("unknown entity type %s", typ)
	}
	view, err := loadView(settings.GetString(cfgKeyViewsDir), typ, a.schema)
	if err != nil {
		return nil, nil, err
	}
	specs, err := view.Specs()
	if err != nil {
		return nil, nil, err
	}
	g, err := grid.New(a.env(), a.cache.List(typ), specs, grid.DefaultCommands(), grid.Config{
		Sortable:     true,
		QuickFilters: true,
		HashPrefix:   typ,
		Store:        a.state,
		Retention:    a.retention,
	})
	if err != nil {
		return nil, nil, err
	}
	tc := &textContainer{out: out, maxRows: maxRows}
	if err := g.Render(ctx, tc); err != nil {
		return nil, nil, err
	}
	if pred := view.Predicate(); pred != nil {
		if err := g.ApplyFilter(pred); err != nil {
			return nil, nil, err
		}
	}
	return g, tc.last, nil
}

func runGrid(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	typ := args[0]

	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	if !flagGridOffline {
		if _, err := a.pull(ctx); err != nil {
			return fmt.Errorf("pull: %w", err)
		}
		if err := a.save(ctx); err != nil {
			return fmt.Errorf("save snapshot: %w", err)
		}
	}

	g, w, err := openGrid(ctx, a, typ, cmd.OutOrStdout(), flagGridRows)
	if err != nil {
		return err
	}
	defer g.Dispose()

	if flagGridReset {
		for col := range g.QuickFilters() {
			if err := g.SetQuickFilter(ctx, col, ""); err != nil {
				return err
			}
		}
	}
	if flagGridSort != "" {
		if err := g.Sort(ctx, flagGridSort, !flagGridDesc); err != nil {
			return err
		}
	}
	for _, q := range flagGridQuick {
		col, text, ok := strings.Cut(q, "=")
		if !ok {
			return fmt.Errorf("invalid quick filter %q (expected column=text)", q)
		}
		if err := g.SetQuickFilter(ctx, col, text); err != nil {
			return err
		}
	}
	if err := w.Draw(); err != nil {
		return err
	}
	if !flagGridFollow {
		return nil
	}

	g.Follow(a.bus, a.cache, typ)
	sub := push.NewSubscriber(pushURL(), a.cache, a.registry, []string{typ},
		push.WithClientID(a.client.ID()),
		push.WithBatchHook(func(cache.Result) {
			if !w.Stale() {
				return
			}
			fmt.Fprintln(cmd.OutOrStdout())
			if err := w.Draw(); err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "draw: %v\n", err)
			}
		}))
	return sub.Run(ctx)
}
