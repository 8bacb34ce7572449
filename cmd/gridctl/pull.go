package main

import (
	"fmt"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/matthewbaird/entitygrid/internal/cache"
	"github.com/matthewbaird/entitygrid/internal/push"
)

var flagPullFollow bool

var pullCmd = &cobra.Command{
	Use:   "pull",
	Short: "Bring the local cache up to date",
	Long: `Pull fetches every change since the cache watermark and stores the
updated cache snapshot in the state database.

With --follow it keeps running, applying change batches pushed by the
server until interrupted.`,
	Args: cobra.NoArgs,
	RunE: runPull,
}

func init() {
	pullCmd.Flags().BoolVar(&flagPullFollow, "follow", false, "keep applying pushed changes until interrupted")
}

func runPull(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	res, err := a.pull(ctx)
	if err != nil {
		return fmt.Errorf("pull: %w", err)
	}
	printResult(cmd, res, a.cache.LastUpdate())
	if err := a.save(ctx); err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	if !flagPullFollow {
		return nil
	}

	sub := push.NewSubscriber(pushURL(), a.cache, a.registry, nil,
		push.WithClientID(a.client.ID()),
		push.WithBatchHook(func(res cache.Result) {
			printResult(cmd, res, a.cache.LastUpdate())
			if err := a.save(ctx); err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "save snapshot: %v\n", err)
			}
		}))
	return sub.Run(ctx)
}

func printResult(cmd *cobra.Command, res cache.Result, lastUpdate int64) {
	fmt.Fprintf(cmd.OutOrStdout(), "created %d, updated %d, deleted %d (lastUpdate %d)\n",
		res.Created, res.Updated, res.Deleted, lastUpdate)
}

// pushURL is the websocket endpoint under the controller base.
func pushURL() string {
	base := settings.GetString(cfgKeyServer)
	if !strings.HasSuffix(base, "/") {
		base += "/"
	}
	return base + "push"
}

