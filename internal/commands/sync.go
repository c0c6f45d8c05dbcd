package commands

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"time"

	"golang.org/x/sync/errgroup"

	"tasky/internal/connectivity"
	"tasky/internal/exitcode"
)

func init() {
	Register(&SyncCmd{})
	Register(&WatchCmd{})
}

// SyncCmd implements the sync command.
type SyncCmd struct{}

func (c *SyncCmd) Name() string       { return "sync" }
func (c *SyncCmd) Aliases() []string  { return nil }
func (c *SyncCmd) Synopsis() string   { return "Refresh the local task cache" }
func (c *SyncCmd) Usage() string      { return "tasky sync" }
func (c *SyncCmd) NeedsAuth() bool    { return true }
func (c *SyncCmd) NeedsBackend() bool { return true }

func (c *SyncCmd) RegisterFlags(fs *flag.FlagSet) {}

func (c *SyncCmd) Run(ctx context.Context, rt *Runtime, args []string, out, errOut io.Writer) int {
	if len(args) > 0 {
		return usageError(errOut, "unexpected argument: %s", args[0])
	}
	if err := rt.Sync.Sync(ctx); err != nil {
		return fail(errOut, err)
	}
	if !rt.quiet() {
		fmt.Fprintln(out, "ok")
	}
	return exitcode.Success
}

// WatchCmd implements the watch command: it probes the API until
// interrupted and syncs whenever connectivity comes back.
type WatchCmd struct {
	interval time.Duration
}

func (c *WatchCmd) Name() string       { return "watch" }
func (c *WatchCmd) Aliases() []string  { return nil }
func (c *WatchCmd) Synopsis() string   { return "Sync automatically when the connection returns" }
func (c *WatchCmd) Usage() string      { return "tasky watch [--interval <duration>]" }
func (c *WatchCmd) NeedsAuth() bool    { return true }
func (c *WatchCmd) NeedsBackend() bool { return true }

func (c *WatchCmd) RegisterFlags(fs *flag.FlagSet) {
	fs.DurationVar(&c.interval, "interval", 0, "")
}

func (c *WatchCmd) Run(ctx context.Context, rt *Runtime, args []string, out, errOut io.Writer) int {
	if len(args) > 0 {
		return usageError(errOut, "unexpected argument: %s", args[0])
	}
	interval := c.interval
	if interval <= 0 {
		interval = rt.Config.Settings.ProbeInterval
	}

	prober := connectivity.NewProber(rt.Backend, interval, rt.Logger)
	g, gctx := errgroup.WithContext(ctx)
	prober.Start(gctx)
	defer prober.Stop()

	relay := make(chan connectivity.Event)
	g.Go(func() error {
		defer close(relay)
		for ev := range prober.Events() {
			if !rt.quiet() {
				fmt.Fprintln(out, ev)
			}
			select {
			case relay <- ev:
			case <-gctx.Done():
				return nil
			}
		}
		return nil
	})
	g.Go(func() error {
		return rt.Sync.Run(gctx, relay)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return fail(errOut, err)
	}
	return exitcode.Success
}
