package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	rerrors "github.com/Aman-CERP/tfrag/internal/errors"
	"github.com/Aman-CERP/tfrag/internal/index"
	"github.com/Aman-CERP/tfrag/internal/loader"
	"github.com/Aman-CERP/tfrag/internal/manifest"
	"github.com/Aman-CERP/tfrag/internal/ui"
	"github.com/Aman-CERP/tfrag/internal/watcher"
)

type indexOptions struct {
	update  bool
	rebuild bool
	watch   bool
	noTUI   bool
}

func newIndexCmd(a *app) *cobra.Command {
	var opts indexOptions

	cmd := &cobra.Command{
		Use:   "index (--update | --rebuild)",
		Short: "Synchronize the vector index with the data directory",
		Long: `Synchronize the vector index with the documents in the data directory.

  --update   re-embed only added and changed documents and remove deleted ones
  --rebuild  clear the collection and embed every document again

Exactly one mode is required. With --watch the command keeps running and
applies an update whenever documents change.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return a.runIndex(ctx, cmd, opts)
		},
	}

	cmd.Flags().BoolVar(&opts.update, "update", false, "Apply only what changed since the last run")
	cmd.Flags().BoolVar(&opts.rebuild, "rebuild", false, "Clear the collection and index everything")
	cmd.Flags().BoolVarP(&opts.watch, "watch", "w", false, "Keep running and update when documents change")
	cmd.Flags().BoolVar(&opts.noTUI, "no-tui", false, "Plain text progress instead of the terminal UI")
	return cmd
}

// selectMode requires exactly one of --update and --rebuild.
func selectMode(update, rebuild bool) (index.Mode, error) {
	switch {
	case update && !rebuild:
		return index.ModeUpdate, nil
	case rebuild && !update:
		return index.ModeRebuild, nil
	default:
		return 0, rerrors.New(rerrors.ErrCodeModeRequired, "exactly one of --update or --rebuild is required", nil).
			WithSuggestion("use `tfrag index --update` for incremental sync")
	}
}

func (a *app) runIndex(ctx context.Context, cmd *cobra.Command, opts indexOptions) error {
	mode, err := selectMode(opts.update, opts.rebuild)
	if err != nil {
		return err
	}

	lock := manifest.NewLock(a.cfg.LockPath())
	if err := lock.TryLock(); err != nil {
		return err
	}
	defer func() { _ = lock.Unlock() }()

	st, err := a.openStack(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	ld, err := a.newLoader()
	if err != nil {
		return err
	}
	sink := &progressSink{}
	syncer, err := a.newSynchronizer(st, ld, sink.handle)
	if err != nil {
		return err
	}

	newRenderer := func() ui.Renderer {
		return ui.NewRenderer(ui.NewConfig(cmd.OutOrStdout(),
			ui.WithForcePlain(opts.noTUI || opts.watch),
			ui.WithDataDir(a.cfg.DataDir())))
	}

	res, err := a.syncOnce(ctx, syncer, mode, sink, newRenderer(), st)
	if !opts.watch {
		return runError(res, err)
	}
	if err != nil {
		return err
	}
	return a.watch(ctx, syncer, ld, sink, newRenderer, st)
}

// syncOnce runs one synchronization with r attached.
func (a *app) syncOnce(ctx context.Context, syncer *index.Synchronizer, mode index.Mode,
	sink *progressSink, r ui.Renderer, st *stack) (*index.Result, error) {
	if err := r.Start(ctx); err != nil {
		return nil, err
	}
	defer func() { _ = r.Stop() }()
	sink.attach(r)
	defer sink.attach(nil)

	var (
		res *index.Result
		err error
	)
	if mode == index.ModeRebuild {
		res, err = syncer.Rebuild(ctx)
	} else {
		res, err = syncer.Update(ctx)
	}
	if res == nil {
		return nil, err
	}

	for _, rerr := range res.ReadErrors {
		r.AddError(ui.ErrorEvent{Err: rerr, IsWarn: true})
	}
	if err == nil {
		r.Complete(completionStats(res, a.embedderInfo(st)))
	}
	return res, err
}

// watch applies an update for every debounced batch of changes until ctx
// is canceled.
func (a *app) watch(ctx context.Context, syncer *index.Synchronizer, ld *loader.Loader,
	sink *progressSink, newRenderer func() ui.Renderer, st *stack) error {
	w, err := watcher.New(a.cfg.DataDir(), watcher.Options{
		Debounce: a.cfg.WatchDebounce(),
		Filter: watcher.Filter{
			File: ld.Eligible,
			Dir:  func(rel string) bool { return !ld.ExcludedDir(rel) },
		},
	})
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return w.Run(gctx) })
	g.Go(func() error {
		return consumeWatch(gctx, w.Events(), w.Errors(), func(batch []watcher.FileEvent) error {
			slog.Info("watch_batch", slog.Int("events", len(batch)), slog.String("first", batch[0].Path))
			if _, err := a.syncOnce(gctx, syncer, index.ModeUpdate, sink, newRenderer(), st); err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				// A failed update leaves the manifest untouched; the next batch retries.
				slog.LogAttrs(gctx, slog.LevelError, "watch_sync_failed", rerrors.FormatForLog(err)...)
			}
			return nil
		})
	})

	_, _ = fmt.Fprintf(os.Stderr, "Watching %s (%s). Press Ctrl+C to stop.\n", w.Root(), w.Mode())
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// consumeWatch calls apply for each non-empty batch until ctx is canceled
// or the watcher closes its channels.
func consumeWatch(ctx context.Context, events <-chan []watcher.FileEvent, errs <-chan error,
	apply func([]watcher.FileEvent) error) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err, ok := <-errs:
			if !ok {
				return nil
			}
			slog.Warn("watch_error", slog.String("error", err.Error()))
		case batch, ok := <-events:
			if !ok {
				return nil
			}
			if len(batch) == 0 {
				continue
			}
			if err := apply(batch); err != nil {
				return err
			}
		}
	}
}

// runError turns an incomplete run into a command failure.
func runError(res *index.Result, err error) error {
	switch {
	case err != nil:
		return err
	case res.OK():
		return nil
	case len(res.Failed) == 0:
		return fmt.Errorf("sync stopped while %s", res.State)
	default:
		return fmt.Errorf("%d of %d documents failed: %w",
			len(res.Failed), len(res.Added)+len(res.Updated)+len(res.Removed), res.Failed[0].Err)
	}
}

func completionStats(res *index.Result, emb ui.EmbedderInfo) ui.CompletionStats {
	return ui.CompletionStats{
		Mode:          res.Mode.String(),
		Added:         len(res.Added),
		Updated:       len(res.Updated),
		Removed:       len(res.Removed),
		Unchanged:     len(res.Unchanged),
		Skipped:       len(res.Skipped),
		Failed:        len(res.Failed),
		Chunks:        res.Chunks,
		EmbedCalls:    res.EmbedCalls,
		ManifestSaved: res.ManifestSaved,
		Duration:      res.Duration,
		Embedder:      emb,
	}
}

// progressSink forwards synchronizer events to the renderer of the current
// run. The synchronizer is built once and outlives renderers in watch mode.
type progressSink struct {
	mu sync.Mutex
	r  ui.Renderer
}

func (p *progressSink) attach(r ui.Renderer) {
	p.mu.Lock()
	p.r = r
	p.mu.Unlock()
}

func (p *progressSink) handle(e index.Event) {
	p.mu.Lock()
	r := p.r
	p.mu.Unlock()
	if r == nil {
		return
	}

	stage, ok := stageFor(e.State)
	if !ok {
		return
	}
	if e.Err != nil {
		r.AddError(ui.ErrorEvent{File: e.Path, Err: e.Err})
		return
	}
	r.UpdateProgress(ui.ProgressEvent{Stage: stage, Current: e.Current, Total: e.Total, CurrentFile: e.Path})
}

func stageFor(s index.State) (ui.Stage, bool) {
	switch s {
	case index.StateScanning:
		return ui.StageScanning, true
	case index.StateDiffing:
		return ui.StageDiffing, true
	case index.StateApplying:
		return ui.StageApplying, true
	case index.StatePersisting:
		return ui.StagePersisting, true
	default:
		return 0, false
	}
}
