package cmd

import (
	"context"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/tfrag/internal/embed"
	"github.com/Aman-CERP/tfrag/internal/index"
	"github.com/Aman-CERP/tfrag/internal/manifest"
	"github.com/Aman-CERP/tfrag/internal/ui"
)

type statusOptions struct {
	dryRun bool
	json   bool
	repair bool
}

func newStatusCmd(a *app) *cobra.Command {
	var opts statusOptions

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show index state and, with --dry-run, what the next update would change",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			info, err := a.collectStatus(cmd.Context(), opts)
			if err != nil {
				return err
			}
			r := ui.NewStatusRenderer(cmd.OutOrStdout(), ui.DetectNoColor() || !ui.IsTTY(cmd.OutOrStdout()))
			if opts.json {
				return r.RenderJSON(*info)
			}
			return r.Render(*info)
		},
	}

	cmd.Flags().BoolVar(&opts.dryRun, "dry-run", false, "Scan and diff without touching the store or the manifest")
	cmd.Flags().BoolVar(&opts.json, "json", false, "Print status as JSON")
	cmd.Flags().BoolVar(&opts.repair, "repair", false,
		"Delete orphan store entries and invalidate manifest entries with chunk gaps")
	cmd.MarkFlagsMutuallyExclusive("dry-run", "repair")
	return cmd
}

// collectStatus writes only with opts.repair. An unreachable embedder is
// reported, not fatal.
func (a *app) collectStatus(ctx context.Context, opts statusOptions) (*ui.StatusInfo, error) {
	coll, err := a.openStore(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = coll.Close() }()

	ms := manifest.NewStore(a.cfg.ManifestPath())
	m, err := ms.Load()
	if err != nil {
		return nil, err
	}

	info := &ui.StatusInfo{
		DataDir:      a.cfg.DataDir(),
		ManifestPath: ms.Path(),
		Documents:    len(m),
		Collection:   coll.Name(),
		Embedder:     ui.EmbedderInfo{Backend: a.cfg.Embeddings.Provider, Model: a.cfg.Embeddings.Model},
	}
	if fi, err := os.Stat(ms.Path()); err == nil {
		info.LastIndexed = fi.ModTime()
	}
	if fi, err := os.Stat(a.cfg.StorePath()); err == nil {
		info.StoreSize = fi.Size()
	}

	emb, err := a.openEmbedder(ctx)
	if err != nil {
		slog.Warn("status_embedder_unavailable", slog.String("error", err.Error()))
		info.EmbedderStatus = "unavailable"
	} else {
		defer func() { _ = emb.Close() }()
		info.EmbedderStatus = "ready"
		info.Embedder.Model = emb.ModelName()
		info.Embedder.Dimensions = emb.Dimensions()
	}

	checker := index.NewConsistencyChecker(ms, coll)
	check, err := checker.Check(ctx)
	if err != nil {
		return nil, err
	}
	if opts.repair && !check.Healthy() {
		if err := a.repair(ctx, checker, check); err != nil {
			return nil, err
		}
		info.Repaired = check.Strings()
		if check, err = checker.Check(ctx); err != nil {
			return nil, err
		}
		if m, err = ms.Load(); err != nil {
			return nil, err
		}
		info.Documents = len(m)
	}
	info.Chunks = check.Chunks
	info.Consistent = check.Healthy()
	if len(check.Inconsistencies) > 0 {
		info.Issues = check.Strings()
	}

	if !opts.dryRun {
		return info, nil
	}

	ld, err := a.newLoader()
	if err != nil {
		return nil, err
	}
	// Plan never embeds, so a stand-in keeps --dry-run usable offline.
	if emb == nil {
		emb = embed.NewStaticEmbedder()
	}
	syncer, err := a.newSynchronizer(&stack{embedder: emb, store: coll, manifest: ms}, ld, nil)
	if err != nil {
		return nil, err
	}
	plan, readErrs, err := syncer.Plan(ctx)
	if err != nil {
		return nil, err
	}
	for _, re := range readErrs {
		slog.Warn("status_read_error", slog.String("error", re.Error()))
	}
	info.Pending = &ui.PendingInfo{
		Added:     plan.Added,
		Updated:   plan.Updated,
		Removed:   plan.Removed,
		Skipped:   plan.Skipped,
		Unchanged: len(plan.Unchanged),
	}
	return info, nil
}

// repair holds the index lock so it cannot interleave with a running sync.
func (a *app) repair(ctx context.Context, checker *index.ConsistencyChecker, check *index.CheckResult) error {
	lock := manifest.NewLock(a.cfg.LockPath())
	if err := lock.TryLock(); err != nil {
		return err
	}
	defer func() { _ = lock.Unlock() }()

	if err := checker.Repair(ctx, check.Inconsistencies); err != nil {
		return err
	}
	slog.Info("index_repaired", slog.Int("issues", len(check.Inconsistencies)))
	return nil
}
