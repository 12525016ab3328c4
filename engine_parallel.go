package memocap

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/jward/memocap/internal/frontend"
	"github.com/jward/memocap/internal/store"
)

// workItem holds everything a classification worker needs.
type workItem struct {
	path   string
	module string
	src    []byte
	runID  string
	batch  *store.BatchedStore

	decisions int
}

// classifyParallel classifies files using a three-phase pipeline:
//
//	Phase A (serial):   Read files, hash check against the stored unit.
//	Phase B (parallel): Parse and classify via worker pool, buffering
//	                    results in a per-item BatchedStore.
//	Phase C (serial):   Commit batches to the backend.
func (e *Engine) classifyParallel(ctx context.Context, srcs []source, sum *RunSummary, force bool) error {
	var errs []error

	// ---- Phase A: Serial file preparation ----
	var items []*workItem
	for _, src := range srcs {
		item, skip, err := e.prepareFile(src, sum.RunID, force)
		if err != nil {
			errs = append(errs, fmt.Errorf("prepare %s: %w", src.path, err))
			continue
		}
		if skip {
			sum.Unchanged++
			continue
		}
		items = append(items, item)
	}

	if len(items) == 0 {
		return e.summarize(sum, errs)
	}

	// ---- Phase B: Parallel classification ----
	numWorkers := max(1, min(runtime.NumCPU(), len(items)))

	workCh := make(chan *workItem, len(items))
	for _, item := range items {
		workCh <- item
	}
	close(workCh)

	type result struct {
		item *workItem
		err  error
	}
	resultCh := make(chan result, len(items))

	var wg sync.WaitGroup
	for range numWorkers {
		wg.Go(func() {
			// Each item owns its BatchedStore and each unit gets a fresh
			// decision cache, so workers share nothing but the result cache.
			for item := range workCh {
				err := e.classifyFile(ctx, item)
				resultCh <- result{item: item, err: err}
			}
		})
	}

	go func() {
		wg.Wait()
		close(resultCh)
	}()

	// ---- Phase C: Serial commit ----
	for res := range resultCh {
		if res.err != nil {
			errs = append(errs, fmt.Errorf("classify %s: %w", res.item.path, res.err))
			continue
		}
		if err := e.commit(res.item, sum); err != nil {
			errs = append(errs, err)
		}
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return e.summarize(sum, errs)
}

// prepareFile does Phase A work for a single file: read and hash check.
// Returns (item, skip, error). skip=true means the file is unchanged.
func (e *Engine) prepareFile(src source, runID string, force bool) (*workItem, bool, error) {
	content, err := readSource(src.path)
	if err != nil {
		return nil, false, err
	}

	if !force {
		existing, err := e.store.UnitByPath(src.path)
		if err != nil {
			return nil, false, fmt.Errorf("lookup unit: %w", err)
		}
		if existing != nil && existing.Hash == store.HashContent(content) {
			return nil, true, nil // unchanged
		}
	}

	return &workItem{
		path:   src.path,
		module: src.module,
		src:    content,
		runID:  runID,
		batch:  store.NewBatchedStore(),
	}, false, nil
}

// classifyFile classifies one item and buffers the outcome in its batch.
func (e *Engine) classifyFile(ctx context.Context, item *workItem) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	res, err := e.classifyUnit(ctx, item.path, item.module, item.src)
	if err != nil {
		if !errors.Is(err, frontend.ErrSyntax) {
			return err
		}
		// The recoverable part of the file is still classified.
		e.log.Warn("memocap: partial parse", zap.String("path", item.path), zap.Error(err))
	}
	item.decisions = len(res.Decisions)
	return recordUnit(item.batch, res, item.runID, time.Now())
}

// commit writes an item's batch and accounts for it in the summary.
func (e *Engine) commit(item *workItem, sum *RunSummary) error {
	if err := e.store.CommitBatch(item.batch); err != nil {
		return fmt.Errorf("commit %s: %w", item.path, err)
	}
	sum.Classified++
	sum.Decisions += item.decisions
	e.log.Debug("memocap: unit stored",
		zap.String("path", item.path),
		zap.Int("decisions", item.decisions))
	return nil
}

// recordUnit writes a classified unit, its decisions and its imports to w.
func recordUnit(w store.Writer, res *UnitResult, runID string, now time.Time) error {
	u := &store.Unit{
		Path:           res.Path,
		Module:         res.Module,
		Hash:           res.Hash,
		RunID:          runID,
		DecisionCount:  len(res.Decisions),
		LastClassified: now,
	}
	if _, err := w.InsertUnit(u); err != nil {
		return err
	}
	for _, d := range res.Decisions {
		_, err := w.InsertDecision(&store.Decision{
			UnitID:    u.ID,
			NodeID:    int64(d.ID),
			Kind:      d.Kind.String(),
			Name:      d.Name,
			StartLine: d.Pos.Line,
			StartCol:  d.Pos.Col,
			Metadata:  d.Metadata,
		})
		if err != nil {
			return err
		}
	}
	for _, imp := range res.Imports {
		if _, err := w.InsertImport(&store.Import{UnitID: u.ID, Symbol: imp.Symbol, Source: imp.Source}); err != nil {
			return err
		}
	}
	return nil
}
