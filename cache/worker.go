package cache

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/eak1mov/go-compactcache/bundle"
	"github.com/eak1mov/go-compactcache/bundle/spec"
	"github.com/eak1mov/go-compactcache/partition"
	"github.com/eak1mov/go-compactcache/tile"
)

// worker turns partitions into bundle files. It keeps at most one bundle in
// memory and owns every bundle of the partitions it receives.
type worker struct {
	id       int
	source   tile.RangeVisitor
	writer   *bundle.Writer
	retry    RetryConfig
	logger   *slog.Logger
	progress Progress
	summary  Summary
}

func (w *worker) run(ctx context.Context, partitions <-chan partition.Partition) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case p, ok := <-partitions:
			if !ok {
				return nil
			}
			if err := w.process(ctx, p); err != nil {
				return err
			}
		}
	}
}

// partitionState tracks the position of a worker inside a partition.
type partitionState struct {
	partition partition.Partition
	keys      []spec.Key
	next      int // index of the bundle being accumulated
	acc       *bundle.Accumulator
}

func (w *worker) process(ctx context.Context, p partition.Partition) error {
	state := &partitionState{partition: p, keys: p.Keys()}
	w.logger.Debug("compactcache: partition started", "worker", w.id, "range", p.Range, "bundles", len(state.keys))

	for attempt := 1; state.next < len(state.keys); attempt++ {
		// Bundles already written are never read again; the current one starts over.
		r := p.Range
		r.MinX = max(r.MinX, state.keys[state.next].Col)
		state.acc = bundle.NewAccumulator(state.keys[state.next])

		var consumeErr error
		err := w.source.VisitRange(ctx, r, func(tileID tile.ID, tileData []byte) error {
			consumeErr = w.consume(ctx, state, tileID, tileData)
			return consumeErr
		})
		if consumeErr != nil {
			return consumeErr
		}
		if err == nil {
			for state.next < len(state.keys) {
				if err := w.flush(ctx, state); err != nil {
					return err
				}
			}
			break
		}

		if ctx.Err() != nil {
			return ctx.Err()
		}
		if attempt >= w.retry.MaxAttempts {
			return fmt.Errorf("%w: %v: %w", ErrSourceRead, r, err)
		}
		w.logger.Warn("compactcache: retrying source read",
			"worker", w.id, "range", r, "attempt", attempt, "error", err)
		if err := sleep(ctx, w.retry.Delay(attempt)); err != nil {
			return err
		}
	}

	state.acc = nil
	return nil
}

func (w *worker) consume(ctx context.Context, state *partitionState, tileID tile.ID, tileData []byte) error {
	if !state.partition.Range.Contains(tileID) {
		return fmt.Errorf("%w: tile %v outside of %v", ErrInvalidCoordinate, tileID, state.partition.Range)
	}
	if len(tileData) == 0 {
		return nil
	}

	key, localRow, localCol := spec.ToKey(tileID)
	if key.Col < state.acc.Key().Col {
		return fmt.Errorf("%w: tile %v arrived after bundle %v was written", ErrSourceOrder, tileID, key)
	}
	for key.Col > state.acc.Key().Col {
		if err := w.flush(ctx, state); err != nil {
			return err
		}
	}
	return state.acc.Insert(localRow, localCol, tileData)
}

// flush writes the current bundle and moves on to the next bundle of the partition.
func (w *worker) flush(ctx context.Context, state *partitionState) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	acc := state.acc
	n, err := w.writer.WriteBundle(acc)
	if err != nil {
		return fmt.Errorf("%w: %v: %w", ErrEncodeWrite, acc.Key(), err)
	}
	w.summary.addBundle(acc.Key(), acc.Count(), n)
	w.progress.Written(acc.Key(), acc.Count())

	state.next++
	state.acc = nil
	if state.next < len(state.keys) {
		state.acc = bundle.NewAccumulator(state.keys[state.next])
	}
	return nil
}
