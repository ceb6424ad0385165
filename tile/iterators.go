package tile

import (
	"context"
	"errors"
	"iter"
)

var errVisitCancelled = errors.New("visit cancelled")

// IterRange returns an iterator over all tiles of the source inside r, in the
// source's visit order. Iteration may panic on unrecoverable errors.
func IterRange(ctx context.Context, v RangeVisitor, r Range) iter.Seq2[ID, []byte] {
	return func(yield func(ID, []byte) bool) {
		err := v.VisitRange(ctx, r, func(tileID ID, tileData []byte) error {
			if !yield(tileID, tileData) {
				return errVisitCancelled
			}
			return nil
		})
		if err != nil && err != errVisitCancelled {
			panic(err)
		}
	}
}

// IterZoom is like IterRange over the whole zoom level z.
func IterZoom(ctx context.Context, v RangeVisitor, z uint32) iter.Seq2[ID, []byte] {
	return IterRange(ctx, v, FullRange(z))
}
