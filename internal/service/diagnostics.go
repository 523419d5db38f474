package service

import (
	"context"

	"github.com/spiffcs/inbox/internal/diagnostics"
	"github.com/spiffcs/inbox/internal/model"
	"github.com/spiffcs/inbox/internal/view"
)

// SnapshotDiagnostics runs the aggregator once and returns its first
// settled state. A cancelled ctx yields an Error state.
func SnapshotDiagnostics(ctx context.Context, coll diagnostics.Collection, resolver diagnostics.Resolver) diagnostics.State {
	settled := make(chan diagnostics.State, 1)
	agg := diagnostics.NewAggregator(coll, resolver, func(s diagnostics.State) {
		if s.Kind() == view.KindLoading {
			return
		}
		select {
		case settled <- s:
		default:
		}
	})
	defer agg.Dispose()

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	if err := agg.Start(runCtx); err != nil {
		return view.Failed[model.DiagnosticInfo](err)
	}

	select {
	case s := <-settled:
		return s
	case <-ctx.Done():
		return view.Failed[model.DiagnosticInfo](ctx.Err())
	}
}
