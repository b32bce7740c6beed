package maintenance

import (
	"context"
	"log/slog"

	"github.com/riverqueue/river"
)

// ReconcileBalancesArgs is the periodic job that re-sums every user's ledger
// and repairs drifted balance caches. The ledger is authoritative; the cache
// can lag only when a process died between the two writes of an engine
// operation, so the sweep is cheap and almost always a no-op.
type ReconcileBalancesArgs struct{}

func (ReconcileBalancesArgs) Kind() string { return "reconcile_balances" }

// Reconciler is implemented by the points engine.
type Reconciler interface {
	ReconcileAll(ctx context.Context) (repaired int, err error)
}

type ReconcileBalancesWorker struct {
	river.WorkerDefaults[ReconcileBalancesArgs]
	engine Reconciler
	log    *slog.Logger
}

func NewReconcileBalancesWorker(engine Reconciler, log *slog.Logger) *ReconcileBalancesWorker {
	if log == nil {
		log = slog.Default()
	}
	return &ReconcileBalancesWorker{engine: engine, log: log}
}

func (w *ReconcileBalancesWorker) Work(ctx context.Context, job *river.Job[ReconcileBalancesArgs]) error {
	repaired, err := w.engine.ReconcileAll(ctx)
	if err != nil {
		return err
	}
	if repaired > 0 {
		w.log.Warn("balance reconciliation repaired drifted caches", "repaired", repaired)
	} else {
		w.log.Info("balance reconciliation clean")
	}
	return nil
}
