package rsm

import (
	"context"

	"github.com/adilzhan-satpaeva/rsm-core/internal/agent"
	"github.com/adilzhan-satpaeva/rsm-core/internal/rsmlog"
)

// maybeStartReader launches the single-outstanding reader subprocess
// (spec.md §4.5) when there is a gap between appliedSeqno and
// availableSeqno and no read is already in flight. The reader itself does
// no state mutation; it only fetches and posts back, keeping all state
// transitions inside the Run loop.
func (r *Runtime) maybeStartReader(ctx context.Context) {
	if r.readerBusy {
		return
	}
	if r.availableSeqno <= r.appliedSeqno {
		return
	}
	from, to := r.appliedSeqno, r.availableSeqno
	historyID := r.appliedHistoryID
	r.readerBusy = true
	go r.readEntries(ctx, historyID, from, to)
}

func (r *Runtime) readEntries(ctx context.Context, historyID rsmlog.HistoryID, from, to int64) {
	full, err := r.local.GetFullLog(ctx, historyID)
	if err != nil {
		if mismatch, ok := agent.AsHistoryMismatch(err); ok {
			r.send(rmsgHistoryChanged{historyID: mismatch.HistoryID})
			return
		}
		r.send(rmsgEntries{err: err})
		return
	}
	entries := make([]rsmlog.LogEntry, 0, to-from)
	for _, e := range full {
		if e.Seqno > from && e.Seqno <= to {
			entries = append(entries, e)
		}
	}
	r.send(rmsgEntries{entries: entries, highSeqno: to})
}
