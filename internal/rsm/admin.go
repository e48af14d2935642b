package rsm

import (
	"time"

	"google.golang.org/protobuf/types/known/timestamppb"

	"github.com/adilzhan-satpaeva/rsm-core/internal/rsmlog"
)

// Status is a point-in-time snapshot of Runtime state for admin/diagnostic
// APIs, the RSM-side counterpart of proposer.Status.
type Status struct {
	Name             string
	IsLeader         bool
	AppliedHistoryID rsmlog.HistoryID
	AppliedSeqno     int64
	AvailableSeqno   int64
	PendingClients   int
	PendingSync      int
	CapturedAt       *timestamppb.Timestamp
}

// Status requests a point-in-time snapshot of the Runtime's state. The
// returned channel is closed after delivering exactly one value, or
// immediately if the Runtime has already stopped.
func (r *Runtime) Status() <-chan Status {
	ch := make(chan Status, 1)
	select {
	case r.msgs <- rmsgStatus{replyCh: ch}:
	case <-r.done:
		close(ch)
	}
	return ch
}

func (r *Runtime) statusLocked() Status {
	return Status{
		Name:             r.name,
		IsLeader:         r.role.kind == roleLeader,
		AppliedHistoryID: r.appliedHistoryID,
		AppliedSeqno:     r.appliedSeqno,
		AvailableSeqno:   r.availableSeqno,
		PendingClients:   len(r.pendingClients),
		PendingSync:      len(r.syncRequests),
		CapturedAt:       timestamppb.New(time.Now()),
	}
}
