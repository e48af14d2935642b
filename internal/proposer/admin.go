package proposer

import (
	"sort"
	"time"

	"google.golang.org/protobuf/types/known/timestamppb"

	"github.com/adilzhan-satpaeva/rsm-core/internal/rsmlog"
)

// AdminPeerStatus is a point-in-time snapshot of one peer's replication
// progress, for admin/diagnostic APIs.
type AdminPeerStatus struct {
	Peer        string
	Sent        int64
	Acked       int64
	AckedCommit int64
	NeedsSync   bool
	InFlight    bool
}

// Status is a point-in-time snapshot of Proposer state, grounded on the
// teacher's raft.AdminState.
type Status struct {
	Self           string
	HistoryID      rsmlog.HistoryID
	Term           rsmlog.Term
	IsLeader       bool
	CommittedSeqno int64
	HighSeqno      int64
	ConfigRevision rsmlog.Revision
	Config         rsmlog.Config
	InTransition   bool
	InBranch       bool
	Peers          []AdminPeerStatus
	CapturedAt     *timestamppb.Timestamp
}

// Status requests a point-in-time snapshot of the Proposer's state. The
// returned channel is closed after delivering exactly one value, or
// immediately if the Proposer has already stopped.
func (p *Proposer) Status() <-chan Status {
	ch := make(chan Status, 1)
	select {
	case p.msgs <- msgStatus{replyCh: ch}:
	case <-p.done:
		close(ch)
	}
	return ch
}

func (p *Proposer) statusLocked(isLeader bool) Status {
	peerIDs := p.peerTable.Peers()
	sort.Strings(peerIDs)

	out := Status{
		Self:           p.self,
		HistoryID:      p.historyID,
		Term:           p.term,
		IsLeader:       isLeader,
		CommittedSeqno: p.committedSeqno,
		HighSeqno:      p.highSeqno,
		ConfigRevision: p.configRevision,
		Config:         p.config,
		InTransition:   p.transition != nil,
		InBranch:       p.pendingBranch != nil,
		CapturedAt:     timestamppb.New(time.Now()),
	}
	out.Peers = make([]AdminPeerStatus, 0, len(peerIDs))
	for _, id := range peerIDs {
		st := p.peerTable.Get(id)
		if st == nil {
			continue
		}
		out.Peers = append(out.Peers, AdminPeerStatus{
			Peer:        id,
			Sent:        st.Sent,
			Acked:       st.Acked,
			AckedCommit: st.AckedCommit,
			NeedsSync:   st.NeedsSync,
			InFlight:    st.InFlight,
		})
	}
	return out
}
