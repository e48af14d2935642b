package proposer

import "github.com/adilzhan-satpaeva/rsm-core/internal/rsmlog"

// msg is the sum type of everything that can arrive on a Proposer's mailbox.
// The single-threaded run loop is the only reader; every field access off
// the mailbox is therefore lock-free (spec.md §5).
type msg interface{ isMsg() }

type msgCmds struct{ cmds []rsmlog.RsmCommand }
type msgCasConfig struct{ req casRequest }
type msgSyncQuorum struct{ ref Ref }
type msgLiveness struct{ event LivenessEvent }
type msgStop struct{}
type msgCheckPeers struct{}
type msgStatus struct{ replyCh chan<- Status }
type msgEstablishTimeout struct{}
type msgLocalAgentDown struct{}
type msgPeerDown struct {
	peer string
	gen  uint64
}

type msgEstablishResp struct {
	peer string
	gen  uint64
	meta rsmlog.Metadata
	err  error
}

type msgAppendResp struct {
	peer         string
	gen          uint64
	highSeqno    int64
	ackedCommit  int64
	err          error
}

type msgEnsureTermResp struct {
	peer        string
	gen         uint64
	highSeqno   int64
	ackedCommit int64
	err         error
	syncRef     Ref // non-empty when this probe was issued for a syncQuorum vote
	isProbe     bool
}

func (msgCmds) isMsg()              {}
func (msgCasConfig) isMsg()         {}
func (msgSyncQuorum) isMsg()        {}
func (msgLiveness) isMsg()          {}
func (msgStop) isMsg()              {}
func (msgCheckPeers) isMsg()        {}
func (msgStatus) isMsg()            {}
func (msgEstablishTimeout) isMsg()  {}
func (msgLocalAgentDown) isMsg()    {}
func (msgPeerDown) isMsg()          {}
func (msgEstablishResp) isMsg()     {}
func (msgAppendResp) isMsg()        {}
func (msgEnsureTermResp) isMsg()    {}
