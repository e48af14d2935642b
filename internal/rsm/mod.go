// Package rsm implements the per-state-machine driver that consumes
// committed log entries in order, applies them to a pluggable deterministic
// state machine, and answers queries and revision-sync requests with
// linearizable guarantees (spec.md §4.5 / C6, and the sync-revision tracker
// of C7).
//
// It is grounded on the teacher's internal/service.KV — an actor holding
// pendingClients and driving an apply loop off committed entries —
// generalized from a single hard-coded store to spec.md §9's pluggable "mod"
// capability set.
package rsm

import "github.com/adilzhan-satpaeva/rsm-core/internal/rsmlog"

// CommandDecision is a mod's answer to HandleCommand (spec.md §4.5).
type CommandDecision struct {
	Apply   bool   // true: submit Payload to the log; false: reply immediately
	Payload []byte // the command bytes to log, when Apply
	Reply   []byte // the immediate reply, when !Apply (deterministic rejection)
}

// Mod is the pluggable deterministic state machine capability set (spec.md
// §9): tagged as an interface rather than dynamic dispatch, since Go has no
// runtime trait objects.
type Mod interface {
	// Init returns the mod's initial state, before any entry has been
	// applied.
	Init() (state any, err error)

	// HandleCommand decides whether cmd should be logged or rejected
	// deterministically without consuming a log slot.
	HandleCommand(state any, cmd []byte) (CommandDecision, error)

	// HandleQuery answers a read against state, on any role.
	HandleQuery(state any, query []byte) (reply []byte, err error)

	// ApplyCommand applies a committed command at revision, returning the
	// reply to deliver to the original submitter (if any) and the new
	// state.
	ApplyCommand(state any, cmd []byte, revision rsmlog.External) (reply []byte, newState any, err error)

	// Terminate is called once, when the runtime stops.
	Terminate(state any)
}
