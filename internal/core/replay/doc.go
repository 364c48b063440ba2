// Package replay restores a process by applying journal entries, one at a
// time and strictly in log order, to a LiveProcess.
//
// A Player owns the ethereal bookkeeping of one restore (standard-stream
// registry, stdio buffers, thread roster, segment descriptor view, staged
// memory) and rebuilds it from the canonical baseline at every
// clear-ethereal entry. Durable effects go straight to the LiveProcess and
// are never rolled back.
//
// State machine:
//
//	Idle --Apply--> Replaying --Finish--> Idle (done)
//	                    |
//	                    +--error--> Failed
//
// Run drives a Player from a Source; Manager tracks concurrent sessions.
package replay
