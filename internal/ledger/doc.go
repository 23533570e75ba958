// Package ledger implements the cofund core: a serialized transaction engine
// over one persisted state record, a dispatch table from revision tag to the
// operation set of that revision, and the upgrade controller that moves the
// record from revision 1 to revision 2 through a one-shot migration hook.
//
// Every call runs in a frame over a private copy of the committed world
// (ledger state plus host accounts). A failed call discards the copy. A
// successful call is saved through the Store before it becomes visible, and
// only then are its events handed to the sink.
//
// Outbound transfers run the recipient's Receiver before returning. The
// receiver is handed a Ledger bound to the in-flight frame, so reentrant
// calls see the caller's pending effects. Refund and withdraw apply their
// effects before the transfer: a reentrant refund observes a zeroed amount
// and a reentrant withdraw observes an empty custody balance.
package ledger
