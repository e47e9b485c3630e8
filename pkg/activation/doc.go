// Package activation implements the enable/disable lifecycle of an
// activatable device feature.
//
// A Machine is in one of three states:
//
//	UNAVAILABLE -> IDLE    supported and not blocked
//	IDLE        -> ACTIVE  the device reports the feature running
//	ACTIVE      -> IDLE    deactivation requested, or the device reports it
//	                       stopped with no blocking issue
//	any         -> UNAVAILABLE  nothing supported, or blocked while not running
//
// An activation request never changes the state by itself: the feature is
// active only once the device confirms it.
package activation
