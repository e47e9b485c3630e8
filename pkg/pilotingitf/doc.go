// Package pilotingitf implements piloting interfaces: device features the
// user activates to hand piloting over to the drone.
//
// FollowMe drives the follow-me feature. Its availability comes from the
// supported modes list the device sends, one FollowMeInfo event per mode
// with first and last list flags; each mode carries the issues blocking it
// and the issues degrading it. The activation state is derived by an
// activation.Machine from those lists and from the running echo of
// FollowMeState.
//
// While active, manual inputs travel in a continuous PilotingCommand,
// sustained while any input is nonzero.
package pilotingitf
