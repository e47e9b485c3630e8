// Package connection drives the connection lifecycle of one device.
//
// A Manager dials a Session, hands it to the Device with WillConnect, asks
// the device for its full state and forwards events until the session ends.
// The Device completes the connection itself when the end of the state burst
// arrives. On link loss the Manager calls DidDisconnect and redials with
// exponential backoff:
//
//  1. Initial delay: 1 second
//  2. Exponential increase: 2s, 4s, 8s, 16s, 32s
//  3. Maximum delay: 60 seconds
//  4. Reset to the initial delay on a successful connection
//
// Each delay gets a random jitter of up to 25% to spread reconnections of
// several hosts.
package connection
