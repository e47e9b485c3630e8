// Package device implements the per-device controller.
//
// A Controller owns the model registry, the stores and the transport backend
// of one device. It drives its components through the connection lifecycle:
//
//	WillConnect  -> components clear session state, register encoders,
//	                request their state
//	(state burst)
//	DidConnect   -> end of the burst; components apply presets and publish
//	DidDisconnect -> components clear live values, unpublish without
//	                 persistence
//	WillForget   -> components drop capabilities; device stores are cleared
//
// Every hook, every device event and every user call runs on the controller
// schedule: one mutex held for the duration of the call. Components never
// see concurrent calls and mutate their model through one model.Tx per call.
package device
