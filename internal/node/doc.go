// Package node sequences the sensor node's life cycle.
//
// Boot runs the stages in order and stops at the first failure:
//
//	credentials.Store.Load -> network.Associate -> network.SyncClock -> session.Begin
//
// Run is a single cooperative loop. Each pass connects if the session is
// down (no more often than the reconnect interval), services the session,
// and publishes a batch when the publish interval is due. In one-shot mode
// it returns after the first publish cycle so the caller can power down.
// Shutdown disconnects the session and tears the radios down.
package node
