// Package session manages the node's authenticated broker session.
//
// Manager is a four-state machine (unconfigured, disconnected, connecting,
// connected) over a Transport. Begin installs credentials, Connect opens a
// mutual-TLS MQTT session with the identity name as client ID, Poll keeps
// it alive and notices drops, Publish sends one batch of readings at QoS 0.
//
// Publish checks the state before it encodes or sends anything, so a
// batch offered while disconnected is reported as skipped and never
// reaches the transport. Failed connects carry the protocol's numeric
// result in *ProtocolConnectError.
package session
