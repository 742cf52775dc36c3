// Package readings supplies the batches the node publishes.
//
// The node does not sample sensors itself. Readings arrive pre-aggregated
// from the mesh coordinator through a spool file (SpoolSource), or are
// generated for bench work (Simulator).
package readings
