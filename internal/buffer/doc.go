// Package buffer provides a size-bucketed sync.Pool of byte slices,
// used by internal/bridge to reuse each Bridge's accumulation buffer
// across transfers instead of allocating a new one per transfer.
package buffer
