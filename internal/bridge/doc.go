/*
Package bridge decouples a source Adapter's Download producer from a
destination Adapter's Upload Sink, grounded on the teacher's
internal/buffer.WriteBuffer: a size-threshold flush of accumulated
writes, generalized from a keyed map of per-file buffers (many
concurrent FUSE writes coalesced before hitting storage) down to a
single bounded buffer for one in-flight transfer (one source chunk
stream flushed to one destination sink).

Executor usage:

	bridge := bridge.New(sink, bridge.DefaultConfig())
	defer bridge.Close()
	chunks, errc := source.Download(ctx)
	written, err := bridge.Pump(ctx, chunks, errc)
	if err != nil {
	    _ = dest.Remove(ctx) // partial destination state, per the stop contract
	}
*/
package bridge
