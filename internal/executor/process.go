package executor

import (
	"context"
	"strconv"

	"github.com/transferd/transferd/internal/bridge"
	"github.com/transferd/transferd/pkg/errors"
	"github.com/transferd/transferd/pkg/types"
)

// process implements the streaming transfer (§4.5.2): open the
// destination sink, stream the source through the bridge, and confirm
// processed equals size. item.Processed is updated even on failure, so
// partial progress is always visible to observers.
func process(ctx context.Context, item *types.TransferItem, cfg *bridge.Config) error {
	sink, err := item.Destination.Upload(ctx)
	if err != nil {
		return err
	}

	chunks, errc := item.Source.Download(ctx)

	br := bridge.New(sink, cfg)
	defer br.Close()

	written, err := br.Pump(ctx, chunks, errc)
	item.Processed = written
	if err != nil {
		return err
	}

	if written != item.Size {
		return errors.NewError(errors.ErrCodeOperationFailed, "transfer incomplete: processed bytes do not match expected size").
			WithContext("transfer_id", strconv.FormatInt(item.ID, 10)).
			WithContext("expected", strconv.FormatInt(item.Size, 10)).
			WithContext("processed", strconv.FormatInt(written, 10))
	}
	return nil
}
