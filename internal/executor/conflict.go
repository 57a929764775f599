package executor

import (
	"context"
	"crypto/md5"
	"fmt"
	"path"
	"strings"

	"github.com/transferd/transferd/pkg/errors"
	"github.com/transferd/transferd/pkg/types"
)

// applyConflictPolicy implements §4.5.1. It reports skip=true when the
// item should be marked COMPLETED-as-skipped without transferring, and
// may replace item.Destination in place (the rename policy).
func applyConflictPolicy(ctx context.Context, item *types.TransferItem) (skip bool, err error) {
	exists, err := item.Destination.Exists(ctx)
	if err != nil {
		return false, err
	}

	switch item.ConflictPolicy {
	case types.PolicyOverwrite:
		return false, nil

	case types.PolicySkip:
		return exists, nil

	case types.PolicyHash:
		if !exists {
			return false, nil
		}
		equal, err := hashesEqual(ctx, item.Source, item.Destination)
		if err != nil {
			return false, err
		}
		return equal, nil

	case types.PolicySize:
		if !exists {
			return false, nil
		}
		return item.Source.Size() == item.Destination.Size(), nil

	case types.PolicyNewer:
		if !exists {
			return false, nil
		}
		return !item.Source.Mtime().After(item.Destination.Mtime()), nil

	case types.PolicyRename:
		if !exists {
			return false, nil
		}
		return false, renameDestination(ctx, item)

	default:
		return false, errors.NewError(errors.ErrCodeConflictPolicy,
			fmt.Sprintf("unrecognized conflict policy %q", item.ConflictPolicy)).
			WithContext("transfer_id", fmt.Sprintf("%d", item.ID))
	}
}

// hashesEqual streams both adapters' contents through MD5 and compares
// digests.
func hashesEqual(ctx context.Context, a, b types.Adapter) (bool, error) {
	sum1, err := hashAdapter(ctx, a)
	if err != nil {
		return false, err
	}
	sum2, err := hashAdapter(ctx, b)
	if err != nil {
		return false, err
	}
	return string(sum1) == string(sum2), nil
}

func hashAdapter(ctx context.Context, a types.Adapter) ([]byte, error) {
	h := md5.New()
	chunks, errc := a.Download(ctx)
	for chunk := range chunks {
		h.Write(chunk)
	}
	if err := <-errc; err != nil {
		return nil, err
	}
	return h.Sum(nil), nil
}

// renameDestination replaces item.Destination with an adapter anchored
// at a sibling name of the form "name (n).ext", trying n=1,2,... until
// one does not exist.
func renameDestination(ctx context.Context, item *types.TransferItem) error {
	root := item.Destination.Root()
	ext := path.Ext(root)
	stem := strings.TrimSuffix(root, ext)

	for n := 1; ; n++ {
		candidateRoot := fmt.Sprintf("%s (%d)%s", stem, n, ext)
		candidate := item.Destination.WithRoot(candidateRoot)
		exists, err := candidate.Exists(ctx)
		if err != nil {
			return err
		}
		if !exists {
			item.Destination = candidate
			return nil
		}
	}
}
