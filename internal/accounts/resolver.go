package accounts

import (
	"context"
	"sync"

	"github.com/transferd/transferd/internal/adapter/local"
	"github.com/transferd/transferd/internal/adapter/s3"
	"github.com/transferd/transferd/pkg/errors"
	"github.com/transferd/transferd/pkg/logging"
	"github.com/transferd/transferd/pkg/types"
)

// entry pairs one configured Account with the Adapter constructed for
// it, so Resolve never touches the vault or dials a client on the hot
// path.
type entry struct {
	account types.Account
	adapter types.Adapter
}

// Resolver implements internal/feeder.AccountResolver: an explicit
// index over account roots keyed by kind (spec §9's redesign of the
// original's implicit string-commonality match_client), queried by
// (kind, path) for the longest-matching root.
type Resolver struct {
	store AccountStore
	vault CredentialVault
	log   *logging.Logger

	mu     sync.RWMutex
	byKind map[types.BackendKind][]entry
}

// New returns a Resolver that must be Refreshed at least once before
// Resolve can find anything.
func New(store AccountStore, vault CredentialVault, log *logging.Logger) *Resolver {
	return &Resolver{store: store, vault: vault, log: log, byKind: make(map[types.BackendKind][]entry)}
}

// Refresh reloads the account list from the Settings Store and rebuilds
// every account's Adapter, mirroring find_client's "list changed,
// re-read settings.saved_clients() and retry" path. An account whose
// adapter cannot be constructed (missing secret, bad config) is skipped
// with a warning rather than failing the whole refresh.
func (r *Resolver) Refresh(ctx context.Context) error {
	records, err := r.store.ListAccounts(ctx)
	if err != nil {
		return errors.NewError(errors.ErrCodeConfigLoad, "failed to list accounts").WithCause(err)
	}

	byKind := make(map[types.BackendKind][]entry, len(records))
	for _, acc := range records {
		adapter, err := r.buildAdapter(ctx, acc)
		if err != nil {
			r.warn("skipping account: adapter construction failed", acc, err)
			continue
		}
		byKind[acc.Kind] = append(byKind[acc.Kind], entry{account: acc, adapter: adapter})
	}

	r.mu.Lock()
	r.byKind = byKind
	r.mu.Unlock()
	return nil
}

// Resolve implements internal/feeder.AccountResolver: among accounts of
// kind, returns the Adapter whose Root shares the longest prefix with
// path. Ties are broken by first-seen order, matching the original's
// max() over (match_len, client) pairs.
func (r *Resolver) Resolve(kind types.BackendKind, path string) (types.Adapter, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var best types.Adapter
	bestLen := -1
	for _, e := range r.byKind[kind] {
		n := commonPrefixLen(e.account.Root, path)
		// Local roots only need a non-empty shared prefix; S3-family
		// roots require more than the leading "/" both paths share,
		// matching match_client's `match_len > 1` guard for non-local
		// kinds.
		if kind == types.BackendLocal {
			if n == 0 {
				continue
			}
		} else if n <= 1 {
			continue
		}
		if n > bestLen {
			bestLen = n
			best = e.adapter
		}
	}
	return best, bestLen >= 0
}

// buildAdapter constructs the Adapter for acc, looking up its secret in
// the vault for S3-family accounts.
func (r *Resolver) buildAdapter(ctx context.Context, acc types.Account) (types.Adapter, error) {
	switch acc.Kind {
	case types.BackendLocal:
		return local.New(acc.Root)

	case types.BackendS3, types.BackendS3Compat:
		secret, ok, err := r.vault.GetSecret(ctx, acc.AccessKey)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, errors.NewError(errors.ErrCodeMissingConfig, "no credential for access key").
				WithContext("access_key", acc.AccessKey)
		}
		cfg := s3.DefaultConfig()
		cfg.Region = acc.Region
		cfg.Endpoint = acc.Endpoint
		cfg.AccessKeyID = acc.AccessKey
		cfg.SecretAccessKey = secret
		cfg.ForcePathStyle = acc.Kind == types.BackendS3Compat
		return s3.New(ctx, acc.Kind, acc.Root, cfg)

	default:
		return nil, errors.NewError(errors.ErrCodeInvalidConfig, "unrecognized account kind").
			WithContext("kind", string(acc.Kind))
	}
}

func (r *Resolver) warn(msg string, acc types.Account, err error) {
	if r.log == nil {
		return
	}
	r.log.Warn(msg, map[string]interface{}{
		"kind":       string(acc.Kind),
		"nickname":   acc.Nickname,
		"access_key": acc.AccessKey,
		"error":      err.Error(),
	})
}

// commonPrefixLen returns the length of the longest common leading
// substring of a and b, the Go rendition of
// len(os.path.commonprefix([a, b])).
func commonPrefixLen(a, b string) int {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	i := 0
	for i < n && a[i] == b[i] {
		i++
	}
	return i
}
