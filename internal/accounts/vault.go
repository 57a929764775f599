package accounts

import (
	"context"
	"sync"
)

// CredentialVault is the read-only credential lookup contract (spec
// §6): get_secret(access_key) -> secret | missing.
type CredentialVault interface {
	// GetSecret returns the secret for accessKey, or ok=false if no
	// secret is stored for it.
	GetSecret(ctx context.Context, accessKey string) (secret string, ok bool, err error)
}

// MemoryVault is an in-memory CredentialVault, the reference
// implementation named in §6.
type MemoryVault struct {
	mu      sync.RWMutex
	secrets map[string]string
}

// NewMemoryVault returns a MemoryVault seeded with secrets.
func NewMemoryVault(secrets map[string]string) *MemoryVault {
	cp := make(map[string]string, len(secrets))
	for k, v := range secrets {
		cp[k] = v
	}
	return &MemoryVault{secrets: cp}
}

// GetSecret implements CredentialVault.
func (v *MemoryVault) GetSecret(ctx context.Context, accessKey string) (string, bool, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	secret, ok := v.secrets[accessKey]
	return secret, ok, nil
}

// Put stores or replaces the secret for accessKey.
func (v *MemoryVault) Put(accessKey, secret string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.secrets[accessKey] = secret
}
