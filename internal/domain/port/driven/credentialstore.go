package driven

import (
	"context"
	"errors"

	"github.com/ericfisherdev/johnnycage/internal/domain/model"
)

// ErrEncryptionKeyNotSet is returned when a credential store is constructed
// without an encryption key. CRYPTO_KEY must be configured before startup.
var ErrEncryptionKeyNotSet = errors.New("encryption key not configured: set CRYPTO_KEY")

// ErrStorageUnavailable marks failures of the backing database (disk, permissions,
// closed handle). It is always wrapped together with the underlying cause.
var ErrStorageUnavailable = errors.New("credential storage unavailable")

// ErrUndecryptable is returned when a stored secret cannot be decrypted with the
// configured key. It indicates a key mismatch and is a configuration error.
var ErrUndecryptable = errors.New("stored credential cannot be decrypted with the configured key")

// CredentialStore defines the driven port for encrypted Plex token persistence,
// keyed by Discord user id. The adapter encrypts and decrypts; this interface
// operates on plaintext values at the domain boundary.
type CredentialStore interface {
	// Save encrypts token and upserts it for the user, stamping linked_at and
	// updated_at. A second Save for the same user replaces the first.
	Save(ctx context.Context, discordUserID, token string) error

	// Get returns the decrypted token. ok is false when the user has no row or
	// has been unlinked.
	Get(ctx context.Context, discordUserID string) (token string, ok bool, err error)

	// IsLinked reports whether a token is stored for the user.
	IsLinked(ctx context.Context, discordUserID string) (bool, error)

	// Lookup returns the record metadata for the user, or nil if no row exists.
	Lookup(ctx context.Context, discordUserID string) (*model.CredentialRecord, error)

	// Delete clears the user's token and linked_at. Unknown users are a no-op.
	Delete(ctx context.Context, discordUserID string) error
}
