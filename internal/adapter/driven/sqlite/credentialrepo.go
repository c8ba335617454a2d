package sqlite

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"

	"github.com/ericfisherdev/johnnycage/internal/domain/model"
	"github.com/ericfisherdev/johnnycage/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.CredentialStore = (*CredentialRepo)(nil)

// CredentialRepo is the SQLite implementation of the CredentialStore port interface.
// Plex tokens are encrypted with AES-256-GCM before write and decrypted after read.
// The Discord user id is bound to each ciphertext as additional data, so a
// ciphertext copied onto another user's row does not decrypt.
type CredentialRepo struct {
	db   *DB
	aead cipher.AEAD
	now  func() time.Time
}

// NewCredentialRepo creates a new CredentialRepo. key must be 32 bytes for AES-256-GCM.
// A missing key returns driven.ErrEncryptionKeyNotSet.
func NewCredentialRepo(db *DB, key []byte) (*CredentialRepo, error) {
	if len(key) == 0 {
		return nil, driven.ErrEncryptionKeyNotSet
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("encryption key must be 32 bytes, got %d", len(key))
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("aes.NewCipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("cipher.NewGCM: %w", err)
	}

	return &CredentialRepo{db: db, aead: gcm, now: time.Now}, nil
}

// Save stores or replaces the Plex token for the given Discord user.
func (r *CredentialRepo) Save(ctx context.Context, discordUserID, token string) error {
	if discordUserID == "" {
		return errors.New("save credential: empty discord user id")
	}
	if token == "" {
		return errors.New("save credential: empty token")
	}

	encrypted, err := r.encrypt(discordUserID, token)
	if err != nil {
		return err
	}

	const query = `
		INSERT INTO tokens (token_id, discord_user_id, enc_plex_token, linked_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(discord_user_id) DO UPDATE SET
			enc_plex_token = excluded.enc_plex_token,
			linked_at      = excluded.linked_at,
			updated_at     = excluded.updated_at`

	ts := r.now().Unix()
	_, err = r.db.Writer.ExecContext(ctx, query, uuid.NewString(), discordUserID, encrypted, ts, ts, ts)
	if err != nil {
		return fmt.Errorf("save credential for %s: %w: %w", discordUserID, driven.ErrStorageUnavailable, err)
	}
	return nil
}

// Get retrieves the plaintext Plex token for the given Discord user.
// Returns ("", false, nil) if the user has no row or has been unlinked.
func (r *CredentialRepo) Get(ctx context.Context, discordUserID string) (string, bool, error) {
	const query = `SELECT enc_plex_token FROM tokens WHERE discord_user_id = ? LIMIT 1`

	var encrypted []byte
	err := r.db.Reader.QueryRowContext(ctx, query, discordUserID).Scan(&encrypted)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get credential for %s: %w: %w", discordUserID, driven.ErrStorageUnavailable, err)
	}
	if len(encrypted) == 0 {
		return "", false, nil
	}

	plaintext, err := r.decrypt(discordUserID, encrypted)
	if err != nil {
		return "", false, fmt.Errorf("decrypt credential for %s: %w", discordUserID, err)
	}
	return plaintext, true, nil
}

// IsLinked reports whether a token is stored for the given Discord user.
func (r *CredentialRepo) IsLinked(ctx context.Context, discordUserID string) (bool, error) {
	const query = `SELECT 1 FROM tokens WHERE discord_user_id = ? AND enc_plex_token IS NOT NULL LIMIT 1`

	var one int
	err := r.db.Reader.QueryRowContext(ctx, query, discordUserID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check link for %s: %w: %w", discordUserID, driven.ErrStorageUnavailable, err)
	}
	return true, nil
}

// Lookup returns the stored record metadata for the given Discord user, or nil
// if the user has never been seen. The token is not decrypted.
func (r *CredentialRepo) Lookup(ctx context.Context, discordUserID string) (*model.CredentialRecord, error) {
	const query = `
		SELECT token_id, discord_user_id, enc_plex_token IS NOT NULL, linked_at, created_at, updated_at
		FROM tokens WHERE discord_user_id = ? LIMIT 1`

	var (
		rec       model.CredentialRecord
		linkedAt  sql.NullInt64
		createdAt int64
		updatedAt int64
	)
	err := r.db.Reader.QueryRowContext(ctx, query, discordUserID).Scan(
		&rec.ID, &rec.DiscordUserID, &rec.Linked, &linkedAt, &createdAt, &updatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("lookup credential for %s: %w: %w", discordUserID, driven.ErrStorageUnavailable, err)
	}

	if linkedAt.Valid {
		t := time.Unix(linkedAt.Int64, 0).UTC()
		rec.LinkedAt = &t
	}
	rec.CreatedAt = time.Unix(createdAt, 0).UTC()
	rec.UpdatedAt = time.Unix(updatedAt, 0).UTC()

	return &rec, nil
}

// Delete clears the Plex token for the given Discord user. The row itself is kept.
// Unknown users are not an error.
func (r *CredentialRepo) Delete(ctx context.Context, discordUserID string) error {
	const query = `UPDATE tokens SET enc_plex_token = NULL, linked_at = NULL, updated_at = ? WHERE discord_user_id = ?`

	_, err := r.db.Writer.ExecContext(ctx, query, r.now().Unix(), discordUserID)
	if err != nil {
		return fmt.Errorf("delete credential for %s: %w: %w", discordUserID, driven.ErrStorageUnavailable, err)
	}
	return nil
}

// VerifyKey decrypts one stored token, if any, to prove the configured key
// matches the data on disk. Call it at startup before serving commands.
func (r *CredentialRepo) VerifyKey(ctx context.Context) error {
	const query = `SELECT discord_user_id, enc_plex_token FROM tokens WHERE enc_plex_token IS NOT NULL LIMIT 1`

	var (
		discordUserID string
		encrypted     []byte
	)
	err := r.db.Reader.QueryRowContext(ctx, query).Scan(&discordUserID, &encrypted)
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("verify key: %w: %w", driven.ErrStorageUnavailable, err)
	}

	if _, err := r.decrypt(discordUserID, encrypted); err != nil {
		return fmt.Errorf("verify key: %w", err)
	}
	return nil
}

// encrypt seals plaintext and returns nonce (12 bytes) || ciphertext || tag.
func (r *CredentialRepo) encrypt(discordUserID, plaintext string) ([]byte, error) {
	nonce := make([]byte, r.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("rand nonce: %w", err)
	}

	return r.aead.Seal(nonce, nonce, []byte(plaintext), []byte(discordUserID)), nil
}

// decrypt opens a value produced by encrypt. Any failure is reported as
// driven.ErrUndecryptable.
func (r *CredentialRepo) decrypt(discordUserID string, data []byte) (string, error) {
	nonceSize := r.aead.NonceSize()
	if len(data) < nonceSize+r.aead.Overhead() {
		return "", fmt.Errorf("%w: ciphertext too short", driven.ErrUndecryptable)
	}

	nonce, ciphertext := data[:nonceSize], data[nonceSize:]
	plaintext, err := r.aead.Open(nil, nonce, ciphertext, []byte(discordUserID))
	if err != nil {
		return "", fmt.Errorf("%w: %w", driven.ErrUndecryptable, err)
	}

	return string(plaintext), nil
}
