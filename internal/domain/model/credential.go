package model

import "time"

// CredentialRecord is the stored link state of one Discord user. It never carries
// the Plex token itself; the store only hands out the decrypted secret through Get.
type CredentialRecord struct {
	ID            string
	DiscordUserID string
	Linked        bool
	LinkedAt      *time.Time // nil when never linked or after unlink.
	CreatedAt     time.Time
	UpdatedAt     time.Time
}
