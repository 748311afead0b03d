// Package store persists issued credentials.
package store

import (
	"context"

	"trustledger/internal/credential/models"
	id "trustledger/pkg/domain"
)

// Store is the credential persistence boundary. The issuing service is the
// sole writer of credential payloads; Revoke only flips the out-of-band flag.
type Store interface {
	// Insert persists a freshly issued credential. Returns
	// sentinel.ErrConflict when the credential ID already exists.
	Insert(ctx context.Context, credential models.Credential) error

	// FindByID returns sentinel.ErrNotFound for unknown IDs.
	FindByID(ctx context.Context, credentialID id.CredentialID) (models.Credential, error)

	// ListByAgent returns the agent's credentials ordered by issued_at
	// descending.
	ListByAgent(ctx context.Context, agent id.DID) ([]models.Credential, error)

	// Revoke marks a credential revoked. Returns sentinel.ErrNotFound for
	// unknown IDs. Revoking an already revoked credential is a no-op.
	Revoke(ctx context.Context, credentialID id.CredentialID) error
}
