// Package refreshtokens declares the token store: persistence of opaque
// refresh tokens and their revocation.
package refreshtokens

import (
	"context"
	"time"

	"github.com/dmitrijs2005/recordapi/internal/server/models"
)

// Repository defines operations for issuing, redeeming and revoking refresh
// tokens. Missing or already inactive tokens are reported as
// common.ErrorNotFound.
type Repository interface {
	// Create stores a new active token.
	Create(ctx context.Context, token *models.RefreshToken) (*models.RefreshToken, error)

	// Find looks up a token regardless of its state.
	Find(ctx context.Context, token string) (*models.RefreshToken, error)

	// Consume atomically deactivates an active token and returns the row as
	// it was before. Of two concurrent calls for one token at most one wins.
	Consume(ctx context.Context, token string) (*models.RefreshToken, error)

	// Revoke deactivates one active token that belongs to userID.
	Revoke(ctx context.Context, userID int64, token string) error

	// RevokeAllForUser deactivates every active token of userID and reports
	// how many were affected.
	RevokeAllForUser(ctx context.Context, userID int64) (int64, error)

	// DeleteExpired removes tokens that expired before the given instant.
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}
