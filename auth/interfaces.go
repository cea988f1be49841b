package auth

import (
	"context"
	"time"

	"github.com/habedi/sparkdoor/client"
	"github.com/habedi/sparkdoor/db"
)

// CredentialStore defines the contract for any component that can store and query issued tokens.
// db.CredentialRepository satisfies it.
type CredentialStore interface {
	Current(ctx context.Context, now time.Time) (*db.Credential, error)
	Latest(ctx context.Context) (*db.Credential, error)
	Record(ctx context.Context, token string, expiresAt time.Time) (*db.Credential, error)
	Prune(ctx context.Context, before time.Time) (int64, error)
}

// TokenIssuer defines the contract for any component that can discover or issue cloud tokens.
// *client.Client satisfies it.
type TokenIssuer interface {
	DiscoverTokens(ctx context.Context, username, password string) (client.Grant, error)
	Login(ctx context.Context, username, password string) (client.Grant, error)
}
