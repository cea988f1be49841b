package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Credential is an access token granted by the device cloud.
// Rows are appended and never updated; a newer row supersedes older ones.
type Credential struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Token     string    `gorm:"uniqueIndex;size:250;not null" json:"token"`
	ExpiresAt time.Time `gorm:"index;not null" json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}

// ExpiresSoon reports whether the credential expires within window of now.
// A credential expiring exactly at now+window counts as expiring soon.
func (c *Credential) ExpiresSoon(now time.Time, window time.Duration) bool {
	return !c.ExpiresAt.After(now.Add(window))
}

// Expired reports whether the credential is no longer usable at now.
func (c *Credential) Expired(now time.Time) bool {
	return !c.ExpiresAt.After(now)
}

// CredentialRepository is the durable query surface over issued credentials.
type CredentialRepository interface {
	// Current returns the non-expired credential with the latest expiry, or nil.
	Current(ctx context.Context, now time.Time) (*Credential, error)
	// Latest returns the credential with the latest expiry regardless of validity, or nil.
	Latest(ctx context.Context) (*Credential, error)
	// Record appends a credential. Recording a token that is already stored is a no-op.
	Record(ctx context.Context, token string, expiresAt time.Time) (*Credential, error)
	Count(ctx context.Context) (int64, error)
	// Prune deletes credentials that expired before the cutoff.
	Prune(ctx context.Context, before time.Time) (int64, error)
}

// gormCredentialRepo is a GORM-backed implementation of CredentialRepository.
// Use constructor NewCredentialRepository to obtain an instance.
type gormCredentialRepo struct{ db *gorm.DB }

// NewCredentialRepository creates a CredentialRepository. Accepts *gorm.DB to avoid global access.
func NewCredentialRepository(db *gorm.DB) CredentialRepository {
	return &gormCredentialRepo{db: db}
}

func (r *gormCredentialRepo) Current(ctx context.Context, now time.Time) (*Credential, error) {
	if r.db == nil {
		return nil, fmt.Errorf("repository not initialized")
	}
	var cred Credential
	err := r.db.WithContext(ctx).
		Where("expires_at > ?", now.UTC()).
		Order("expires_at DESC").
		First(&cred).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &cred, nil
}

func (r *gormCredentialRepo) Latest(ctx context.Context) (*Credential, error) {
	if r.db == nil {
		return nil, fmt.Errorf("repository not initialized")
	}
	var cred Credential
	err := r.db.WithContext(ctx).Order("expires_at DESC").First(&cred).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &cred, nil
}

func (r *gormCredentialRepo) Record(ctx context.Context, token string, expiresAt time.Time) (*Credential, error) {
	if r.db == nil {
		return nil, fmt.Errorf("repository not initialized")
	}
	if token == "" {
		return nil, fmt.Errorf("cannot record an empty token")
	}

	cred := &Credential{Token: token, ExpiresAt: expiresAt.UTC()}
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "token"}}, DoNothing: true}).
		Create(cred)
	if res.Error != nil {
		log.Error().Err(res.Error).Str("token", TokenPrefix(token)).Msg("Failed to record credential")
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		var existing Credential
		if err := r.db.WithContext(ctx).First(&existing, "token = ?", token).Error; err != nil {
			return nil, err
		}
		log.Debug().Str("token", TokenPrefix(token)).Msg("Credential already recorded")
		return &existing, nil
	}

	log.Info().Str("token", TokenPrefix(token)).Time("expires_at", cred.ExpiresAt).Msg("Credential recorded")
	return cred, nil
}

func (r *gormCredentialRepo) Count(ctx context.Context) (int64, error) {
	if r.db == nil {
		return 0, fmt.Errorf("repository not initialized")
	}
	var n int64
	if err := r.db.WithContext(ctx).Model(&Credential{}).Count(&n).Error; err != nil {
		return 0, err
	}
	return n, nil
}

func (r *gormCredentialRepo) Prune(ctx context.Context, before time.Time) (int64, error) {
	if r.db == nil {
		return 0, fmt.Errorf("repository not initialized")
	}
	res := r.db.WithContext(ctx).Where("expires_at <= ?", before.UTC()).Delete(&Credential{})
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}

// TokenPrefix shortens a token for log output.
func TokenPrefix(token string) string {
	if len(token) <= 6 {
		return token
	}
	return token[:6] + "..."
}
