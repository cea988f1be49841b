package db_test

import (
	"context"
	"testing"
	"time"

	"github.com/habedi/sparkdoor/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCredentialRepository_CurrentPicksLatestValid(t *testing.T) {
	repo := db.NewCredentialRepository(setupTestDB(t))
	ctx := context.Background()
	now := time.Now()

	_, err := repo.Record(ctx, "expired", now.AddDate(0, 0, -10))
	require.NoError(t, err)
	_, err = repo.Record(ctx, "good", now.AddDate(0, 0, 90))
	require.NoError(t, err)
	_, err = repo.Record(ctx, "old", now.AddDate(0, 0, 10))
	require.NoError(t, err)

	cur, err := repo.Current(ctx, now)
	require.NoError(t, err)
	require.NotNil(t, cur)
	assert.Equal(t, "good", cur.Token)
}

func TestCredentialRepository_CurrentEmpty(t *testing.T) {
	repo := db.NewCredentialRepository(setupTestDB(t))

	cur, err := repo.Current(context.Background(), time.Now())
	require.NoError(t, err)
	assert.Nil(t, cur)
}

func TestCredentialRepository_CurrentAllExpired(t *testing.T) {
	repo := db.NewCredentialRepository(setupTestDB(t))
	ctx := context.Background()
	now := time.Now()

	_, err := repo.Record(ctx, "expired", now.AddDate(0, 0, -10))
	require.NoError(t, err)
	_, err = repo.Record(ctx, "just-expired", now.Add(-time.Second))
	require.NoError(t, err)

	cur, err := repo.Current(ctx, now)
	require.NoError(t, err)
	assert.Nil(t, cur)

	latest, err := repo.Latest(ctx)
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, "just-expired", latest.Token)
}

func TestCredentialRepository_RecordIsIdempotent(t *testing.T) {
	repo := db.NewCredentialRepository(setupTestDB(t))
	ctx := context.Background()
	exp := time.Now().Add(time.Hour)

	first, err := repo.Record(ctx, "ABC", exp)
	require.NoError(t, err)
	second, err := repo.Record(ctx, "ABC", exp.Add(time.Hour))
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	n, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestCredentialRepository_RecordRejectsEmptyToken(t *testing.T) {
	repo := db.NewCredentialRepository(setupTestDB(t))

	_, err := repo.Record(context.Background(), "", time.Now().Add(time.Hour))
	assert.Error(t, err)
}

func TestCredentialRepository_Prune(t *testing.T) {
	repo := db.NewCredentialRepository(setupTestDB(t))
	ctx := context.Background()
	now := time.Now()

	_, err := repo.Record(ctx, "ancient", now.AddDate(0, 0, -60))
	require.NoError(t, err)
	_, err = repo.Record(ctx, "recent", now.AddDate(0, 0, -1))
	require.NoError(t, err)
	_, err = repo.Record(ctx, "valid", now.AddDate(0, 0, 30))
	require.NoError(t, err)

	removed, err := repo.Prune(ctx, now.AddDate(0, 0, -30))
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)

	n, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}

func TestCredentialRepository_Uninitialized(t *testing.T) {
	repo := db.NewCredentialRepository(nil)

	_, err := repo.Current(context.Background(), time.Now())
	assert.Error(t, err)
	_, err = repo.Record(context.Background(), "x", time.Now())
	assert.Error(t, err)
}

func TestCredential_ExpiresSoon(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	window := time.Hour

	cases := []struct {
		name      string
		expiresAt time.Time
		want      bool
	}{
		{"already expired", now.Add(-time.Minute), true},
		{"inside window", now.Add(30 * time.Minute), true},
		{"exactly at window edge", now.Add(window), true},
		{"just past window", now.Add(window + time.Nanosecond), false},
		{"far future", now.AddDate(0, 0, 90), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := &db.Credential{Token: "t", ExpiresAt: tc.expiresAt}
			assert.Equal(t, tc.want, c.ExpiresSoon(now, window))
		})
	}
}

func TestTokenPrefix(t *testing.T) {
	assert.Equal(t, "abc", db.TokenPrefix("abc"))
	assert.Equal(t, "abcdef...", db.TokenPrefix("abcdefghijkl"))
}
