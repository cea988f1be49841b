package auth_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/habedi/sparkdoor/auth"
	"github.com/habedi/sparkdoor/client"
	"github.com/habedi/sparkdoor/db"
	"github.com/habedi/sparkdoor/lock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "auth.db")
	gormDB, err := gorm.Open(sqlite.Open(path+"?_busy_timeout=5000"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.Migrate(gormDB))
	t.Cleanup(func() {
		if sqlDB, err := gormDB.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return gormDB
}

type fakeCloud struct {
	tokens []map[string]string
	logins int32
	reject bool
	delay  time.Duration
}

func (f *fakeCloud) handler(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/v1/access_tokens":
			if f.reject {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			_ = json.NewEncoder(w).Encode(f.tokens)
		case "/oauth/token":
			atomic.AddInt32(&f.logins, 1)
			time.Sleep(f.delay)
			if f.reject {
				w.WriteHeader(http.StatusBadRequest)
				_ = json.NewEncoder(w).Encode(map[string]string{"error": "invalid_grant"})
				return
			}
			_ = json.NewEncoder(w).Encode(map[string]interface{}{
				"access_token": "renewed-token",
				"expires_in":   7776000,
			})
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}
}

func newIntegrationService(t *testing.T, cloud *fakeCloud) (*auth.Service, db.CredentialRepository) {
	t.Helper()
	server := httptest.NewServer(cloud.handler(t))
	t.Cleanup(server.Close)

	gormDB := setupTestDB(t)
	repo := db.NewCredentialRepository(gormDB)
	locker := lock.NewDBLocker(db.NewLockRepository(gormDB), nil)
	c := client.NewClient(server.URL, 2*time.Second, 0)
	return auth.NewService(repo, c, locker, testConfig, nil), repo
}

func TestRefresh_Integration_DiscoversExistingToken(t *testing.T) {
	cloud := &fakeCloud{tokens: []map[string]string{
		{"token": "ABC", "expires_at": time.Now().UTC().AddDate(0, 0, 90).Format(client.AccessTokenTimeLayout)},
		{"token": "older", "expires_at": time.Now().UTC().AddDate(0, 0, 5).Format(client.AccessTokenTimeLayout)},
	}}
	svc, repo := newIntegrationService(t, cloud)
	ctx := context.Background()

	token, err := svc.Refresh(ctx)

	require.NoError(t, err)
	assert.Equal(t, "ABC", token)
	n, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.Zero(t, atomic.LoadInt32(&cloud.logins))

	token, err = svc.Refresh(ctx)
	require.NoError(t, err)
	assert.Equal(t, "ABC", token)
}

func TestRefresh_Integration_RenewsExpiringToken(t *testing.T) {
	cloud := &fakeCloud{}
	svc, repo := newIntegrationService(t, cloud)
	ctx := context.Background()
	_, err := repo.Record(ctx, "X", time.Now().Add(30*time.Minute))
	require.NoError(t, err)

	token, err := svc.Refresh(ctx)

	require.NoError(t, err)
	assert.Equal(t, "renewed-token", token)
	n, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.Equal(t, int32(1), atomic.LoadInt32(&cloud.logins))
}

func TestRefresh_Integration_RejectedCredentials(t *testing.T) {
	cloud := &fakeCloud{reject: true}
	svc, repo := newIntegrationService(t, cloud)
	ctx := context.Background()
	_, err := repo.Record(ctx, "old-token", time.Now().Add(-2*time.Hour))
	require.NoError(t, err)

	_, err = svc.Refresh(ctx)

	require.Error(t, err)
	assert.ErrorIs(t, err, auth.ErrCredentialsInvalid)
	latest, err := repo.Latest(ctx)
	require.NoError(t, err)
	assert.Equal(t, "old-token", latest.Token, "store should not change on failure")
}

func TestRefresh_Integration_SeparateServicesShareOneRenewal(t *testing.T) {
	cloud := &fakeCloud{delay: 100 * time.Millisecond}
	server := httptest.NewServer(cloud.handler(t))
	t.Cleanup(server.Close)
	gormDB := setupTestDB(t)

	cfg := testConfig
	cfg.LockTTL = 5 * time.Second
	cfg.PollInterval = 20 * time.Millisecond

	const workers = 8
	services := make([]*auth.Service, workers)
	for i := range services {
		locker := lock.NewDBLocker(db.NewLockRepository(gormDB), nil)
		services[i] = auth.NewService(db.NewCredentialRepository(gormDB), client.NewClient(server.URL, 2*time.Second, 0), locker, cfg, nil)
	}

	var wg sync.WaitGroup
	tokens := make([]string, workers)
	errs := make([]error, workers)
	for i, svc := range services {
		wg.Add(1)
		go func(i int, svc *auth.Service) {
			defer wg.Done()
			tokens[i], errs[i] = svc.Refresh(context.Background())
		}(i, svc)
	}
	wg.Wait()

	for i := 0; i < workers; i++ {
		require.NoError(t, errs[i], "worker %d", i)
		assert.Equal(t, "renewed-token", tokens[i])
	}
	assert.Equal(t, int32(1), atomic.LoadInt32(&cloud.logins))
}
