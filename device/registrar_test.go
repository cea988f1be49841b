package device_test

import (
	"context"
	"errors"
	"net/http"
	"path/filepath"
	"testing"

	"github.com/habedi/sparkdoor/db"
	"github.com/habedi/sparkdoor/device"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupDeviceRepo(t *testing.T) db.DeviceRepository {
	t.Helper()
	gdb, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "devices.db")), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.Migrate(gdb))
	t.Cleanup(func() {
		if sqlDB, err := gdb.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db.NewDeviceRepository(gdb)
}

func registrationCloud(t *testing.T, appNameStatus int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v1/devices/dev-1":
			w.Write([]byte(`{"id":"dev-1","name":"front_door","connected":true,"variables":{"app_name":"string"},"functions":["open"]}`))
		case "/v1/devices/dev-1/app_name":
			if appNameStatus != http.StatusOK {
				w.WriteHeader(appNameStatus)
				return
			}
			w.Write([]byte(`{"name":"app_name","result":"door"}`))
		case "/v1/devices/plain":
			w.Write([]byte(`{"id":"plain","name":"sensor","connected":true,"variables":{},"functions":[]}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}
}

func TestRegister_ReadsAppName(t *testing.T) {
	repo := setupDeviceRepo(t)
	cloud := newCloud(t, registrationCloud(t, http.StatusOK))
	r := device.NewRegistrar(repo, staticTokens{token: "tok"}, cloud)

	dev, err := r.Register(context.Background(), "dev-1", "", "owner-1")

	require.NoError(t, err)
	assert.Equal(t, "door", dev.AppName)
	assert.Equal(t, "front_door", dev.Name)
	stored, err := repo.GetByDeviceID(context.Background(), "dev-1")
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, "owner-1", stored.OwnerID)
}

func TestRegister_WithoutAppNameVariable(t *testing.T) {
	repo := setupDeviceRepo(t)
	cloud := newCloud(t, registrationCloud(t, http.StatusOK))
	r := device.NewRegistrar(repo, staticTokens{token: "tok"}, cloud)

	dev, err := r.Register(context.Background(), "plain", "Hall sensor", "owner-1")

	require.NoError(t, err)
	assert.Empty(t, dev.AppName)
	assert.Equal(t, "Hall sensor", dev.Name)
}

func TestRegister_Duplicate(t *testing.T) {
	repo := setupDeviceRepo(t)
	cloud := newCloud(t, registrationCloud(t, http.StatusOK))
	r := device.NewRegistrar(repo, staticTokens{token: "tok"}, cloud)

	_, err := r.Register(context.Background(), "dev-1", "", "owner-1")
	require.NoError(t, err)
	_, err = r.Register(context.Background(), "dev-1", "", "owner-2")
	assert.ErrorIs(t, err, db.ErrDeviceExists)
}

func TestRegister_NotInCloud(t *testing.T) {
	repo := setupDeviceRepo(t)
	cloud := newCloud(t, registrationCloud(t, http.StatusOK))
	r := device.NewRegistrar(repo, staticTokens{token: "tok"}, cloud)

	_, err := r.Register(context.Background(), "nope", "", "owner-1")
	assert.ErrorIs(t, err, device.ErrNotInCloud)
}

func TestRegister_UnreachableAppName(t *testing.T) {
	repo := setupDeviceRepo(t)
	cloud := newCloud(t, registrationCloud(t, http.StatusRequestTimeout))
	r := device.NewRegistrar(repo, staticTokens{token: "tok"}, cloud)

	_, err := r.Register(context.Background(), "dev-1", "", "owner-1")
	assert.Equal(t, http.StatusRequestTimeout, device.StatusOf(err))

	exists, err := repo.Exists(context.Background(), "dev-1")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestRegister_NoToken(t *testing.T) {
	repo := setupDeviceRepo(t)
	cloud := newCloud(t, registrationCloud(t, http.StatusOK))
	r := device.NewRegistrar(repo, staticTokens{err: errors.New("no token")}, cloud)

	_, err := r.Register(context.Background(), "dev-1", "", "owner-1")
	assert.Equal(t, http.StatusUnauthorized, device.StatusOf(err))
}

func TestRegister_EmptyID(t *testing.T) {
	r := device.NewRegistrar(setupDeviceRepo(t), staticTokens{token: "tok"}, nil)
	_, err := r.Register(context.Background(), "  ", "", "owner-1")
	assert.Error(t, err)
}
