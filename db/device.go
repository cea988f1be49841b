package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
)

// ErrDeviceExists is returned when registering a device id that is already claimed.
var ErrDeviceExists = errors.New("device already registered")

// Device is a physical device registered by a user.
type Device struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	DeviceID  string    `gorm:"uniqueIndex;size:250;not null" json:"device_id"`
	Name      string    `gorm:"size:250" json:"name"`
	OwnerID   string    `gorm:"index;size:250" json:"owner_id"`
	AppName   string    `gorm:"size:250" json:"app_name"`
	CreatedAt time.Time `json:"created_at"`
}

// DeviceRepository defines decoupled operations for device persistence.
type DeviceRepository interface {
	Create(ctx context.Context, d *Device) error
	GetByDeviceID(ctx context.Context, deviceID string) (*Device, error)
	Exists(ctx context.Context, deviceID string) (bool, error)
	List(ctx context.Context) ([]Device, error)
	ListForOwner(ctx context.Context, ownerID string) ([]Device, error)
	Delete(ctx context.Context, deviceID string) error
}

// gormDeviceRepo is a GORM-backed implementation of DeviceRepository.
type gormDeviceRepo struct{ db *gorm.DB }

// NewDeviceRepository creates a DeviceRepository. Accepts *gorm.DB to avoid global access.
func NewDeviceRepository(db *gorm.DB) DeviceRepository { return &gormDeviceRepo{db: db} }

func (r *gormDeviceRepo) Create(ctx context.Context, d *Device) error {
	if r.db == nil {
		return fmt.Errorf("repository not initialized")
	}
	exists, err := r.Exists(ctx, d.DeviceID)
	if err != nil {
		return err
	}
	if exists {
		return fmt.Errorf("%w: %s", ErrDeviceExists, d.DeviceID)
	}
	return r.db.WithContext(ctx).Create(d).Error
}

func (r *gormDeviceRepo) GetByDeviceID(ctx context.Context, deviceID string) (*Device, error) {
	if r.db == nil {
		return nil, fmt.Errorf("repository not initialized")
	}
	var d Device
	err := r.db.WithContext(ctx).First(&d, "device_id = ?", deviceID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (r *gormDeviceRepo) Exists(ctx context.Context, deviceID string) (bool, error) {
	if r.db == nil {
		return false, fmt.Errorf("repository not initialized")
	}
	var n int64
	if err := r.db.WithContext(ctx).Model(&Device{}).Where("device_id = ?", deviceID).Count(&n).Error; err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *gormDeviceRepo) List(ctx context.Context) ([]Device, error) {
	if r.db == nil {
		return nil, fmt.Errorf("repository not initialized")
	}
	var devices []Device
	if err := r.db.WithContext(ctx).Order("name").Find(&devices).Error; err != nil {
		return nil, err
	}
	return devices, nil
}

func (r *gormDeviceRepo) ListForOwner(ctx context.Context, ownerID string) ([]Device, error) {
	if r.db == nil {
		return nil, fmt.Errorf("repository not initialized")
	}
	var devices []Device
	if err := r.db.WithContext(ctx).Where("owner_id = ?", ownerID).Order("name").Find(&devices).Error; err != nil {
		return nil, err
	}
	return devices, nil
}

func (r *gormDeviceRepo) Delete(ctx context.Context, deviceID string) error {
	if r.db == nil {
		return fmt.Errorf("repository not initialized")
	}
	return r.db.WithContext(ctx).Where("device_id = ?", deviceID).Delete(&Device{}).Error
}
