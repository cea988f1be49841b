package db

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
)

// Door event kinds.
const (
	EventOpen    = "open"
	EventUseCard = "use_card"
	EventUsePass = "use_pass"
)

// IDCard is an RFID card allowed to open a door device.
type IDCard struct {
	ID       uint   `gorm:"primaryKey" json:"id"`
	DeviceID string `gorm:"index:idx_card_device_uid,unique;size:250;not null" json:"device_id"`
	UID      string `gorm:"index:idx_card_device_uid,unique;size:10;not null" json:"uid"`
	Name     string `gorm:"size:100" json:"name"`
}

// DoorPass is a shareable invite with optional expiry and use limit.
type DoorPass struct {
	Token     string     `gorm:"primaryKey;size:40" json:"token"`
	DeviceID  string     `gorm:"index;size:250;not null" json:"device_id"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
	UseLimit  *int       `json:"use_limit,omitempty"`
	Uses      int        `gorm:"not null;default:0" json:"uses"`
}

// Expired reports whether the pass can no longer be used at now.
func (p *DoorPass) Expired(now time.Time) bool {
	if p.ExpiresAt != nil && p.ExpiresAt.Before(now) {
		return true
	}
	if p.UseLimit != nil && *p.UseLimit > 0 && p.Uses >= *p.UseLimit {
		return true
	}
	return false
}

// DoorEvent is timeseries data recorded by the door app.
type DoorEvent struct {
	ID       uint      `gorm:"primaryKey" json:"id"`
	DeviceID string    `gorm:"index;size:250;not null" json:"device_id"`
	Time     time.Time `gorm:"index;not null" json:"time"`
	Event    string    `gorm:"size:50;not null" json:"event"`
	Data     string    `json:"data,omitempty"`
}

// DoorRepository persists the state owned by the door app.
type DoorRepository interface {
	AddIDCard(ctx context.Context, card *IDCard) error
	HasIDCard(ctx context.Context, deviceID, uid string) (bool, error)
	CreatePass(ctx context.Context, deviceID string, expiresAt *time.Time, useLimit *int) (*DoorPass, error)
	GetPass(ctx context.Context, token string) (*DoorPass, error)
	// UsePass consumes one use of a pass issued for deviceID. It reports
	// false when the pass is unknown, belongs to another device, or has no
	// uses left. The check and the increment are one statement.
	UsePass(ctx context.Context, token, deviceID string) (bool, error)
	// ReturnPass gives back a use taken by UsePass.
	ReturnPass(ctx context.Context, token string) error
	RecordEvent(ctx context.Context, deviceID, event, data string, at time.Time) error
	// EventCounts returns the number of events per kind for a device.
	EventCounts(ctx context.Context, deviceID string) (map[string]int64, error)
}

type gormDoorRepo struct{ db *gorm.DB }

// NewDoorRepository creates a DoorRepository. Accepts *gorm.DB to avoid global access.
func NewDoorRepository(db *gorm.DB) DoorRepository { return &gormDoorRepo{db: db} }

func (r *gormDoorRepo) AddIDCard(ctx context.Context, card *IDCard) error {
	if r.db == nil {
		return fmt.Errorf("repository not initialized")
	}
	return r.db.WithContext(ctx).Create(card).Error
}

func (r *gormDoorRepo) HasIDCard(ctx context.Context, deviceID, uid string) (bool, error) {
	if r.db == nil {
		return false, fmt.Errorf("repository not initialized")
	}
	var n int64
	err := r.db.WithContext(ctx).Model(&IDCard{}).
		Where("device_id = ? AND uid = ?", deviceID, uid).
		Count(&n).Error
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *gormDoorRepo) CreatePass(ctx context.Context, deviceID string, expiresAt *time.Time, useLimit *int) (*DoorPass, error) {
	if r.db == nil {
		return nil, fmt.Errorf("repository not initialized")
	}
	token, err := generatePassToken()
	if err != nil {
		return nil, err
	}
	if expiresAt != nil {
		utc := expiresAt.UTC()
		expiresAt = &utc
	}
	pass := &DoorPass{Token: token, DeviceID: deviceID, ExpiresAt: expiresAt, UseLimit: useLimit}
	if err := r.db.WithContext(ctx).Create(pass).Error; err != nil {
		return nil, err
	}
	return pass, nil
}

func (r *gormDoorRepo) GetPass(ctx context.Context, token string) (*DoorPass, error) {
	if r.db == nil {
		return nil, fmt.Errorf("repository not initialized")
	}
	var p DoorPass
	err := r.db.WithContext(ctx).First(&p, "token = ?", token).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *gormDoorRepo) UsePass(ctx context.Context, token, deviceID string) (bool, error) {
	if r.db == nil {
		return false, fmt.Errorf("repository not initialized")
	}
	res := r.db.WithContext(ctx).Model(&DoorPass{}).
		Where("token = ? AND device_id = ?", token, deviceID).
		Where("use_limit IS NULL OR use_limit = 0 OR uses < use_limit").
		UpdateColumn("uses", gorm.Expr("uses + ?", 1))
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *gormDoorRepo) ReturnPass(ctx context.Context, token string) error {
	if r.db == nil {
		return fmt.Errorf("repository not initialized")
	}
	return r.db.WithContext(ctx).Model(&DoorPass{}).
		Where("token = ? AND uses > 0", token).
		UpdateColumn("uses", gorm.Expr("uses - ?", 1)).Error
}

func (r *gormDoorRepo) RecordEvent(ctx context.Context, deviceID, event, data string, at time.Time) error {
	if r.db == nil {
		return fmt.Errorf("repository not initialized")
	}
	return r.db.WithContext(ctx).Create(&DoorEvent{DeviceID: deviceID, Event: event, Data: data, Time: at.UTC()}).Error
}

func (r *gormDoorRepo) EventCounts(ctx context.Context, deviceID string) (map[string]int64, error) {
	if r.db == nil {
		return nil, fmt.Errorf("repository not initialized")
	}
	var rows []struct {
		Event string
		Total int64
	}
	err := r.db.WithContext(ctx).Model(&DoorEvent{}).
		Select("event, COUNT(*) AS total").
		Where("device_id = ?", deviceID).
		Group("event").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	counts := make(map[string]int64, len(rows))
	for _, row := range rows {
		counts[row.Event] = row.Total
	}
	return counts, nil
}

// generatePassToken returns a random 40 character hex token.
func generatePassToken() (string, error) {
	b := make([]byte, 20)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate pass token: %w", err)
	}
	return hex.EncodeToString(b), nil
}
