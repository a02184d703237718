package store

import (
	"context"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"fmt"

	"gorm.io/gorm"

	"go.opentelemetry.io/otel"

	"github.com/snackoverflow/snack-gateway/types"
)

var tracer = otel.Tracer("store")

// Store is a repository for the gateway's sync bookkeeping.
type Store struct {
	db *gorm.DB
}

// NewStore returns a new Store.
func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// GetSyncState returns the poll bookkeeping for a user. gorm.ErrRecordNotFound
// means no poll has ever run for them.
func (s *Store) GetSyncState(ctx context.Context, userID string) (types.SyncState, error) {
	ctx, span := tracer.Start(ctx, "StoreGetSyncState")
	defer span.End()

	var state types.SyncState
	result := s.db.WithContext(ctx).Where("user_id = ?", userID).First(&state)
	return state, result.Error
}

// UpsertSyncState saves the poll bookkeeping for a user.
func (s *Store) UpsertSyncState(ctx context.Context, state types.SyncState) error {
	ctx, span := tracer.Start(ctx, "StoreUpsertSyncState")
	defer span.End()

	return s.db.WithContext(ctx).Save(&state).Error
}

// SetPollingActive flips only the pollingActive flag, creating the row if
// it does not exist yet.
func (s *Store) SetPollingActive(ctx context.Context, userID string, active bool) error {
	ctx, span := tracer.Start(ctx, "StoreSetPollingActive")
	defer span.End()

	var state types.SyncState
	err := s.db.WithContext(ctx).Where("user_id = ?", userID).First(&state).Error
	if err != nil {
		state = types.SyncState{UserID: userID}
	}
	state.PollingActive = active
	return s.db.WithContext(ctx).Save(&state).Error
}

// ClearSyncState removes a user's poll bookkeeping entirely.
func (s *Store) ClearSyncState(ctx context.Context, userID string) error {
	ctx, span := tracer.Start(ctx, "StoreClearSyncState")
	defer span.End()

	return s.db.WithContext(ctx).Where("user_id = ?", userID).Delete(&types.SyncState{}).Error
}

// GetUserSettings returns gateway settings for a user.
func (s *Store) GetUserSettings(ctx context.Context, userID string) (types.UserSettings, error) {
	ctx, span := tracer.Start(ctx, "StoreGetUserSettings")
	defer span.End()

	var settings types.UserSettings
	result := s.db.WithContext(ctx).Where("user_id = ?", userID).First(&settings)
	return settings, result.Error
}

// UpsertUserSettings saves gateway settings for a user.
func (s *Store) UpsertUserSettings(ctx context.Context, settings types.UserSettings) error {
	ctx, span := tracer.Start(ctx, "StoreUpsertUserSettings")
	defer span.End()

	return s.db.WithContext(ctx).Save(&settings).Error
}

// CreateEventReference records a mirrored GitHub event. The primary key
// makes re-recording the same event an error, which is what keeps the
// mirror at-most-once.
func (s *Store) CreateEventReference(ctx context.Context, reference types.EventReference) error {
	ctx, span := tracer.Start(ctx, "StoreCreateEventReference")
	defer span.End()

	return s.db.WithContext(ctx).Create(&reference).Error
}

// GetEventReferenceByEventID returns the cross reference for a GitHub event.
func (s *Store) GetEventReferenceByEventID(ctx context.Context, eventID string) (types.EventReference, error) {
	ctx, span := tracer.Start(ctx, "StoreGetEventReferenceByEventID")
	defer span.End()

	var reference types.EventReference
	err := s.db.WithContext(ctx).Where("event_id = ?", eventID).First(&reference).Error
	return reference, err
}

// GetEventReferencesByUser returns every mirrored event of one user.
func (s *Store) GetEventReferencesByUser(ctx context.Context, userID string) ([]types.EventReference, error) {
	ctx, span := tracer.Start(ctx, "StoreGetEventReferencesByUser")
	defer span.End()

	var references []types.EventReference
	err := s.db.WithContext(ctx).Where("user_id = ?", userID).Find(&references).Error
	return references, err
}

// DeleteEventReference removes a cross reference, e.g. after the mirrored
// post was deleted upstream.
func (s *Store) DeleteEventReference(ctx context.Context, eventID string) error {
	ctx, span := tracer.Start(ctx, "StoreDeleteEventReference")
	defer span.End()

	return s.db.WithContext(ctx).Where("event_id = ?", eventID).Delete(&types.EventReference{}).Error
}

// LoadKey parses the PEM encoded RSA key used to sign deliveries to
// remote-host inboxes.
func LoadKey(pemStr string) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode([]byte(pemStr))
	if block == nil {
		return nil, fmt.Errorf("failed to parse PEM block containing the key")
	}

	priv, err := x509.ParsePKCS1PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse DER encoded private key: " + err.Error())
	}

	return priv, nil
}
