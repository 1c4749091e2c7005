package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/brymix/dashboard-bff/internal/domain"
	"github.com/brymix/dashboard-bff/internal/events"
	"github.com/brymix/dashboard-bff/internal/repository"
	"github.com/brymix/dashboard-bff/internal/upstream"
)

// KeyUpstream is the slice of the challenge service used for key management.
type KeyUpstream interface {
	ListKeys(ctx context.Context, ownerEmail string) ([]upstream.Key, error)
	CreateKey(ctx context.Context, req upstream.CreateKeyRequest) (*upstream.CreatedKey, error)
	DeleteKey(ctx context.Context, keyID, ownerEmail string) error
}

// KeyView is one row of the API keys page.
type KeyView struct {
	ID            string
	Name          string
	MaskedKey     string
	CreatedAt     string
	LastUsed      *time.Time
	WebhookSecret *string
}

// CreatedKeyView is returned once after creation.
type CreatedKeyView struct {
	ID            string
	Name          string
	CreatedAt     time.Time
	WebhookSecret string
}

// APIKeyService proxies key management to the upstream service and keeps the
// local append-only record in step.
type APIKeyService struct {
	keys       repository.APIKeyRepository
	upstream   KeyUpstream
	dispatcher events.Dispatcher
	logger     *zap.Logger
	now        func() time.Time
}

// NewAPIKeyService builds the service.
func NewAPIKeyService(keys repository.APIKeyRepository, up KeyUpstream, dispatcher events.Dispatcher, logger *zap.Logger, now func() time.Time) *APIKeyService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if now == nil {
		now = time.Now
	}
	return &APIKeyService{keys: keys, upstream: up, dispatcher: dispatcher, logger: logger, now: now}
}

// List prefers the upstream view and falls back to the locally recorded
// active keys when the service cannot answer.
func (s *APIKeyService) List(ctx context.Context, user *domain.User) ([]KeyView, error) {
	remote, err := s.upstream.ListKeys(ctx, user.Email)
	if err == nil {
		views := make([]KeyView, 0, len(remote))
		for _, k := range remote {
			views = append(views, KeyView{
				ID:            k.ID,
				Name:          k.Name,
				MaskedKey:     domain.MaskKey(k.ID),
				CreatedAt:     k.CreatedAt,
				WebhookSecret: k.WebhookSecret,
			})
		}
		return views, nil
	}
	s.logger.Warn("upstream key listing failed; using local records", zap.String("user_id", user.ID), zap.Error(err))

	local, err := s.keys.List(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("list local keys: %w", err)
	}
	active := domain.ActiveKeys(local)
	views := make([]KeyView, 0, len(active))
	for _, k := range active {
		views = append(views, KeyView{
			ID:        k.KeyID,
			Name:      k.Name,
			MaskedKey: domain.MaskKey(k.KeyID),
			CreatedAt: k.CreatedAt.UTC().Format(time.RFC3339),
			LastUsed:  k.LastUsed,
		})
	}
	return views, nil
}

// Create mints a key upstream and records it locally.
func (s *APIKeyService) Create(ctx context.Context, user *domain.User, name string) (*CreatedKeyView, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrKeyNameRequired
	}

	created, err := s.upstream.CreateKey(ctx, upstream.CreateKeyRequest{
		Email:   user.Email,
		Company: user.Company,
		Name:    name,
	})
	if err != nil {
		return nil, err
	}

	record := domain.APIKey{
		KeyID:     created.APIKey,
		Name:      name,
		CreatedAt: s.now().UTC(),
		IsActive:  true,
	}
	if err := s.keys.Add(ctx, user.ID, record); err != nil {
		return nil, fmt.Errorf("record api key: %w", err)
	}

	s.publish(ctx, events.Event{
		Type:    events.EventAPIKeyCreated,
		UserID:  user.ID,
		Email:   user.Email,
		Payload: events.APIKeyPayload{MaskedKey: domain.MaskKey(record.KeyID), Name: name},
	})
	return &CreatedKeyView{
		ID:            record.KeyID,
		Name:          record.Name,
		CreatedAt:     record.CreatedAt,
		WebhookSecret: created.WebhookSecret,
	}, nil
}

// Revoke deletes the key upstream, then soft-deletes the local record.
func (s *APIKeyService) Revoke(ctx context.Context, user *domain.User, keyID string) error {
	local, err := s.keys.List(ctx, user.ID)
	if err != nil {
		return fmt.Errorf("list local keys: %w", err)
	}
	found := false
	for _, k := range domain.ActiveKeys(local) {
		if k.KeyID == keyID {
			found = true
			break
		}
	}
	if !found {
		return ErrKeyNotFound
	}

	if err := s.upstream.DeleteKey(ctx, keyID, user.Email); err != nil {
		return err
	}
	if err := s.keys.Deactivate(ctx, user.ID, keyID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrKeyNotFound
		}
		return fmt.Errorf("deactivate api key: %w", err)
	}

	s.publish(ctx, events.Event{
		Type:    events.EventAPIKeyRevoked,
		UserID:  user.ID,
		Email:   user.Email,
		Payload: events.APIKeyPayload{MaskedKey: domain.MaskKey(keyID)},
	})
	return nil
}

func (s *APIKeyService) publish(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if err := s.dispatcher.Publish(ctx, event); err != nil {
		s.logger.Warn("publish event", zap.String("event_type", string(event.Type)), zap.Error(err))
	}
}
