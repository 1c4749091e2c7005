package dto

import (
	"time"

	"github.com/brymix/dashboard-bff/internal/service"
)

// CreateKeyRequest names a new API key.
type CreateKeyRequest struct {
	Name string `json:"name"`
}

// KeyResponse is one key in the listing.
type KeyResponse struct {
	ID            string     `json:"id"`
	Name          string     `json:"name"`
	MaskedKey     string     `json:"maskedKey"`
	CreatedAt     string     `json:"createdAt"`
	LastUsed      *time.Time `json:"lastUsed,omitempty"`
	WebhookSecret *string    `json:"webhookSecret"`
}

// KeyListResponse wraps the listing.
type KeyListResponse struct {
	Keys []KeyResponse `json:"keys"`
}

// NewKeyListResponse maps service views.
func NewKeyListResponse(views []service.KeyView) KeyListResponse {
	keys := make([]KeyResponse, 0, len(views))
	for _, v := range views {
		keys = append(keys, KeyResponse{
			ID:            v.ID,
			Name:          v.Name,
			MaskedKey:     v.MaskedKey,
			CreatedAt:     v.CreatedAt,
			LastUsed:      v.LastUsed,
			WebhookSecret: v.WebhookSecret,
		})
	}
	return KeyListResponse{Keys: keys}
}

// CreatedKeyResponse is shown once after creation.
type CreatedKeyResponse struct {
	Message string `json:"message"`
	APIKey  struct {
		ID            string    `json:"id"`
		Name          string    `json:"name"`
		CreatedAt     time.Time `json:"createdAt"`
		WebhookSecret string    `json:"webhookSecret"`
	} `json:"apiKey"`
}

// NewCreatedKeyResponse maps the service view.
func NewCreatedKeyResponse(v *service.CreatedKeyView) CreatedKeyResponse {
	var resp CreatedKeyResponse
	resp.Message = "API key created successfully"
	resp.APIKey.ID = v.ID
	resp.APIKey.Name = v.Name
	resp.APIKey.CreatedAt = v.CreatedAt
	resp.APIKey.WebhookSecret = v.WebhookSecret
	return resp
}
