package upstream

import (
	"encoding/json"
	"time"
)

// Key is a key record as listed by the service.
type Key struct {
	ID            string  `json:"id"`
	Name          string  `json:"name"`
	CreatedAt     string  `json:"created_at"`
	Company       string  `json:"company,omitempty"`
	WebhookSecret *string `json:"webhook_secret,omitempty"`
}

// CreateKeyRequest is the body of a key creation call.
type CreateKeyRequest struct {
	Email   string `json:"email"`
	Company string `json:"company"`
	Name    string `json:"name"`
}

// CreatedKey is the service's answer to CreateKey.
type CreatedKey struct {
	APIKey        string `json:"api_key"`
	WebhookSecret string `json:"webhook_secret"`
}

type deleteKeyRequest struct {
	APIKey     string `json:"api_key"`
	OwnerEmail string `json:"owner_email"`
}

// Job keeps the full document returned by the service and exposes the fields
// the dashboard filters and sorts on. It marshals back to the original JSON.
type Job struct {
	ID          string
	UserID      string
	ChallengeID string
	Status      string
	CreatedAt   time.Time

	raw json.RawMessage
}

var jobTimeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999",
	"2006-01-02 15:04:05.999999",
}

// UnmarshalJSON implements json.Unmarshaler.
func (j *Job) UnmarshalJSON(data []byte) error {
	var fields struct {
		ID          string `json:"id"`
		UserID      string `json:"user_id"`
		ChallengeID string `json:"challenge_id"`
		Status      string `json:"status"`
		CreatedAt   string `json:"created_at"`
	}
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	j.ID = fields.ID
	j.UserID = fields.UserID
	j.ChallengeID = fields.ChallengeID
	j.Status = fields.Status
	j.CreatedAt = parseJobTime(fields.CreatedAt)
	j.raw = append(json.RawMessage(nil), data...)
	return nil
}

// MarshalJSON implements json.Marshaler.
func (j Job) MarshalJSON() ([]byte, error) {
	if len(j.raw) > 0 {
		return j.raw, nil
	}
	return json.Marshal(map[string]any{
		"id":           j.ID,
		"user_id":      j.UserID,
		"challenge_id": j.ChallengeID,
		"status":       j.Status,
		"created_at":   j.CreatedAt,
	})
}

func parseJobTime(value string) time.Time {
	for _, layout := range jobTimeLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t
		}
	}
	return time.Time{}
}
