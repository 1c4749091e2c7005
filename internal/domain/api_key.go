package domain

import "time"

// APIKey records a key issued by the challenge checking service. Entries are
// never removed; revocation flips IsActive.
type APIKey struct {
	KeyID     string
	Name      string
	CreatedAt time.Time
	LastUsed  *time.Time
	IsActive  bool
}

// ActiveKeys returns the keys that have not been revoked, in creation order.
func ActiveKeys(keys []APIKey) []APIKey {
	active := make([]APIKey, 0, len(keys))
	for _, k := range keys {
		if k.IsActive {
			active = append(active, k)
		}
	}
	return active
}

// MaskKey hides everything but the first eight and last four characters.
func MaskKey(keyID string) string {
	if len(keyID) <= 12 {
		return keyID
	}
	return keyID[:8] + "..." + keyID[len(keyID)-4:]
}
