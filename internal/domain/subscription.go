package domain

import "time"

// Subscription is the set of items a user wants to be notified about.
type Subscription struct {
	UserID    string    `json:"user_id"`
	Items     []string  `json:"items"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Has reports whether the subscription contains the canonical key.
func (s *Subscription) Has(key string) bool {
	for _, item := range s.Items {
		if ItemKey(item) == key {
			return true
		}
	}
	return false
}
