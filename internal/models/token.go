package models

import "time"

// RefreshToken represents a persisted refresh token session. Rows are never
// deleted by the application; revocation only flips the Revoked flag so the
// history stays available for audit and anomaly comparison.
//
// CreatedAt anchors the sliding-expiration cap: a rotated token inherits the
// CreatedAt of the token it replaces, so a session can never be extended past
// its absolute maximum lifetime measured from first issuance.
type RefreshToken struct {
	ID        string     `db:"id" json:"id"`
	UserID    string     `db:"user_id" json:"user_id"`
	Token     string     `db:"token" json:"token"`
	ExpiresAt time.Time  `db:"expires_at" json:"expires_at"`
	CreatedAt time.Time  `db:"created_at" json:"created_at"`
	Revoked   bool       `db:"revoked" json:"revoked"`
	RevokedAt *time.Time `db:"revoked_at" json:"revoked_at,omitempty"`
	UserAgent string     `db:"user_agent" json:"user_agent"`
	IPAddress string     `db:"ip_address" json:"ip_address"`
}

// Expired reports whether the token has passed its expiry at the given time.
func (t *RefreshToken) Expired(now time.Time) bool {
	return now.After(t.ExpiresAt)
}
