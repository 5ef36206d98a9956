package model

import "time"

// Permission level granted by a share.
type Permission string

const (
	PermissionView Permission = "view"
	PermissionEdit Permission = "edit"
)

// ShareStatus tracks the invitation lifecycle. Pending rows may be
// accepted or rejected by the recipient; the owner may revoke any row at
// any time.
type ShareStatus string

const (
	ShareStatusPending  ShareStatus = "pending"
	ShareStatusAccepted ShareStatus = "accepted"
	ShareStatusRevoked  ShareStatus = "revoked"
	ShareStatusRejected ShareStatus = "rejected"
)

type Share struct {
	ID          string      `json:"id"`
	ProfileID   string      `json:"profile_id"`
	OwnerID     string      `json:"owner_id"`
	RecipientID string      `json:"recipient_id"`
	Permission  Permission  `json:"permission"`
	Status      ShareStatus `json:"status"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

// Active reports whether the share still grants or could grant access.
// Revoked and rejected rows are dead; a new invite may replace them.
func (s *Share) Active() bool {
	return s.Status == ShareStatusPending || s.Status == ShareStatusAccepted
}
