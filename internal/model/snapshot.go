package model

import "time"

// Caregiver is an authenticated account on the remote backend.
type Caregiver struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"password_hash,omitempty"`
	LastSignInAt time.Time `json:"last_sign_in_at"`
}

// Snapshot is a point-in-time aggregate of the remote records visible to
// an account. It is never mutated; the merge coordinator only reads it.
type Snapshot struct {
	Profiles []Profile `json:"profiles"`
	Actions  []Action  `json:"actions"`
	Shares   []Share   `json:"shares"`
	// Owners maps profile id to the owning account id. Profiles do not
	// carry ownership locally, so the fetch records it here.
	Owners map[string]string `json:"owners,omitempty"`
}

// Empty reports whether the snapshot carries no profile or action data.
func (s *Snapshot) Empty() bool {
	return len(s.Profiles) == 0 && len(s.Actions) == 0
}

// ActionsFor returns the snapshot's actions belonging to one profile.
func (s *Snapshot) ActionsFor(profileID string) []Action {
	var out []Action
	for _, a := range s.Actions {
		if a.ProfileID == profileID {
			out = append(out, a)
		}
	}
	return out
}

// PermissionFor resolves the effective permission of account on profile.
// The owner always has edit; an accepted share row grants its recorded
// permission; anything else visible defaults to view.
// Permissions resolves the account's effective permission on every
// profile in the snapshot.
func (s *Snapshot) Permissions(accountID string) map[string]Permission {
	out := make(map[string]Permission, len(s.Profiles))
	for _, p := range s.Profiles {
		out[p.ID] = s.PermissionFor(accountID, p.ID, s.Owners[p.ID])
	}
	return out
}

func (s *Snapshot) PermissionFor(accountID, profileID, ownerID string) Permission {
	if accountID == ownerID {
		return PermissionEdit
	}
	for _, sh := range s.Shares {
		if sh.ProfileID == profileID && sh.RecipientID == accountID && sh.Status == ShareStatusAccepted {
			return sh.Permission
		}
	}
	return PermissionView
}
