package remote

import (
	"fmt"
	"time"

	"github.com/nestlingapp/nestling/internal/model"
	"github.com/nestlingapp/nestling/internal/subtype"
)

// Wire representations of the backend collections. The backend schema has
// drifted over client generations, so reads tolerate the historical
// column aliases; writes always emit the current names.
//
// Aliases tolerated on read:
//
//	baby_profiles.date_of_birth  <- birthday
//	baby_profiles.avatar_url     <- avatar
//	baby_action.started_at       <- start_time
//	baby_action.stopped_at       <- end_time
//	baby_action.note             <- misc

type wireCaregiver struct {
	ID           string `json:"id"`
	Email        string `json:"email"`
	PasswordHash string `json:"password_hash,omitempty"`
	LastSignInAt string `json:"last_sign_in,omitempty"`
}

type wireProfile struct {
	ID          string `json:"id"`
	AccountID   string `json:"account_id"`
	Name        string `json:"name"`
	DateOfBirth string `json:"date_of_birth,omitempty"`
	Birthday    string `json:"birthday,omitempty"` // legacy alias
	AvatarURL   string `json:"avatar_url,omitempty"`
	Avatar      string `json:"avatar,omitempty"` // legacy alias
	CreatedAt   string `json:"created_at,omitempty"`
	EditedAt    string `json:"edited_at,omitempty"`
}

type wireAction struct {
	ID        string  `json:"id"`
	AccountID string  `json:"account_id"`
	SubtypeID string  `json:"subtype_id"`
	StartedAt string  `json:"started_at,omitempty"`
	StartTime string  `json:"start_time,omitempty"` // legacy alias
	StoppedAt *string `json:"stopped_at,omitempty"`
	EndTime   *string `json:"end_time,omitempty"` // legacy alias
	Note      string  `json:"note,omitempty"`
	Misc      string  `json:"misc,omitempty"` // legacy alias
	ProfileID string  `json:"profile_id"`
	CreatedAt string  `json:"created_at,omitempty"`
	EditedAt  string  `json:"edited_at,omitempty"`
}

type wireShare struct {
	ID          string `json:"id"`
	ProfileID   string `json:"profile_id"`
	OwnerID     string `json:"owner_id"`
	RecipientID string `json:"recipient_id"`
	Permission  string `json:"permission"`
	Status      string `json:"status"`
	CreatedAt   string `json:"created_at,omitempty"`
	UpdatedAt   string `json:"updated_at,omitempty"`
}

// decodeError carries the structural detail (field path, reason) logged
// when a remote record cannot be decoded. The whole call fails; no
// partial result is returned.
type decodeError struct {
	Path   string
	Reason string
}

func (e *decodeError) Error() string {
	return fmt.Sprintf("decode %s: %s", e.Path, e.Reason)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func parseWireTime(path, value string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, &decodeError{Path: path, Reason: fmt.Sprintf("bad timestamp %q", value)}
	}
	return t.UTC(), nil
}

func (w wireProfile) toModel(path string) (model.Profile, error) {
	if w.ID == "" {
		return model.Profile{}, &decodeError{Path: path + ".id", Reason: "missing"}
	}
	p := model.Profile{
		ID:        w.ID,
		Name:      w.Name,
		BirthDate: firstNonEmpty(w.DateOfBirth, w.Birthday),
		AvatarURL: firstNonEmpty(w.AvatarURL, w.Avatar),
	}
	if w.CreatedAt != "" {
		t, err := parseWireTime(path+".created_at", w.CreatedAt)
		if err != nil {
			return model.Profile{}, err
		}
		p.CreatedAt = t
	}
	if w.EditedAt != "" {
		t, err := parseWireTime(path+".edited_at", w.EditedAt)
		if err != nil {
			return model.Profile{}, err
		}
		p.UpdatedAt = t
	}
	return p, nil
}

// toModel converts a wire action. An unrecognized subtype identifier
// returns errUnknownSubtype so the caller can drop the record instead of
// failing the whole pull.
func (w wireAction) toModel(path string) (model.Action, error) {
	if w.ID == "" {
		return model.Action{}, &decodeError{Path: path + ".id", Reason: "missing"}
	}
	category, detail, err := subtype.Parse(w.SubtypeID)
	if err != nil {
		return model.Action{}, fmt.Errorf("%s.subtype_id: %w", path, errUnknownSubtype)
	}

	started := firstNonEmpty(w.StartedAt, w.StartTime)
	if started == "" {
		return model.Action{}, &decodeError{Path: path + ".started_at", Reason: "missing"}
	}
	startedAt, err := parseWireTime(path+".started_at", started)
	if err != nil {
		return model.Action{}, err
	}

	a := model.Action{
		ID:        w.ID,
		ProfileID: w.ProfileID,
		Category:  category,
		Detail:    detail,
		StartedAt: startedAt,
	}

	var stopped *string
	if w.StoppedAt != nil {
		stopped = w.StoppedAt
	} else if w.EndTime != nil {
		stopped = w.EndTime
	}
	if stopped != nil && *stopped != "" {
		t, err := parseWireTime(path+".stopped_at", *stopped)
		if err != nil {
			return model.Action{}, err
		}
		a.StoppedAt = &t
	}

	subtype.ApplyNote(&a, firstNonEmpty(w.Note, w.Misc))

	if w.EditedAt != "" {
		t, err := parseWireTime(path+".edited_at", w.EditedAt)
		if err != nil {
			return model.Action{}, err
		}
		a.UpdatedAt = t
	}
	return a, nil
}

func (w wireShare) toModel(path string) (model.Share, error) {
	if w.ID == "" {
		return model.Share{}, &decodeError{Path: path + ".id", Reason: "missing"}
	}
	switch model.Permission(w.Permission) {
	case model.PermissionView, model.PermissionEdit:
	default:
		return model.Share{}, &decodeError{Path: path + ".permission", Reason: fmt.Sprintf("unknown value %q", w.Permission)}
	}
	switch model.ShareStatus(w.Status) {
	case model.ShareStatusPending, model.ShareStatusAccepted, model.ShareStatusRevoked, model.ShareStatusRejected:
	default:
		return model.Share{}, &decodeError{Path: path + ".status", Reason: fmt.Sprintf("unknown value %q", w.Status)}
	}
	s := model.Share{
		ID:          w.ID,
		ProfileID:   w.ProfileID,
		OwnerID:     w.OwnerID,
		RecipientID: w.RecipientID,
		Permission:  model.Permission(w.Permission),
		Status:      model.ShareStatus(w.Status),
	}
	if w.UpdatedAt != "" {
		t, err := parseWireTime(path+".updated_at", w.UpdatedAt)
		if err != nil {
			return model.Share{}, err
		}
		s.UpdatedAt = t
	}
	return s, nil
}

func profileToWire(accountID string, p *model.Profile) wireProfile {
	w := wireProfile{
		ID:          p.ID,
		AccountID:   accountID,
		Name:        p.Name,
		DateOfBirth: p.BirthDate,
		AvatarURL:   p.AvatarURL,
		EditedAt:    p.UpdatedAt.UTC().Format(time.RFC3339),
	}
	if !p.CreatedAt.IsZero() {
		w.CreatedAt = p.CreatedAt.UTC().Format(time.RFC3339)
	}
	return w
}

func actionToWire(accountID string, a *model.Action) (wireAction, error) {
	id, err := subtype.ID(a.Category, a.Detail)
	if err != nil {
		return wireAction{}, fmt.Errorf("action %s: %w", a.ID, err)
	}
	w := wireAction{
		ID:        a.ID,
		AccountID: accountID,
		SubtypeID: id,
		StartedAt: a.StartedAt.UTC().Format(time.RFC3339),
		Note:      subtype.NoteFor(a),
		ProfileID: a.ProfileID,
		EditedAt:  a.UpdatedAt.UTC().Format(time.RFC3339),
	}
	if a.StoppedAt != nil {
		s := a.StoppedAt.UTC().Format(time.RFC3339)
		w.StoppedAt = &s
	}
	return w, nil
}

func shareToWire(s *model.Share) wireShare {
	return wireShare{
		ID:          s.ID,
		ProfileID:   s.ProfileID,
		OwnerID:     s.OwnerID,
		RecipientID: s.RecipientID,
		Permission:  string(s.Permission),
		Status:      string(s.Status),
	}
}
