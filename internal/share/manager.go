// Package share manages the cross-account invitation lifecycle for
// shared profiles. Share rows live on the backend; this manager enforces
// the transition rules client-side and returns typed outcomes so callers
// can branch without string matching.
package share

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/nestlingapp/nestling/internal/model"
	"github.com/nestlingapp/nestling/internal/remote"
)

var (
	ErrNotOwner          = errors.New("caller does not own this profile")
	ErrRecipientNotFound = errors.New("no account matches the recipient identifier")
	ErrAlreadyShared     = errors.New("an active share for this recipient already exists")
	ErrNotRecipient      = errors.New("caller is not the recipient of this share")
	ErrNotPending        = errors.New("share is not pending")
	ErrShareNotFound     = errors.New("share not found")
	ErrProfileNotFound   = errors.New("profile not found on the backend")
)

type Manager struct {
	client *remote.Client
	logger *slog.Logger
}

func NewManager(client *remote.Client, logger *slog.Logger) *Manager {
	return &Manager{client: client, logger: logger}
}

// Invite creates a pending share row granting permission on a profile to
// the account matching recipientEmail.
func (m *Manager) Invite(ctx context.Context, profileID, recipientEmail string, permission model.Permission) (*model.Share, error) {
	if permission != model.PermissionView && permission != model.PermissionEdit {
		return nil, fmt.Errorf("invalid permission %q", permission)
	}
	if err := m.client.EnsureAccount(ctx); err != nil {
		return nil, err
	}

	_, ownerID, err := m.client.GetProfile(ctx, profileID)
	if err != nil {
		return nil, err
	}
	if ownerID == "" {
		return nil, ErrProfileNotFound
	}
	if ownerID != m.client.AccountID() {
		return nil, ErrNotOwner
	}

	recipient, err := m.client.FindCaregiverByEmail(ctx, recipientEmail)
	if err != nil {
		return nil, err
	}
	if recipient == nil {
		return nil, ErrRecipientNotFound
	}

	existing, err := m.client.ListShares(ctx, profileID)
	if err != nil {
		return nil, err
	}
	for i := range existing {
		if existing[i].RecipientID == recipient.ID && existing[i].Active() {
			return nil, ErrAlreadyShared
		}
	}

	s := &model.Share{
		ID:          uuid.New().String(),
		ProfileID:   profileID,
		OwnerID:     ownerID,
		RecipientID: recipient.ID,
		Permission:  permission,
		Status:      model.ShareStatusPending,
	}
	if err := m.client.CreateShare(ctx, s); err != nil {
		return nil, err
	}
	m.logger.Info("share invited", "profile", profileID, "recipient", recipient.ID, "permission", permission)
	return s, nil
}

// Respond lets the recipient of a pending share accept or reject it.
func (m *Manager) Respond(ctx context.Context, shareID string, accept bool) error {
	if err := m.client.EnsureAccount(ctx); err != nil {
		return err
	}

	s, err := m.client.GetShare(ctx, shareID)
	if err != nil {
		return err
	}
	if s == nil {
		return ErrShareNotFound
	}
	if s.RecipientID != m.client.AccountID() {
		return ErrNotRecipient
	}
	if s.Status != model.ShareStatusPending {
		return ErrNotPending
	}

	status := model.ShareStatusRejected
	if accept {
		status = model.ShareStatusAccepted
	}
	if err := m.client.UpdateShareStatus(ctx, shareID, status); err != nil {
		return err
	}
	m.logger.Info("share responded", "share", shareID, "status", status)
	return nil
}

// Revoke lets the owner kill a share in any state, at any time.
func (m *Manager) Revoke(ctx context.Context, shareID string) error {
	if err := m.client.EnsureAccount(ctx); err != nil {
		return err
	}

	s, err := m.client.GetShare(ctx, shareID)
	if err != nil {
		return err
	}
	if s == nil {
		return ErrShareNotFound
	}
	if s.OwnerID != m.client.AccountID() {
		return ErrNotOwner
	}

	if err := m.client.UpdateShareStatus(ctx, shareID, model.ShareStatusRevoked); err != nil {
		return err
	}
	m.logger.Info("share revoked", "share", shareID)
	return nil
}
