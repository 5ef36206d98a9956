// Package remote talks to the backend: an authenticated relational store
// with fixed collections for caregivers, profiles, actions and shares.
// The backend is a dumb store; all validation and conflict policy lives
// on this side. Pushes are blind upserts by id, pulls return full
// snapshots, and every call is best effort: a failure leaves local state
// as the visible truth and the next explicit sync retries naturally.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/nestlingapp/nestling/internal/model"
)

var (
	// ErrNotConfigured means backend credentials are missing or
	// malformed. Fatal to remote features only; the app stays fully
	// functional offline.
	ErrNotConfigured = errors.New("remote backend not configured")

	// errUnknownSubtype marks an action record whose subtype identifier
	// this client generation does not recognize. The record is dropped
	// from the snapshot rather than failing the pull.
	errUnknownSubtype = errors.New("unknown subtype identifier")
)

// userMessage is what callers surface when a sync call fails. Details go
// to the log, not the user.
const userMessage = "Couldn't reach the server. Your data is safe on this device and will sync later."

// Message returns the user-facing string for a remote failure, or empty
// when err is nil.
func Message(err error) string {
	if err == nil {
		return ""
	}
	if errors.Is(err, ErrNotConfigured) {
		return "Syncing is off: no account is configured."
	}
	return userMessage
}

// Config holds backend credentials.
type Config struct {
	BaseURL string
	APIKey  string
	Email   string
	Secret  string
}

func (c Config) valid() bool {
	return c.BaseURL != "" && c.Email != "" && c.Secret != ""
}

type Client struct {
	cfg        Config
	httpClient *http.Client
	logger     *slog.Logger

	mu          sync.Mutex
	accountID   string
	token       string
	provisioned bool
}

// NewClient creates a backend client. Returns ErrNotConfigured when the
// credentials are incomplete so the caller can disable remote features
// once, up front.
func NewClient(cfg Config, logger *slog.Logger) (*Client, error) {
	if !cfg.valid() {
		return nil, ErrNotConfigured
	}
	if _, err := url.Parse(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("%w: bad base url: %v", ErrNotConfigured, err)
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		logger:     logger,
		// The account id is derived deterministically from the email so
		// every device of the same account converges on one row.
		accountID: uuid.NewSHA1(uuid.NameSpaceOID, []byte(cfg.Email)).String(),
	}, nil
}

// AccountID returns the stable account identifier for this session.
func (c *Client) AccountID() string {
	return c.accountID
}

// EnsureAccount upserts the caregiver row and establishes a session
// token. Guarded one-shot per session: after the first success it only
// refreshes the token when needed.
func (c *Client) EnsureAccount(ctx context.Context) error {
	c.mu.Lock()
	provisioned := c.provisioned
	token := c.token
	c.mu.Unlock()

	now := time.Now().UTC()
	if provisioned && tokenValid(token, c.cfg.Secret, now) {
		return nil
	}

	fresh, err := mintToken(c.accountID, c.cfg.Email, c.cfg.Secret, now)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.token = fresh
	c.mu.Unlock()

	if provisioned {
		return nil
	}

	// Password hash placeholder: the backend never verifies it, the
	// column just must not be empty.
	hash, err := bcrypt.GenerateFromPassword([]byte(c.cfg.Secret), bcrypt.MinCost)
	if err != nil {
		return fmt.Errorf("hash placeholder: %w", err)
	}
	body := wireCaregiver{
		ID:           c.accountID,
		Email:        c.cfg.Email,
		PasswordHash: string(hash),
		LastSignInAt: now.Format(time.RFC3339),
	}
	if err := c.do(ctx, http.MethodPut, "/v1/caregivers/"+c.accountID, body, nil); err != nil {
		return fmt.Errorf("provision caregiver: %w", err)
	}

	c.mu.Lock()
	c.provisioned = true
	c.mu.Unlock()
	c.logger.Info("caregiver provisioned", "account_id", c.accountID)
	return nil
}

// UpsertProfile pushes a profile, blind upsert by id. The caller is
// responsible for only pushing genuinely newer local edits.
func (c *Client) UpsertProfile(ctx context.Context, p *model.Profile) error {
	w := profileToWire(c.accountID, p)
	if err := c.do(ctx, http.MethodPut, "/v1/baby_profiles/"+url.PathEscape(p.ID), w, nil); err != nil {
		return fmt.Errorf("upsert profile %s: %w", p.ID, err)
	}
	return nil
}

// DeleteProfile removes a profile row; the backend cascades to its
// actions and share rows.
func (c *Client) DeleteProfile(ctx context.Context, id string) error {
	if err := c.do(ctx, http.MethodDelete, "/v1/baby_profiles/"+url.PathEscape(id), nil, nil); err != nil {
		return fmt.Errorf("delete profile %s: %w", id, err)
	}
	return nil
}

// UpsertAction pushes one action, blind upsert by id.
func (c *Client) UpsertAction(ctx context.Context, a *model.Action) error {
	w, err := actionToWire(c.accountID, a)
	if err != nil {
		return err
	}
	if err := c.do(ctx, http.MethodPut, "/v1/baby_action/"+url.PathEscape(a.ID), w, nil); err != nil {
		return fmt.Errorf("upsert action %s: %w", a.ID, err)
	}
	return nil
}

// DeleteAction removes one action row.
func (c *Client) DeleteAction(ctx context.Context, id string) error {
	if err := c.do(ctx, http.MethodDelete, "/v1/baby_action/"+url.PathEscape(id), nil, nil); err != nil {
		return fmt.Errorf("delete action %s: %w", id, err)
	}
	return nil
}

// FetchSnapshot pulls everything visible under the account's access
// rules. Actions with unrecognized subtype identifiers are dropped with
// a log line; any other decode failure fails the whole call.
func (c *Client) FetchSnapshot(ctx context.Context) (*model.Snapshot, error) {
	var rawProfiles []wireProfile
	if err := c.do(ctx, http.MethodGet, "/v1/baby_profiles", nil, &rawProfiles); err != nil {
		return nil, fmt.Errorf("fetch profiles: %w", err)
	}
	var rawActions []wireAction
	if err := c.do(ctx, http.MethodGet, "/v1/baby_action", nil, &rawActions); err != nil {
		return nil, fmt.Errorf("fetch actions: %w", err)
	}
	var rawShares []wireShare
	if err := c.do(ctx, http.MethodGet, "/v1/baby_profile_shares", nil, &rawShares); err != nil {
		return nil, fmt.Errorf("fetch shares: %w", err)
	}

	snap := &model.Snapshot{Owners: make(map[string]string, len(rawProfiles))}
	for i, w := range rawProfiles {
		p, err := w.toModel(fmt.Sprintf("baby_profiles[%d]", i))
		if err != nil {
			c.logDecodeFailure(err)
			return nil, err
		}
		snap.Profiles = append(snap.Profiles, p)
		snap.Owners[p.ID] = w.AccountID
	}
	for i, w := range rawActions {
		a, err := w.toModel(fmt.Sprintf("baby_action[%d]", i))
		if errors.Is(err, errUnknownSubtype) {
			c.logger.Warn("dropping action with unknown subtype", "id", w.ID, "subtype_id", w.SubtypeID)
			continue
		}
		if err != nil {
			c.logDecodeFailure(err)
			return nil, err
		}
		snap.Actions = append(snap.Actions, a)
	}
	for i, w := range rawShares {
		s, err := w.toModel(fmt.Sprintf("baby_profile_shares[%d]", i))
		if err != nil {
			c.logDecodeFailure(err)
			return nil, err
		}
		snap.Shares = append(snap.Shares, s)
	}
	return snap, nil
}

// FindCaregiverByEmail looks up an account. Returns nil when no account
// matches.
func (c *Client) FindCaregiverByEmail(ctx context.Context, email string) (*model.Caregiver, error) {
	var raw []wireCaregiver
	path := "/v1/caregivers?email=" + url.QueryEscape(email)
	if err := c.do(ctx, http.MethodGet, path, nil, &raw); err != nil {
		return nil, fmt.Errorf("find caregiver: %w", err)
	}
	if len(raw) == 0 {
		return nil, nil
	}
	return &model.Caregiver{ID: raw[0].ID, Email: raw[0].Email}, nil
}

// GetProfile fetches one remote profile row with its owner. Returns nil
// when the row does not exist.
func (c *Client) GetProfile(ctx context.Context, id string) (*model.Profile, string, error) {
	var raw wireProfile
	err := c.do(ctx, http.MethodGet, "/v1/baby_profiles/"+url.PathEscape(id), nil, &raw)
	if errors.Is(err, errNotFound) {
		return nil, "", nil
	}
	if err != nil {
		return nil, "", fmt.Errorf("get profile %s: %w", id, err)
	}
	p, err := raw.toModel("baby_profiles")
	if err != nil {
		c.logDecodeFailure(err)
		return nil, "", err
	}
	return &p, raw.AccountID, nil
}

// ListShares returns the share rows for one profile.
func (c *Client) ListShares(ctx context.Context, profileID string) ([]model.Share, error) {
	var raw []wireShare
	path := "/v1/baby_profile_shares?profile_id=" + url.QueryEscape(profileID)
	if err := c.do(ctx, http.MethodGet, path, nil, &raw); err != nil {
		return nil, fmt.Errorf("list shares: %w", err)
	}
	var shares []model.Share
	for i, w := range raw {
		s, err := w.toModel(fmt.Sprintf("baby_profile_shares[%d]", i))
		if err != nil {
			c.logDecodeFailure(err)
			return nil, err
		}
		shares = append(shares, s)
	}
	return shares, nil
}

// GetShare fetches one share row. Returns nil when it does not exist.
func (c *Client) GetShare(ctx context.Context, id string) (*model.Share, error) {
	var raw wireShare
	err := c.do(ctx, http.MethodGet, "/v1/baby_profile_shares/"+url.PathEscape(id), nil, &raw)
	if errors.Is(err, errNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get share %s: %w", id, err)
	}
	s, err := raw.toModel("baby_profile_shares")
	if err != nil {
		c.logDecodeFailure(err)
		return nil, err
	}
	return &s, nil
}

// CreateShare inserts a share row.
func (c *Client) CreateShare(ctx context.Context, s *model.Share) error {
	if err := c.do(ctx, http.MethodPut, "/v1/baby_profile_shares/"+url.PathEscape(s.ID), shareToWire(s), nil); err != nil {
		return fmt.Errorf("create share: %w", err)
	}
	return nil
}

// UpdateShareStatus transitions a share row.
func (c *Client) UpdateShareStatus(ctx context.Context, id string, status model.ShareStatus) error {
	body := map[string]string{"status": string(status)}
	if err := c.do(ctx, http.MethodPatch, "/v1/baby_profile_shares/"+url.PathEscape(id), body, nil); err != nil {
		return fmt.Errorf("update share %s: %w", id, err)
	}
	return nil
}

// errNotFound distinguishes a missing row from a transport failure.
var errNotFound = errors.New("not found")

// do performs one backend call. No retry: the next explicit sync attempt
// retries naturally.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.cfg.BaseURL+path, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.APIKey != "" {
		req.Header.Set("X-Api-Key", c.cfg.APIKey)
	}
	c.mu.Lock()
	token := c.token
	c.mu.Unlock()
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("backend call failed", "method", method, "path", path, "error", err)
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return errNotFound
	}
	if resp.StatusCode >= 400 {
		c.logger.Error("backend call rejected", "method", method, "path", path, "status", resp.StatusCode)
		return fmt.Errorf("%s %s: status %d", method, path, resp.StatusCode)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			c.logger.Error("backend response decode failed", "method", method, "path", path, "error", err)
			return fmt.Errorf("decode %s %s: %w", method, path, err)
		}
	}
	return nil
}

func (c *Client) logDecodeFailure(err error) {
	var de *decodeError
	if errors.As(err, &de) {
		c.logger.Error("remote record decode failed", "field", de.Path, "reason", de.Reason)
		return
	}
	c.logger.Error("remote record decode failed", "error", err)
}
