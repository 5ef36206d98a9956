package remote

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"
)

// fakeBackend is an in-memory stand-in for the relational backend,
// exposing the fixed collections over the same REST surface.
type fakeBackend struct {
	mu         sync.Mutex
	caregivers map[string]wireCaregiver
	profiles   map[string]wireProfile
	actions    map[string]wireAction
	shares     map[string]wireShare

	provisionCalls int
	lastAuth       string
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		caregivers: make(map[string]wireCaregiver),
		profiles:   make(map[string]wireProfile),
		actions:    make(map[string]wireAction),
		shares:     make(map[string]wireShare),
	}
}

func (b *fakeBackend) handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("PUT /v1/caregivers/{id}", func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		defer b.mu.Unlock()
		b.provisionCalls++
		b.lastAuth = r.Header.Get("Authorization")
		var c wireCaregiver
		json.NewDecoder(r.Body).Decode(&c)
		b.caregivers[c.ID] = c
		json.NewEncoder(w).Encode(c)
	})

	mux.HandleFunc("GET /v1/caregivers", func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		defer b.mu.Unlock()
		email := r.URL.Query().Get("email")
		var out []wireCaregiver
		for _, c := range b.caregivers {
			if c.Email == email {
				out = append(out, c)
			}
		}
		json.NewEncoder(w).Encode(out)
	})

	mux.HandleFunc("GET /v1/baby_profiles", func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		defer b.mu.Unlock()
		out := []wireProfile{}
		for _, p := range b.profiles {
			out = append(out, p)
		}
		json.NewEncoder(w).Encode(out)
	})
	mux.HandleFunc("GET /v1/baby_profiles/{id}", func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		defer b.mu.Unlock()
		p, ok := b.profiles[r.PathValue("id")]
		if !ok {
			http.NotFound(w, r)
			return
		}
		json.NewEncoder(w).Encode(p)
	})
	mux.HandleFunc("PUT /v1/baby_profiles/{id}", func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		defer b.mu.Unlock()
		var p wireProfile
		json.NewDecoder(r.Body).Decode(&p)
		b.profiles[p.ID] = p
		json.NewEncoder(w).Encode(p)
	})
	mux.HandleFunc("DELETE /v1/baby_profiles/{id}", func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		defer b.mu.Unlock()
		id := r.PathValue("id")
		delete(b.profiles, id)
		for aid, a := range b.actions {
			if a.ProfileID == id {
				delete(b.actions, aid)
			}
		}
		for sid, s := range b.shares {
			if s.ProfileID == id {
				delete(b.shares, sid)
			}
		}
		w.WriteHeader(http.StatusNoContent)
	})

	mux.HandleFunc("GET /v1/baby_action", func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		defer b.mu.Unlock()
		out := []wireAction{}
		for _, a := range b.actions {
			out = append(out, a)
		}
		json.NewEncoder(w).Encode(out)
	})
	mux.HandleFunc("PUT /v1/baby_action/{id}", func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		defer b.mu.Unlock()
		var a wireAction
		json.NewDecoder(r.Body).Decode(&a)
		b.actions[a.ID] = a
		json.NewEncoder(w).Encode(a)
	})
	mux.HandleFunc("DELETE /v1/baby_action/{id}", func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.actions, r.PathValue("id"))
		w.WriteHeader(http.StatusNoContent)
	})

	mux.HandleFunc("GET /v1/baby_profile_shares", func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		defer b.mu.Unlock()
		profileID := r.URL.Query().Get("profile_id")
		out := []wireShare{}
		for _, s := range b.shares {
			if profileID == "" || s.ProfileID == profileID {
				out = append(out, s)
			}
		}
		json.NewEncoder(w).Encode(out)
	})
	mux.HandleFunc("GET /v1/baby_profile_shares/{id}", func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		defer b.mu.Unlock()
		s, ok := b.shares[r.PathValue("id")]
		if !ok {
			http.NotFound(w, r)
			return
		}
		json.NewEncoder(w).Encode(s)
	})
	mux.HandleFunc("PUT /v1/baby_profile_shares/{id}", func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		defer b.mu.Unlock()
		var s wireShare
		json.NewDecoder(r.Body).Decode(&s)
		b.shares[s.ID] = s
		json.NewEncoder(w).Encode(s)
	})
	mux.HandleFunc("PATCH /v1/baby_profile_shares/{id}", func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		defer b.mu.Unlock()
		s, ok := b.shares[r.PathValue("id")]
		if !ok {
			http.NotFound(w, r)
			return
		}
		var patch map[string]string
		json.NewDecoder(r.Body).Decode(&patch)
		if status, ok := patch["status"]; ok {
			s.Status = status
		}
		b.shares[s.ID] = s
		json.NewEncoder(w).Encode(s)
	})

	return mux
}

func testClient(t *testing.T, backend *fakeBackend) *Client {
	t.Helper()
	server := httptest.NewServer(backend.handler())
	t.Cleanup(server.Close)

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	c, err := NewClient(Config{
		BaseURL: server.URL,
		APIKey:  "test-key",
		Email:   "parent@example.com",
		Secret:  "test-secret",
	}, logger)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return c
}

func (b *fakeBackend) authSeen() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return strings.HasPrefix(b.lastAuth, "Bearer ")
}
