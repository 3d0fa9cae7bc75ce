package session

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// memStore - TokenStore в памяти для тестов
type memStore struct {
	token string
}

func (s *memStore) SaveBackendToken(token string) error { s.token = token; return nil }
func (s *memStore) LoadBackendToken() (string, error)   { return s.token, nil }
func (s *memStore) ClearBackendToken() error            { s.token = ""; return nil }

func TestLoginSendsForm(t *testing.T) {
	var gotContentType, gotUsername, gotPassword string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/auth/token" {
			t.Errorf("path = %s, want /auth/token", r.URL.Path)
		}
		gotContentType = r.Header.Get("Content-Type")

		r.ParseForm()
		gotUsername = r.PostFormValue("username")
		gotPassword = r.PostFormValue("password")

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token":"tok123","token_type":"bearer"}`))
	}))
	defer srv.Close()

	store := &memStore{}
	m := New(srv.URL, store, testLogger())

	if !m.Login(context.Background(), "admin", "secret") {
		t.Fatal("login must succeed")
	}

	if gotContentType != "application/x-www-form-urlencoded" {
		t.Errorf("content type = %q, want form-urlencoded", gotContentType)
	}
	if gotUsername != "admin" || gotPassword != "secret" {
		t.Errorf("credentials = %q/%q, want admin/secret", gotUsername, gotPassword)
	}

	if m.Token() != "tok123" {
		t.Errorf("token = %q, want tok123", m.Token())
	}
	if !m.Authenticated() {
		t.Error("session must be authenticated after login")
	}
	if store.token != "tok123" {
		t.Errorf("persisted token = %q, want tok123", store.token)
	}
}

func TestLoginFailureReportsWithoutStateChange(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"detail":"Incorrect username or password"}`))
	}))
	defer srv.Close()

	m := New(srv.URL, nil, testLogger())

	var reported string
	m.SetErrorHandler(func(message string) { reported = message })

	if m.Login(context.Background(), "admin", "wrong") {
		t.Fatal("login must fail")
	}

	if reported != "Incorrect username or password" {
		t.Errorf("reported = %q, want backend detail", reported)
	}
	if m.Authenticated() || m.Token() != "" {
		t.Error("failed login must not change session state")
	}
}

func TestLogoutIdempotent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"access_token":"tok","token_type":"bearer"}`))
	}))
	defer srv.Close()

	store := &memStore{}
	m := New(srv.URL, store, testLogger())

	var changes []bool
	m.SetChangeHandler(func(authenticated bool) { changes = append(changes, authenticated) })

	m.Login(context.Background(), "u", "p")
	m.Logout()
	m.Logout() // повторный вызов не шлёт второе уведомление

	if m.Authenticated() || m.Token() != "" {
		t.Error("session must be cleared after logout")
	}
	if store.token != "" {
		t.Error("persisted token must be cleared")
	}
	if len(changes) != 2 || changes[0] != true || changes[1] != false {
		t.Errorf("changes = %v, want [true false]", changes)
	}
}

func TestExpireFunnel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"access_token":"tok","token_type":"bearer"}`))
	}))
	defer srv.Close()

	m := New(srv.URL, nil, testLogger())

	var reported []string
	m.SetErrorHandler(func(message string) { reported = append(reported, message) })

	// Expire без сессии - no-op
	m.Expire()
	if len(reported) != 0 {
		t.Errorf("reported = %v, want none before login", reported)
	}

	m.Login(context.Background(), "u", "p")

	// Несколько параллельных 401 схлопываются в одно уведомление
	m.Expire()
	m.Expire()

	if m.Authenticated() {
		t.Error("session must be dead after expire")
	}
	if len(reported) != 1 || reported[0] != "Session expired. Please log in again." {
		t.Errorf("reported = %v, want single expiry message", reported)
	}
}

func TestRestoreIgnoresMissingToken(t *testing.T) {
	m := New("http://unused", &memStore{}, testLogger())

	if m.Restore() {
		t.Error("restore with empty store must fail")
	}
	if m.Authenticated() {
		t.Error("session must stay unauthenticated")
	}
}
