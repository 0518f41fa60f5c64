package auth

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/MicahParks/keyfunc/v3"
	"github.com/golang-jwt/jwt/v5"

	"github.com/bigkaa/jobboard/internal/domain/role"
)

const (
	testKeyID  = "test-key-jb"
	testIssuer = "https://keycloak.test/realms/jobboard"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func generateTestKey(t *testing.T) *rsa.PrivateKey {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatal(err)
	}
	return key
}

// buildJWKSetJSON строит JWKS JSON из RSA публичного ключа.
func buildJWKSetJSON(pub *rsa.PublicKey, kid string) json.RawMessage {
	jwks := map[string]any{
		"keys": []map[string]any{
			{
				"kty": "RSA",
				"kid": kid,
				"use": "sig",
				"alg": "RS256",
				"n":   base64.RawURLEncoding.EncodeToString(pub.N.Bytes()),
				"e":   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(pub.E)).Bytes()),
			},
		},
	}
	data, _ := json.Marshal(jwks)
	return data
}

func newTestVerifier(t *testing.T, key *rsa.PrivateKey) *TokenVerifier {
	t.Helper()
	kf, err := keyfunc.NewJWKSetJSON(buildJWKSetJSON(&key.PublicKey, testKeyID))
	if err != nil {
		t.Fatalf("не удалось создать keyfunc: %v", err)
	}
	return NewTokenVerifierWithKeyfunc(kf, testIssuer, 0, role.GroupMapping{
		AdminGroups:     []string{"jobboard-admins"},
		CompanyGroups:   []string{"jobboard-companies"},
		CandidateGroups: []string{"jobboard-candidates"},
	}, testLogger())
}

func signToken(t *testing.T, key *rsa.PrivateKey, sub string, groups []string, exp time.Time) string {
	t.Helper()
	claims := jwt.MapClaims{
		"sub":                sub,
		"preferred_username": sub + "-name",
		"iss":                testIssuer,
		"exp":                jwt.NewNumericDate(exp),
		"iat":                jwt.NewNumericDate(time.Now()),
		"groups":             groups,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = testKeyID
	s, err := token.SignedString(key)
	if err != nil {
		t.Fatalf("подпись токена: %v", err)
	}
	return s
}

// --- Фейковые провайдеры ---

type funcProvider func(ctx context.Context, r *http.Request) (Session, error)

func (f funcProvider) Lookup(ctx context.Context, r *http.Request) (Session, error) {
	return f(ctx, r)
}

func assertAnonymous(t *testing.T, s Session) {
	t.Helper()
	if s.Identity != nil || s.Role != role.Anonymous {
		t.Errorf("сессия = %+v, хотели {nil, anonymous}", s)
	}
}

// --- Resolver ---

func TestResolve_ProviderErrorYieldsAnonymous(t *testing.T) {
	failing := funcProvider(func(context.Context, *http.Request) (Session, error) {
		// Частично заполненный результат вместе с ошибкой не должен просочиться.
		return Session{Identity: &Identity{ID: "u1"}, Role: role.Admin}, errors.New("idp недоступен")
	})
	rs := NewResolver(time.Second, testLogger(), failing)

	assertAnonymous(t, rs.Resolve(httptest.NewRequest(http.MethodGet, "/", nil)))
}

func TestResolve_TimeoutYieldsAnonymous(t *testing.T) {
	slow := funcProvider(func(ctx context.Context, _ *http.Request) (Session, error) {
		select {
		case <-time.After(5 * time.Second):
			return Session{Identity: &Identity{ID: "late"}, Role: role.Admin}, nil
		case <-ctx.Done():
			return Anonymous, ctx.Err()
		}
	})
	rs := NewResolver(50*time.Millisecond, testLogger(), slow)

	start := time.Now()
	assertAnonymous(t, rs.Resolve(httptest.NewRequest(http.MethodGet, "/", nil)))
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("Resolve() занял %v, ожидался таймаут ~50ms", elapsed)
	}
}

func TestResolve_HangingProviderYieldsAnonymous(t *testing.T) {
	block := make(chan struct{})
	defer close(block)
	hanging := funcProvider(func(context.Context, *http.Request) (Session, error) {
		<-block // игнорирует контекст
		return Session{Identity: &Identity{ID: "late"}}, nil
	})
	rs := NewResolver(20*time.Millisecond, testLogger(), hanging)

	assertAnonymous(t, rs.Resolve(httptest.NewRequest(http.MethodGet, "/", nil)))
}

func TestResolve_PanicYieldsAnonymous(t *testing.T) {
	panicking := funcProvider(func(context.Context, *http.Request) (Session, error) {
		panic("boom")
	})
	rs := NewResolver(time.Second, testLogger(), panicking)

	assertAnonymous(t, rs.Resolve(httptest.NewRequest(http.MethodGet, "/", nil)))
}

func TestResolve_ProviderOrder(t *testing.T) {
	none := funcProvider(func(context.Context, *http.Request) (Session, error) {
		return Anonymous, ErrNoSession
	})
	company := funcProvider(func(context.Context, *http.Request) (Session, error) {
		return Session{Identity: &Identity{ID: "u1"}, Role: role.Company}, nil
	})
	rs := NewResolver(time.Second, testLogger(), none, company)

	s := rs.Resolve(httptest.NewRequest(http.MethodGet, "/", nil))
	if s.Subject() != "u1" || s.Role != role.Company {
		t.Errorf("сессия = %+v, хотели u1/company", s)
	}

	assertAnonymous(t, NewResolver(time.Second, testLogger(), none).Resolve(httptest.NewRequest(http.MethodGet, "/", nil)))
}

func TestResolve_Normalization(t *testing.T) {
	tests := []struct {
		name     string
		in       Session
		wantID   string
		wantRole role.Role
	}{
		{name: "роль без пользователя", in: Session{Role: role.Admin}, wantRole: role.Anonymous},
		{name: "пользователь без роли", in: Session{Identity: &Identity{ID: "u1"}}, wantID: "u1", wantRole: role.Anonymous},
		{name: "неизвестная роль", in: Session{Identity: &Identity{ID: "u1"}, Role: role.Role(99)}, wantID: "u1", wantRole: role.Anonymous},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := funcProvider(func(context.Context, *http.Request) (Session, error) { return tt.in, nil })
			s := NewResolver(time.Second, testLogger(), p).Resolve(httptest.NewRequest(http.MethodGet, "/", nil))
			if s.Subject() != tt.wantID || s.Role != tt.wantRole {
				t.Errorf("сессия = %q/%v, хотели %q/%v", s.Subject(), s.Role, tt.wantID, tt.wantRole)
			}
		})
	}
}

// --- CookieProvider ---

func TestCookieProvider(t *testing.T) {
	sm := newTestSessionManager(t)
	provider := NewCookieProvider(sm)

	cookieFor := func(data *SessionData) *http.Cookie {
		rec := httptest.NewRecorder()
		if err := sm.SetSessionCookie(rec, data); err != nil {
			t.Fatalf("SetSessionCookie: %v", err)
		}
		return rec.Result().Cookies()[0]
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(cookieFor(&SessionData{Subject: "u2", Role: role.Candidate, ExpiresAt: time.Now().Add(time.Hour).Unix()}))
	s, err := provider.Lookup(context.Background(), req)
	if err != nil || s.Subject() != "u2" || s.Role != role.Candidate {
		t.Errorf("Lookup() = %+v, %v", s, err)
	}

	expired := httptest.NewRequest(http.MethodGet, "/", nil)
	expired.AddCookie(cookieFor(&SessionData{Subject: "u2", Role: role.Candidate, ExpiresAt: time.Now().Add(-time.Minute).Unix()}))
	if _, err := provider.Lookup(context.Background(), expired); !errors.Is(err, ErrSessionExpired) {
		t.Errorf("Lookup(истёкшая) = %v, хотели ErrSessionExpired", err)
	}

	if _, err := provider.Lookup(context.Background(), httptest.NewRequest(http.MethodGet, "/", nil)); !errors.Is(err, ErrNoSession) {
		t.Errorf("Lookup(без cookie) = %v, хотели ErrNoSession", err)
	}

	// Подделанный cookie через Resolver - анонимный доступ
	forged := httptest.NewRequest(http.MethodGet, "/", nil)
	forged.AddCookie(&http.Cookie{Name: SessionCookieName, Value: "Zm9yZ2Vk"})
	assertAnonymous(t, NewResolver(time.Second, testLogger(), provider).Resolve(forged))
}

// --- BearerProvider / TokenVerifier ---

func TestBearerProvider(t *testing.T) {
	key := generateTestKey(t)
	provider := NewBearerProvider(newTestVerifier(t, key))

	tests := []struct {
		name     string
		header   string
		wantErr  bool
		noSess   bool
		wantRole role.Role
	}{
		{name: "без заголовка", noSess: true},
		{name: "admin", header: "Bearer " + signToken(t, key, "a1", []string{"/jobboard-admins"}, time.Now().Add(time.Hour)), wantRole: role.Admin},
		{name: "company", header: "Bearer " + signToken(t, key, "c1", []string{"jobboard-companies"}, time.Now().Add(time.Hour)), wantRole: role.Company},
		{name: "без групп", header: "Bearer " + signToken(t, key, "x1", nil, time.Now().Add(time.Hour)), wantRole: role.Anonymous},
		{name: "просроченный", header: "Bearer " + signToken(t, key, "c1", []string{"jobboard-companies"}, time.Now().Add(-time.Hour)), wantErr: true},
		{name: "чужой ключ", header: "Bearer " + signToken(t, generateTestKey(t), "c1", nil, time.Now().Add(time.Hour)), wantErr: true},
		{name: "не Bearer", header: "Basic dXNlcjpwYXNz", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/rpc/job.list", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			s, err := provider.Lookup(context.Background(), req)
			switch {
			case tt.noSess:
				if !errors.Is(err, ErrNoSession) {
					t.Errorf("Lookup() = %v, хотели ErrNoSession", err)
				}
			case tt.wantErr:
				if err == nil {
					t.Error("Lookup() ожидалась ошибка")
				}
			default:
				if err != nil {
					t.Fatalf("Lookup() ошибка: %v", err)
				}
				if s.Role != tt.wantRole || s.Identity == nil {
					t.Errorf("сессия = %+v, хотели роль %v", s, tt.wantRole)
				}
			}
		})
	}
}

func TestSessionContext(t *testing.T) {
	assertAnonymous(t, FromContext(context.Background()))

	s := Session{Identity: &Identity{ID: "u1"}, Role: role.Company}
	got := FromContext(WithSession(context.Background(), s))
	if got.Subject() != "u1" || got.Role != role.Company || !got.Authenticated() {
		t.Errorf("FromContext() = %+v", got)
	}
}
