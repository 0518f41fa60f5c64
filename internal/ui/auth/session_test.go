package auth

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/bigkaa/jobboard/internal/domain/role"
)

func newTestSessionManager(t *testing.T) *SessionManager {
	t.Helper()
	sm, err := NewSessionManager("test-secret", false, time.Hour)
	if err != nil {
		t.Fatalf("NewSessionManager() ошибка: %v", err)
	}
	return sm
}

// TestEncryptDecrypt проверяет шифрование и дешифрование сессии.
func TestEncryptDecrypt(t *testing.T) {
	sm := newTestSessionManager(t)

	original := &SessionData{
		Subject:   "u1",
		Username:  "acme-hr",
		Email:     "hr@acme.example.com",
		Role:      role.Company,
		Groups:    []string{"jobboard-companies"},
		ExpiresAt: time.Now().Add(time.Hour).Unix(),
	}

	encrypted, err := sm.Encrypt(original)
	if err != nil {
		t.Fatalf("Encrypt() ошибка: %v", err)
	}

	decrypted, err := sm.Decrypt(encrypted)
	if err != nil {
		t.Fatalf("Decrypt() ошибка: %v", err)
	}
	if decrypted.Subject != "u1" || decrypted.Role != role.Company || len(decrypted.Groups) != 1 {
		t.Errorf("после расшифровки: %+v", decrypted)
	}
}

// TestDecryptWithOtherKey проверяет, что чужой ключ не расшифровывает сессию.
func TestDecryptWithOtherKey(t *testing.T) {
	sm1 := newTestSessionManager(t)
	sm2, _ := NewSessionManager("other-secret", false, time.Hour)

	encrypted, _ := sm1.Encrypt(&SessionData{Subject: "u1"})
	if _, err := sm2.Decrypt(encrypted); err == nil {
		t.Error("Decrypt() чужим ключом должен вернуть ошибку")
	}
	if _, err := sm1.Decrypt("not-base64!"); err == nil {
		t.Error("Decrypt() мусора должен вернуть ошибку")
	}
}

func TestSessionCookieRoundTrip(t *testing.T) {
	sm := newTestSessionManager(t)

	rec := httptest.NewRecorder()
	if err := sm.SetSessionCookie(rec, &SessionData{Subject: "u1", Role: role.Admin}); err != nil {
		t.Fatalf("SetSessionCookie() ошибка: %v", err)
	}
	cookies := rec.Result().Cookies()
	if len(cookies) != 1 || !cookies[0].HttpOnly || cookies[0].Path != "/" || cookies[0].MaxAge != 3600 {
		t.Fatalf("cookie = %+v", cookies)
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(cookies[0])
	data, err := sm.GetSessionFromRequest(req)
	if err != nil || data == nil || data.Role != role.Admin {
		t.Errorf("GetSessionFromRequest() = %+v, %v", data, err)
	}

	data, err = sm.GetSessionFromRequest(httptest.NewRequest(http.MethodGet, "/", nil))
	if data != nil || err != nil {
		t.Errorf("без cookie: %+v, %v; хотели nil, nil", data, err)
	}
}

func TestStateCookie(t *testing.T) {
	sm := newTestSessionManager(t)

	rec := httptest.NewRecorder()
	if err := sm.SetStateCookie(rec, "state-1", "verifier-1", "/company"); err != nil {
		t.Fatalf("SetStateCookie() ошибка: %v", err)
	}
	cookie := rec.Result().Cookies()[0]

	req := httptest.NewRequest(http.MethodGet, "/auth/callback", nil)
	req.AddCookie(cookie)

	verifier, returnTo, err := sm.PopStateCookie(httptest.NewRecorder(), req, "state-1")
	if err != nil {
		t.Fatalf("PopStateCookie() ошибка: %v", err)
	}
	if verifier != "verifier-1" || returnTo != "/company" {
		t.Errorf("verifier=%q returnTo=%q", verifier, returnTo)
	}

	if _, _, err := sm.PopStateCookie(httptest.NewRecorder(), req, "forged"); err == nil {
		t.Error("PopStateCookie() с чужим state должен вернуть ошибку")
	}
}

func TestSealedValue_BoundToCookieName(t *testing.T) {
	sm := newTestSessionManager(t)

	rec := httptest.NewRecorder()
	if err := sm.SetStateCookie(rec, "state-1", "verifier-1", ""); err != nil {
		t.Fatalf("SetStateCookie() ошибка: %v", err)
	}
	stateValue := rec.Result().Cookies()[0].Value

	if _, err := sm.Decrypt(stateValue); err == nil {
		t.Error("значение cookie состояния не должно приниматься как сессия")
	}

	session, err := sm.Encrypt(&SessionData{Subject: "u1", Role: role.Admin})
	if err != nil {
		t.Fatalf("Encrypt() ошибка: %v", err)
	}
	req := httptest.NewRequest(http.MethodGet, "/auth/callback", nil)
	req.AddCookie(&http.Cookie{Name: stateCookieName, Value: session})
	if _, _, err := sm.PopStateCookie(httptest.NewRecorder(), req, "state-1"); err == nil {
		t.Error("значение cookie сессии не должно приниматься как состояние входа")
	}
}

func TestEncrypt_TooLarge(t *testing.T) {
	sm := newTestSessionManager(t)

	groups := make([]string, 200)
	for i := range groups {
		groups[i] = strings.Repeat("g", 40)
	}
	_, err := sm.Encrypt(&SessionData{Subject: "u1", Groups: groups})
	if !errors.Is(err, ErrCookieTooLarge) {
		t.Errorf("Encrypt() = %v, хотели ErrCookieTooLarge", err)
	}
}

func TestSessionData_IsExpired(t *testing.T) {
	now := time.Now()
	s := &SessionData{ExpiresAt: now.Add(time.Minute).Unix()}
	if s.IsExpired(now) {
		t.Error("сессия не должна истечь")
	}
	if !s.IsExpired(now.Add(2 * time.Minute)) {
		t.Error("сессия должна истечь")
	}
}
