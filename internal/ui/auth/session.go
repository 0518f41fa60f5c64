// Пакет auth: аутентификация и сессии jobboard.
// Шифрование сессий AES-256-GCM, OIDC-клиент для Keycloak (PKCE),
// проверка JWT через JWKS и определение сессии запроса (Resolver).
package auth

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/bigkaa/jobboard/internal/domain/role"
)

const (
	// SessionCookieName: cookie с зашифрованной сессией UI.
	SessionCookieName = "jobboard_session"

	stateCookieName = "jobboard_oidc"
	statePath       = "/auth"
	stateTTL        = 10 * time.Minute

	// Браузеры отбрасывают cookie длиннее 4 КиБ молча, поэтому
	// превышение лучше обнаружить при записи.
	maxCookieValue = 4000
)

// ErrCookieTooLarge: зашифрованное значение не помещается в cookie.
var ErrCookieTooLarge = errors.New("сессия не помещается в cookie")

// SessionData: содержимое cookie сессии.
type SessionData struct {
	Subject  string    `json:"sub"`
	Username string    `json:"username"`
	Email    string    `json:"email,omitempty"`
	Role     role.Role `json:"role"`
	Groups   []string  `json:"groups,omitempty"`
	// ExpiresAt: Unix-время окончания сессии.
	ExpiresAt int64 `json:"expires_at"`
	// IDToken нужен только как id_token_hint при выходе.
	IDToken string `json:"id_token,omitempty"`
}

// IsExpired сообщает, закончилась ли сессия к моменту now.
func (s *SessionData) IsExpired(now time.Time) bool {
	return now.Unix() >= s.ExpiresAt
}

// loginState переживает редирект на Keycloak и обратно.
type loginState struct {
	State        string `json:"state"`
	CodeVerifier string `json:"code_verifier"`
	ReturnTo     string `json:"return_to,omitempty"`
}

// SessionManager хранит сессию и состояние входа в cookie, зашифрованных
// AES-256-GCM. Имя cookie участвует в шифровании как дополнительные
// данные: значение одной cookie не расшифруется под именем другой.
type SessionManager struct {
	aead   cipher.AEAD
	secure bool
	ttl    time.Duration
}

// NewSessionManager создаёт менеджер сессий. Ключ принимается в base64
// (ровно 32 байта) либо как пароль, из которого берётся SHA-256. Пустой
// ключ заменяется случайным: сессии тогда не переживают перезапуск.
func NewSessionManager(secret string, secure bool, ttl time.Duration) (*SessionManager, error) {
	key, err := sessionKey(secret)
	if err != nil {
		return nil, err
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("AES: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("GCM: %w", err)
	}

	return &SessionManager{aead: aead, secure: secure, ttl: ttl}, nil
}

func sessionKey(secret string) ([]byte, error) {
	if secret == "" {
		key := make([]byte, 32)
		if _, err := rand.Read(key); err != nil {
			return nil, fmt.Errorf("генерация ключа сессии: %w", err)
		}
		return key, nil
	}
	if raw, err := base64.StdEncoding.DecodeString(secret); err == nil && len(raw) == 32 {
		return raw, nil
	}
	sum := sha256.Sum256([]byte(secret))
	return sum[:], nil
}

// TTL: время жизни новой сессии.
func (sm *SessionManager) TTL() time.Duration {
	return sm.ttl
}

// seal возвращает base64url(nonce || ciphertext), привязанный к cookie name.
func (sm *SessionManager) seal(name string, v any) (string, error) {
	plaintext, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("сериализация %s: %w", name, err)
	}

	nonce := make([]byte, sm.aead.NonceSize(), sm.aead.NonceSize()+len(plaintext)+sm.aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("генерация nonce: %w", err)
	}

	value := base64.RawURLEncoding.EncodeToString(sm.aead.Seal(nonce, nonce, plaintext, []byte(name)))
	if len(value) > maxCookieValue {
		return "", fmt.Errorf("%w: %s, %d байт", ErrCookieTooLarge, name, len(value))
	}
	return value, nil
}

func (sm *SessionManager) open(name, value string, v any) error {
	sealed, err := base64.RawURLEncoding.DecodeString(value)
	if err != nil {
		return fmt.Errorf("cookie %s: %w", name, err)
	}
	n := sm.aead.NonceSize()
	if len(sealed) < n+sm.aead.Overhead() {
		return fmt.Errorf("cookie %s: значение обрезано", name)
	}

	plaintext, err := sm.aead.Open(nil, sealed[:n], sealed[n:], []byte(name))
	if err != nil {
		return fmt.Errorf("cookie %s не расшифровывается: %w", name, err)
	}
	if err := json.Unmarshal(plaintext, v); err != nil {
		return fmt.Errorf("cookie %s: %w", name, err)
	}
	return nil
}

// Encrypt запечатывает сессию в значение cookie.
func (sm *SessionManager) Encrypt(data *SessionData) (string, error) {
	return sm.seal(SessionCookieName, data)
}

// Decrypt восстанавливает сессию из значения cookie.
func (sm *SessionManager) Decrypt(value string) (*SessionData, error) {
	data := new(SessionData)
	if err := sm.open(SessionCookieName, value, data); err != nil {
		return nil, err
	}
	return data, nil
}

func (sm *SessionManager) cookie(name, value, path string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     path,
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   sm.secure,
		SameSite: http.SameSiteLaxMode,
	}
}

// SetSessionCookie выдаёт cookie сессии на время TTL.
func (sm *SessionManager) SetSessionCookie(w http.ResponseWriter, data *SessionData) error {
	value, err := sm.Encrypt(data)
	if err != nil {
		return err
	}
	http.SetCookie(w, sm.cookie(SessionCookieName, value, "/", int(sm.ttl.Seconds())))
	return nil
}

// GetSessionFromRequest читает сессию запроса. Отсутствие cookie - не
// ошибка: возвращается nil, nil.
func (sm *SessionManager) GetSessionFromRequest(r *http.Request) (*SessionData, error) {
	c, err := r.Cookie(SessionCookieName)
	if errors.Is(err, http.ErrNoCookie) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return sm.Decrypt(c.Value)
}

// ClearSessionCookie удаляет cookie сессии.
func (sm *SessionManager) ClearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, sm.cookie(SessionCookieName, "", "/", -1))
}

// SetStateCookie запоминает state, PKCE verifier и адрес возврата до
// прихода пользователя на /auth/callback.
func (sm *SessionManager) SetStateCookie(w http.ResponseWriter, state, codeVerifier, returnTo string) error {
	value, err := sm.seal(stateCookieName, loginState{State: state, CodeVerifier: codeVerifier, ReturnTo: returnTo})
	if err != nil {
		return err
	}
	http.SetCookie(w, sm.cookie(stateCookieName, value, statePath, int(stateTTL.Seconds())))
	return nil
}

// PopStateCookie одноразово читает состояние входа: cookie удаляется
// при любом исходе. Ошибка возвращается, если cookie нет, она повреждена
// или state из ответа Keycloak не совпадает с сохранённым.
func (sm *SessionManager) PopStateCookie(w http.ResponseWriter, r *http.Request, state string) (codeVerifier, returnTo string, err error) {
	c, err := r.Cookie(stateCookieName)
	if err != nil {
		return "", "", fmt.Errorf("нет cookie состояния входа: %w", err)
	}
	http.SetCookie(w, sm.cookie(stateCookieName, "", statePath, -1))

	var st loginState
	if err := sm.open(stateCookieName, c.Value, &st); err != nil {
		return "", "", err
	}
	if state == "" || subtle.ConstantTimeCompare([]byte(st.State), []byte(state)) != 1 {
		return "", "", errors.New("state не совпадает")
	}
	return st.CodeVerifier, st.ReturnTo, nil
}
