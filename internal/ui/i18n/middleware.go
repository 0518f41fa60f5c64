package i18n

import (
	"net/http"
	"slices"
)

// LangCookieName: cookie с выбранным языком (ставит POST /set-language).
const LangCookieName = "lang"

// Middleware кладёт язык запроса в контекст. Разметка страниц зависит
// от языка, поэтому ответ помечается Vary и Content-Language.
func Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			lang := detectLanguage(r)
			w.Header().Add("Vary", "Accept-Language")
			w.Header().Add("Vary", "Cookie")
			w.Header().Set("Content-Language", lang)
			next.ServeHTTP(w, r.WithContext(WithLang(r.Context(), lang)))
		})
	}
}

// Supported сообщает, есть ли интерфейс на языке lang.
func Supported(lang string) bool {
	return slices.Contains(Languages, lang)
}

func detectLanguage(r *http.Request) string {
	if cookie, err := r.Cookie(LangCookieName); err == nil && Supported(cookie.Value) {
		return cookie.Value
	}
	if accept := r.Header.Get("Accept-Language"); accept != "" {
		return MatchLanguage(accept)
	}
	return DefaultLang
}
