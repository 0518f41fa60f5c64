// language.go: переключение языка UI.
package handlers

import (
	"net/http"
	"net/url"

	"github.com/bigkaa/jobboard/internal/ui/i18n"
)

// langCookieMaxAge: срок хранения выбранного языка (1 год).
const langCookieMaxAge = 365 * 24 * 60 * 60

// HandleSetLanguage: POST /set-language
// Устанавливает cookie "lang" и возвращает на предыдущую страницу того же хоста.
func HandleSetLanguage(w http.ResponseWriter, r *http.Request) {
	lang := r.FormValue("lang")
	if !i18n.Supported(lang) {
		lang = "en"
	}

	http.SetCookie(w, &http.Cookie{
		Name:     i18n.LangCookieName,
		Value:    lang,
		Path:     "/",
		MaxAge:   langCookieMaxAge,
		SameSite: http.SameSiteLaxMode,
	})

	http.Redirect(w, r, refererPath(r), http.StatusSeeOther)
}

// refererPath: путь из Referer, если он указывает на этот же хост.
func refererPath(r *http.Request) string {
	ref, err := url.Parse(r.Header.Get("Referer"))
	if err != nil || ref.Host != r.Host || ref.Path == "" {
		return "/"
	}
	if safeReturnTo(ref.RequestURI()) == "" {
		return "/"
	}
	return ref.RequestURI()
}
