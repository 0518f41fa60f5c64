package i18n

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
)

func loadedBundle(t *testing.T) *Bundle {
	t.Helper()
	b := NewBundle(nil)
	if err := LoadFromEmbedFS(b, slog.New(slog.NewTextHandler(io.Discard, nil))); err != nil {
		t.Fatalf("LoadFromEmbedFS: %v", err)
	}
	return b
}

func TestCatalogs_SameKeys(t *testing.T) {
	b := loadedBundle(t)

	en := b.Keys("en")
	ru := b.Keys("ru")

	if len(en) == 0 {
		t.Fatal("каталог en пуст")
	}
	ruSet := make(map[string]bool, len(ru))
	for _, k := range ru {
		ruSet[k] = true
	}
	for _, k := range en {
		if !ruSet[k] {
			t.Errorf("ключ %q отсутствует в ru", k)
		}
	}
	if len(en) != len(ru) {
		t.Errorf("разное число ключей: en=%d ru=%d", len(en), len(ru))
	}
	if missing := b.Missing("ru"); len(missing) != 0 {
		t.Errorf("Missing(ru) = %v", missing)
	}
}

func TestFormat_LocalizedNumbers(t *testing.T) {
	b := NewBundle(nil)
	if err := b.LoadMessages("en", []byte(`{"jobs.total":"%d openings found"}`)); err != nil {
		t.Fatal(err)
	}
	if err := b.LoadMessages("ru", []byte(`{}`)); err != nil {
		t.Fatal(err)
	}

	if got := b.Format("en", "jobs.total", 12345); got != "12,345 openings found" {
		t.Errorf("Format(en) = %q", got)
	}
	// ru без перевода: строка из en, но разряды по правилам ru
	if got := b.Format("ru", "jobs.total", 12345); got == "12,345 openings found" || got == "12345 openings found" {
		t.Errorf("Format(ru) = %q, ожидалось форматирование чисел по правилам ru", got)
	}
	if got := b.Missing("ru"); len(got) != 1 || got[0] != "jobs.total" {
		t.Errorf("Missing(ru) = %v", got)
	}
}

func TestTranslate_Fallback(t *testing.T) {
	b := NewBundle(nil)
	if err := b.LoadMessages("en", []byte(`{"a":"A","b":"B"}`)); err != nil {
		t.Fatal(err)
	}
	if err := b.LoadMessages("ru", []byte(`{"a":"А"}`)); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		lang, key, want string
	}{
		{"ru", "a", "А"},
		{"ru", "b", "B"},
		{"ru", "missing", "missing"},
		{"de", "a", "A"},
	}
	for _, tt := range tests {
		if got := b.Translate(tt.lang, tt.key); got != tt.want {
			t.Errorf("Translate(%q, %q) = %q, ожидалось %q", tt.lang, tt.key, got, tt.want)
		}
	}
}

func TestLoadMessages_InvalidJSON(t *testing.T) {
	if err := NewBundle(nil).LoadMessages("en", []byte(`{`)); err == nil {
		t.Error("ожидалась ошибка парсинга")
	}
}

func TestMatchLanguage(t *testing.T) {
	tests := map[string]string{
		"ru-RU,ru;q=0.9,en;q=0.8": "ru",
		"en-US,en;q=0.9":          "en",
		"de-DE":                   "en",
		"":                        "en",
	}
	for in, want := range tests {
		if got := MatchLanguage(in); got != want {
			t.Errorf("MatchLanguage(%q) = %q, ожидалось %q", in, got, want)
		}
	}
}

func TestMiddleware_DetectsLanguage(t *testing.T) {
	tests := []struct {
		name   string
		cookie string
		accept string
		want   string
	}{
		{"cookie важнее заголовка", "ru", "en-US", "ru"},
		{"неподдерживаемый cookie", "de", "ru-RU", "ru"},
		{"Accept-Language", "", "ru", "ru"},
		{"по умолчанию", "", "", "en"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got string
			h := Middleware()(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
				got = LangFromContext(r.Context())
			}))

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.cookie != "" {
				req.AddCookie(&http.Cookie{Name: LangCookieName, Value: tt.cookie})
			}
			if tt.accept != "" {
				req.Header.Set("Accept-Language", tt.accept)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			if got != tt.want {
				t.Errorf("язык = %q, ожидалось %q", got, tt.want)
			}
			if rec.Header().Get("Content-Language") != tt.want {
				t.Errorf("Content-Language = %q", rec.Header().Get("Content-Language"))
			}
		})
	}
}

func TestLangFromContext_Default(t *testing.T) {
	if got := LangFromContext(context.Background()); got != "en" {
		t.Errorf("LangFromContext() = %q, ожидалось en", got)
	}
}
