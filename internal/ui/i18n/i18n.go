// Пакет i18n: переводы интерфейса jobboard (en, ru).
// Язык запроса определяет Middleware: cookie "lang" → Accept-Language → en.
// Компоненты получают строки через T(ctx, key) и Tf(ctx, key, args...).
package i18n

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// DefaultLang: язык по умолчанию и fallback для отсутствующих ключей.
const DefaultLang = "en"

var (
	tags = map[string]language.Tag{
		"en": language.English,
		"ru": language.Russian,
	}
	matcher = language.NewMatcher([]language.Tag{language.English, language.Russian})
)

type contextKey struct{}

// Catalog: плоский каталог: ключ → строка (может быть формат-строкой).
type Catalog map[string]string

// Bundle: каталоги всех языков. Заполняется при старте, затем только читается.
type Bundle struct {
	mu       sync.RWMutex
	catalogs map[string]Catalog
	printers map[string]*message.Printer
	logger   *slog.Logger
}

// NewBundle создаёт пустой Bundle. logger может быть nil.
func NewBundle(logger *slog.Logger) *Bundle {
	return &Bundle{
		catalogs: make(map[string]Catalog),
		printers: make(map[string]*message.Printer),
		logger:   logger,
	}
}

// LoadMessages загружает JSON-каталог {"key": "строка"} для языка lang.
func (b *Bundle) LoadMessages(lang string, data []byte) error {
	var c Catalog
	if err := json.Unmarshal(data, &c); err != nil {
		return fmt.Errorf("i18n: ошибка парсинга каталога %s: %w", lang, err)
	}

	tag, ok := tags[lang]
	if !ok {
		tag = language.Make(lang)
	}

	b.mu.Lock()
	b.catalogs[lang] = c
	b.printers[lang] = message.NewPrinter(tag)
	b.mu.Unlock()

	if b.logger != nil {
		b.logger.Debug("i18n каталог загружен", slog.String("lang", lang), slog.Int("keys", len(c)))
	}
	return nil
}

func (b *Bundle) lookup(lang, key string) (string, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	msg, ok := b.catalogs[lang][key]
	return msg, ok
}

// Translate возвращает строку языка lang; при отсутствии - строку
// DefaultLang, затем сам ключ.
func (b *Bundle) Translate(lang, key string) string {
	if msg, ok := b.lookup(lang, key); ok {
		return msg
	}
	if msg, ok := b.lookup(DefaultLang, key); ok {
		return msg
	}
	return key
}

// Format переводит key и подставляет args с учётом правил языка
// (разделители разрядов: 12,345 в en и 12 345 в ru).
func (b *Bundle) Format(lang, key string, args ...any) string {
	b.mu.RLock()
	p, ok := b.printers[lang]
	if !ok {
		p = b.printers[DefaultLang]
	}
	b.mu.RUnlock()

	format := b.Translate(lang, key)
	if p == nil {
		return fmt.Sprintf(format, args...)
	}
	return p.Sprintf(message.Key(key, format), args...)
}

// Keys возвращает отсортированные ключи каталога lang.
func (b *Bundle) Keys(lang string) []string {
	b.mu.RLock()
	defer b.mu.RUnlock()

	keys := make([]string, 0, len(b.catalogs[lang]))
	for k := range b.catalogs[lang] {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Missing возвращает ключи DefaultLang, которых нет в каталоге lang.
func (b *Bundle) Missing(lang string) []string {
	var missing []string
	for _, k := range b.Keys(DefaultLang) {
		if _, ok := b.lookup(lang, k); !ok {
			missing = append(missing, k)
		}
	}
	return missing
}

// --- Глобальный Bundle ---

var global atomic.Pointer[Bundle]

// Init создаёт глобальный Bundle при первом вызове и возвращает его.
func Init(logger *slog.Logger) *Bundle {
	global.CompareAndSwap(nil, NewBundle(logger))
	return global.Load()
}

// GetBundle возвращает глобальный Bundle (nil до Init).
func GetBundle() *Bundle {
	return global.Load()
}

// WithLang помещает язык в контекст.
func WithLang(ctx context.Context, lang string) context.Context {
	return context.WithValue(ctx, contextKey{}, lang)
}

// LangFromContext возвращает язык запроса или DefaultLang.
func LangFromContext(ctx context.Context) string {
	if lang, ok := ctx.Value(contextKey{}).(string); ok && lang != "" {
		return lang
	}
	return DefaultLang
}

// T переводит key на язык запроса. Без Init возвращает сам ключ.
func T(ctx context.Context, key string) string {
	b := global.Load()
	if b == nil {
		return key
	}
	return b.Translate(LangFromContext(ctx), key)
}

// Tf переводит key и форматирует аргументы по правилам языка запроса.
func Tf(ctx context.Context, key string, args ...any) string {
	b := global.Load()
	if b == nil {
		return key + " " + fmt.Sprint(args...)
	}
	return b.Format(LangFromContext(ctx), key, args...)
}

// MatchLanguage выбирает "en" или "ru" по заголовку Accept-Language.
func MatchLanguage(acceptLanguage string) string {
	tag, _ := language.MatchStrings(matcher, acceptLanguage)
	if base, _ := tag.Base(); base.String() == "ru" {
		return "ru"
	}
	return DefaultLang
}
