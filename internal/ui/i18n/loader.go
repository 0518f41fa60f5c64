package i18n

import (
	"embed"
	"fmt"
	"log/slog"
)

//go:embed locales/*.json
var localeFS embed.FS

// Languages: языки интерфейса в порядке показа в переключателе.
var Languages = []string{"en", "ru"}

// LoadFromEmbedFS загружает встроенные каталоги всех Languages.
// Неполный каталог не ошибка: недостающие ключи берутся из DefaultLang
// и перечисляются в предупреждении.
func LoadFromEmbedFS(bundle *Bundle, logger *slog.Logger) error {
	for _, lang := range Languages {
		data, err := localeFS.ReadFile("locales/" + lang + ".json")
		if err != nil {
			return fmt.Errorf("i18n: нет каталога %s: %w", lang, err)
		}
		if err := bundle.LoadMessages(lang, data); err != nil {
			return err
		}
	}

	for _, lang := range Languages {
		if missing := bundle.Missing(lang); len(missing) > 0 {
			logger.Warn("В каталоге не хватает переводов",
				slog.String("lang", lang),
				slog.Any("keys", missing),
			)
		}
	}

	logger.Info("i18n каталоги загружены",
		slog.Int("languages", len(Languages)),
		slog.Int("keys", len(bundle.Keys(DefaultLang))),
	)
	return nil
}
