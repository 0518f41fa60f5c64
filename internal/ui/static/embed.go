// Пакет static: встроенные ресурсы jobboard UI: стили и скрипт
// клиентской догрузки данных (hydrate.js).
package static

import (
	"crypto/sha256"
	"embed"
	"encoding/hex"
	"io/fs"
	"net/http"
	"strings"
	"sync"
)

//go:embed css/app.css js/hydrate.js
var content embed.FS

// FS: встроенные файлы без префикса /static/.
func FS() fs.FS {
	return content
}

var versions = sync.OnceValue(func() map[string]string {
	out := make(map[string]string)
	_ = fs.WalkDir(content, ".", func(name string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		data, err := fs.ReadFile(content, name)
		if err != nil {
			return err
		}
		sum := sha256.Sum256(data)
		out[name] = hex.EncodeToString(sum[:4])
		return nil
	})
	return out
})

// URL возвращает адрес ресурса с хешем содержимого в параметре v.
// После обновления бинаря адрес меняется, и браузер не берёт старую
// копию из кэша.
func URL(name string) string {
	if v, ok := versions()[name]; ok {
		return "/static/" + name + "?v=" + v
	}
	return "/static/" + name
}

// Handler раздаёт ресурсы под префиксом /static/. Запрос с актуальным
// хешем кэшируется навсегда, остальные - на час. Отсутствующий файл
// отдаётся как 404 без заголовка кэширования.
func Handler() http.Handler {
	files := http.StripPrefix("/static/", http.FileServerFS(content))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		name := strings.TrimPrefix(r.URL.Path, "/static/")
		if _, err := fs.Stat(content, name); err != nil {
			http.NotFound(w, r)
			return
		}
		if v := r.URL.Query().Get("v"); v != "" && v == versions()[name] {
			w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
		} else {
			w.Header().Set("Cache-Control", "public, max-age=3600")
		}
		files.ServeHTTP(w, r)
	})
}
