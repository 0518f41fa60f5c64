package layout

import (
	"context"
	"encoding/json"
	"io"

	"github.com/a-h/templ"
)

// HydrationScriptID: id элемента с payload гидратации.
const HydrationScriptID = "jb-hydration"

// hydrationScript вызывает hydration только при рендеринге, то есть после
// body. JSONScript экранирует <, > и &, поэтому payload безопасен внутри <script>.
func hydrationScript(hydration func() ([]byte, error)) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		payload, err := hydration()
		if err != nil {
			return err
		}
		return templ.JSONScript(HydrationScriptID, json.RawMessage(payload)).Render(ctx, w)
	})
}
