package monitor

import "github.com/charmbracelet/glamour"

// noMarginStyle inherits from auto (dark/light detection) but removes the
// document margin so rendered reports align with the rest of the view.
const noMarginStyle = `{
	"document": {
		"margin": 0,
		"block_prefix": "",
		"block_suffix": ""
	}
}`

// renderMarkdown styles a report for terminal display, falling back to the
// raw text when the renderer cannot be built.
func renderMarkdown(content string, width int) string {
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithStylesFromJSONBytes([]byte(noMarginStyle)),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return content
	}
	out, err := r.Render(content)
	if err != nil {
		return content
	}
	return out
}
