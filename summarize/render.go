package summarize

import (
	"github.com/microcosm-cc/bluemonday"
	"github.com/russross/blackfriday/v2"
)

var htmlPolicy = bluemonday.UGCPolicy()

// RenderHTML converts a markdown summary to sanitized HTML for hosts that
// embed it directly.
func RenderHTML(markdown string) string {
	unsafe := blackfriday.Run([]byte(markdown))
	return string(htmlPolicy.SanitizeBytes(unsafe))
}
