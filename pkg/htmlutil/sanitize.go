package htmlutil

import (
	"github.com/microcosm-cc/bluemonday"
)

// markupPolicy keeps presentational markup and drops anything executable or
// externally loaded.
var markupPolicy = func() *bluemonday.Policy {
	p := bluemonday.UGCPolicy()
	p.AllowAttrs("class").Globally()
	p.AllowAttrs("epub:type").Globally()
	return p
}()

// Sanitize returns markup that is safe to hand to a presentation layer.
func Sanitize(s string) string {
	if s == "" {
		return ""
	}
	return markupPolicy.Sanitize(s)
}
