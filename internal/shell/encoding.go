package shell

import (
	"strings"
	"unicode/utf8"

	"github.com/saintfish/chardet"
	"golang.org/x/text/encoding/htmlindex"
)

// normalizeOutput returns b as valid UTF-8. Output in another charset is
// transcoded when it can be detected; anything else gets replacement runes.
func normalizeOutput(b []byte) string {
	if utf8.Valid(b) {
		return string(b)
	}

	if res, err := chardet.NewTextDetector().DetectBest(b); err == nil && res.Charset != "UTF-8" {
		if enc, err := htmlindex.Get(res.Charset); err == nil {
			if out, err := enc.NewDecoder().Bytes(b); err == nil && utf8.Valid(out) {
				return string(out)
			}
		}
	}

	return strings.ToValidUTF8(string(b), "�")
}
