package light

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
)

// encodingFromLocale extracts the codeset suffix of a locale such as
// "en_US.windows-1252", falling back to windows-1252.
func encodingFromLocale(locale string) string {
	if i := strings.IndexByte(locale, '.'); i >= 0 && i+1 < len(locale) {
		return locale[i+1:]
	}

	return "windows-1252"
}

var charsetAliases = map[string]encoding.Encoding{
	"windows-1250": charmap.Windows1250,
	"cp1250":       charmap.Windows1250,
	"windows-1251": charmap.Windows1251,
	"cp1251":       charmap.Windows1251,
	"windows-1252": charmap.Windows1252,
	"cp1252":       charmap.Windows1252,
	"windows-1253": charmap.Windows1253,
	"cp1253":       charmap.Windows1253,
	"windows-1254": charmap.Windows1254,
	"cp1254":       charmap.Windows1254,
	"windows-1255": charmap.Windows1255,
	"cp1255":       charmap.Windows1255,
	"windows-1256": charmap.Windows1256,
	"cp1256":       charmap.Windows1256,
	"windows-1257": charmap.Windows1257,
	"cp1257":       charmap.Windows1257,
	"windows-1258": charmap.Windows1258,
	"cp1258":       charmap.Windows1258,
	"iso-8859-1":   charmap.ISO8859_1,
	"iso8859-1":    charmap.ISO8859_1,
	"latin1":       charmap.ISO8859_1,
	"iso-8859-2":   charmap.ISO8859_2,
	"iso-8859-15":  charmap.ISO8859_15,
	"cp850":        charmap.CodePage850,
	"cp437":        charmap.CodePage437,
	"koi8-r":       charmap.KOI8R,
}

// newRecoder returns a function converting strings from the named charset
// to UTF-8. Strings that already are valid UTF-8 pass through unchanged,
// and so do names for UTF-8 itself or charsets without a table.
func newRecoder(charset string) func(string) string {
	name := strings.ToLower(strings.TrimSpace(charset))
	switch name {
	case "", "utf-8", "utf8", "65001":
		return func(s string) string { return s }
	}
	enc, ok := charsetAliases[name]
	if !ok {
		enc = charmap.Windows1252
	}

	return func(s string) string {
		if utf8.ValidString(s) {
			return s
		}
		out, err := enc.NewDecoder().String(s)
		if err != nil {
			return s
		}

		return out
	}
}
