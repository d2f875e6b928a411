package toktrie

import (
	"strings"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// invalidUTF8Marker replaces any byte span that isn't valid UTF-8 in the
// debug decoding below.
const invalidUTF8Marker = "<?>"

// TokensDbg renders ids as a human-readable string: runs of ordinary tokens
// are decoded and sanitized the way Decode/SanitizeUTF8 do, while special
// tokens (not part of the byte stream Decode produces, §3 invariant (iii))
// are rendered as a bracketed kind label so EOS and friends stay visible in
// a trace instead of silently vanishing (§4.1 "decode / tokens_dbg").
func (t *TokTrie) TokensDbg(ids []TokenId) string {
	var b strings.Builder
	var run []TokenId
	flush := func() {
		if len(run) == 0 {
			return
		}
		raw, err := t.Decode(run)
		if err != nil {
			b.WriteString(invalidUTF8Marker + " " + err.Error())
		} else {
			b.WriteString(SanitizeUTF8(raw))
		}
		run = run[:0]
	}
	for _, id := range ids {
		kind, special := t.IsSpecial(id)
		if !special {
			run = append(run, id)
			continue
		}
		flush()
		b.WriteString("<" + kind.String() + ">")
	}
	flush()
	return b.String()
}

// SanitizeUTF8 replaces invalid UTF-8 byte spans in raw with
// invalidUTF8Marker, using the same decoder the x/text encoding package uses
// to validate and repair UTF-8 streams (§4.1, "AMBIENT STACK").
func SanitizeUTF8(raw []byte) string {
	clean, _, err := transform.Bytes(unicode.UTF8.NewDecoder(), raw)
	if err != nil {
		// the decoder is lenient (it substitutes U+FFFD rather than
		// stopping), so this branch is defensive.
		return invalidUTF8Marker
	}
	return strings.ReplaceAll(string(clean), "�", invalidUTF8Marker)
}
