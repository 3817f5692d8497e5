package bib

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// Combining marks for TeX accent commands.
var accents = map[rune]rune{
	'"':  '\u0308',
	'\'': '\u0301',
	'`':  '\u0300',
	'^':  '\u0302',
	'~':  '\u0303',
	'=':  '\u0304',
	'.':  '\u0307',
	'u':  '\u0306',
	'v':  '\u030C',
	'H':  '\u030B',
	'c':  '\u0327',
	'k':  '\u0328',
	'r':  '\u030A',
}

// Control words that stand for text.
var letters = map[string]string{
	"aa": "å",
	"AA": "Å",
	"ae": "æ",
	"AE": "Æ",
	"oe": "œ",
	"OE": "Œ",
	"o":  "ø",
	"O":  "Ø",
	"l":  "ł",
	"L":  "Ł",
	"ss": "ß",
	"i":  "ı",
	"j":  "ȷ",

	"TeX":    "TeX",
	"LaTeX":  "LaTeX",
	"LaTeXe": "LaTeX2e",
	"BibTeX": "BibTeX",
	"XeTeX":  "XeTeX",
	"ldots":  "…",
	"dots":   "…",
	"S":      "§",
	"P":      "¶",
}

var punctuation = strings.NewReplacer(
	"---", "—",
	"--", "–",
	"``", "“",
	"''", "”",
)

// PlainText renders a BibTeX field value as readable text: braces and math
// delimiters are dropped, accent commands become composed characters, and
// other commands are removed while their arguments are kept.
func PlainText(s string) string {
	var b strings.Builder
	latexToText([]rune(s), &b)
	out := punctuation.Replace(b.String())
	return norm.NFC.String(strings.Join(strings.Fields(out), " "))
}

func latexToText(rs []rune, b *strings.Builder) {
	for i := 0; i < len(rs); {
		switch r := rs[i]; r {
		case '{', '}', '$':
			i++
		case '~':
			b.WriteRune(' ')
			i++
		case '\\':
			i = command(rs, i+1, b)
		default:
			b.WriteRune(r)
			i++
		}
	}
}

// command handles the control sequence starting at rs[i] (just after the
// backslash) and returns the index following it.
func command(rs []rune, i int, b *strings.Builder) int {
	if i >= len(rs) {
		return i
	}

	c := rs[i]
	if !isLetter(c) {
		if mark, ok := accents[c]; ok {
			return accent(rs, i+1, mark, b)
		}
		switch c {
		case '\\', ' ', ',', ';':
			b.WriteRune(' ')
		default:
			// \& \% \$ \_ \# \{ \}
			b.WriteRune(c)
		}
		return i + 1
	}

	j := i
	for j < len(rs) && isLetter(rs[j]) {
		j++
	}
	name := string(rs[i:j])

	if len(name) == 1 {
		if mark, ok := accents[c]; ok {
			return accent(rs, skipSpace(rs, j), mark, b)
		}
	}
	if s, ok := letters[name]; ok {
		b.WriteString(s)
		// \o{} and "\ss " are single letters; drop the terminator.
		if j+1 < len(rs) && rs[j] == '{' && rs[j+1] == '}' {
			return j + 2
		}
		return skipSpace(rs, j)
	}

	// Unknown command: drop the name, keep any arguments.
	return skipSpace(rs, j)
}

// accent applies mark to the first letter of the argument at rs[i].
func accent(rs []rune, i int, mark rune, b *strings.Builder) int {
	if i >= len(rs) {
		return i
	}

	var arg []rune
	switch rs[i] {
	case '{':
		depth, j := 0, i
		for ; j < len(rs); j++ {
			if rs[j] == '{' {
				depth++
			} else if rs[j] == '}' {
				depth--
				if depth == 0 {
					break
				}
			}
		}
		arg = rs[i+1 : min(j, len(rs))]
		i = min(j+1, len(rs))
	case '\\':
		// \"\i
		j := i + 1
		for j < len(rs) && isLetter(rs[j]) {
			j++
		}
		arg = rs[i:j]
		i = j
	default:
		arg = rs[i : i+1]
		i++
	}

	var inner strings.Builder
	latexToText(arg, &inner)
	text := []rune(inner.String())
	if len(text) == 0 {
		return i
	}
	base := text[0]
	// Dotless i and j take accents as plain i and j.
	switch base {
	case 'ı':
		base = 'i'
	case 'ȷ':
		base = 'j'
	}
	b.WriteRune(base)
	b.WriteRune(mark)
	b.WriteString(string(text[1:]))
	return i
}

func skipSpace(rs []rune, i int) int {
	for i < len(rs) && unicode.IsSpace(rs[i]) {
		i++
	}
	return i
}

func isLetter(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
}
