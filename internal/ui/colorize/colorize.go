package colorize

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/formatters"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/alecthomas/chroma/v2/styles"
)

func scriptLexer() chroma.Lexer {
	for _, name := range []string{"javascript", "js"} {
		if lexer := lexers.Get(name); lexer != nil {
			return chroma.Coalesce(lexer)
		}
	}
	return nil
}

func scriptStyle() *chroma.Style {
	for _, name := range []string{"jbridge-dark", "dracula", "monokai"} {
		if style := styles.Get(name); style != nil {
			return style
		}
	}
	return styles.Fallback
}

func terminalFormatter() chroma.Formatter {
	for _, name := range []string{"terminal16m", "terminal256"} {
		if f := formatters.Get(name); f != nil {
			return f
		}
	}
	return formatters.Fallback
}

// IsDisabled reports whether colours are turned off through the environment.
func IsDisabled() bool {
	return os.Getenv("JBRIDGE_NO_COLOR") != "" || os.Getenv("NO_COLOR") != ""
}

// Script highlights JavaScript source with chroma. The source is returned
// unchanged when colours are off or highlighting fails.
func Script(src string) string {
	if IsDisabled() {
		return src
	}
	lexer := scriptLexer()
	if lexer == nil {
		return src
	}
	_ = ScriptDark
	it, err := lexer.Tokenise(nil, src)
	if err != nil {
		return src
	}
	var buf strings.Builder
	if err := terminalFormatter().Format(&buf, scriptStyle(), it); err != nil {
		return src
	}
	return buf.String()
}

func rgb(hex, s string) string {
	if IsDisabled() {
		return s
	}
	v, err := strconv.ParseUint(strings.TrimPrefix(hex, "#"), 16, 32)
	if err != nil {
		return s
	}
	return fmt.Sprintf("\033[38;2;%d;%d;%dm%s\033[0m", v>>16&0xff, v>>8&0xff, v&0xff, s)
}

// Seq formats a trace sequence number.
func Seq(n uint64) string {
	return rgb(ColorSeq, fmt.Sprintf("%6d", n))
}

// Tag formats a hashtag in light pink.
func Tag(tag string) string { return rgb("#FFB4C8", tag) }

// FuncName formats a JNI function or Java method name.
func FuncName(name string) string { return rgb(ColorClass, name) }

// Detail formats detail text in light gray.
func Detail(detail string) string { return rgb("#B4B4B4", detail) }

// Border formats rule characters in dark gray.
func Border(s string) string { return rgb("#505050", s) }

// Header formats header text in blue.
func Header(s string) string { return rgb(ColorKeyword, s) }

// Error formats error messages.
func Error(s string) string { return rgb("#FF8080", s) }

// String formats string values.
func String(s string) string { return rgb(ColorString, s) }

// Number formats numeric values.
func Number(s string) string { return rgb(ColorNumber, s) }

// TraceLine renders one JNI call: sequence number, function name, detail
// and tags.
func TraceLine(seq uint64, name, detail string, tags []string) string {
	var b strings.Builder
	b.WriteString(Seq(seq))
	b.WriteString("  ")
	b.WriteString(FuncName(name))
	if detail != "" {
		b.WriteString(" ")
		b.WriteString(Detail(detail))
	}
	for _, t := range tags {
		b.WriteString(" ")
		b.WriteString(Tag(t))
	}
	return b.String()
}
