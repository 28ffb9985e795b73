// Package colorize provides terminal colouring for scripts, values and JNI
// trace lines.
package colorize

import (
	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/styles"
)

// Palette shared by the chroma style and the ANSI helpers.
const (
	ColorSeq     = "#808080" // trace sequence numbers
	ColorKeyword = "#569CD6"
	ColorName    = "#87CEEB" // identifiers, field names
	ColorNumber  = "#FF80C0"
	ColorClass   = "#FFC800" // class and function names
	ColorComment = "#6A9955"
	ColorString  = "#CE9178"
)

// ScriptDark is the chroma style used for echoed scripts.
var ScriptDark = styles.Register(chroma.MustNewStyle("jbridge-dark", chroma.StyleEntries{
	chroma.Text:       "#D4D4D4",
	chroma.Background: "bg:#000000",
	chroma.Comment:    ColorComment,

	chroma.Keyword:            ColorKeyword,
	chroma.KeywordConstant:    ColorKeyword,
	chroma.KeywordDeclaration: ColorKeyword,
	chroma.Name:               ColorName,
	chroma.NameBuiltin:        ColorClass,
	chroma.NameOther:          ColorName,
	chroma.NameFunction:       ColorClass,

	chroma.LiteralNumber:      ColorNumber,
	chroma.LiteralNumberFloat: ColorNumber,
	chroma.LiteralNumberHex:   ColorNumber,

	chroma.Operator:    "#D4D4D4",
	chroma.Punctuation: "#D4D4D4",

	chroma.String:      ColorString,
	chroma.StringRegex: ColorString,
}))
