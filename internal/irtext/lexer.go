// SPDX-License-Identifier: Apache-2.0

// Package irtext is the textual form of the IR (spec §6.1): a
// participle grammar and lexer for parsing it back into an *ir.Module,
// and a deterministic printer for the reverse direction. It is the
// turbine analogue of the teacher's own `grammar` package — same
// library, same stateful-lexer-plus-struct-tag-grammar style, a
// different surface syntax.
package irtext

import (
	"github.com/alecthomas/participle/v2/lexer"
)

// irLexer tokenizes the textual IR. Unlike the surface-language lexer
// it is modeled on, punctuation is richer (commas, parens, brackets,
// colons, stars for pointer levels) since every instruction's operand
// list is fully parenthesized/comma-separated rather than whitespace
// sensitive; newlines are therefore ordinary layout, not a token the
// grammar depends on, and are elided along with other whitespace.
var irLexer = lexer.MustStateful(lexer.Rules{
	"Root": {
		{"DocComment", `///[^\n]*`, nil},
		{"Comment", `//[^\n]*`, nil},
		{"BlockComment", `(?s)/\*.*?\*/`, nil},

		{"Ident", `[a-zA-Z_][a-zA-Z0-9_]*`, nil},
		{"Integer", `0x[0-9a-fA-F]+|[0-9]+`, nil},

		{"Punctuation", `[{}()\[\],;:=*]`, nil},

		{"Whitespace", `[ \t\r\n]+`, nil},
	},
})
