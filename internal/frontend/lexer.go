// SPDX-License-Identifier: Apache-2.0

// Package frontend is the turboc surface language: a small C-like
// language whose only job is to lower into the core SSA IR
// (`turbine/internal/ir`) so the optimizer has test programs to chew on
// that were not hand-built instruction by instruction. Per spec.md §1
// this is an external collaborator, not the specified core — kept
// here as a thin reference lowering, exercised by its own smoke tests
// only, mirroring the teacher's split between its surface-language
// front end and its IR/optimizer core.
package frontend

import "github.com/alecthomas/participle/v2/lexer"

var turbocLexer = lexer.MustStateful(lexer.Rules{
	"Root": {
		{"Comment", `//[^\n]*`, nil},
		{"Ident", `[a-zA-Z_][a-zA-Z0-9_]*`, nil},
		{"Integer", `0x[0-9a-fA-F]+|[0-9]+`, nil},
		{"Operator", `(==|!=|<=|>=|&&|\|\||[-+*/%<>=!&|^~])`, nil},
		{"Punctuation", `[{}()\[\],;]`, nil},
		{"Whitespace", `[ \t\r\n]+`, nil},
	},
})
