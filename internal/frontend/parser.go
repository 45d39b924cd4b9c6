// SPDX-License-Identifier: Apache-2.0
package frontend

import (
	"fmt"
	"sync"

	"github.com/alecthomas/participle/v2"
)

var (
	parserOnce sync.Once
	theParser  *participle.Parser[Program]
	parserErr  error
)

func getParser() (*participle.Parser[Program], error) {
	parserOnce.Do(func() {
		theParser, parserErr = participle.Build[Program](
			participle.Lexer(turbocLexer),
			participle.Elide("Whitespace", "Comment"),
			participle.UseLookahead(2),
		)
	})
	return theParser, parserErr
}

// ParseString parses turboc source into a Program.
func ParseString(filename, source string) (*Program, error) {
	parser, err := getParser()
	if err != nil {
		return nil, fmt.Errorf("frontend: building parser: %w", err)
	}
	prog, err := parser.ParseString(filename, source)
	if err != nil {
		return nil, fmt.Errorf("frontend: %w", err)
	}
	return prog, nil
}
