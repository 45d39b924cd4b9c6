// SPDX-License-Identifier: Apache-2.0
package irtext

import (
	"fmt"
	"strings"
	"sync"

	"github.com/alecthomas/participle/v2"

	"turbine/internal/diag"
)

var (
	parserOnce sync.Once
	theParser  *participle.Parser[Module]
	parserErr  error
)

func getParser() (*participle.Parser[Module], error) {
	parserOnce.Do(func() {
		theParser, parserErr = participle.Build[Module](
			participle.Lexer(irLexer),
			participle.Elide("Whitespace", "Comment", "DocComment", "BlockComment"),
			participle.UseLookahead(2),
		)
	})
	return theParser, parserErr
}

// ParseString parses source text in the spec §6.1 syntax into its parse
// tree (*Module); Build turns that tree into an *ir.Module. A parse
// error is returned as a plain error naming the offending token's
// position, with the source line and a caret under the column;
// ParseErrorDiagnostic wraps such an error in a diag.Bag for callers
// that report it the same way as the validator's output.
func ParseString(filename, source string) (*Module, error) {
	parser, err := getParser()
	if err != nil {
		return nil, fmt.Errorf("irtext: building parser: %w", err)
	}
	mod, err := parser.ParseString(filename, source)
	if err != nil {
		return nil, describeParseError(source, err)
	}
	return mod, nil
}

// describeParseError turns a participle error into the spec §7 shape:
// offending token and position, not a raw library error string.
func describeParseError(src string, err error) error {
	pe, ok := err.(participle.Error)
	if !ok {
		return err
	}
	pos := pe.Position()
	lines := strings.Split(src, "\n")
	if pos.Line <= 0 || pos.Line > len(lines) {
		return fmt.Errorf("irtext: parse error: %s", pe.Message())
	}
	line := lines[pos.Line-1]
	return fmt.Errorf("irtext: parse error at %s:%d:%d: %s\n%s\n%s^",
		pos.Filename, pos.Line, pos.Column, pe.Message(), line, strings.Repeat(" ", pos.Column-1))
}

// ParseErrorDiagnostic wraps a parse error as a diag.Bag entry so
// callers that want uniform diag.Reporter output for both parse and
// validation failures can use one code path.
func ParseErrorDiagnostic(err error) *diag.Bag {
	bag := &diag.Bag{}
	bag.Errorf("", "", "%s", err)
	return bag
}
