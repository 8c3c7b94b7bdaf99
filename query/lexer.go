package query

import (
	"fmt"
	"strings"
	"unicode"
)

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokIdent
	tokField  // $path
	tokString // quoted or backtick literal
	tokNumber
	tokOp     // = != > >= < <= % , & | ~ -
	tokLParen // (
	tokRParen // )
	tokLBrack // [
	tokRBrack // ]
	tokSemi   // ;
	tokArrow  // =>
)

type token struct {
	kind tokenKind
	text string
	pos  int
}

// identRune reports whether r may appear inside an identifier. Dots are
// included so field paths lex as one token.
func identRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' || r == '.' || r == '*' || r == '#'
}

func lex(input string) ([]token, error) {
	var toks []token
	runes := []rune(input)
	i := 0
	for i < len(runes) {
		r := runes[i]
		switch {
		case unicode.IsSpace(r):
			i++
		case r == '$':
			start := i
			i++
			for i < len(runes) && identRune(runes[i]) {
				i++
			}
			if i == start+1 {
				return nil, fmt.Errorf("%w: bare $ at %d", ErrSyntax, start)
			}
			toks = append(toks, token{tokField, string(runes[start+1 : i]), start})
		case r == '`' || r == '\'' || r == '"':
			text, next, err := lexString(runes, i)
			if err != nil {
				return nil, err
			}
			toks = append(toks, token{tokString, text, i})
			i = next
		case unicode.IsDigit(r):
			start := i
			for i < len(runes) && (unicode.IsDigit(runes[i]) || runes[i] == '.') {
				i++
			}
			// A date-like token (2020-01-02) keeps lexing as number-ident mix;
			// require quoting for dates instead of guessing here.
			text := string(runes[start:i])
			if strings.HasSuffix(text, ".") {
				return nil, fmt.Errorf("%w: malformed number %q at %d", ErrSyntax, text, start)
			}
			toks = append(toks, token{tokNumber, text, start})
		case identRune(r):
			start := i
			for i < len(runes) && identRune(runes[i]) {
				i++
			}
			toks = append(toks, token{tokIdent, string(runes[start:i]), start})
		default:
			start := i
			switch r {
			case '(':
				toks = append(toks, token{tokLParen, "(", start})
				i++
			case ')':
				toks = append(toks, token{tokRParen, ")", start})
				i++
			case '[':
				toks = append(toks, token{tokLBrack, "[", start})
				i++
			case ']':
				toks = append(toks, token{tokRBrack, "]", start})
				i++
			case ';':
				toks = append(toks, token{tokSemi, ";", start})
				i++
			case '=':
				if i+1 < len(runes) && runes[i+1] == '>' {
					toks = append(toks, token{tokArrow, "=>", start})
					i += 2
				} else {
					toks = append(toks, token{tokOp, "=", start})
					i++
				}
			case '!':
				if i+1 < len(runes) && runes[i+1] == '=' {
					toks = append(toks, token{tokOp, "!=", start})
					i += 2
				} else {
					return nil, fmt.Errorf("%w: stray ! at %d", ErrSyntax, start)
				}
			case '>', '<':
				if i+1 < len(runes) && runes[i+1] == '=' {
					toks = append(toks, token{tokOp, string(r) + "=", start})
					i += 2
				} else {
					toks = append(toks, token{tokOp, string(r), start})
					i++
				}
			case '%', ',', '&', '|', '~', '-', '/':
				toks = append(toks, token{tokOp, string(r), start})
				i++
			default:
				return nil, fmt.Errorf("%w: unexpected %q at %d", ErrSyntax, string(r), start)
			}
		}
	}
	toks = append(toks, token{tokEOF, "", len(runes)})
	return toks, nil
}

func lexString(runes []rune, start int) (string, int, error) {
	quote := runes[start]
	var sb strings.Builder
	i := start + 1
	for i < len(runes) {
		r := runes[i]
		if r == '\\' && i+1 < len(runes) {
			sb.WriteRune(runes[i+1])
			i += 2
			continue
		}
		if r == quote {
			return sb.String(), i + 1, nil
		}
		sb.WriteRune(r)
		i++
	}
	return "", 0, fmt.Errorf("%w: unterminated string at %d", ErrSyntax, start)
}
