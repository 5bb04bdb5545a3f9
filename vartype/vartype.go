// Package vartype implements the tiny grammar recogniser for Source 2's
// field type expressions: plain identifiers, template instantiation (nested
// to any depth), fixed-size arrays, and pointers.
//
//	expr     = ident , [ template | array | pointer ] ;
//	template = "<" , expr , ">" ;
//	array    = "[" , ( ident | number ) , "]" ;
//	pointer  = "*" ;
//	ident    = letter , { letter | digit | "_" } ;
//
// The parser is used only by the field-decoder selector (C4); nothing else
// in this module needs to inspect a type expression.
package vartype

import (
	"strconv"
	"strings"

	"github.com/arloliu/s2replay/errs"
)

// Kind discriminates the four shapes a type Expr can take.
type Kind uint8

const (
	KindIdent Kind = iota
	KindTemplate
	KindArray
	KindPointer
)

// Expr is the recursive value produced by Parse. Only the fields relevant
// to Kind are meaningful:
//
//	KindIdent:    Name
//	KindTemplate: Name (the outer identifier, e.g. "CUtlVector"), Elem (T)
//	KindArray:    Name (the element identifier, e.g. "char"), ArrayLenLiteral/ArrayLenIsLiteral or ArrayLenName
//	KindPointer:  Name (the pointee identifier)
type Expr struct {
	Kind Kind
	Name string
	Elem *Expr
	// ArrayLenLiteral holds the parsed literal length, valid when
	// ArrayLenIsLiteral is true.
	ArrayLenLiteral  int
	ArrayLenIsLiteral bool
	// ArrayLenName holds the raw named-constant token when the array
	// length was not a numeric literal (e.g. "MAX_ABILITY_DRAFT_ABILITIES").
	ArrayLenName string
}

// Parse recognises a full type expression in s. Whitespace surrounding
// template arguments is tolerated, matching real Source 2 schemas such as
// "CNetworkUtlVectorBase< CHandle< CBaseEntity > >".
func Parse(s string) (Expr, error) {
	p := &parser{input: s}
	expr, err := p.parseExpr()
	if err != nil {
		return Expr{}, err
	}

	p.skipSpace()
	if p.pos != len(p.input) {
		return Expr{}, errs.ErrMalformedTypeExpr
	}

	return expr, nil
}

type parser struct {
	input string
	pos   int
}

func (p *parser) skipSpace() {
	for p.pos < len(p.input) && p.input[p.pos] == ' ' {
		p.pos++
	}
}

func isIdentStart(b byte) bool {
	return b == '_' || (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}

func isIdentCont(b byte) bool {
	return isIdentStart(b) || (b >= '0' && b <= '9')
}

func (p *parser) parseIdent() (string, error) {
	p.skipSpace()
	start := p.pos
	if p.pos >= len(p.input) || !isIdentStart(p.input[p.pos]) {
		return "", errs.ErrMalformedTypeExpr
	}

	p.pos++
	for p.pos < len(p.input) && isIdentCont(p.input[p.pos]) {
		p.pos++
	}

	return p.input[start:p.pos], nil
}

func (p *parser) parseExpr() (Expr, error) {
	name, err := p.parseIdent()
	if err != nil {
		return Expr{}, err
	}

	p.skipSpace()
	if p.pos >= len(p.input) {
		return Expr{Kind: KindIdent, Name: name}, nil
	}

	switch p.input[p.pos] {
	case '<':
		p.pos++

		inner, err := p.parseExpr()
		if err != nil {
			return Expr{}, err
		}

		p.skipSpace()
		if p.pos >= len(p.input) || p.input[p.pos] != '>' {
			return Expr{}, errs.ErrMalformedTypeExpr
		}

		p.pos++

		return Expr{Kind: KindTemplate, Name: name, Elem: &inner}, nil

	case '[':
		p.pos++
		p.skipSpace()

		e := Expr{Kind: KindArray, Name: name}

		if p.pos < len(p.input) && (p.input[p.pos] >= '0' && p.input[p.pos] <= '9') {
			start := p.pos
			for p.pos < len(p.input) && p.input[p.pos] >= '0' && p.input[p.pos] <= '9' {
				p.pos++
			}

			n, err := strconv.Atoi(p.input[start:p.pos])
			if err != nil {
				return Expr{}, errs.ErrMalformedTypeExpr
			}

			e.ArrayLenLiteral = n
			e.ArrayLenIsLiteral = true
		} else {
			constName, err := p.parseIdent()
			if err != nil {
				return Expr{}, errs.ErrMalformedTypeExpr
			}

			e.ArrayLenName = constName
		}

		p.skipSpace()
		if p.pos >= len(p.input) || p.input[p.pos] != ']' {
			return Expr{}, errs.ErrMalformedTypeExpr
		}

		p.pos++

		return e, nil

	case '*':
		p.pos++

		return Expr{Kind: KindPointer, Name: name}, nil

	default:
		return Expr{Kind: KindIdent, Name: name}, nil
	}
}

// knownArrayConstants resolves the small set of named array-length
// constants Source 2 schemas reference in place of a literal integer. Not
// exhaustive; unrecognised names are a schema error.
var knownArrayConstants = map[string]int{
	"MAX_ABILITY_DRAFT_ABILITIES": 48,
	"MAX_ITEM_STOCKS":             24,
	"MAX_ABILITY_DRAFT_ABILITY_OPTIONS": 256,
}

// ResolveArrayLen returns the concrete element count for an Expr of
// KindArray, resolving a named constant through knownArrayConstants when
// the length was not a literal.
func ResolveArrayLen(e Expr) (int, error) {
	if e.Kind != KindArray {
		return 0, errs.ErrMalformedTypeExpr
	}

	if e.ArrayLenIsLiteral {
		return e.ArrayLenLiteral, nil
	}

	n, ok := knownArrayConstants[e.ArrayLenName]
	if !ok {
		return 0, errs.ErrUnknownArrayLength
	}

	return n, nil
}

// String renders e back into its canonical textual form, primarily for
// cache-key and debugging purposes (the decoder-selection cache in the
// fields package keys off this string).
func (e Expr) String() string {
	switch e.Kind {
	case KindTemplate:
		return e.Name + "<" + e.Elem.String() + ">"
	case KindArray:
		var b strings.Builder
		b.WriteString(e.Name)
		b.WriteByte('[')

		if e.ArrayLenIsLiteral {
			b.WriteString(strconv.Itoa(e.ArrayLenLiteral))
		} else {
			b.WriteString(e.ArrayLenName)
		}

		b.WriteByte(']')

		return b.String()
	case KindPointer:
		return e.Name + "*"
	default:
		return e.Name
	}
}
