// Package formula holds the expression tree used for equations: parsing from
// infix text, canonical printing, free-symbol extraction and conversion to and
// from SBML MathML.
package formula

import (
	"strconv"
	"strings"
)

// Time is the symbol bound to simulation time.
const Time = "t"

// reserved symbols are constants or csymbols and never free.
var reserved = map[string]struct{}{
	Time:           {},
	"pi":           {},
	"exponentiale": {},
	"avogadro":     {},
}

// IsReserved reports whether name is a built-in symbol rather than a model id.
func IsReserved(name string) bool {
	_, ok := reserved[name]
	return ok
}

// Expr is a node of an expression tree.
type Expr interface {
	precedence() int
	write(b *strings.Builder)
}

const (
	precAdd = iota + 1
	precMul
	precUnary
	precPow
	precAtom
)

// Number is a numeric literal.
type Number struct {
	Value   float64
	Integer bool
}

// Symbol references a model id or a reserved constant.
type Symbol struct {
	Name string
}

// Unary is a sign applied to an operand. Op is '-' or '+'.
type Unary struct {
	Op byte
	X  Expr
}

// Binary is an arithmetic operation. Op is one of + - * / ^.
type Binary struct {
	Op          byte
	Left, Right Expr
}

// Call applies a named function.
type Call struct {
	Func string
	Args []Expr
}

func (n Number) precedence() int {
	if n.Value < 0 {
		return precUnary
	}
	return precAtom
}

func (Symbol) precedence() int { return precAtom }
func (Unary) precedence() int  { return precUnary }
func (Call) precedence() int   { return precAtom }

func (b Binary) precedence() int {
	switch b.Op {
	case '+', '-':
		return precAdd
	case '*', '/':
		return precMul
	default:
		return precPow
	}
}

func (n Number) write(b *strings.Builder) {
	if n.Integer {
		b.WriteString(strconv.FormatInt(int64(n.Value), 10))
		return
	}
	b.WriteString(strconv.FormatFloat(n.Value, 'g', -1, 64))
}

func (s Symbol) write(b *strings.Builder) { b.WriteString(s.Name) }

func (u Unary) write(b *strings.Builder) {
	b.WriteByte(u.Op)
	writeOperand(b, u.X, u.X.precedence() < precUnary)
}

func (x Binary) write(b *strings.Builder) {
	prec := x.precedence()
	lp, rp := x.Left.precedence(), x.Right.precedence()
	if x.Op == '^' {
		writeOperand(b, x.Left, lp <= prec)
		b.WriteByte('^')
		writeOperand(b, x.Right, rp < prec)
		return
	}
	writeOperand(b, x.Left, lp < prec)
	b.WriteByte(' ')
	b.WriteByte(x.Op)
	b.WriteByte(' ')
	writeOperand(b, x.Right, rp <= prec)
}

func (c Call) write(b *strings.Builder) {
	b.WriteString(c.Func)
	b.WriteByte('(')
	for i, arg := range c.Args {
		if i > 0 {
			b.WriteString(", ")
		}
		arg.write(b)
	}
	b.WriteByte(')')
}

func writeOperand(b *strings.Builder, e Expr, paren bool) {
	if paren {
		b.WriteByte('(')
	}
	e.write(b)
	if paren {
		b.WriteByte(')')
	}
}

// String renders e as canonical infix text with minimal parentheses.
func String(e Expr) string {
	var b strings.Builder
	e.write(&b)
	return b.String()
}

// Symbols returns the free symbols of e in order of first appearance.
// Function names and reserved symbols are excluded.
func Symbols(e Expr) []string {
	seen := make(map[string]struct{})
	var out []string
	var walk func(Expr)
	walk = func(e Expr) {
		switch n := e.(type) {
		case Symbol:
			if IsReserved(n.Name) {
				return
			}
			if _, ok := seen[n.Name]; !ok {
				seen[n.Name] = struct{}{}
				out = append(out, n.Name)
			}
		case Unary:
			walk(n.X)
		case Binary:
			walk(n.Left)
			walk(n.Right)
		case Call:
			for _, arg := range n.Args {
				walk(arg)
			}
		}
	}
	walk(e)
	return out
}
