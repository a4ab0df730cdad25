package formula

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/beevik/etree"
)

// MathMLNamespace is the namespace of the <math> element.
const MathMLNamespace = "http://www.w3.org/1998/Math/MathML"

const (
	timeURL     = "http://www.sbml.org/sbml/symbols/time"
	avogadroURL = "http://www.sbml.org/sbml/symbols/avogadro"
)

var mathFunctions = map[string]string{
	"exp":     "exp",
	"log":     "ln",
	"log10":   "log",
	"sin":     "sin",
	"cos":     "cos",
	"tan":     "tan",
	"abs":     "abs",
	"floor":   "floor",
	"ceiling": "ceiling",
	"sqrt":    "root",
}

var mathOperators = map[byte]string{
	'+': "plus",
	'-': "minus",
	'*': "times",
	'/': "divide",
	'^': "power",
}

// ToMathML wraps e in a <math> element.
func ToMathML(e Expr) *etree.Element {
	root := etree.NewElement("math")
	root.CreateAttr("xmlns", MathMLNamespace)
	root.AddChild(encode(e))
	return root
}

func encode(e Expr) *etree.Element {
	switch n := e.(type) {
	case Number:
		cn := etree.NewElement("cn")
		if n.Integer {
			cn.CreateAttr("type", "integer")
			cn.SetText(strconv.FormatInt(int64(n.Value), 10))
		} else {
			cn.SetText(strconv.FormatFloat(n.Value, 'g', -1, 64))
		}
		return cn
	case Symbol:
		return encodeSymbol(n.Name)
	case Unary:
		if n.Op == '+' {
			return encode(n.X)
		}
		return apply("minus", n.X)
	case Binary:
		if n.Op == '+' || n.Op == '*' {
			return apply(mathOperators[n.Op], flattenChain(n.Op, n)...)
		}
		return apply(mathOperators[n.Op], n.Left, n.Right)
	case Call:
		if tag, ok := mathFunctions[n.Func]; ok {
			return apply(tag, n.Args...)
		}
		el := etree.NewElement("apply")
		el.CreateElement("ci").SetText(n.Func)
		for _, arg := range n.Args {
			el.AddChild(encode(arg))
		}
		return el
	}
	panic(fmt.Sprintf("formula: unknown node %T", e))
}

func encodeSymbol(name string) *etree.Element {
	switch name {
	case Time:
		return csymbol(timeURL, name)
	case "avogadro":
		return csymbol(avogadroURL, name)
	case "pi", "exponentiale":
		return etree.NewElement(name)
	}
	ci := etree.NewElement("ci")
	ci.SetText(" " + name + " ")
	return ci
}

func csymbol(url, text string) *etree.Element {
	el := etree.NewElement("csymbol")
	el.CreateAttr("encoding", "text")
	el.CreateAttr("definitionURL", url)
	el.SetText(" " + text + " ")
	return el
}

func apply(op string, args ...Expr) *etree.Element {
	el := etree.NewElement("apply")
	el.CreateElement(op)
	for _, arg := range args {
		el.AddChild(encode(arg))
	}
	return el
}

// flattenChain turns a left-nested chain of one associative operator into
// its operand list.
func flattenChain(op byte, e Expr) []Expr {
	if b, ok := e.(Binary); ok && b.Op == op {
		return append(flattenChain(op, b.Left), b.Right)
	}
	return []Expr{e}
}

// FromMathML decodes a <math> element, or any MathML content element.
func FromMathML(el *etree.Element) (Expr, error) {
	if el == nil {
		return nil, fmt.Errorf("mathml: missing element")
	}
	if el.Tag == "math" {
		children := el.ChildElements()
		if len(children) != 1 {
			return nil, fmt.Errorf("mathml: <math> must hold exactly one element, got %d", len(children))
		}
		el = children[0]
	}
	return decode(el)
}

func decode(el *etree.Element) (Expr, error) {
	switch el.Tag {
	case "cn":
		return decodeNumber(el)
	case "ci":
		return Symbol{Name: strings.TrimSpace(el.Text())}, nil
	case "csymbol":
		switch el.SelectAttrValue("definitionURL", "") {
		case timeURL:
			return Symbol{Name: Time}, nil
		case avogadroURL:
			return Symbol{Name: "avogadro"}, nil
		}
		return Symbol{Name: strings.TrimSpace(el.Text())}, nil
	case "pi", "exponentiale":
		return Symbol{Name: el.Tag}, nil
	case "true":
		return Number{Value: 1, Integer: true}, nil
	case "false":
		return Number{Value: 0, Integer: true}, nil
	case "apply":
		return decodeApply(el)
	}
	return nil, fmt.Errorf("mathml: unsupported element <%s>", el.Tag)
}

func decodeNumber(el *etree.Element) (Expr, error) {
	text := strings.TrimSpace(el.Text())
	switch el.SelectAttrValue("type", "real") {
	case "integer":
		v, err := strconv.ParseInt(text, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("mathml: integer %q: %w", text, err)
		}
		return Number{Value: float64(v), Integer: true}, nil
	case "e-notation", "rational":
		sep := el.SelectElement("sep")
		if sep == nil {
			return nil, fmt.Errorf("mathml: <cn type=%q> without <sep/>", el.SelectAttrValue("type", ""))
		}
		a, err := strconv.ParseFloat(text, 64)
		if err != nil {
			return nil, fmt.Errorf("mathml: number %q: %w", text, err)
		}
		b, err := strconv.ParseFloat(strings.TrimSpace(sep.Tail()), 64)
		if err != nil {
			return nil, fmt.Errorf("mathml: number %q: %w", sep.Tail(), err)
		}
		if el.SelectAttrValue("type", "") == "rational" {
			return Number{Value: a / b}, nil
		}
		return Number{Value: a * math.Pow(10, b)}, nil
	default:
		v, err := strconv.ParseFloat(text, 64)
		if err != nil {
			return nil, fmt.Errorf("mathml: number %q: %w", text, err)
		}
		return Number{Value: v}, nil
	}
}

func decodeApply(el *etree.Element) (Expr, error) {
	children := el.ChildElements()
	if len(children) == 0 {
		return nil, fmt.Errorf("mathml: empty <apply>")
	}
	head := children[0]
	var degree Expr
	args := make([]Expr, 0, len(children)-1)
	for _, child := range children[1:] {
		if child.Tag == "degree" || child.Tag == "logbase" {
			inner := child.ChildElements()
			if len(inner) != 1 {
				return nil, fmt.Errorf("mathml: <%s> must hold one element", child.Tag)
			}
			d, err := decode(inner[0])
			if err != nil {
				return nil, err
			}
			degree = d
			continue
		}
		arg, err := decode(child)
		if err != nil {
			return nil, err
		}
		args = append(args, arg)
	}

	switch head.Tag {
	case "plus":
		return foldChain('+', args, Number{Value: 0, Integer: true}), nil
	case "times":
		return foldChain('*', args, Number{Value: 1, Integer: true}), nil
	case "minus":
		switch len(args) {
		case 1:
			return Unary{Op: '-', X: args[0]}, nil
		case 2:
			return Binary{Op: '-', Left: args[0], Right: args[1]}, nil
		}
		return nil, fmt.Errorf("mathml: <minus> takes one or two arguments, got %d", len(args))
	case "divide", "power":
		if len(args) != 2 {
			return nil, fmt.Errorf("mathml: <%s> takes two arguments, got %d", head.Tag, len(args))
		}
		op := byte('/')
		if head.Tag == "power" {
			op = '^'
		}
		return Binary{Op: op, Left: args[0], Right: args[1]}, nil
	case "root":
		if len(args) != 1 {
			return nil, fmt.Errorf("mathml: <root> takes one argument, got %d", len(args))
		}
		if degree == nil || isNumber(degree, 2) {
			return Call{Func: "sqrt", Args: args}, nil
		}
		return Binary{Op: '^', Left: args[0], Right: Binary{Op: '/', Left: Number{Value: 1, Integer: true}, Right: degree}}, nil
	case "ln":
		return Call{Func: "log", Args: args}, nil
	case "log":
		if degree == nil || isNumber(degree, 10) {
			return Call{Func: "log10", Args: args}, nil
		}
		return Binary{Op: '/', Left: Call{Func: "log", Args: args}, Right: Call{Func: "log", Args: []Expr{degree}}}, nil
	case "exp", "sin", "cos", "tan", "abs", "floor", "ceiling":
		return Call{Func: head.Tag, Args: args}, nil
	case "ci":
		return Call{Func: strings.TrimSpace(head.Text()), Args: args}, nil
	}
	return nil, fmt.Errorf("mathml: unsupported operator <%s>", head.Tag)
}

func foldChain(op byte, args []Expr, empty Expr) Expr {
	if len(args) == 0 {
		return empty
	}
	out := args[0]
	for _, arg := range args[1:] {
		out = Binary{Op: op, Left: out, Right: arg}
	}
	return out
}

func isNumber(e Expr, v float64) bool {
	n, ok := e.(Number)
	return ok && n.Value == v
}
