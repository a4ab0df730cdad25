package formula

import (
	"fmt"
	"strings"

	"github.com/expr-lang/expr/ast"
	"github.com/expr-lang/expr/parser"

	"enzymeml/pkg/domain"
)

var functionAliases = map[string]string{
	"ln":   "log",
	"ceil": "ceiling",
}

// Parse reads infix text. Supported are identifiers, numbers, unary signs,
// + - * / ^ ** and function calls; anything else is a StructuralError.
func Parse(src string) (Expr, error) {
	if strings.TrimSpace(src) == "" {
		return nil, domain.Structuralf("parse expression", "empty expression")
	}
	tree, err := parser.Parse(src)
	if err != nil {
		return nil, &domain.StructuralError{Op: fmt.Sprintf("parse expression %q", src), Err: err}
	}
	e, err := convert(tree.Node)
	if err != nil {
		return nil, &domain.StructuralError{Op: fmt.Sprintf("parse expression %q", src), Err: err}
	}
	return e, nil
}

func convert(node ast.Node) (Expr, error) {
	switch n := node.(type) {
	case *ast.IdentifierNode:
		return Symbol{Name: n.Value}, nil
	case *ast.IntegerNode:
		return Number{Value: float64(n.Value), Integer: true}, nil
	case *ast.FloatNode:
		return Number{Value: n.Value}, nil
	case *ast.UnaryNode:
		x, err := convert(n.Node)
		if err != nil {
			return nil, err
		}
		switch n.Operator {
		case "-":
			return Unary{Op: '-', X: x}, nil
		case "+":
			return x, nil
		}
		return nil, fmt.Errorf("unsupported operator %q", n.Operator)
	case *ast.BinaryNode:
		op, err := binaryOp(n.Operator)
		if err != nil {
			return nil, err
		}
		left, err := convert(n.Left)
		if err != nil {
			return nil, err
		}
		right, err := convert(n.Right)
		if err != nil {
			return nil, err
		}
		return Binary{Op: op, Left: left, Right: right}, nil
	case *ast.CallNode:
		callee, ok := n.Callee.(*ast.IdentifierNode)
		if !ok {
			return nil, fmt.Errorf("unsupported callee %T", n.Callee)
		}
		return call(callee.Value, n.Arguments)
	case *ast.BuiltinNode:
		return call(n.Name, n.Arguments)
	default:
		return nil, fmt.Errorf("unsupported expression %T", node)
	}
}

func binaryOp(op string) (byte, error) {
	switch op {
	case "+", "-", "*", "/":
		return op[0], nil
	case "^", "**":
		return '^', nil
	}
	return 0, fmt.Errorf("unsupported operator %q", op)
}

func call(name string, args []ast.Node) (Expr, error) {
	if alias, ok := functionAliases[name]; ok {
		name = alias
	}
	c := Call{Func: name, Args: make([]Expr, 0, len(args))}
	for _, arg := range args {
		e, err := convert(arg)
		if err != nil {
			return nil, err
		}
		c.Args = append(c.Args, e)
	}
	if name == "pow" && len(c.Args) == 2 {
		return Binary{Op: '^', Left: c.Args[0], Right: c.Args[1]}, nil
	}
	return c, nil
}
