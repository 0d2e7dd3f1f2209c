package expr

import "sort"

var allowedBinary = map[string]bool{"+": true, "-": true, "*": true, "/": true, "%": true, "**": true}

var allowedCompare = map[string]bool{"==": true, "!=": true, "<": true, "<=": true, ">": true, ">=": true}

// Validate parses src and checks it against the allow-list.
func Validate(src string) error {
	_, err := Compile(src)
	return err
}

// Check walks the tree and rejects every node outside the allow-list.
// It returns the first violation in source order.
func Check(root Node) error {
	var err error
	Walk(root, func(n Node) bool {
		if err != nil {
			return false
		}
		err = checkNode(n)
		return err == nil
	})
	return err
}

func checkNode(n Node) error {
	switch n := n.(type) {
	case *Number, *Bool:
		return nil
	case *Name:
		if n.ID == "None" {
			return errorf(ErrDisallowedSyntax, n.At, "None is not a value")
		}
		return nil
	case *Unary:
		if n.Op == "+" || n.Op == "-" {
			return nil
		}
		return errorf(ErrDisallowedSyntax, n.At, "unary operator %q", n.Op)
	case *Binary:
		if allowedBinary[n.Op] {
			return nil
		}
		return errorf(ErrDisallowedSyntax, n.At, "operator %q", n.Op)
	case *Compare:
		for _, op := range n.Ops {
			if !allowedCompare[op] {
				return errorf(ErrDisallowedSyntax, n.At, "comparison %q", op)
			}
		}
		return nil
	case *Logical:
		return nil
	case *Call:
		return checkCall(n)
	case *String:
		return errorf(ErrDisallowedSyntax, n.At, "string literal")
	case *Attribute:
		return errorf(ErrDisallowedSyntax, n.At, "attribute access .%s", n.Name)
	case *Subscript, *Slice:
		return errorf(ErrDisallowedSyntax, n.Pos(), "subscript")
	case *Keyword:
		return errorf(ErrDisallowedSyntax, n.At, "keyword argument %s=", n.Name)
	case *Starred:
		return errorf(ErrDisallowedSyntax, n.At, "argument unpacking")
	case *Collection:
		return errorf(ErrDisallowedSyntax, n.At, "%s display", n.Kind)
	case *Comprehension:
		return errorf(ErrDisallowedSyntax, n.At, "comprehension")
	case *Lambda:
		return errorf(ErrDisallowedSyntax, n.At, "lambda")
	case *IfExp:
		return errorf(ErrDisallowedSyntax, n.At, "conditional expression")
	}
	return errorf(ErrDisallowedSyntax, n.Pos(), "unsupported node %T", n)
}

func checkCall(c *Call) error {
	name, ok := c.Func.(*Name)
	if !ok {
		return errorf(ErrDisallowedFunction, c.At, "only named functions may be called")
	}
	fn, ok := functions[name.ID]
	if !ok {
		return errorf(ErrDisallowedFunction, c.At, "%s is not an allowed function", name.ID)
	}
	if len(c.Keywords) > 0 {
		return errorf(ErrDisallowedSyntax, c.Keywords[0].At, "keyword argument %s=", c.Keywords[0].Name)
	}
	if len(c.Args) < fn.minArgs || len(c.Args) > fn.maxArgs {
		return errorf(ErrDisallowedSyntax, c.At, "%s takes %s, got %d", name.ID, fn.arity(), len(c.Args))
	}
	return nil
}

// Program is a parsed and checked expression.
type Program struct {
	src   string
	root  Node
	names []string
}

// Compile parses src and checks it against the allow-list.
func Compile(src string) (*Program, error) {
	root, err := Parse(src)
	if err != nil {
		return nil, err
	}
	if err := Check(root); err != nil {
		return nil, err
	}
	return &Program{src: src, root: root, names: collectNames(root)}, nil
}

// Source returns the expression text the program was compiled from.
func (p *Program) Source() string { return p.src }

// Root returns the parsed tree.
func (p *Program) Root() Node { return p.root }

// Names returns the sorted variable names the expression references.
func (p *Program) Names() []string {
	out := make([]string, len(p.names))
	copy(out, p.names)
	return out
}

// Eval checks the tree again and evaluates it over env, where every series has length n.
func (p *Program) Eval(env Env, n int) ([]float64, error) {
	if err := Check(p.root); err != nil {
		return nil, err
	}
	return Eval(p.root, env, n)
}

func collectNames(root Node) []string {
	seen := make(map[string]bool)
	Walk(root, func(n Node) bool {
		switch n := n.(type) {
		case *Call:
			// the callee is a function name, not a variable
			for _, a := range n.Args {
				for _, name := range collectNames(a) {
					seen[name] = true
				}
			}
			return false
		case *Name:
			seen[n.ID] = true
		}
		return true
	})
	out := make([]string, 0, len(seen))
	for name := range seen {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
