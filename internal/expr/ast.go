package expr

// Node is a node of the expression tree. The set of node kinds is closed:
// every implementation lives in this file.
type Node interface {
	Pos() int
	node()
}

// Number is a numeric literal.
type Number struct {
	At    int
	Value float64
}

// Bool is True or False.
type Bool struct {
	At    int
	Value bool
}

// String is a string literal. Parsed so it can be rejected.
type String struct {
	At    int
	Value string
}

// Name is a variable reference.
type Name struct {
	At int
	ID string
}

// Unary is a prefix operation: + - ~ not.
type Unary struct {
	At int
	Op string
	X  Node
}

// Binary is an infix arithmetic or bitwise operation.
type Binary struct {
	At int
	Op string
	X  Node
	Y  Node
}

// Compare is a (possibly chained) comparison: X op0 Ys[0] op1 Ys[1] ...
type Compare struct {
	At  int
	X   Node
	Ops []string
	Ys  []Node
}

// Logical is a chain of and/or over two or more operands.
type Logical struct {
	At int
	Op string // "and" or "or"
	Xs []Node
}

// Call is a function call.
type Call struct {
	At       int
	Func     Node
	Args     []Node
	Keywords []*Keyword
}

// Keyword is a name=value call argument.
type Keyword struct {
	At    int
	Name  string
	Value Node
}

// Starred is *x or **x inside a call or display.
type Starred struct {
	At     int
	Double bool
	X      Node
}

// Attribute is X.Name.
type Attribute struct {
	At   int
	X    Node
	Name string
}

// Subscript is X[Index].
type Subscript struct {
	At    int
	X     Node
	Index Node
}

// Slice is lo:hi:step inside a subscript. Any part may be nil.
type Slice struct {
	At   int
	Lo   Node
	Hi   Node
	Step Node
}

// CollectionKind distinguishes bracketed displays.
type CollectionKind int

const (
	ListKind CollectionKind = iota
	TupleKind
	SetKind
	DictKind
)

func (k CollectionKind) String() string {
	switch k {
	case ListKind:
		return "list"
	case TupleKind:
		return "tuple"
	case SetKind:
		return "set"
	case DictKind:
		return "dict"
	}
	return "collection"
}

// Collection is a list, tuple, set or dict display.
// Dict entries are stored as alternating key, value.
type Collection struct {
	At   int
	Kind CollectionKind
	Elts []Node
}

// Comprehension is a list/set/dict comprehension or generator expression.
type Comprehension struct {
	At     int
	Kind   CollectionKind // TupleKind for generator expressions
	Elt    Node
	Value  Node // dict comprehensions only
	Target Node
	Iter   Node
	Conds  []Node
	Inner  *Comprehension // nested for clause, if any
}

// Lambda is lambda params: body.
type Lambda struct {
	At     int
	Params []string
	Body   Node
}

// IfExp is Then if Cond else Else.
type IfExp struct {
	At   int
	Cond Node
	Then Node
	Else Node
}

func (n *Number) Pos() int        { return n.At }
func (n *Bool) Pos() int          { return n.At }
func (n *String) Pos() int        { return n.At }
func (n *Name) Pos() int          { return n.At }
func (n *Unary) Pos() int         { return n.At }
func (n *Binary) Pos() int        { return n.At }
func (n *Compare) Pos() int       { return n.At }
func (n *Logical) Pos() int       { return n.At }
func (n *Call) Pos() int          { return n.At }
func (n *Keyword) Pos() int       { return n.At }
func (n *Starred) Pos() int       { return n.At }
func (n *Attribute) Pos() int     { return n.At }
func (n *Subscript) Pos() int     { return n.At }
func (n *Slice) Pos() int         { return n.At }
func (n *Collection) Pos() int    { return n.At }
func (n *Comprehension) Pos() int { return n.At }
func (n *Lambda) Pos() int        { return n.At }
func (n *IfExp) Pos() int         { return n.At }

func (*Number) node()        {}
func (*Bool) node()          {}
func (*String) node()        {}
func (*Name) node()          {}
func (*Unary) node()         {}
func (*Binary) node()        {}
func (*Compare) node()       {}
func (*Logical) node()       {}
func (*Call) node()          {}
func (*Keyword) node()       {}
func (*Starred) node()       {}
func (*Attribute) node()     {}
func (*Subscript) node()     {}
func (*Slice) node()         {}
func (*Collection) node()    {}
func (*Comprehension) node() {}
func (*Lambda) node()        {}
func (*IfExp) node()         {}

// Walk visits n and its children depth-first in source order.
// If fn returns false the children of that node are skipped.
func Walk(n Node, fn func(Node) bool) {
	if n == nil || !fn(n) {
		return
	}
	switch n := n.(type) {
	case *Number, *Bool, *String, *Name:
	case *Unary:
		Walk(n.X, fn)
	case *Binary:
		Walk(n.X, fn)
		Walk(n.Y, fn)
	case *Compare:
		Walk(n.X, fn)
		for _, y := range n.Ys {
			Walk(y, fn)
		}
	case *Logical:
		for _, x := range n.Xs {
			Walk(x, fn)
		}
	case *Call:
		Walk(n.Func, fn)
		for _, a := range n.Args {
			Walk(a, fn)
		}
		for _, k := range n.Keywords {
			Walk(k, fn)
		}
	case *Keyword:
		Walk(n.Value, fn)
	case *Starred:
		Walk(n.X, fn)
	case *Attribute:
		Walk(n.X, fn)
	case *Subscript:
		Walk(n.X, fn)
		Walk(n.Index, fn)
	case *Slice:
		Walk(n.Lo, fn)
		Walk(n.Hi, fn)
		Walk(n.Step, fn)
	case *Collection:
		for _, e := range n.Elts {
			Walk(e, fn)
		}
	case *Comprehension:
		Walk(n.Elt, fn)
		Walk(n.Value, fn)
		Walk(n.Target, fn)
		Walk(n.Iter, fn)
		for _, c := range n.Conds {
			Walk(c, fn)
		}
		if n.Inner != nil {
			Walk(n.Inner, fn)
		}
	case *Lambda:
		Walk(n.Body, fn)
	case *IfExp:
		Walk(n.Cond, fn)
		Walk(n.Then, fn)
		Walk(n.Else, fn)
	}
}
