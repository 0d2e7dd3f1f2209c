package expr

import "strings"

// Parse parses a single expression into a tree. It accepts the full Python
// expression grammar so that Check can reject constructs by kind; it does not
// decide what is allowed.
func Parse(src string) (Node, error) {
	if strings.TrimSpace(src) == "" {
		return nil, &Error{Kind: ErrEmptyExpression, Pos: 0, Msg: "empty input"}
	}
	toks, err := lex(src)
	if err != nil {
		return nil, err
	}
	p := &parser{toks: toks}
	n, err := p.parseExprList()
	if err != nil {
		return nil, err
	}
	if t := p.peek(); t.kind != tokEOF {
		return nil, errorf(ErrSyntax, t.pos, "unexpected %s", describe(t))
	}
	return n, nil
}

type parser struct {
	toks []token
	i    int
}

func (p *parser) peek() token { return p.toks[p.i] }

func (p *parser) peekAt(k int) token {
	if p.i+k >= len(p.toks) {
		return p.toks[len(p.toks)-1]
	}
	return p.toks[p.i+k]
}

func (p *parser) next() token {
	t := p.toks[p.i]
	if t.kind != tokEOF {
		p.i++
	}
	return t
}

func (p *parser) isOp(text string) bool {
	t := p.peek()
	return t.kind == tokOp && t.text == text
}

func (p *parser) isKeyword(word string) bool {
	t := p.peek()
	return t.kind == tokName && t.text == word
}

func (p *parser) acceptOp(text string) bool {
	if p.isOp(text) {
		p.i++
		return true
	}
	return false
}

func (p *parser) expectOp(text string) (token, error) {
	t := p.peek()
	if t.kind != tokOp || t.text != text {
		return t, errorf(ErrSyntax, t.pos, "expected %q, found %s", text, describe(t))
	}
	p.i++
	return t, nil
}

func describe(t token) string {
	switch t.kind {
	case tokEOF:
		return "end of expression"
	case tokString:
		return "string literal"
	default:
		return "'" + t.text + "'"
	}
}

var keywords = map[string]bool{
	"and": true, "or": true, "not": true, "in": true, "is": true,
	"if": true, "else": true, "for": true, "lambda": true,
	"True": true, "False": true, "None": true,
	"import": true, "from": true, "def": true, "class": true, "return": true,
	"yield": true, "await": true, "async": true, "del": true, "global": true,
	"with": true, "as": true, "while": true, "try": true, "pass": true,
}

// parseExprList parses expr (',' expr)* and builds a tuple when a comma is present.
func (p *parser) parseExprList() (Node, error) {
	start := p.peek().pos
	first, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if !p.isOp(",") {
		return first, nil
	}
	elts := []Node{first}
	for p.acceptOp(",") {
		if p.atExprEnd() {
			break
		}
		n, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		elts = append(elts, n)
	}
	return &Collection{At: start, Kind: TupleKind, Elts: elts}, nil
}

func (p *parser) atExprEnd() bool {
	t := p.peek()
	if t.kind == tokEOF {
		return true
	}
	return t.kind == tokOp && (t.text == ")" || t.text == "]" || t.text == "}" || t.text == ":" || t.text == "=")
}

func (p *parser) parseExpr() (Node, error) {
	if p.isKeyword("lambda") {
		return p.parseLambda()
	}
	start := p.peek().pos
	n, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if !p.isKeyword("if") {
		return n, nil
	}
	// "x if c else y" but not the "if" of a comprehension, which never has an else
	// before the closing bracket; the comprehension parser stops at parseOr.
	save := p.i
	p.next()
	cond, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if !p.isKeyword("else") {
		p.i = save
		return n, nil
	}
	p.next()
	els, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	return &IfExp{At: start, Cond: cond, Then: n, Else: els}, nil
}

func (p *parser) parseLambda() (Node, error) {
	start := p.next().pos
	var params []string
	for !p.isOp(":") {
		t := p.next()
		switch {
		case t.kind == tokName:
			params = append(params, t.text)
		case t.kind == tokOp && (t.text == "," || t.text == "*" || t.text == "**" || t.text == "=" || t.text == "/"):
		case t.kind == tokNumber || t.kind == tokString:
		default:
			return nil, errorf(ErrSyntax, t.pos, "invalid lambda parameter %s", describe(t))
		}
	}
	p.next()
	body, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	return &Lambda{At: start, Params: params, Body: body}, nil
}

func (p *parser) parseOr() (Node, error) {
	return p.parseLogical("or", p.parseAnd)
}

func (p *parser) parseAnd() (Node, error) {
	return p.parseLogical("and", p.parseNot)
}

func (p *parser) parseLogical(op string, operand func() (Node, error)) (Node, error) {
	start := p.peek().pos
	x, err := operand()
	if err != nil {
		return nil, err
	}
	if !p.isKeyword(op) {
		return x, nil
	}
	xs := []Node{x}
	for p.isKeyword(op) {
		p.next()
		y, err := operand()
		if err != nil {
			return nil, err
		}
		xs = append(xs, y)
	}
	return &Logical{At: start, Op: op, Xs: xs}, nil
}

func (p *parser) parseNot() (Node, error) {
	if p.isKeyword("not") {
		t := p.next()
		x, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		return &Unary{At: t.pos, Op: "not", X: x}, nil
	}
	return p.parseComparison()
}

func (p *parser) compareOp() (string, int) {
	t := p.peek()
	switch {
	case t.kind == tokOp:
		switch t.text {
		case "==", "!=", "<", "<=", ">", ">=":
			return t.text, 1
		}
	case t.kind == tokName && t.text == "in":
		return "in", 1
	case t.kind == tokName && t.text == "not":
		if n := p.peekAt(1); n.kind == tokName && n.text == "in" {
			return "not in", 2
		}
	case t.kind == tokName && t.text == "is":
		if n := p.peekAt(1); n.kind == tokName && n.text == "not" {
			return "is not", 2
		}
		return "is", 1
	}
	return "", 0
}

func (p *parser) parseComparison() (Node, error) {
	start := p.peek().pos
	x, err := p.parseBinary(0)
	if err != nil {
		return nil, err
	}
	op, width := p.compareOp()
	if width == 0 {
		return x, nil
	}
	cmp := &Compare{At: start, X: x}
	for width > 0 {
		p.i += width
		y, err := p.parseBinary(0)
		if err != nil {
			return nil, err
		}
		cmp.Ops = append(cmp.Ops, op)
		cmp.Ys = append(cmp.Ys, y)
		op, width = p.compareOp()
	}
	return cmp, nil
}

// binaryLevels lists infix operators from lowest to highest precedence.
var binaryLevels = [][]string{
	{"|"},
	{"^"},
	{"&"},
	{"<<", ">>"},
	{"+", "-"},
	{"*", "/", "//", "%", "@"},
}

func (p *parser) parseBinary(level int) (Node, error) {
	if level == len(binaryLevels) {
		return p.parseFactor()
	}
	start := p.peek().pos
	x, err := p.parseBinary(level + 1)
	if err != nil {
		return nil, err
	}
	for {
		t := p.peek()
		if t.kind != tokOp || !contains(binaryLevels[level], t.text) {
			return x, nil
		}
		p.next()
		y, err := p.parseBinary(level + 1)
		if err != nil {
			return nil, err
		}
		x = &Binary{At: start, Op: t.text, X: x, Y: y}
	}
}

func (p *parser) parseFactor() (Node, error) {
	t := p.peek()
	if t.kind == tokOp && (t.text == "+" || t.text == "-" || t.text == "~") {
		p.next()
		x, err := p.parseFactor()
		if err != nil {
			return nil, err
		}
		return &Unary{At: t.pos, Op: t.text, X: x}, nil
	}
	return p.parsePower()
}

// parsePower handles ** which binds tighter than unary minus on its left
// and is right associative.
func (p *parser) parsePower() (Node, error) {
	start := p.peek().pos
	x, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	if !p.acceptOp("**") {
		return x, nil
	}
	y, err := p.parseFactor()
	if err != nil {
		return nil, err
	}
	return &Binary{At: start, Op: "**", X: x, Y: y}, nil
}

func (p *parser) parsePrimary() (Node, error) {
	x, err := p.parseAtom()
	if err != nil {
		return nil, err
	}
	for {
		t := p.peek()
		if t.kind != tokOp {
			return x, nil
		}
		switch t.text {
		case "(":
			p.next()
			call, err := p.parseCallArgs(x)
			if err != nil {
				return nil, err
			}
			x = call
		case "[":
			p.next()
			idx, err := p.parseSubscript()
			if err != nil {
				return nil, err
			}
			if _, err := p.expectOp("]"); err != nil {
				return nil, err
			}
			x = &Subscript{At: t.pos, X: x, Index: idx}
		case ".":
			p.next()
			name := p.next()
			if name.kind != tokName {
				return nil, errorf(ErrSyntax, name.pos, "expected attribute name, found %s", describe(name))
			}
			x = &Attribute{At: t.pos, X: x, Name: name.text}
		default:
			return x, nil
		}
	}
}

func (p *parser) parseCallArgs(fn Node) (Node, error) {
	call := &Call{At: fn.Pos(), Func: fn}
	for !p.isOp(")") {
		t := p.peek()
		switch {
		case t.kind == tokOp && (t.text == "*" || t.text == "**"):
			p.next()
			x, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			call.Args = append(call.Args, &Starred{At: t.pos, Double: t.text == "**", X: x})
		case t.kind == tokName && !keywords[t.text] && p.peekAt(1).kind == tokOp && p.peekAt(1).text == "=":
			p.i += 2
			v, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			call.Keywords = append(call.Keywords, &Keyword{At: t.pos, Name: t.text, Value: v})
		default:
			x, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			if p.isKeyword("for") {
				comp, err := p.parseComprehension(t.pos, TupleKind, x, nil)
				if err != nil {
					return nil, err
				}
				x = comp
			}
			call.Args = append(call.Args, x)
		}
		if !p.acceptOp(",") {
			break
		}
	}
	if _, err := p.expectOp(")"); err != nil {
		return nil, err
	}
	return call, nil
}

func (p *parser) parseSubscript() (Node, error) {
	start := p.peek().pos
	var lo Node
	if !p.isOp(":") {
		n, err := p.parseExprList()
		if err != nil {
			return nil, err
		}
		if !p.isOp(":") {
			return n, nil
		}
		lo = n
	}
	sl := &Slice{At: start, Lo: lo}
	p.next()
	if !p.isOp(":") && !p.isOp("]") {
		hi, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		sl.Hi = hi
	}
	if p.acceptOp(":") && !p.isOp("]") {
		step, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		sl.Step = step
	}
	return sl, nil
}

func (p *parser) parseAtom() (Node, error) {
	t := p.next()
	switch t.kind {
	case tokNumber:
		if t.imag {
			return nil, errorf(ErrDisallowedSyntax, t.pos, "complex literal %q", t.text)
		}
		return &Number{At: t.pos, Value: t.num}, nil
	case tokString:
		s := &String{At: t.pos, Value: t.text}
		for p.peek().kind == tokString {
			s.Value += p.next().text
		}
		return s, nil
	case tokName:
		switch t.text {
		case "True":
			return &Bool{At: t.pos, Value: true}, nil
		case "False":
			return &Bool{At: t.pos, Value: false}, nil
		}
		if keywords[t.text] && t.text != "None" {
			return nil, errorf(ErrSyntax, t.pos, "unexpected keyword %q", t.text)
		}
		return &Name{At: t.pos, ID: t.text}, nil
	case tokOp:
		switch t.text {
		case "(":
			return p.parseParen(t.pos)
		case "[":
			return p.parseDisplay(t.pos, ListKind, "]")
		case "{":
			return p.parseDisplay(t.pos, SetKind, "}")
		}
	}
	return nil, errorf(ErrSyntax, t.pos, "unexpected %s", describe(t))
}

func (p *parser) parseParen(start int) (Node, error) {
	if p.acceptOp(")") {
		return &Collection{At: start, Kind: TupleKind}, nil
	}
	x, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if p.isKeyword("for") {
		comp, err := p.parseComprehension(start, TupleKind, x, nil)
		if err != nil {
			return nil, err
		}
		if _, err := p.expectOp(")"); err != nil {
			return nil, err
		}
		return comp, nil
	}
	if p.acceptOp(")") {
		return x, nil
	}
	if _, err := p.expectOp(","); err != nil {
		return nil, err
	}
	elts := []Node{x}
	for !p.isOp(")") {
		y, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		elts = append(elts, y)
		if !p.acceptOp(",") {
			break
		}
	}
	if _, err := p.expectOp(")"); err != nil {
		return nil, err
	}
	return &Collection{At: start, Kind: TupleKind, Elts: elts}, nil
}

// parseDisplay parses list, set and dict displays and their comprehensions.
func (p *parser) parseDisplay(start int, kind CollectionKind, closer string) (Node, error) {
	if p.acceptOp(closer) {
		if kind == SetKind {
			kind = DictKind
		}
		return &Collection{At: start, Kind: kind}, nil
	}
	first, err := p.parseDisplayItem()
	if err != nil {
		return nil, err
	}
	var firstValue Node
	if kind == SetKind && p.acceptOp(":") {
		kind = DictKind
		firstValue, err = p.parseExpr()
		if err != nil {
			return nil, err
		}
	}
	if p.isKeyword("for") {
		comp, err := p.parseComprehension(start, kind, first, firstValue)
		if err != nil {
			return nil, err
		}
		if _, err := p.expectOp(closer); err != nil {
			return nil, err
		}
		return comp, nil
	}
	elts := []Node{first}
	if firstValue != nil {
		elts = append(elts, firstValue)
	}
	for p.acceptOp(",") {
		if p.isOp(closer) {
			break
		}
		x, err := p.parseDisplayItem()
		if err != nil {
			return nil, err
		}
		elts = append(elts, x)
		if kind == DictKind {
			if _, err := p.expectOp(":"); err != nil {
				return nil, err
			}
			v, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			elts = append(elts, v)
		}
	}
	if _, err := p.expectOp(closer); err != nil {
		return nil, err
	}
	return &Collection{At: start, Kind: kind, Elts: elts}, nil
}

func (p *parser) parseDisplayItem() (Node, error) {
	t := p.peek()
	if t.kind == tokOp && (t.text == "*" || t.text == "**") {
		p.next()
		x, err := p.parseBinary(0)
		if err != nil {
			return nil, err
		}
		return &Starred{At: t.pos, Double: t.text == "**", X: x}, nil
	}
	return p.parseExpr()
}

// parseComprehension parses one or more "for target in iter [if cond]" clauses.
func (p *parser) parseComprehension(start int, kind CollectionKind, elt, value Node) (*Comprehension, error) {
	comp := &Comprehension{At: start, Kind: kind, Elt: elt, Value: value}
	forTok := p.next()
	if forTok.kind != tokName || forTok.text != "for" {
		return nil, errorf(ErrSyntax, forTok.pos, "expected 'for'")
	}
	target, err := p.parseTargetList()
	if err != nil {
		return nil, err
	}
	comp.Target = target
	if !p.isKeyword("in") {
		return nil, errorf(ErrSyntax, p.peek().pos, "expected 'in' in comprehension")
	}
	p.next()
	iter, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	comp.Iter = iter
	for p.isKeyword("if") {
		p.next()
		cond, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		comp.Conds = append(comp.Conds, cond)
	}
	if p.isKeyword("for") {
		inner, err := p.parseComprehension(p.peek().pos, kind, nil, nil)
		if err != nil {
			return nil, err
		}
		comp.Inner = inner
	}
	return comp, nil
}

func (p *parser) parseTargetList() (Node, error) {
	start := p.peek().pos
	first, err := p.parseBinary(0)
	if err != nil {
		return nil, err
	}
	if !p.isOp(",") {
		return first, nil
	}
	elts := []Node{first}
	for p.acceptOp(",") {
		if p.isKeyword("in") {
			break
		}
		x, err := p.parseBinary(0)
		if err != nil {
			return nil, err
		}
		elts = append(elts, x)
	}
	return &Collection{At: start, Kind: TupleKind, Elts: elts}, nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
