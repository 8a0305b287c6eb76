package expr

type node interface {
	position() int
}

type literal struct {
	pos int
	val any
}

type identifier struct {
	pos  int
	name string
}

type arrayLiteral struct {
	pos   int
	elems []node
}

// member is a.b
type member struct {
	pos  int
	obj  node
	name string
}

// index is a[expr]
type index struct {
	pos int
	obj node
	key node
}

type call struct {
	pos  int
	name string
	args []node
}

type unary struct {
	pos int
	op  string
	x   node
}

type binary struct {
	pos   int
	op    string
	left  node
	right node
}

type conditional struct {
	pos  int
	test node
	then node
	els  node
}

func (n *literal) position() int      { return n.pos }
func (n *identifier) position() int   { return n.pos }
func (n *arrayLiteral) position() int { return n.pos }
func (n *member) position() int       { return n.pos }
func (n *index) position() int        { return n.pos }
func (n *call) position() int         { return n.pos }
func (n *unary) position() int        { return n.pos }
func (n *binary) position() int       { return n.pos }
func (n *conditional) position() int  { return n.pos }
