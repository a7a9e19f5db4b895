package expr

// AST node kinds. The set is closed: the evaluator is a type switch over
// exactly these variants.
type node interface {
	exprNode()
}

type literalNode struct {
	value any
}

type variableNode struct {
	name string
}

type binaryNode struct {
	left  node
	op    string
	right node
}

type unaryNode struct {
	op      string
	operand node
}

type callNode struct {
	name string
	args []node
}

type arrayNode struct {
	elements []node
}

type indexNode struct {
	target node
	index  node
}

func (literalNode) exprNode()  {}
func (variableNode) exprNode() {}
func (binaryNode) exprNode()   {}
func (unaryNode) exprNode()    {}
func (callNode) exprNode()     {}
func (arrayNode) exprNode()    {}
func (indexNode) exprNode()    {}
