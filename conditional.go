package active

import (
	"github.com/google/uuid"
)

// conditionalNode builds all three operands eagerly but only reads the
// branch the test selects; a change in the unchosen branch recomputes to
// the same pair and publishes nothing.
type conditionalNode struct {
	expr             *ConditionalExpr
	test, then, alt  *Node
	testTok, thenTok uuid.UUID
	altTok           uuid.UUID
}

func (c *conditionalNode) init(n *Node) error {
	test, err := Create(c.expr.Test, n.options, n.deferredCreate)
	if err != nil {
		return err
	}
	then, err := Create(c.expr.Then, n.options, n.deferredCreate)
	if err != nil {
		test.Dispose()
		return err
	}
	alt, err := Create(c.expr.Else, n.options, n.deferredCreate)
	if err != nil {
		then.Dispose()
		test.Dispose()
		return err
	}
	c.test, c.then, c.alt = test, then, alt
	c.testTok = test.Subscribe(func(Change) { n.reevaluate() })
	c.thenTok = then.Subscribe(func(Change) { n.reevaluate() })
	c.altTok = alt.Subscribe(func(Change) { n.reevaluate() })
	return nil
}

func (c *conditionalNode) evaluate(n *Node) {
	tv, tf := c.test.read()
	if tf != nil {
		n.publish(nil, tf)
		return
	}
	if tv == true {
		n.publish(c.then.read())
		return
	}
	n.publish(c.alt.read())
}

func (c *conditionalNode) teardown(n *Node) error {
	return teardownChildren(
		[]*Node{c.test, c.then, c.alt},
		[]uuid.UUID{c.testTok, c.thenTok, c.altTok},
	)
}

func (c *conditionalNode) children() []*Node {
	return []*Node{c.test, c.then, c.alt}
}
