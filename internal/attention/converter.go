package attention

import (
	"slices"
	"strings"

	"go.uber.org/zap"
)

// Node is one attention placed in the reconstructed hierarchy.
type Node struct {
	ID       int
	Name     string
	Value    Value
	Children []*Node
}

// Child is the flat view returned by ChildrenByName.
type Child struct {
	ID       int    `json:"id"`
	Name     string `json:"name"`
	Value    Value  `json:"value"`
	Weight   any    `json:"weight"`
	ParentID int    `json:"parent_id"`
}

// Converter owns the tree built from one model response. It is immutable
// after NewConverter returns and safe for concurrent reads.
type Converter struct {
	items  []Item
	roots  []*Node
	byID   map[int]*Node
	byName map[string]*Node
	logger *zap.Logger
}

// Option configures a Converter.
type Option func(*Converter)

// WithLogger routes diagnostics to l.
func WithLogger(l *zap.Logger) Option {
	return func(c *Converter) {
		if l != nil {
			c.logger = l
		}
	}
}

// NewConverter builds the tree from data["attentions"]. A missing key yields
// an empty tree; malformed entries are skipped. It never fails.
func NewConverter(data map[string]any, opts ...Option) *Converter {
	c := &Converter{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(c)
	}
	raw, _ := data["attentions"].([]any)
	items := make([]Item, 0, len(raw))
	for i, r := range raw {
		obj, ok := r.(map[string]any)
		if !ok {
			c.logger.Debug("skipping non-object attention", zap.Int("index", i))
			continue
		}
		it, err := ParseItem(obj)
		if err != nil {
			c.logger.Debug("skipping attention", zap.Int("index", i), zap.Error(err))
			continue
		}
		items = append(items, it)
	}
	c.build(items)
	return c
}

// NewConverterFromItems builds the tree from already typed items.
func NewConverterFromItems(items []Item, opts ...Option) *Converter {
	c := &Converter{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(c)
	}
	c.build(append([]Item(nil), items...))
	return c
}

func (c *Converter) build(items []Item) {
	c.byID = make(map[int]*Node, len(items))
	c.byName = make(map[string]*Node, len(items))

	// Phase 1: one node per id, so forward parent references resolve.
	c.items = make([]Item, 0, len(items))
	for _, it := range items {
		if _, dup := c.byID[it.ID]; dup {
			c.logger.Warn("duplicate attention id, keeping first", zap.Int("id", it.ID), zap.String("name", it.Name))
			continue
		}
		c.byID[it.ID] = &Node{ID: it.ID, Name: it.Name, Value: it.Value}
		c.items = append(c.items, it)
	}

	// Phase 2: attach in input order. Dangling parents and links that would
	// close a cycle make roots.
	attachedTo := make(map[int]int, len(c.items))
	for _, it := range c.items {
		node := c.byID[it.ID]
		if it.ParentID == nil {
			c.roots = append(c.roots, node)
			continue
		}
		parent, ok := c.byID[*it.ParentID]
		if !ok || reachesSelf(attachedTo, parent.ID, node.ID) {
			c.logger.Debug("unknown or cyclic parent, treating as root", zap.Int("id", it.ID), zap.Int("parent_id", *it.ParentID))
			c.roots = append(c.roots, node)
			continue
		}
		parent.Children = append(parent.Children, node)
		attachedTo[node.ID] = parent.ID
	}

	// Later names overwrite earlier ones.
	for _, it := range c.items {
		if node, ok := c.byID[it.ID]; ok {
			c.byName[it.Name] = node
		}
	}
}

// reachesSelf reports whether walking up from `from` through attached parents
// arrives at id.
func reachesSelf(attachedTo map[int]int, from, id int) bool {
	for cur := from; ; {
		if cur == id {
			return true
		}
		next, ok := attachedTo[cur]
		if !ok {
			return false
		}
		cur = next
	}
}

// Items returns a copy of the accepted flat items in input order.
func (c *Converter) Items() []Item {
	return append([]Item(nil), c.items...)
}

// Roots returns the top-level nodes in input order.
func (c *Converter) Roots() []*Node {
	return append([]*Node(nil), c.roots...)
}

// Walk visits every node depth-first, pre-order, roots at depth 0.
func (c *Converter) Walk(fn func(depth int, n *Node)) {
	var visit func(int, *Node)
	visit = func(depth int, n *Node) {
		fn(depth, n)
		for _, ch := range n.Children {
			visit(depth+1, ch)
		}
	}
	for _, r := range c.roots {
		visit(0, r)
	}
}

// ToMarkdown renders one heading per node, level 1 for roots, followed by
// the node's value on the next line. Sections are separated by a blank line.
func (c *Converter) ToMarkdown() string {
	var sections []string
	c.Walk(func(depth int, n *Node) {
		sections = append(sections, strings.Repeat("#", depth+1)+" "+n.Name+"\n"+n.Value.String())
	})
	return strings.Join(sections, "\n\n")
}

// ChildrenByName lists the children of the node carrying name, ordered by
// their position in the item list. Unknown names yield an empty slice.
func (c *Converter) ChildrenByName(name string) []Child {
	node, ok := c.byName[name]
	if !ok {
		c.logger.Debug("no attention with name", zap.String("name", name))
		return []Child{}
	}
	order := make(map[int]int, len(c.items))
	for i, it := range c.items {
		order[it.ID] = i
	}
	kids := append([]*Node(nil), node.Children...)
	slices.SortStableFunc(kids, func(a, b *Node) int { return order[a.ID] - order[b.ID] })

	out := make([]Child, 0, len(kids))
	for _, k := range kids {
		w, _ := c.Weight(k.ID)
		out = append(out, Child{ID: k.ID, Name: k.Name, Value: k.Value, Weight: w, ParentID: node.ID})
	}
	return out
}

// Weight returns the weight of the item with id, scanning the flat list.
func (c *Converter) Weight(id int) (any, bool) {
	for _, it := range c.items {
		if it.ID == id {
			return it.Weight, it.Weight != nil
		}
	}
	return nil, false
}
