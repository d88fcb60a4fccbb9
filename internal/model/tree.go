package model

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
)

// Children returns a freshly allocated slice of e's children in evaluation
// order. Leaves return nil.
func Children(e Entity) []Entity {
	switch n := e.(type) {
	case Move, SetVelocity, MultiplyVelocity, Noop:
		return nil
	case Sequence:
		return append([]Entity(nil), n.Children...)
	case InputConditional:
		return []Entity{n.Then, n.Else}
	case CollisionConditional:
		return []Entity{n.Body}
	case OnCreate:
		return []Entity{n.Body}
	default:
		panic(fmt.Sprintf("model: unknown entity type %T", e))
	}
}

// WithChildren rebuilds branch e around children. Passing the wrong number of
// children for a fixed-arity branch is a structural defect and panics.
func WithChildren(e Entity, children []Entity) Entity {
	switch n := e.(type) {
	case Move, SetVelocity, MultiplyVelocity, Noop:
		if len(children) != 0 {
			panic(fmt.Sprintf("model: leaf %s cannot take children", e.Kind()))
		}
		return e
	case Sequence:
		n.Children = children
		return n
	case InputConditional:
		mustArity(e, children, 2)
		n.Then, n.Else = children[0], children[1]
		return n
	case CollisionConditional:
		mustArity(e, children, 1)
		n.Body = children[0]
		return n
	case OnCreate:
		mustArity(e, children, 1)
		n.Body = children[0]
		return n
	default:
		panic(fmt.Sprintf("model: unknown entity type %T", e))
	}
}

func mustArity(e Entity, children []Entity, want int) {
	if len(children) != want {
		panic(fmt.Sprintf("model: %s requires %d children, got %d", e.Kind(), want, len(children)))
	}
}

func IsLeaf(e Entity) bool {
	switch e.(type) {
	case Move, SetVelocity, MultiplyVelocity, Noop:
		return true
	default:
		return false
	}
}

// Preorder lists every node of root, each node before its descendants.
// Positions in this list are the stable handles used by At and ReplaceAt.
func Preorder(root Entity) []Entity {
	out := make([]Entity, 0, 8)
	var walk func(Entity)
	walk = func(e Entity) {
		out = append(out, e)
		for _, child := range Children(e) {
			walk(child)
		}
	}
	walk(root)
	return out
}

// Size counts the nodes in root.
func Size(root Entity) int {
	total := 1
	for _, child := range Children(root) {
		total += Size(child)
	}
	return total
}

// At returns the node at preorder position index.
func At(root Entity, index int) (Entity, bool) {
	if index < 0 {
		return nil, false
	}
	if index == 0 {
		return root, true
	}
	offset := 1
	for _, child := range Children(root) {
		size := Size(child)
		if index < offset+size {
			return At(child, index-offset)
		}
		offset += size
	}
	return nil, false
}

// ReplaceAt returns a copy of root with the node at preorder position index
// replaced by repl. Only the nodes on the path to index are rebuilt.
func ReplaceAt(root, repl Entity, index int) (Entity, bool) {
	if index < 0 {
		return root, false
	}
	if index == 0 {
		return repl, true
	}
	offset := 1
	children := Children(root)
	for i, child := range children {
		size := Size(child)
		if index < offset+size {
			next, ok := ReplaceAt(child, repl, index-offset)
			if !ok {
				return root, false
			}
			children[i] = next
			return WithChildren(root, children), true
		}
		offset += size
	}
	return root, false
}

// Map rebuilds root bottom-up: children are transformed first and fn sees
// each node with its already transformed children.
func Map(root Entity, fn func(Entity) Entity) Entity {
	children := Children(root)
	if len(children) > 0 {
		for i, child := range children {
			children[i] = Map(child, fn)
		}
		root = WithChildren(root, children)
	}
	return fn(root)
}

// EnsureUniqueIDs renames repeated ids so that every node in the tree carries
// a distinct one. The first occurrence in preorder keeps its id.
func EnsureUniqueIDs(root Entity) Entity {
	seen := make(map[string]bool, 16)
	for _, e := range Preorder(root) {
		seen[e.EntityID()] = false
	}
	var walk func(Entity) Entity
	walk = func(e Entity) Entity {
		id := e.EntityID()
		if seen[id] {
			for n := 1; ; n++ {
				candidate := id + "#" + strconv.Itoa(n)
				if _, taken := seen[candidate]; !taken {
					id = candidate
					break
				}
			}
			e = WithID(e, id)
		}
		seen[id] = true
		children := Children(e)
		if len(children) == 0 {
			return e
		}
		for i, child := range children {
			children[i] = walk(child)
		}
		return WithChildren(e, children)
	}
	return walk(root)
}

// Shape renders root without ids. Two trees with the same shape behave
// identically under simulation.
func Shape(root Entity) string {
	var b strings.Builder
	writeShape(&b, root)
	return b.String()
}

func writeShape(b *strings.Builder, e Entity) {
	switch n := e.(type) {
	case Move:
		fmt.Fprintf(b, "move(%s,%g)", n.Direction, n.Amount)
		return
	case SetVelocity:
		fmt.Fprintf(b, "setVelocity(%g,%g)", n.Velocity.X, n.Velocity.Y)
		return
	case MultiplyVelocity:
		fmt.Fprintf(b, "multiplyVelocity(%g)", n.Scalar)
		return
	case Noop:
		b.WriteString("noop")
		return
	case InputConditional:
		fmt.Fprintf(b, "inputConditional[%q]", n.Key)
	default:
		b.WriteString(string(e.Kind()))
	}
	b.WriteByte('(')
	for i, child := range Children(e) {
		if i > 0 {
			b.WriteByte(',')
		}
		writeShape(b, child)
	}
	b.WriteByte(')')
}

// Fingerprint hashes the id-free shape of root.
func Fingerprint(root Entity) string {
	digest := sha1.Sum([]byte(Shape(root)))
	return hex.EncodeToString(digest[:8])
}
