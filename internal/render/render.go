// Package render prints entity trees as pseudocode and parses that
// pseudocode back into trees.
//
//	move right 1
//	velocity = (2, 0)
//	velocity *= 0.5
//	noop
//	if input "left" { ... } else { ... }
//	if colliding { ... }
//	on create { ... }
//	do { ... }
//
// A sequence is written as its statements when it is the whole program or a
// block body, and as a do block otherwise. A one-statement sequence is always
// a do block so it stays distinct from its only child.
package render

import (
	"fmt"
	"strconv"
	"strings"

	"helixpi/internal/model"
)

const indentUnit = "  "

// Render returns the pseudocode for e with every line indented indent
// levels. Output is deterministic and ends with a newline unless e is an
// empty sequence.
func Render(e model.Entity, indent int) string {
	var b strings.Builder
	writeBlock(&b, e, indent)
	return b.String()
}

func writeBlock(b *strings.Builder, e model.Entity, indent int) {
	if seq, ok := e.(model.Sequence); ok && len(seq.Children) != 1 {
		for _, child := range seq.Children {
			writeStatement(b, child, indent)
		}
		return
	}
	writeStatement(b, e, indent)
}

func writeStatement(b *strings.Builder, e model.Entity, indent int) {
	pad := strings.Repeat(indentUnit, indent)
	switch n := e.(type) {
	case model.Move:
		fmt.Fprintf(b, "%smove %s %s\n", pad, n.Direction, number(n.Amount))
	case model.SetVelocity:
		fmt.Fprintf(b, "%svelocity = (%s, %s)\n", pad, number(n.Velocity.X), number(n.Velocity.Y))
	case model.MultiplyVelocity:
		fmt.Fprintf(b, "%svelocity *= %s\n", pad, number(n.Scalar))
	case model.Noop:
		fmt.Fprintf(b, "%snoop\n", pad)
	case model.Sequence:
		fmt.Fprintf(b, "%sdo {\n", pad)
		for _, child := range n.Children {
			writeStatement(b, child, indent+1)
		}
		fmt.Fprintf(b, "%s}\n", pad)
	case model.InputConditional:
		fmt.Fprintf(b, "%sif input %s {\n", pad, strconv.Quote(n.Key))
		writeBlock(b, n.Then, indent+1)
		fmt.Fprintf(b, "%s} else {\n", pad)
		writeBlock(b, n.Else, indent+1)
		fmt.Fprintf(b, "%s}\n", pad)
	case model.CollisionConditional:
		fmt.Fprintf(b, "%sif colliding {\n", pad)
		writeBlock(b, n.Body, indent+1)
		fmt.Fprintf(b, "%s}\n", pad)
	case model.OnCreate:
		fmt.Fprintf(b, "%son create {\n", pad)
		writeBlock(b, n.Body, indent+1)
		fmt.Fprintf(b, "%s}\n", pad)
	default:
		panic(fmt.Sprintf("render: unknown entity type %T", e))
	}
}

func number(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
