package render

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"

	"helixpi/internal/model"
	"helixpi/internal/vector"
)

type program struct {
	Statements []*statement `parser:"@@*"`
}

type statement struct {
	Move        *moveStmt        `parser:"  @@"`
	SetVelocity *setVelocityStmt `parser:"| @@"`
	Multiply    *multiplyStmt    `parser:"| @@"`
	Noop        bool             `parser:"| @'noop'"`
	Input       *inputStmt       `parser:"| @@"`
	Colliding   *block           `parser:"| 'if' 'colliding' @@"`
	OnCreate    *block           `parser:"| 'on' 'create' @@"`
	Do          *block           `parser:"| 'do' @@"`
}

type moveStmt struct {
	Direction string  `parser:"'move' @('up' | 'right' | 'down' | 'left')"`
	Amount    float64 `parser:"@Number"`
}

type setVelocityStmt struct {
	X float64 `parser:"'velocity' '=' '(' @Number ','"`
	Y float64 `parser:"@Number ')'"`
}

type multiplyStmt struct {
	Scalar float64 `parser:"'velocity' '*=' @Number"`
}

type inputStmt struct {
	Key  string `parser:"'if' 'input' @String"`
	Then *block `parser:"@@"`
	Else *block `parser:"'else' @@"`
}

type block struct {
	Statements []*statement `parser:"'{' @@* '}'"`
}

var parser = participle.MustBuild[program](
	participle.Lexer(lexer.MustSimple([]lexer.SimpleRule{
		{Name: "Comment", Pattern: `#[^\n]*`},
		{Name: "Whitespace", Pattern: `\s+`},
		{Name: "String", Pattern: `"(\\.|[^"\\])*"`},
		{Name: "Number", Pattern: `[-+]?(\d*\.)?\d+([eE][-+]?\d+)?`},
		{Name: "Ident", Pattern: `[a-zA-Z_]\w*`},
		{Name: "Punct", Pattern: `\*=|[(){},=]`},
	})),
	participle.Elide("Comment", "Whitespace"),
	participle.Unquote("String"),
	participle.UseLookahead(3),
)

// Parse reads pseudocode written by Render, or by hand, into an entity tree.
// Several top-level statements form a sequence. Ids are assigned in preorder
// as p0, p1, ... Blank text is an empty sequence.
func Parse(text string) (model.Entity, error) {
	if strings.TrimSpace(text) == "" {
		return model.Sequence{ID: "p0"}, nil
	}
	prog, err := parser.ParseString("", text)
	if err != nil {
		return nil, fmt.Errorf("render: parse: %w", err)
	}
	b := &builder{}
	return b.body(prog.Statements), nil
}

type builder struct {
	next int
}

func (b *builder) id() string {
	id := "p" + strconv.Itoa(b.next)
	b.next++
	return id
}

func (b *builder) body(stmts []*statement) model.Entity {
	if len(stmts) == 1 {
		return b.statement(stmts[0])
	}
	return b.sequence(stmts)
}

func (b *builder) sequence(stmts []*statement) model.Entity {
	seq := model.Sequence{ID: b.id(), Children: make([]model.Entity, 0, len(stmts))}
	for _, stmt := range stmts {
		seq.Children = append(seq.Children, b.statement(stmt))
	}
	return seq
}

func (b *builder) statement(s *statement) model.Entity {
	switch {
	case s.Move != nil:
		return model.Move{ID: b.id(), Direction: model.Direction(s.Move.Direction), Amount: s.Move.Amount}
	case s.SetVelocity != nil:
		return model.SetVelocity{ID: b.id(), Velocity: vector.New(s.SetVelocity.X, s.SetVelocity.Y)}
	case s.Multiply != nil:
		return model.MultiplyVelocity{ID: b.id(), Scalar: s.Multiply.Scalar}
	case s.Input != nil:
		id := b.id()
		then := b.body(s.Input.Then.Statements)
		return model.InputConditional{ID: id, Key: s.Input.Key, Then: then, Else: b.body(s.Input.Else.Statements)}
	case s.Colliding != nil:
		id := b.id()
		return model.CollisionConditional{ID: id, Body: b.body(s.Colliding.Statements)}
	case s.OnCreate != nil:
		id := b.id()
		return model.OnCreate{ID: id, Body: b.body(s.OnCreate.Statements)}
	case s.Do != nil:
		return b.sequence(s.Do.Statements)
	default:
		return model.Noop{ID: b.id()}
	}
}
