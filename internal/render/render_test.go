package render

import (
	"reflect"
	"testing"

	"helixpi/internal/genotype"
	"helixpi/internal/model"
	"helixpi/internal/vector"
)

func TestRenderForms(t *testing.T) {
	tree := model.Sequence{ID: "s", Children: []model.Entity{
		model.OnCreate{ID: "o", Body: model.SetVelocity{ID: "v", Velocity: vector.New(2, -0.5)}},
		model.InputConditional{ID: "i", Key: "left",
			Then: model.Move{ID: "m", Direction: model.Left, Amount: 1.5},
			Else: model.Sequence{ID: "e", Children: []model.Entity{
				model.MultiplyVelocity{ID: "x", Scalar: 0.9},
				model.Noop{ID: "n"},
			}},
		},
		model.CollisionConditional{ID: "c", Body: model.Sequence{ID: "one", Children: []model.Entity{
			model.Move{ID: "u", Direction: model.Up, Amount: 3},
		}}},
	}}

	want := `on create {
  velocity = (2, -0.5)
}
if input "left" {
  move left 1.5
} else {
  velocity *= 0.9
  noop
}
if colliding {
  do {
    move up 3
  }
}
`
	if got := Render(tree, 0); got != want {
		t.Fatalf("got:\n%s\nwant:\n%s", got, want)
	}
	if got := Render(model.Noop{ID: "n"}, 2); got != "    noop\n" {
		t.Fatalf("unexpected indented render %q", got)
	}
}

func TestParseAssignsPreorderIDs(t *testing.T) {
	src := `
# walk right until something is hit
move right 1
if colliding {
  velocity = (0, 0)
  velocity *= 2
}
`
	got, err := Parse(src)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	want := model.Sequence{ID: "p0", Children: []model.Entity{
		model.Move{ID: "p1", Direction: model.Right, Amount: 1},
		model.CollisionConditional{ID: "p2", Body: model.Sequence{ID: "p3", Children: []model.Entity{
			model.SetVelocity{ID: "p4", Velocity: vector.New(0, 0)},
			model.MultiplyVelocity{ID: "p5", Scalar: 2},
		}}},
	}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %#v\nwant %#v", got, want)
	}
}

func TestParseSingleStatement(t *testing.T) {
	got, err := Parse(`if input "jump" { move up 2 } else { noop }`)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	want := model.InputConditional{ID: "p0", Key: "jump",
		Then: model.Move{ID: "p1", Direction: model.Up, Amount: 2},
		Else: model.Noop{ID: "p2"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %#v", got)
	}
}

func TestParseRejectsBadInput(t *testing.T) {
	for _, src := range []string{
		"move sideways 1",
		"velocity = (1)",
		"if input { noop } else { noop }",
		"on create { noop",
		"jump",
	} {
		if _, err := Parse(src); err == nil {
			t.Fatalf("expected error for %q", src)
		}
	}
}

func TestRenderParseRoundTrip(t *testing.T) {
	for seed := int64(0); seed < 200; seed++ {
		tree := genotype.Generate(seed, []string{"left", "space bar"}, 0)
		text := Render(tree, 0)
		parsed, err := Parse(text)
		if err != nil {
			t.Fatalf("seed %d: parse %q: %v", seed, text, err)
		}
		if got := Render(parsed, 0); got != text {
			t.Fatalf("seed %d: round trip changed program\n%s\n---\n%s", seed, text, got)
		}
		if model.Shape(parsed) != model.Shape(tree) {
			t.Fatalf("seed %d: shape changed %s -> %s", seed, model.Shape(tree), model.Shape(parsed))
		}
	}
}

func TestEmptySequenceRoundTrip(t *testing.T) {
	if got := Render(model.Sequence{ID: "s"}, 0); got != "" {
		t.Fatalf("expected empty render, got %q", got)
	}
	got, err := Parse("  \n")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if !reflect.DeepEqual(got, model.Sequence{ID: "p0"}) {
		t.Fatalf("got %#v", got)
	}
}
