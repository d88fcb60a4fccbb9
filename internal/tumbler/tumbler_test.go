package tumbler

import (
	"reflect"
	"testing"

	"helixpi/internal/fitness"
	"helixpi/internal/genotype"
	"helixpi/internal/model"
	"helixpi/internal/vector"
)

func walkRightScenario() (model.Input, []model.Scenario) {
	input := model.Input{
		Keys:   []string{"space"},
		Actors: map[string]model.ActorSpec{"player": {Width: 10, Height: 10}},
	}
	scenario := model.Scenario{
		ID: "walk",
		Actors: map[string][]model.Frame{"player": {
			{Frame: 0, Position: vector.New(0, 0)},
			{Frame: 1, Position: vector.New(1, 0)},
			{Frame: 2, Position: vector.New(2, 0)},
		}},
	}
	return input, []model.Scenario{scenario}
}

func TestNormalizeCases(t *testing.T) {
	move := model.Move{ID: "m", Direction: model.Right, Amount: 1}
	cases := []struct {
		name string
		in   model.Entity
		want model.Entity
	}{
		{
			name: "all noop branch collapses",
			in:   model.InputConditional{ID: "i", Key: "k", Then: model.Noop{ID: "a"}, Else: model.Noop{ID: "b"}},
			want: model.Noop{ID: "i"},
		},
		{
			name: "empty sequence collapses",
			in:   model.Sequence{ID: "s"},
			want: model.Noop{ID: "s"},
		},
		{
			name: "nested sequence flattened and noops dropped",
			in: model.Sequence{ID: "s", Children: []model.Entity{
				model.Noop{ID: "a"},
				model.Sequence{ID: "t", Children: []model.Entity{move, model.Noop{ID: "b"}}},
				model.MultiplyVelocity{ID: "v", Scalar: 2},
			}},
			want: model.Sequence{ID: "s", Children: []model.Entity{move, model.MultiplyVelocity{ID: "v", Scalar: 2}}},
		},
		{
			name: "collapse propagates upward",
			in: model.OnCreate{ID: "o", Body: model.Sequence{ID: "s", Children: []model.Entity{
				model.CollisionConditional{ID: "c", Body: model.Noop{ID: "n"}},
				model.Noop{ID: "n2"},
			}}},
			want: model.Noop{ID: "o"},
		},
		{
			name: "conditional keeps noop branch",
			in:   model.InputConditional{ID: "i", Key: "k", Then: move, Else: model.Noop{ID: "b"}},
			want: model.InputConditional{ID: "i", Key: "k", Then: move, Else: model.Noop{ID: "b"}},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Normalize(tc.in); !reflect.DeepEqual(got, tc.want) {
				t.Fatalf("got %s want %s", model.Shape(got), model.Shape(tc.want))
			}
		})
	}
}

func TestNormalizeIsIdempotent(t *testing.T) {
	for seed := int64(0); seed < 300; seed++ {
		tree := genotype.Generate(seed, []string{"left", "right"}, 0)
		once := Normalize(tree)
		twice := Normalize(once)
		if !reflect.DeepEqual(once, twice) {
			t.Fatalf("seed %d: %s != %s", seed, model.Shape(once), model.Shape(twice))
		}
	}
}

func TestEliminateDeadCodeRemovesUnreachableBranch(t *testing.T) {
	input, scenarios := walkRightScenario()
	fn := fitness.NewChecker(input, scenarios, "player")
	tree := model.Sequence{ID: "s", Children: []model.Entity{
		model.Move{ID: "m", Direction: model.Right, Amount: 1},
		model.CollisionConditional{ID: "c", Body: model.Move{ID: "u", Direction: model.Up, Amount: 5}},
	}}

	got := Tumble(tree, fn)
	want := model.Sequence{ID: "s", Children: []model.Entity{model.Move{ID: "m", Direction: model.Right, Amount: 1}}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %s want %s", model.Shape(got), model.Shape(want))
	}
}

func TestEliminateDeadCodeNeverRegresses(t *testing.T) {
	input, scenarios := walkRightScenario()
	fn := fitness.NewChecker(input, scenarios, "player")
	for seed := int64(0); seed < 100; seed++ {
		tree := genotype.Generate(seed, input.Keys, 0)
		before := fn(tree).Fitness
		after := fn(EliminateDeadCode(tree, fn)).Fitness
		if after > before {
			t.Fatalf("seed %d: fitness regressed %v -> %v", seed, before, after)
		}
	}
}

func TestTumbleWithoutFitnessOnlyNormalizes(t *testing.T) {
	tree := model.Sequence{ID: "s", Children: []model.Entity{
		model.Move{ID: "m", Direction: model.Right, Amount: 1},
		model.Noop{ID: "n"},
	}}
	got := Tumble(tree, nil)
	want := model.Sequence{ID: "s", Children: []model.Entity{model.Move{ID: "m", Direction: model.Right, Amount: 1}}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %s", model.Shape(got))
	}
}
