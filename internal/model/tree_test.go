package model

import (
	"encoding/json"
	"errors"
	"reflect"
	"testing"

	"helixpi/internal/vector"
)

func sampleTree() Entity {
	return Sequence{ID: "root", Children: []Entity{
		Move{ID: "m1", Direction: Right, Amount: 1},
		InputConditional{
			ID:   "if",
			Key:  "left",
			Then: Move{ID: "m2", Direction: Left, Amount: 2},
			Else: Noop{ID: "n1"},
		},
		CollisionConditional{ID: "col", Body: MultiplyVelocity{ID: "mv", Scalar: 0.5}},
	}}
}

func TestPreorderAndSize(t *testing.T) {
	tree := sampleTree()
	var ids []string
	for _, e := range Preorder(tree) {
		ids = append(ids, e.EntityID())
	}
	want := []string{"root", "m1", "if", "m2", "n1", "col", "mv"}
	if !reflect.DeepEqual(ids, want) {
		t.Fatalf("unexpected preorder: %v", ids)
	}
	if Size(tree) != len(want) {
		t.Fatalf("unexpected size: %d", Size(tree))
	}
}

func TestAtAndReplaceAt(t *testing.T) {
	tree := sampleTree()
	for i, want := range Preorder(tree) {
		got, ok := At(tree, i)
		if !ok || got.EntityID() != want.EntityID() {
			t.Fatalf("At(%d)=%v ok=%v, want %s", i, got, ok, want.EntityID())
		}
	}
	if _, ok := At(tree, 99); ok {
		t.Fatal("expected out of range lookup to fail")
	}

	replaced, ok := ReplaceAt(tree, SetVelocity{ID: "sv", Velocity: vector.New(1, 0)}, 4)
	if !ok {
		t.Fatal("replace failed")
	}
	node, _ := At(replaced, 4)
	if node.EntityID() != "sv" {
		t.Fatalf("unexpected node after replace: %v", node)
	}
	original, _ := At(tree, 4)
	if original.EntityID() != "n1" {
		t.Fatal("replace mutated the source tree")
	}
	if _, ok := ReplaceAt(tree, Noop{ID: "x"}, 42); ok {
		t.Fatal("expected out of range replace to fail")
	}
}

func TestMapIsBottomUp(t *testing.T) {
	var visited []string
	Map(sampleTree(), func(e Entity) Entity {
		visited = append(visited, e.EntityID())
		return e
	})
	want := []string{"m1", "m2", "n1", "if", "mv", "col", "root"}
	if !reflect.DeepEqual(visited, want) {
		t.Fatalf("unexpected map order: %v", visited)
	}
}

func TestEnsureUniqueIDs(t *testing.T) {
	dup := Sequence{ID: "s", Children: []Entity{
		Noop{ID: "a"},
		Noop{ID: "a"},
		Sequence{ID: "s", Children: []Entity{Noop{ID: "a"}, Noop{ID: "a#1"}}},
	}}
	out := EnsureUniqueIDs(dup)
	seen := map[string]bool{}
	for _, e := range Preorder(out) {
		if seen[e.EntityID()] {
			t.Fatalf("duplicate id %s in %s", e.EntityID(), Shape(out))
		}
		seen[e.EntityID()] = true
	}
	if out.EntityID() != "s" {
		t.Fatalf("first occurrence renamed: %s", out.EntityID())
	}
	if Shape(out) != Shape(dup) {
		t.Fatal("renaming changed the shape")
	}
}

func TestWithChildrenArityPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic for arity violation")
		}
	}()
	WithChildren(InputConditional{ID: "if", Key: "a", Then: Noop{ID: "a"}, Else: Noop{ID: "b"}}, []Entity{Noop{ID: "c"}})
}

func TestFingerprintIgnoresIDs(t *testing.T) {
	a := sampleTree()
	b := Map(a, func(e Entity) Entity { return WithID(e, "x"+e.EntityID()) })
	if Fingerprint(a) != Fingerprint(b) {
		t.Fatal("fingerprint depends on ids")
	}
	c, _ := ReplaceAt(a, Noop{ID: "m1"}, 1)
	if Fingerprint(a) == Fingerprint(c) {
		t.Fatal("fingerprint ignores structure")
	}
}

func TestTreeJSONRoundTrip(t *testing.T) {
	tree := Tree{Root: Sequence{ID: "root", Children: []Entity{
		sampleTree(),
		OnCreate{ID: "oc", Body: SetVelocity{ID: "sv", Velocity: vector.New(0, -3)}},
	}}}
	data, err := json.Marshal(tree)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var decoded Tree
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !reflect.DeepEqual(decoded, tree) {
		t.Fatalf("round trip mismatch\n got=%s\nwant=%s", Shape(decoded.Root), Shape(tree.Root))
	}
}

func TestDecodeEntityRejectsBadInput(t *testing.T) {
	cases := map[string]string{
		"unknown type":   `{"type":"teleport","id":"t"}`,
		"arity":          `{"type":"inputConditional","id":"i","key":"a","children":[{"type":"noop","id":"n"}]}`,
		"leaf children":  `{"type":"noop","id":"n","children":[{"type":"noop","id":"m"}]}`,
		"bad direction":  `{"type":"move","id":"m","direction":"north","amount":1}`,
		"empty document": `null`,
	}
	for name, doc := range cases {
		if _, err := DecodeEntity([]byte(doc)); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
	_, err := DecodeEntity([]byte(`{"type":"teleport","id":"t"}`))
	if !errors.Is(err, ErrUnknownEntityType) {
		t.Fatalf("expected ErrUnknownEntityType, got %v", err)
	}
}

func TestOutputJSONShape(t *testing.T) {
	out := NewOutput()
	out.Entities["hero"] = Tree{Root: Move{ID: "m", Direction: Up, Amount: 1}}
	out.ErrorLevels["hero"] = map[string]float64{"s1": 0.5, "_total": 0.5}
	data, err := json.Marshal(out)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var raw map[string]map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("unmarshal raw: %v", err)
	}
	hero, ok := raw["entities"]["hero"].(map[string]any)
	if !ok || hero["type"] != "move" || hero["direction"] != "up" {
		t.Fatalf("unexpected entity encoding: %s", data)
	}
}
