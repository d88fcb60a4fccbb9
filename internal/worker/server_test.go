package worker

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"helixpi/internal/engine"
	"helixpi/internal/model"
	"helixpi/internal/vector"
)

func dial(t *testing.T, run RunFunc) *websocket.Conn {
	t.Helper()
	srv := httptest.NewServer(NewServer(run, nil).Handler())
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	_ = conn.SetReadDeadline(time.Now().Add(30 * time.Second))
	return conn
}

func roundTrip(t *testing.T, conn *websocket.Conn, msg any) Response {
	t.Helper()
	if err := conn.WriteJSON(msg); err != nil {
		t.Fatalf("write: %v", err)
	}
	var resp Response
	if err := conn.ReadJSON(&resp); err != nil {
		t.Fatalf("read: %v", err)
	}
	return resp
}

func TestRunRequestReturnsOutput(t *testing.T) {
	seeds := make(chan int64, 1)
	conn := dial(t, func(ctx context.Context, input model.Input, seed int64) (model.Output, error) {
		seeds <- seed
		out := model.NewOutput()
		out.Entities["player"] = model.Tree{Root: model.Noop{ID: "n"}}
		out.ErrorLevels["player"] = map[string]float64{"_total": 0.5}
		return out, nil
	})

	resp := roundTrip(t, conn, Request{Type: TypeRun, ID: "r1", Seed: 99})
	if resp.Type != TypeResult || resp.ID != "r1" || resp.Output == nil {
		t.Fatalf("unexpected response %+v", resp)
	}
	if got := <-seeds; got != 99 {
		t.Fatalf("seed not forwarded: %d", got)
	}
	if _, ok := resp.Output.Entities["player"].Root.(model.Noop); !ok {
		t.Fatalf("unexpected entity %#v", resp.Output.Entities["player"].Root)
	}
	if resp.Output.ErrorLevels["player"]["_total"] != 0.5 {
		t.Fatalf("unexpected error levels %+v", resp.Output.ErrorLevels)
	}
}

func TestFailuresBecomeErrorMessages(t *testing.T) {
	conn := dial(t, func(ctx context.Context, input model.Input, seed int64) (model.Output, error) {
		if seed == 1 {
			panic("sim: unknown entity type")
		}
		return model.Output{}, errors.New("boom")
	})

	resp := roundTrip(t, conn, Request{Type: TypeRun, ID: "e", Seed: 2})
	if resp.Type != TypeError || resp.ID != "e" || resp.Error != "boom" {
		t.Fatalf("unexpected response %+v", resp)
	}
	resp = roundTrip(t, conn, Request{Type: TypeRun, ID: "p", Seed: 1})
	if resp.Type != TypeError || !strings.Contains(resp.Error, "unknown entity type") {
		t.Fatalf("expected panic to be reported, got %+v", resp)
	}
	resp = roundTrip(t, conn, map[string]string{"type": "stop"})
	if resp.Type != TypeError || resp.ID == "" || !strings.Contains(resp.Error, "unknown message type") {
		t.Fatalf("unexpected response %+v", resp)
	}

	if err := conn.WriteMessage(websocket.TextMessage, []byte("{not json")); err != nil {
		t.Fatalf("write: %v", err)
	}
	var bad Response
	if err := conn.ReadJSON(&bad); err != nil {
		t.Fatalf("read: %v", err)
	}
	if bad.Type != TypeError || !strings.Contains(bad.Error, "decode request") {
		t.Fatalf("unexpected response %+v", bad)
	}
}

func TestWorkerRunsEngine(t *testing.T) {
	cfg := engine.DefaultConfig()
	cfg.Search.PopulationSize = 16
	cfg.Search.Generations = 2
	conn := dial(t, func(ctx context.Context, input model.Input, seed int64) (model.Output, error) {
		result, err := engine.Run(ctx, input, seed, cfg)
		return result.Output, err
	})

	input := model.Input{
		Actors: map[string]model.ActorSpec{"player": {Width: 1, Height: 1}},
		Scenarios: []model.Scenario{{
			ID: "s",
			Actors: map[string][]model.Frame{"player": {
				{Frame: 0, Position: vector.New(0, 0)},
				{Frame: 1, Position: vector.New(1, 0)},
			}},
		}},
	}
	resp := roundTrip(t, conn, Request{Type: TypeRun, ID: "live", Seed: 3, Input: input})
	if resp.Type != TypeResult || resp.Output.Entities["player"].Root == nil {
		t.Fatalf("unexpected response %+v", resp)
	}
	if _, ok := resp.Output.Positions["player"]["s"]; !ok {
		t.Fatalf("missing positions %+v", resp.Output.Positions)
	}

	resp = roundTrip(t, conn, Request{Type: TypeRun, ID: "empty", Seed: 3})
	if resp.Type != TypeError || !strings.Contains(resp.Error, engine.ErrNoActors.Error()) {
		t.Fatalf("expected no actors error, got %+v", resp)
	}
}

func TestHealthz(t *testing.T) {
	srv := httptest.NewServer(NewServer(nil, nil).Handler())
	defer srv.Close()
	resp, err := http.Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK || string(body) != "ok" {
		t.Fatalf("unexpected health response %d %q", resp.StatusCode, body)
	}
}
