package admin

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"livemap.ai/internal/sim/world"
	"livemap.ai/internal/sim/world/feature/livemap/blocks"
	"livemap.ai/internal/sim/world/feature/livemap/fov"
)

type fakePlayers struct {
	states map[string]*fov.State
	edits  map[string][]byte
	err    error
}

func newFake() *fakePlayers {
	return &fakePlayers{states: map[string]*fov.State{"P1": fov.NewState()}, edits: map[string][]byte{}}
}

func (f *fakePlayers) lookup(id string) (*fov.State, error) {
	if f.err != nil {
		return nil, f.err
	}
	st := f.states[id]
	if st == nil {
		return nil, world.ErrPlayerNotFound
	}
	return st, nil
}

func view(id string, st *fov.State) world.LiveMapState {
	s := st.Snapshot()
	return world.LiveMapState{
		PlayerID:      id,
		PreviousBlock: int32(s.PreviousBlock),
		Version:       s.Version,
		Window:        s.Window,
		BlocksWidth:   s.BlocksWidth,
		BlocksHeight:  s.BlocksHeight,
	}
}

func (f *fakePlayers) ListPlayers(context.Context) ([]world.PlayerInfo, error) {
	if f.err != nil {
		return nil, f.err
	}
	return []world.PlayerInfo{{ID: "P1", Name: "one"}}, nil
}

func (f *fakePlayers) PlayerLiveMap(_ context.Context, id string) (world.LiveMapState, error) {
	st, err := f.lookup(id)
	if err != nil {
		return world.LiveMapState{}, err
	}
	return view(id, st), nil
}

func (f *fakePlayers) SetPlayerVersion(_ context.Context, id string, v fov.Version) (world.LiveMapState, error) {
	st, err := f.lookup(id)
	if err != nil {
		return world.LiveMapState{}, err
	}
	if err := st.SetVersion(v.Major, v.Minor); err != nil {
		return world.LiveMapState{}, err
	}
	return view(id, st), nil
}

func (f *fakePlayers) SetPlayerWindow(_ context.Context, id string, w fov.Window) (world.LiveMapState, error) {
	st, err := f.lookup(id)
	if err != nil {
		return world.LiveMapState{}, err
	}
	if err := st.SetWindow(w.MinX, w.MaxX, w.MinY, w.MaxY); err != nil {
		return world.LiveMapState{}, err
	}
	return view(id, st), nil
}

func (f *fakePlayers) ResetPlayer(_ context.Context, id string) (world.LiveMapState, error) {
	st, err := f.lookup(id)
	if err != nil {
		return world.LiveMapState{}, err
	}
	st.Reset()
	return view(id, st), nil
}

func (f *fakePlayers) edit(kind string, mapNum uint8, id blocks.ID, data []byte) (world.BlockUpdate, error) {
	if f.err != nil {
		return world.BlockUpdate{}, f.err
	}
	if mapNum > 5 {
		return world.BlockUpdate{}, fmt.Errorf("%w: %d", world.ErrNoSuchMap, mapNum)
	}
	if kind == "land" && len(data) != 192 {
		return world.BlockUpdate{}, fmt.Errorf("%w: land is %d bytes", world.ErrBadBlockData, len(data))
	}
	f.edits[fmt.Sprintf("%s/%d/%d", kind, mapNum, id)] = data
	return world.BlockUpdate{Map: mapNum, Block: int32(id), Kind: kind, Bytes: len(data), Refreshed: []string{"P1"}}, nil
}

func (f *fakePlayers) UpdateLand(_ context.Context, mapNum uint8, id blocks.ID, land []byte) (world.BlockUpdate, error) {
	return f.edit("land", mapNum, id, land)
}

func (f *fakePlayers) UpdateStatics(_ context.Context, mapNum uint8, id blocks.ID, statics []byte) (world.BlockUpdate, error) {
	return f.edit("statics", mapNum, id, statics)
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Code string `json:"code"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("bad error body %q: %v", rec.Body.String(), err)
	}
	return body.Code
}

func TestListAndGet(t *testing.T) {
	r := NewRouter(newFake(), nil)

	rec := do(t, r, http.MethodGet, "/admin/v1/players", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"P1"`) {
		t.Fatalf("list: %d %s", rec.Code, rec.Body.String())
	}

	rec = do(t, r, http.MethodGet, "/admin/v1/players/P1/livemap", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("get: %d %s", rec.Code, rec.Body.String())
	}
	var st world.LiveMapState
	if err := json.Unmarshal(rec.Body.Bytes(), &st); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if st.BlocksWidth != 5 || st.BlocksHeight != 5 || st.PreviousBlock != -1 {
		t.Fatalf("unexpected state %+v", st)
	}

	rec = do(t, r, http.MethodGet, "/admin/v1/players/P9/livemap", "")
	if rec.Code != http.StatusNotFound || errorCode(t, rec) != "E_NOT_FOUND" {
		t.Fatalf("missing player: %d %s", rec.Code, rec.Body.String())
	}
}

func TestPutFOV(t *testing.T) {
	f := newFake()
	r := NewRouter(f, nil)

	rec := do(t, r, http.MethodPut, "/admin/v1/players/P1/livemap/fov", `{"min_x":-3,"max_x":3,"min_y":-1,"max_y":1}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("put fov: %d %s", rec.Code, rec.Body.String())
	}
	if f.states["P1"].Width() != 7 || f.states["P1"].Height() != 3 {
		t.Fatalf("window not applied")
	}

	rec = do(t, r, http.MethodPut, "/admin/v1/players/P1/livemap/fov", `{"min_x":3,"max_x":-3,"min_y":0,"max_y":0}`)
	if rec.Code != http.StatusBadRequest || errorCode(t, rec) != "E_INVALID_WINDOW" {
		t.Fatalf("inverted window: %d %s", rec.Code, rec.Body.String())
	}
	if f.states["P1"].Width() != 7 {
		t.Fatalf("rejected window changed state")
	}

	rec = do(t, r, http.MethodPut, "/admin/v1/players/P1/livemap/fov", `{"min_x":-1}`)
	if rec.Code != http.StatusBadRequest || errorCode(t, rec) != "E_BAD_REQUEST" {
		t.Fatalf("partial body: %d %s", rec.Code, rec.Body.String())
	}
}

func TestPutVersionAndReset(t *testing.T) {
	f := newFake()
	r := NewRouter(f, nil)

	rec := do(t, r, http.MethodPut, "/admin/v1/players/P1/livemap/version", `{"major":1,"minor":4}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("put version: %d %s", rec.Code, rec.Body.String())
	}
	if f.states["P1"].Version() != (fov.Version{Major: 1, Minor: 4}) {
		t.Fatalf("version not applied")
	}

	rec = do(t, r, http.MethodPut, "/admin/v1/players/P1/livemap/version", `{"major":-1,"minor":0}`)
	if rec.Code != http.StatusBadRequest || errorCode(t, rec) != "E_INVALID_VERSION" {
		t.Fatalf("negative version: %d %s", rec.Code, rec.Body.String())
	}

	f.states["P1"].Enter(42)
	rec = do(t, r, http.MethodPost, "/admin/v1/players/P1/livemap/reset", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("reset: %d %s", rec.Code, rec.Body.String())
	}
	if f.states["P1"].PreviousBlock() != -1 {
		t.Fatalf("reset did not clear previous block")
	}
}

func TestWorldTimeout(t *testing.T) {
	f := newFake()
	f.err = context.DeadlineExceeded
	rec := do(t, NewRouter(f, nil), http.MethodGet, "/admin/v1/players", "")
	if rec.Code != http.StatusServiceUnavailable || errorCode(t, rec) != "E_BUSY" {
		t.Fatalf("timeout: %d %s", rec.Code, rec.Body.String())
	}
}

func dataBody(b []byte) string {
	return `{"data":"` + base64.StdEncoding.EncodeToString(b) + `"}`
}

func TestPutBlocks(t *testing.T) {
	f := newFake()
	r := NewRouter(f, nil)

	land := make([]byte, 192)
	land[0] = 7
	rec := do(t, r, http.MethodPut, "/admin/v1/maps/0/blocks/650/land", dataBody(land))
	if rec.Code != http.StatusOK {
		t.Fatalf("put land: %d %s", rec.Code, rec.Body.String())
	}
	var upd world.BlockUpdate
	if err := json.Unmarshal(rec.Body.Bytes(), &upd); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if upd.Block != 650 || upd.Kind != "land" || len(upd.Refreshed) != 1 {
		t.Fatalf("unexpected update %+v", upd)
	}
	if got := f.edits["land/0/650"]; len(got) != 192 || got[0] != 7 {
		t.Fatalf("land body not decoded: %v", got)
	}

	rec = do(t, r, http.MethodPut, "/admin/v1/maps/0/blocks/650/statics", `{"data":""}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("clear statics: %d %s", rec.Code, rec.Body.String())
	}
	if _, ok := f.edits["statics/0/650"]; !ok {
		t.Fatalf("statics edit not applied")
	}

	cases := []struct {
		path, body string
		status     int
		code       string
	}{
		{"/admin/v1/maps/x/blocks/1/land", dataBody(land), http.StatusBadRequest, "E_BAD_REQUEST"},
		{"/admin/v1/maps/300/blocks/1/land", dataBody(land), http.StatusBadRequest, "E_BAD_REQUEST"},
		{"/admin/v1/maps/0/blocks/nope/land", dataBody(land), http.StatusBadRequest, "E_BAD_REQUEST"},
		{"/admin/v1/maps/0/blocks/1/land", `{}`, http.StatusBadRequest, "E_BAD_REQUEST"},
		{"/admin/v1/maps/0/blocks/1/land", dataBody(land[:5]), http.StatusBadRequest, "E_BAD_REQUEST"},
		{"/admin/v1/maps/9/blocks/1/land", dataBody(land), http.StatusNotFound, "E_NO_SUCH_MAP"},
	}
	for _, tc := range cases {
		rec := do(t, r, http.MethodPut, tc.path, tc.body)
		if rec.Code != tc.status || errorCode(t, rec) != tc.code {
			t.Fatalf("%s: %d %s", tc.path, rec.Code, rec.Body.String())
		}
	}
}
