package world

import (
	"context"
	"errors"
	"sort"

	"go.uber.org/zap"

	"livemap.ai/internal/sim/world/feature/livemap/fov"
	"livemap.ai/internal/sim/world/feature/livemap/stream"
)

type playerReq struct {
	PlayerID string
	Action   string
	Details  map[string]any
	// Nil for read-only requests.
	Apply    func(w *World, p *Player) error
	Resp     chan playerResp
}

type playerResp struct {
	State LiveMapState
	Err   error
}

type listReq struct {
	Resp chan []PlayerInfo
}

// ListPlayers returns every connected player sorted by id.
func (w *World) ListPlayers(ctx context.Context) ([]PlayerInfo, error) {
	if w == nil || w.listReq == nil {
		return nil, errors.New("player listing not available")
	}
	req := listReq{Resp: make(chan []PlayerInfo, 1)}
	select {
	case w.listReq <- req:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	select {
	case out := <-req.Resp:
		return out, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (w *World) handleListReq(req listReq) {
	out := make([]PlayerInfo, 0, len(w.players))
	for _, p := range w.players {
		out = append(out, PlayerInfo{ID: p.ID, Name: p.Name, Map: p.Map, X: p.X, Y: p.Y})
	}
	sort.Slice(out, func(i, j int) bool { return lessID(out[i].ID, out[j].ID) })
	select {
	case req.Resp <- out:
	default:
	}
}

// PlayerLiveMap reads a player's streaming state.
func (w *World) PlayerLiveMap(ctx context.Context, playerID string) (LiveMapState, error) {
	return w.requestPlayer(ctx, playerReq{PlayerID: playerID})
}

// SetPlayerVersion overrides the live map version of a player. The change
// applies from the player's next move.
func (w *World) SetPlayerVersion(ctx context.Context, playerID string, v fov.Version) (LiveMapState, error) {
	return w.requestPlayer(ctx, playerReq{
		PlayerID: playerID,
		Action:   "SET_VERSION",
		Details:  map[string]any{"major": v.Major, "minor": v.Minor},
		Apply: func(w *World, p *Player) error {
			before := p.Stream.Version()
			if err := p.Stream.SetVersion(v.Major, v.Minor); err != nil {
				return err
			}
			if stream.HashBits(before) != stream.HashBits(p.Stream.Version()) {
				p.View.Clear()
			}
			return nil
		},
	})
}

// SetPlayerWindow overrides the FOV window of a player and echoes it to the
// client. It takes effect on the next block crossing.
func (w *World) SetPlayerWindow(ctx context.Context, playerID string, win fov.Window) (LiveMapState, error) {
	return w.requestPlayer(ctx, playerReq{
		PlayerID: playerID,
		Action:   "SET_FOV",
		Details:  map[string]any{"min_x": win.MinX, "max_x": win.MaxX, "min_y": win.MinY, "max_y": win.MaxY},
		Apply: func(w *World, p *Player) error {
			if err := p.Stream.SetWindow(win.MinX, win.MaxX, win.MinY, win.MaxY); err != nil {
				return err
			}
			if err := w.pusher.PushViewRange(w.sender(p), p.Stream.Window()); err != nil {
				w.logPushError(p, "view range", err)
			}
			return nil
		},
	})
}

// ResetPlayer forgets the player's last block so the next move pushes the
// full window again.
func (w *World) ResetPlayer(ctx context.Context, playerID string) (LiveMapState, error) {
	return w.requestPlayer(ctx, playerReq{
		PlayerID: playerID,
		Action:   "RESET_LIVEMAP",
		Apply: func(_ *World, p *Player) error {
			p.Stream.Reset()
			p.View.Clear()
			return nil
		},
	})
}

func (w *World) requestPlayer(ctx context.Context, req playerReq) (LiveMapState, error) {
	if w == nil || w.playerReq == nil {
		return LiveMapState{}, errors.New("player requests not available")
	}
	req.Resp = make(chan playerResp, 1)
	select {
	case w.playerReq <- req:
	case <-ctx.Done():
		return LiveMapState{}, ctx.Err()
	}
	select {
	case r := <-req.Resp:
		return r.State, r.Err
	case <-ctx.Done():
		return LiveMapState{}, ctx.Err()
	}
}

func (w *World) handlePlayerReq(req playerReq) {
	resp := playerResp{}
	defer func() {
		if req.Resp == nil {
			return
		}
		select {
		case req.Resp <- resp:
		default:
		}
	}()

	p := w.players[req.PlayerID]
	if p == nil {
		resp.Err = ErrPlayerNotFound
		return
	}
	if req.Apply != nil {
		if err := req.Apply(w, p); err != nil {
			resp.Err = err
			return
		}
		w.audit(p.ID, req.Action, req.Details)
	}
	resp.State = liveMapState(p)
}

func liveMapState(p *Player) LiveMapState {
	s := p.Stream.Snapshot()
	return LiveMapState{
		PlayerID:      p.ID,
		Map:           p.Map,
		PreviousBlock: int32(s.PreviousBlock),
		Version:       s.Version,
		Window:        s.Window,
		BlocksWidth:   s.BlocksWidth,
		BlocksHeight:  s.BlocksHeight,
		ViewBlocks:    p.View.Len(),
	}
}

func (w *World) audit(playerID, action string, details map[string]any) {
	w.log.Info("admin change", zap.String("player_id", playerID), zap.String("action", action), zap.Any("details", details))
	if w.auditLog == nil {
		return
	}
	err := w.auditLog.WriteAudit(AuditEntry{
		Time:     w.now().UTC(),
		Actor:    "ADMIN",
		Action:   action,
		PlayerID: playerID,
		Details:  details,
	})
	if err != nil {
		w.log.Warn("audit log write failed", zap.Error(err))
	}
}
