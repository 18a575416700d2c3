// Package admin serves the operator HTTP API for player live map state and
// map block edits.
package admin

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"livemap.ai/internal/protocol"
	"livemap.ai/internal/sim/world"
	"livemap.ai/internal/sim/world/feature/livemap/blocks"
	"livemap.ai/internal/sim/world/feature/livemap/fov"
)

const requestTimeout = 5 * time.Second

// Backend is the slice of the world the admin API drives.
type Backend interface {
	ListPlayers(ctx context.Context) ([]world.PlayerInfo, error)
	PlayerLiveMap(ctx context.Context, playerID string) (world.LiveMapState, error)
	SetPlayerVersion(ctx context.Context, playerID string, v fov.Version) (world.LiveMapState, error)
	SetPlayerWindow(ctx context.Context, playerID string, w fov.Window) (world.LiveMapState, error)
	ResetPlayer(ctx context.Context, playerID string) (world.LiveMapState, error)

	UpdateLand(ctx context.Context, mapNum uint8, id blocks.ID, land []byte) (world.BlockUpdate, error)
	UpdateStatics(ctx context.Context, mapNum uint8, id blocks.ID, statics []byte) (world.BlockUpdate, error)
}

type handlers struct {
	players Backend
	log     *zap.Logger
}

func NewRouter(players Backend, log *zap.Logger) *gin.Engine {
	if log == nil {
		log = zap.NewNop()
	}
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(log))

	h := &handlers{players: players, log: log}
	v1 := r.Group("/admin/v1")
	v1.GET("/players", h.listPlayers)
	v1.GET("/players/:id/livemap", h.getLiveMap)
	v1.PUT("/players/:id/livemap/version", h.putVersion)
	v1.PUT("/players/:id/livemap/fov", h.putFOV)
	v1.POST("/players/:id/livemap/reset", h.postReset)
	v1.PUT("/maps/:map/blocks/:block/land", h.putLand)
	v1.PUT("/maps/:map/blocks/:block/statics", h.putStatics)
	return r
}

func requestLogger(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Info("admin request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)))
	}
}

func (h *handlers) listPlayers(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	players, err := h.players.ListPlayers(ctx)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"players": players})
}

func (h *handlers) getLiveMap(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	st, err := h.players.PlayerLiveMap(ctx, c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}

func (h *handlers) putVersion(c *gin.Context) {
	var req struct {
		Major *int `json:"major"`
		Minor *int `json:"minor"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.Major == nil || req.Minor == nil {
		writeError(c, http.StatusBadRequest, protocol.ErrBadRequest, "major and minor are required")
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	st, err := h.players.SetPlayerVersion(ctx, c.Param("id"), fov.Version{Major: *req.Major, Minor: *req.Minor})
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}

func (h *handlers) putFOV(c *gin.Context) {
	var req struct {
		MinX *int `json:"min_x"`
		MaxX *int `json:"max_x"`
		MinY *int `json:"min_y"`
		MaxY *int `json:"max_y"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.MinX == nil || req.MaxX == nil || req.MinY == nil || req.MaxY == nil {
		writeError(c, http.StatusBadRequest, protocol.ErrBadRequest, "min_x, max_x, min_y and max_y are required")
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	win := fov.Window{MinX: *req.MinX, MaxX: *req.MaxX, MinY: *req.MinY, MaxY: *req.MaxY}
	st, err := h.players.SetPlayerWindow(ctx, c.Param("id"), win)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}

func (h *handlers) postReset(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	st, err := h.players.ResetPlayer(ctx, c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}

// blockBody carries base64 block contents. Data must be present; statics
// may be empty.
type blockBody struct {
	Data *[]byte `json:"data"`
}

func blockParams(c *gin.Context) (uint8, blocks.ID, bool) {
	m, err := strconv.ParseUint(c.Param("map"), 10, 8)
	if err != nil {
		writeError(c, http.StatusBadRequest, protocol.ErrBadRequest, "bad map number")
		return 0, 0, false
	}
	b, err := strconv.ParseInt(c.Param("block"), 10, 32)
	if err != nil {
		writeError(c, http.StatusBadRequest, protocol.ErrBadRequest, "bad block number")
		return 0, 0, false
	}
	return uint8(m), blocks.ID(b), true
}

func (h *handlers) putLand(c *gin.Context) {
	h.putBlock(c, h.players.UpdateLand)
}

func (h *handlers) putStatics(c *gin.Context) {
	h.putBlock(c, h.players.UpdateStatics)
}

func (h *handlers) putBlock(c *gin.Context, apply func(context.Context, uint8, blocks.ID, []byte) (world.BlockUpdate, error)) {
	mapNum, id, ok := blockParams(c)
	if !ok {
		return
	}
	var req blockBody
	if err := c.ShouldBindJSON(&req); err != nil || req.Data == nil {
		writeError(c, http.StatusBadRequest, protocol.ErrBadRequest, "data (base64) is required")
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	upd, err := apply(ctx, mapNum, id, *req.Data)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, upd)
}

func (h *handlers) fail(c *gin.Context, err error) {
	switch {
	case errors.Is(err, world.ErrPlayerNotFound):
		writeError(c, http.StatusNotFound, protocol.ErrNotFound, err.Error())
	case errors.Is(err, world.ErrNoSuchMap):
		writeError(c, http.StatusNotFound, protocol.ErrNoSuchMap, err.Error())
	case errors.Is(err, world.ErrNoSuchBlock):
		writeError(c, http.StatusNotFound, protocol.ErrNotFound, err.Error())
	case errors.Is(err, world.ErrBadBlockData):
		writeError(c, http.StatusBadRequest, protocol.ErrBadRequest, err.Error())
	case errors.Is(err, fov.ErrInvalidWindow):
		writeError(c, http.StatusBadRequest, protocol.ErrInvalidWindow, err.Error())
	case errors.Is(err, fov.ErrInvalidVersion):
		writeError(c, http.StatusBadRequest, protocol.ErrInvalidVersion, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		writeError(c, http.StatusServiceUnavailable, protocol.ErrBusy, "world loop did not answer in time")
	default:
		h.log.Error("admin request failed", zap.String("path", c.Request.URL.Path), zap.Error(err))
		writeError(c, http.StatusInternalServerError, protocol.ErrInternal, err.Error())
	}
}

func writeError(c *gin.Context, status int, code, message string) {
	c.JSON(status, gin.H{"code": code, "message": message})
}
