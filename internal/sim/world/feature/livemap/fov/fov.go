// Package fov holds the per-player live map streaming state: the last block a
// player was confirmed to occupy, the block window kept current on the
// client, and the live map protocol version the client speaks.
//
// A State is owned by exactly one player and is not safe for concurrent use;
// the world loop serializes every mutation.
package fov

import (
	"errors"
	"fmt"

	"livemap.ai/internal/sim/world/feature/livemap/blocks"
)

var (
	ErrInvalidWindow  = errors.New("invalid fov window")
	ErrInvalidVersion = errors.New("invalid live map version")
)

// Version is the (major, minor) live map protocol version of a client.
// The zero value means the client cannot stream map blocks.
type Version struct {
	Major int `json:"major"`
	Minor int `json:"minor"`
}

func (v Version) Streaming() bool { return v.Major != 0 || v.Minor != 0 }

// AtLeast reports whether v >= (major, minor).
func (v Version) AtLeast(major, minor int) bool {
	if v.Major != major {
		return v.Major > major
	}
	return v.Minor >= minor
}

func (v Version) String() string { return fmt.Sprintf("%d.%d", v.Major, v.Minor) }

// Window is a block rectangle relative to the player's current block.
type Window struct {
	MinX int `json:"min_x"`
	MaxX int `json:"max_x"`
	MinY int `json:"min_y"`
	MaxY int `json:"max_y"`
}

func DefaultWindow() Window { return Window{MinX: -2, MaxX: 2, MinY: -2, MaxY: 2} }

func (w Window) Validate() error {
	if w.MinX > w.MaxX {
		return fmt.Errorf("%w: min_x %d > max_x %d", ErrInvalidWindow, w.MinX, w.MaxX)
	}
	if w.MinY > w.MaxY {
		return fmt.Errorf("%w: min_y %d > max_y %d", ErrInvalidWindow, w.MinY, w.MaxY)
	}
	return nil
}

func (w Window) Width() int  { return w.MaxX - w.MinX + 1 }
func (w Window) Height() int { return w.MaxY - w.MinY + 1 }

type State struct {
	previous blocks.ID
	version  Version
	window   Window

	// cached from window
	width  int
	height int
}

func NewState() *State {
	s := &State{previous: blocks.None}
	s.applyWindow(DefaultWindow())
	return s
}

// SetWindow replaces the window. The new window takes effect on the next
// crossing; it never triggers a push by itself.
func (s *State) SetWindow(minX, maxX, minY, maxY int) error {
	w := Window{MinX: minX, MaxX: maxX, MinY: minY, MaxY: maxY}
	if err := w.Validate(); err != nil {
		return err
	}
	s.applyWindow(w)
	return nil
}

func (s *State) SetVersion(major, minor int) error {
	if major < 0 || minor < 0 {
		return fmt.Errorf("%w: %d.%d", ErrInvalidVersion, major, minor)
	}
	s.version = Version{Major: major, Minor: minor}
	return nil
}

// Reset forgets the previous block so the next resolution is a first contact.
func (s *State) Reset() { s.previous = blocks.None }

// Enter records the block the player now occupies.
func (s *State) Enter(id blocks.ID) { s.previous = id }

func (s *State) PreviousBlock() blocks.ID { return s.previous }
func (s *State) Version() Version         { return s.version }
func (s *State) Window() Window           { return s.window }
func (s *State) Width() int               { return s.width }
func (s *State) Height() int              { return s.height }

// Snapshot is a read-only copy of a State.
type Snapshot struct {
	PreviousBlock blocks.ID `json:"previous_block"`
	Version       Version   `json:"version"`
	Window        Window    `json:"window"`
	BlocksWidth   int       `json:"blocks_width"`
	BlocksHeight  int       `json:"blocks_height"`
}

func (s *State) Snapshot() Snapshot {
	return Snapshot{
		PreviousBlock: s.previous,
		Version:       s.version,
		Window:        s.window,
		BlocksWidth:   s.width,
		BlocksHeight:  s.height,
	}
}

func (s *State) applyWindow(w Window) {
	s.window = w
	s.width = w.Width()
	s.height = w.Height()
}
