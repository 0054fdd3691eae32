package playback

import (
	"math"
	"sync"
	"time"
)

// ScrollSink receives interpolated scroll offsets during an advance animation.
type ScrollSink interface {
	SetScrollOffset(offset float64)
}

// Navigator is asked to move to the next video once the animation lands.
type Navigator interface {
	Navigate(videoID string)
}

type AdvanceState int

const (
	StateIdle AdvanceState = iota
	StateWatching
	StateAdvancing
)

// AdvanceConfig controls one controller instance. Now and NewTicker exist so
// tests can drive the frame loop deterministically; zero values fall back to
// the wall clock and a real ticker.
type AdvanceConfig struct {
	Threshold      float64       // fraction of duration that triggers advance
	ScrollDuration time.Duration // length of the scroll animation
	Viewport       float64       // distance to scroll, in the client's units
	FrameInterval  time.Duration
	Now            func() time.Time
	NewTicker      func(d time.Duration) (<-chan time.Time, func())
}

func (c *AdvanceConfig) fillDefaults() {
	if c.FrameInterval <= 0 {
		c.FrameInterval = 16 * time.Millisecond
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	if c.NewTicker == nil {
		c.NewTicker = func(d time.Duration) (<-chan time.Time, func()) {
			t := time.NewTicker(d)
			return t.C, t.Stop
		}
	}
}

// Controller advances the feed to the next video once watch progress crosses
// the threshold. One controller serves one session; it re-arms for each video
// that starts playing.
type Controller struct {
	mu     sync.Mutex
	cfg    AdvanceConfig
	sink   ScrollSink
	nav    Navigator
	state  AdvanceState
	handle Handle
	nextID string
	offset float64
	cancel chan struct{}
}

func NewController(cfg AdvanceConfig, sink ScrollSink, nav Navigator) *Controller {
	cfg.fillDefaults()
	return &Controller{cfg: cfg, sink: sink, nav: nav}
}

// Arm moves the controller to Watching for the given video. With auto-scroll
// disabled or no known next video it stays Idle and time updates cost
// nothing. Offset is the current scroll position of the playing card.
func (c *Controller) Arm(handle Handle, nextID string, offset float64, autoScroll bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.cancelLocked()
	if !autoScroll || nextID == "" {
		c.state = StateIdle
		c.nextID = ""
		return
	}
	c.state = StateWatching
	c.handle = handle
	c.nextID = nextID
	c.offset = offset
}

// UpdateOffset records a manual scroll of the watched card so a later advance
// animates from the real position instead of the arm-time one. Outside
// Watching there is nothing to correct and the call is ignored.
func (c *Controller) UpdateOffset(offset float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateWatching {
		return
	}
	c.offset = offset
}

// HandleTimeUpdate recomputes progress on every time notification. A zero or
// NaN duration never fires the threshold; the video simply is not advancing
// yet. Crossing the threshold pauses playback synchronously and starts the
// scroll animation; a new trigger cancels any in-flight animation first.
func (c *Controller) HandleTimeUpdate(currentTime, duration float64) {
	c.mu.Lock()
	if c.state != StateWatching {
		c.mu.Unlock()
		return
	}
	if !(duration > 0) || math.IsNaN(currentTime) {
		c.mu.Unlock()
		return
	}
	if currentTime/duration < c.cfg.Threshold {
		c.mu.Unlock()
		return
	}

	c.state = StateAdvancing
	if c.handle != nil {
		c.handle.Pause()
	}
	c.cancelLocked()
	cancel := make(chan struct{})
	c.cancel = cancel

	start := c.cfg.Now()
	from := c.offset
	target := from + c.cfg.Viewport
	nextID := c.nextID
	c.mu.Unlock()

	go c.animate(start, from, target, nextID, cancel)
}

func (c *Controller) animate(start time.Time, from, target float64, nextID string, cancel chan struct{}) {
	frames, stop := c.cfg.NewTicker(c.cfg.FrameInterval)
	defer stop()

	for {
		select {
		case <-cancel:
			return
		case now := <-frames:
			frac := float64(now.Sub(start)) / float64(c.cfg.ScrollDuration)
			if frac < 0 {
				frac = 0
			}
			if frac > 1 {
				frac = 1
			}
			c.sink.SetScrollOffset(from + frac*(target-from))
			if frac >= 1 {
				c.mu.Lock()
				// A Stop or re-arm racing the final frame wins. Navigation
				// happens under the lock so Stop can never return while a
				// navigate is still about to fire.
				select {
				case <-cancel:
					c.mu.Unlock()
					return
				default:
				}
				c.state = StateIdle
				c.nav.Navigate(nextID)
				c.mu.Unlock()
				return
			}
		}
	}
}

// Stop cancels any pending animation and disarms the controller. No
// navigation fires after Stop returns.
func (c *Controller) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cancelLocked()
	c.state = StateIdle
	c.nextID = ""
}

// State returns the current advance state.
func (c *Controller) State() AdvanceState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Controller) cancelLocked() {
	if c.cancel != nil {
		close(c.cancel)
		c.cancel = nil
	}
}
