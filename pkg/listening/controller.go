// Package listening runs one background capture loop per user between the
// start and end of a conversation.
package listening

import (
	"context"
	"sort"
	"sync"
	"time"

	"docubot-be/internal/pkg/logger"
	"docubot-be/pkg/apperror"
	"docubot-be/pkg/utils"
)

const module = "Listening"

type State int

const (
	Idle State = iota
	Listening
)

func (s State) String() string {
	if s == Listening {
		return "listening"
	}
	return "idle"
}

// CaptureEvent is emitted once per tick while a user is listening.
type CaptureEvent struct {
	UserID string    `json:"user_id"`
	Seq    uint64    `json:"seq"`
	At     time.Time `json:"at"`
}

type Sink interface {
	Emit(ctx context.Context, ev CaptureEvent) error
}

type SinkFunc func(ctx context.Context, ev CaptureEvent) error

func (f SinkFunc) Emit(ctx context.Context, ev CaptureEvent) error { return f(ctx, ev) }

type Config struct {
	Interval    time.Duration
	StopTimeout time.Duration
}

type task struct {
	cancel context.CancelFunc
	done   chan struct{}
}

type Controller struct {
	mu    sync.Mutex
	tasks map[string]*task

	// held across a whole start or stop for one user
	userLocks *utils.KeyedMutex

	sink   Sink
	cfg    Config
	logger logger.ILogger
}

func NewController(sink Sink, cfg Config, log logger.ILogger) *Controller {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Second
	}
	if cfg.StopTimeout <= 0 {
		cfg.StopTimeout = 5 * time.Second
	}
	return &Controller{
		tasks:     make(map[string]*task),
		userLocks: utils.NewKeyedMutex(),
		sink:      sink,
		cfg:       cfg,
		logger:    log,
	}
}

// Start begins capturing for userID. It returns false if a loop is already running.
func (c *Controller) Start(userID string) bool {
	unlock := c.userLocks.Lock(userID)
	defer unlock()

	c.mu.Lock()
	if _, running := c.tasks[userID]; running {
		c.mu.Unlock()
		c.logger.Info(module, "Already listening", map[string]interface{}{"user_id": userID})
		return false
	}
	ctx, cancel := context.WithCancel(context.Background())
	t := &task{cancel: cancel, done: make(chan struct{})}
	c.tasks[userID] = t
	c.mu.Unlock()

	go c.run(ctx, userID, t)

	c.logger.Info(module, "Listening started", map[string]interface{}{
		"user_id":  userID,
		"interval": c.cfg.Interval.String(),
	})
	return true
}

// Stop returns the user to Idle and waits for the loop to exit. If it does not
// exit within StopTimeout the task is dropped and ErrStopTimeout is returned.
// Stopping an idle or unknown user is a no-op.
func (c *Controller) Stop(ctx context.Context, userID string) error {
	unlock := c.userLocks.Lock(userID)
	defer unlock()

	c.mu.Lock()
	t, ok := c.tasks[userID]
	delete(c.tasks, userID)
	c.mu.Unlock()

	if !ok {
		c.logger.Debug(module, "Stop on idle user", map[string]interface{}{"user_id": userID})
		return nil
	}

	t.cancel()

	timer := time.NewTimer(c.cfg.StopTimeout)
	defer timer.Stop()

	select {
	case <-t.done:
		c.logger.Info(module, "Listening stopped", map[string]interface{}{"user_id": userID})
		return nil
	case <-timer.C:
		c.logger.Warn(module, "Capture loop did not exit in time, dropped", map[string]interface{}{
			"user_id": userID,
			"timeout": c.cfg.StopTimeout.String(),
		})
		return apperror.Newf(apperror.ErrStopTimeout, "capture loop for %s still running after %s", userID, c.cfg.StopTimeout)
	case <-ctx.Done():
		c.logger.Warn(module, "Stop abandoned before capture loop exited, dropped", map[string]interface{}{
			"user_id": userID,
			"error":   ctx.Err().Error(),
		})
		return apperror.Wrap(apperror.ErrStopTimeout, "capture loop for "+userID+" still running when stop was abandoned", ctx.Err())
	}
}

func (c *Controller) State(userID string) State {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.tasks[userID]; ok {
		return Listening
	}
	return Idle
}

// Active lists listening users in sorted order.
func (c *Controller) Active() []string {
	c.mu.Lock()
	users := make([]string, 0, len(c.tasks))
	for u := range c.tasks {
		users = append(users, u)
	}
	c.mu.Unlock()

	sort.Strings(users)
	return users
}

// Shutdown stops every loop. The first stop error is returned after all stops ran.
func (c *Controller) Shutdown(ctx context.Context) error {
	var first error
	for _, userID := range c.Active() {
		if err := c.Stop(ctx, userID); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func (c *Controller) run(ctx context.Context, userID string, t *task) {
	defer close(t.done)

	ticker := time.NewTicker(c.cfg.Interval)
	defer ticker.Stop()

	var seq uint64
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			seq++
			ev := CaptureEvent{UserID: userID, Seq: seq, At: now.UTC()}
			if err := c.sink.Emit(ctx, ev); err != nil {
				c.logger.Warn(module, "Capture emit failed", map[string]interface{}{
					"user_id": userID,
					"seq":     seq,
					"error":   err.Error(),
				})
			}
		}
	}
}
