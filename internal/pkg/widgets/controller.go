package widgets

import (
	"context"
	"fmt"
	"time"

	"github.com/korovkin/limiter"
	"github.com/pkg/errors"

	"github.com/jake-scott/smartrent-lock/internal/pkg/logging"
	"github.com/jake-scott/smartrent-lock/internal/pkg/smartrent"
)

const DefaultHold = time.Second

// ErrUnknownWidget is returned by Press for widgets with no lock bound
var ErrUnknownWidget = errors.New("widget has no lock configured")

// Action is what a widget press does to its lock
type Action string

const (
	ActionUnlock Action = "unlock"
	ActionLock   Action = "lock"
)

func ParseAction(s string) (Action, error) {
	switch a := Action(s); a {
	case ActionUnlock, ActionLock:
		return a, nil
	}

	return "", fmt.Errorf("unknown widget action %q, expected unlock or lock", s)
}

func (a Action) command(deviceID int) smartrent.Command {
	if a == ActionLock {
		return smartrent.LockCommand(deviceID)
	}
	return smartrent.UnlockCommand(deviceID)
}

// Controller turns widget presses into lock commands and drives the sink
// through busy, result and back to idle
type Controller struct {
	locks   LockMap
	service smartrent.LockService
	sink    Sink
	hold    time.Duration
	action  Action
	limit   *limiter.ConcurrencyLimiter
}

// NewController runs at most maxConcurrent presses at once.  sink should
// normally be a UILoop.
func NewController(locks LockMap, service smartrent.LockService, sink Sink, maxConcurrent int) *Controller {
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}

	return &Controller{
		locks:   locks,
		service: service,
		sink:    sink,
		hold:    DefaultHold,
		action:  ActionUnlock,
		limit:   limiter.NewConcurrencyLimiter(maxConcurrent),
	}
}

// WithHold sets how long the result glyph stays up before the name returns
func (c *Controller) WithHold(d time.Duration) *Controller {
	c.hold = d
	return c
}

func (c *Controller) WithAction(a Action) *Controller {
	c.action = a
	return c
}

// Press looks up the widget's lock and sends the command in the
// background.  Only lookup failures are returned, the outcome goes to
// the sink.
func (c *Controller) Press(ctx context.Context, widgetID string) error {
	lock, ok, err := c.locks.Load(widgetID)
	if err != nil {
		return errors.Wrapf(err, "loading lock for widget %s", widgetID)
	}
	if !ok {
		return errors.Wrapf(ErrUnknownWidget, "widget %s", widgetID)
	}

	ctx = logging.WithWidgetID(ctx, widgetID)
	ctxLogger := logging.Logger(ctx)
	ctxLogger.Infof("pressed: %s %s (device %d)", c.action, lock.DisplayName(), lock.DeviceID)

	c.sink.ShowBusy(widgetID)

	c.limit.ExecuteWithTicket(func(ticket int) {
		ctxLogger.Debugf("press-goroutine %d: sending", ticket)

		result := make(chan error, 1)
		c.service.SendCommand(ctx, c.action.command(lock.DeviceID),
			func() { result <- nil },
			func(err error) { result <- err },
		)

		glyph := GlyphSuccess
		if err := <-result; err != nil {
			ctxLogger.WithError(err).Errorf("%s %s failed", c.action, lock.DisplayName())
			glyph = GlyphFailure
		}
		c.sink.ShowResult(widgetID, glyph)

		if c.hold > 0 {
			timer := time.NewTimer(c.hold)
			select {
			case <-timer.C:
			case <-ctx.Done():
				timer.Stop()
			}
		}

		c.sink.ShowIdle(widgetID, lock.DisplayName())
		ctxLogger.Debugf("press-goroutine %d: done", ticket)
	})

	return nil
}

// Wait blocks until all presses have finished.  The controller accepts no
// presses afterwards.
func (c *Controller) Wait() {
	c.limit.Wait()
}
