package smartrent

import (
	"context"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/jake-scott/smartrent-lock/internal/pkg/logging"
)

const protocolVersion = "2.0.0"

// acks needed before a command is applied: one for the join, one for the
// update_attributes push
const requiredAcks = 2

type attemptState int

const (
	stateConnecting attemptState = iota
	stateAwaitingAcks
	stateSucceeded
	stateFailed
)

func (s attemptState) String() string {
	switch s {
	case stateConnecting:
		return "connecting"
	case stateAwaitingAcks:
		return "awaiting-acks"
	case stateSucceeded:
		return "succeeded"
	case stateFailed:
		return "failed"
	}

	return "unknown"
}

// commandAttempt is the per-connection acknowledgement state machine
type commandAttempt struct {
	cmd    Command
	state  attemptState
	acks   int
	status string
	topic  string
}

func newCommandAttempt(cmd Command) *commandAttempt {
	return &commandAttempt{cmd: cmd, state: stateConnecting}
}

// sent is called once the join and command frames are on the wire
func (a *commandAttempt) sent() {
	a.acks = 0
	a.state = stateAwaitingAcks
}

// observe feeds one inbound frame through the state machine.  Terminal
// states absorb everything.
func (a *commandAttempt) observe(r reply) attemptState {
	if a.state != stateAwaitingAcks || !r.Recognized {
		return a.state
	}

	if !r.OK() {
		a.status = r.Status
		a.topic = r.Topic
		a.state = stateFailed
		return a.state
	}

	a.acks++
	if a.acks >= requiredAcks {
		a.state = stateSucceeded
	}

	return a.state
}

// outcome delivers exactly one of onSuccess/onFailure, once
type outcome struct {
	once      sync.Once
	onSuccess func()
	onFailure func(error)
}

func newOutcome(onSuccess func(), onFailure func(error)) *outcome {
	return &outcome{onSuccess: onSuccess, onFailure: onFailure}
}

func (o *outcome) resolve(err error) {
	o.once.Do(func() {
		switch {
		case err == nil && o.onSuccess != nil:
			o.onSuccess()
		case err != nil && o.onFailure != nil:
			o.onFailure(err)
		}
	})
}

// CommandChannel sends device commands over the vendor websocket.  Each
// logical send gets at most two connections: the first with the caller's
// token, the second with a refreshed one.
type CommandChannel struct {
	socketURL  string
	dialer     *websocket.Dialer
	refresher  TokenRefresher
	ackTimeout time.Duration
}

func NewCommandChannel(socketURL string, dialer *websocket.Dialer, refresher TokenRefresher, ackTimeout time.Duration) *CommandChannel {
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}

	return &CommandChannel{
		socketURL:  socketURL,
		dialer:     dialer,
		refresher:  refresher,
		ackTimeout: ackTimeout,
	}
}

// Send runs the command in the background and reports through exactly one
// of the callbacks.  Callbacks run on the channel's goroutine.
func (c *CommandChannel) Send(ctx context.Context, token string, cmd Command, onSuccess func(), onFailure func(error)) {
	res := newOutcome(onSuccess, onFailure)
	go func() {
		res.resolve(c.Run(ctx, token, cmd))
	}()
}

// Run is the blocking form of Send
func (c *CommandChannel) Run(ctx context.Context, token string, cmd Command) error {
	ctxLogger := logging.Logger(ctx).WithFields(logrus.Fields{
		"device":    cmd.DeviceID,
		"attribute": cmd.Attribute,
		"value":     cmd.Value,
	})

	err := c.attempt(ctx, ctxLogger.WithField("attempt", 1), token, cmd)
	if err == nil {
		return nil
	}

	if ctx.Err() != nil {
		return err
	}

	// Expired tokens are indistinguishable from rejected commands, so any
	// failure earns one retry with a fresh token
	ctxLogger.WithError(err).Warn("command attempt failed, refreshing token and retrying")

	freshToken, rerr := c.refresher.RefreshToken(ctx)
	if rerr != nil {
		return errors.Wrap(rerr, "refreshing token for command retry")
	}

	return c.attempt(ctx, ctxLogger.WithField("attempt", 2), freshToken, cmd)
}

func (c *CommandChannel) endpoint(token string) (string, error) {
	u, err := url.Parse(c.socketURL)
	if err != nil {
		return "", err
	}

	q := u.Query()
	q.Set("token", token)
	q.Set("vsn", protocolVersion)
	u.RawQuery = q.Encode()

	return u.String(), nil
}

func (c *CommandChannel) attempt(ctx context.Context, ctxLogger *logrus.Entry, token string, cmd Command) error {
	if c.ackTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.ackTimeout)
		defer cancel()
	}

	joiner, err := joinFrame(cmd.DeviceID)
	if err != nil {
		return errors.Wrap(err, "encoding join frame")
	}
	payload, err := commandFrame(cmd)
	if err != nil {
		return errors.Wrap(err, "encoding command frame")
	}

	endpoint, err := c.endpoint(token)
	if err != nil {
		return transportError(err, "building command channel URL")
	}

	ctxLogger.Debugf("connecting to %s", c.socketURL)

	conn, resp, err := c.dialer.DialContext(ctx, endpoint, nil)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		return transportError(err, "connecting to command channel")
	}
	defer conn.Close()

	// unblock the read loop when the deadline passes or the caller gives up
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	a := newCommandAttempt(cmd)

	ctxLogger.Debugf("sending %s", joiner)
	if err := conn.WriteMessage(websocket.TextMessage, joiner); err != nil {
		return transportError(err, "sending join frame")
	}
	ctxLogger.Debugf("sending %s", payload)
	if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		return transportError(err, "sending command frame")
	}
	a.sent()

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return transportError(ctx.Err(), "waiting for acknowledgements (%d/%d received)", a.acks, requiredAcks)
			}
			return transportError(err, "reading from command channel (%d/%d acknowledgements received)", a.acks, requiredAcks)
		}

		ctxLogger.Debugf("received %s", msg)

		switch a.observe(parseReply(msg)) {
		case stateSucceeded:
			ctxLogger.Info("command acknowledged")
			closeNormally(conn, "Success")
			return nil
		case stateFailed:
			ctxLogger.Warnf("%s replied with status %q to %s=%s", a.topic, a.status, a.cmd.Attribute, a.cmd.Value)
			closeNormally(conn, "Failed")
			return newError(ErrProtocol, nil, "device %d replied with status %q on %s", a.cmd.DeviceID, a.status, a.topic)
		}
	}
}

func closeNormally(conn *websocket.Conn, reason string) {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, reason)
	_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
}
