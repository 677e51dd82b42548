package smartrent

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"

	"github.com/jake-scott/smartrent-lock/internal/pkg/logging"
)

const (
	DefaultBaseURL    = "https://control.smartrent.com/api/v2/"
	DefaultSocketURL  = "wss://control.smartrent.com/socket/websocket"
	DefaultAckTimeout = time.Second * 10
)

// Client is the composition root: it owns the token and wires the
// authenticator, directory and command channel together.  The With*
// builders return copies that share the token store.
type Client struct {
	baseURL    string
	socketURL  string
	timeout    time.Duration
	ackTimeout time.Duration
	creds      CredentialProvider
	tokens     *TokenStore
}

var _ LockService = (*Client)(nil)

func NewClient(creds CredentialProvider) *Client {
	return &Client{
		baseURL:    DefaultBaseURL,
		socketURL:  DefaultSocketURL,
		ackTimeout: DefaultAckTimeout,
		creds:      creds,
		tokens:     NewTokenStore(),
	}
}

// WithBaseURL sets the REST root, it must end in a slash
func (c *Client) WithBaseURL(u string) *Client {
	nc := *c
	nc.baseURL = u
	return &nc
}

func (c *Client) WithSocketURL(u string) *Client {
	nc := *c
	nc.socketURL = u
	return &nc
}

// WithTimeout bounds each REST call
func (c *Client) WithTimeout(d time.Duration) *Client {
	nc := *c
	nc.timeout = d
	return &nc
}

// WithAckTimeout bounds each command attempt, dial to second ack
func (c *Client) WithAckTimeout(d time.Duration) *Client {
	nc := *c
	nc.ackTimeout = d
	return &nc
}

func (c *Client) httpClient() *http.Client {
	return &http.Client{Timeout: c.timeout}
}

func (c *Client) authenticator() *SessionAuthenticator {
	return NewSessionAuthenticator(c.baseURL, c.httpClient())
}

func (c *Client) directory() *DeviceDirectory {
	return NewDeviceDirectory(c.baseURL, c.httpClient())
}

func (c *Client) channel() *CommandChannel {
	dialer := *websocket.DefaultDialer
	if c.timeout > 0 {
		dialer.HandshakeTimeout = c.timeout
	}

	return NewCommandChannel(c.socketURL, &dialer, c, c.ackTimeout)
}

// Tokens exposes the shared token store
func (c *Client) Tokens() *TokenStore {
	return c.tokens
}

// Login authenticates with creds and, on success, stores both the token and
// the credentials
func (c *Client) Login(ctx context.Context, creds Credentials) error {
	token, err := c.authenticator().Authenticate(ctx, creds)
	if err != nil {
		return err
	}

	c.tokens.Set(token)

	if err := c.creds.Store(creds); err != nil {
		return errors.Wrap(err, "storing credentials")
	}

	return nil
}

// RefreshToken authenticates with the provider's credentials and replaces
// the stored token
func (c *Client) RefreshToken(ctx context.Context) (string, error) {
	creds, err := c.creds.Get()
	if err != nil {
		return "", errors.Wrap(err, "loading credentials")
	}

	token, err := c.authenticator().Authenticate(ctx, creds)
	if err != nil {
		return "", err
	}

	c.tokens.Set(token)
	logging.Logger(ctx).Debugf("refreshed %s", c.tokens)

	return token, nil
}

// token authenticates lazily on first use
func (c *Client) token(ctx context.Context) (string, error) {
	if token := c.tokens.Get(); token != "" {
		return token, nil
	}

	return c.RefreshToken(ctx)
}

func (c *Client) ListDevices(ctx context.Context) ([]Device, error) {
	token, err := c.token(ctx)
	if err != nil {
		return nil, err
	}

	return c.directory().ListDevices(ctx, token)
}

func (c *Client) ListLocks(ctx context.Context) ([]Lock, error) {
	devices, err := c.ListDevices(ctx)
	if err != nil {
		return nil, err
	}

	return LocksFrom(devices), nil
}

// SendCommand never blocks; exactly one of the callbacks fires, from a
// background goroutine
func (c *Client) SendCommand(ctx context.Context, cmd Command, onSuccess func(), onFailure func(error)) {
	res := newOutcome(onSuccess, onFailure)

	go func() {
		token, err := c.token(ctx)
		if err != nil {
			res.resolve(err)
			return
		}

		res.resolve(c.channel().Run(ctx, token, cmd))
	}()
}

func (c *Client) Lock(ctx context.Context, deviceID int, onSuccess func(), onFailure func(error)) {
	c.SendCommand(ctx, LockCommand(deviceID), onSuccess, onFailure)
}

func (c *Client) Unlock(ctx context.Context, deviceID int, onSuccess func(), onFailure func(error)) {
	c.SendCommand(ctx, UnlockCommand(deviceID), onSuccess, onFailure)
}

// Do is the blocking form of SendCommand
func (c *Client) Do(ctx context.Context, cmd Command) error {
	result := make(chan error, 1)
	c.SendCommand(ctx, cmd,
		func() { result <- nil },
		func(err error) { result <- err },
	)

	return <-result
}
