package smartrent

import (
	"context"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLockDisplayName(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{"Front Door - Lock", "Front Door"},
		{"Front Door", "Front Door"},
		{"Front Door - Lock - Lock", "Front Door - Lock"},
		{"Front Door -Lock", "Front Door -Lock"},
		{"Front Door - lock", "Front Door - lock"},
		{" - Lock", ""},
		{"Lock - Lock Box", "Lock - Lock Box"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Lock{DeviceID: 1, Name: tt.name}.DisplayName())
		})
	}
}

func TestLocksFrom(t *testing.T) {
	locks := LocksFrom([]Device{
		{ID: 3, Name: "Hall", Type: "thermostat"},
		{ID: 2, Name: "B - Lock", Type: DeviceTypeLock},
		{ID: 1, Name: "A - Lock", Type: DeviceTypeLock},
		{ID: 4, Name: "Leak", Type: "sensor_notification"},
	})

	assert.Equal(t, []Lock{{DeviceID: 2, Name: "B - Lock"}, {DeviceID: 1, Name: "A - Lock"}}, locks)
	assert.NotNil(t, LocksFrom(nil))
}

func TestListLocksEndToEnd(t *testing.T) {
	f := newFakeCloud(t)
	f.hubs = `[{"id":"hub-1"}]`
	f.devices["hub-1"] = `[
		{"id":11,"name":"Front Door - Lock","type":"entry_control"},
		{"id":12,"name":"Living Room","type":"thermostat"},
		{"id":13,"name":"Back Door - Lock","type":"entry_control"}
	]`

	creds := &staticCreds{creds: Credentials{Username: "me@example.com", Password: "pw"}}
	c := f.client(creds)

	locks, err := c.ListLocks(context.Background())
	require.NoError(t, err)

	names := []string{}
	for _, l := range locks {
		names = append(names, l.DisplayName())
	}
	assert.Equal(t, []string{"Front Door", "Back Door"}, names)
	assert.Equal(t, 11, locks[0].DeviceID)
	assert.Equal(t, 13, locks[1].DeviceID)

	// authenticated lazily, once
	assert.Equal(t, 1, f.sessions())
	assert.Equal(t, "token-1", c.Tokens().Get())

	_, err = c.ListLocks(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, f.sessions())
}

func TestListLocksAuthFailure(t *testing.T) {
	f := newFakeCloud(t)
	f.sessionStatus = http.StatusUnauthorized

	locks, err := f.client(&staticCreds{}).ListLocks(context.Background())
	require.Error(t, err)
	assert.Nil(t, locks)
	assert.True(t, errors.Is(err, ErrAuth))
}

func TestListLocksCredentialFailure(t *testing.T) {
	f := newFakeCloud(t)

	_, err := f.client(&staticCreds{err: errors.New("no credentials configured")}).ListLocks(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no credentials configured")
	assert.Equal(t, 0, f.sessions())
}

func TestExpiredTokenRecoversEndToEnd(t *testing.T) {
	f := newFakeCloud(t)
	f.script(
		[]string{errorReply(11)},
		[]string{okReply(11), okReply(11)},
	)

	c := f.client(&staticCreds{creds: Credentials{Username: "u", Password: "p"}})
	c.Tokens().Set("expired")

	rec := newCallbackRecorder()
	c.Unlock(context.Background(), 11, rec.onSuccess, rec.onFailure)

	successes, failures := rec.wait(t)
	assert.Equal(t, 1, successes)
	assert.Empty(t, failures)
	assert.Equal(t, 2, f.connections())
	assert.Equal(t, []string{"expired", "token-1"}, f.socketTokens())
	assert.Equal(t, "token-1", c.Tokens().Get())

	cmd := decodeFrame(t, f.frames(1)[1])
	payload := cmd[4].(map[string]interface{})
	attrs := payload["attributes"].([]interface{})
	assert.Equal(t, map[string]interface{}{"name": "locked", "value": "false"}, attrs[0])
}

func TestDoLock(t *testing.T) {
	f := newFakeCloud(t)
	f.script([]string{okReply(5), okReply(5)})

	c := f.client(&staticCreds{creds: Credentials{Username: "u", Password: "p"}})
	require.NoError(t, c.Do(context.Background(), LockCommand(5)))

	assert.Equal(t, 1, f.sessions())
	assert.Contains(t, f.frames(0)[1], `"value":"true"`)
}

func TestSendCommandWithoutTokenReportsFailureOnce(t *testing.T) {
	f := newFakeCloud(t)
	f.sessionStatus = http.StatusUnauthorized

	rec := newCallbackRecorder()
	f.client(&staticCreds{}).Lock(context.Background(), 5, rec.onSuccess, rec.onFailure)

	successes, failures := rec.wait(t)
	assert.Equal(t, 0, successes)
	require.Len(t, failures, 1)
	assert.True(t, errors.Is(failures[0], ErrAuth))
	assert.Equal(t, 0, f.connections())
}

func TestLogin(t *testing.T) {
	f := newFakeCloud(t)
	creds := &staticCreds{}
	c := f.client(creds)

	require.NoError(t, c.Login(context.Background(), Credentials{Username: "new@example.com", Password: "pw"}))
	assert.Equal(t, "token-1", c.Tokens().Get())
	require.Len(t, creds.stored, 1)
	assert.Equal(t, "new@example.com", creds.stored[0].Username)

	f.setSessionStatus(http.StatusUnauthorized)
	err := c.Login(context.Background(), Credentials{Username: "bad", Password: "pw"})
	assert.True(t, errors.Is(err, ErrAuth))
	assert.Len(t, creds.stored, 1)
}

func TestConcurrentRefreshKeepsTokenConsistent(t *testing.T) {
	f := newFakeCloud(t)
	c := f.client(&staticCreds{creds: Credentials{Username: "u", Password: "p"}})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = c.RefreshToken(context.Background())
			_ = c.Tokens().Get()
		}()
	}
	wg.Wait()

	assert.Contains(t, []string{"token-1", "token-2", "token-3"}, c.Tokens().Get())
	assert.NotContains(t, c.Tokens().String(), c.Tokens().Get())
}

func TestListLocksHonoursAPITimeout(t *testing.T) {
	f := newFakeCloud(t)
	f.hubsDelay = time.Second * 2

	c := f.client(&staticCreds{creds: Credentials{Username: "u", Password: "p"}}).
		WithTimeout(time.Millisecond * 200)

	start := time.Now()
	locks, err := c.ListLocks(context.Background())
	elapsed := time.Since(start)

	require.Error(t, err)
	assert.Nil(t, locks)
	assert.True(t, errors.Is(err, ErrTransport))
	assert.Less(t, int64(elapsed), int64(time.Second), "hubs call should give up at the api timeout")
}
