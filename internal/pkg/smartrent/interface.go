package smartrent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// DeviceTypeLock is the device type of lock-capable devices
const DeviceTypeLock = "entry_control"

const lockNameSuffix = " - Lock"

// Credentials are form-encoded into the session request and never logged
type Credentials struct {
	Username string
	Password string
}

type Hub struct {
	ID string `json:"id"`
}

// UnmarshalJSON accepts the hub id as either a JSON string or number
func (h *Hub) UnmarshalJSON(b []byte) error {
	var raw struct {
		ID json.RawMessage `json:"id"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}

	var n json.Number
	if err := json.Unmarshal(raw.ID, &h.ID); err == nil {
		// null and "" both land here
		if h.ID == "" {
			return fmt.Errorf("hub without an id: %s", b)
		}
		return nil
	} else if err := json.Unmarshal(raw.ID, &n); err == nil {
		h.ID = n.String()
		return nil
	}

	return fmt.Errorf("hub id %s is neither string nor number", raw.ID)
}

type Device struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
	Type string `json:"type"`
}

// Lock is the lock-capable view of a Device.  Identity is DeviceID, Name is
// display only.
type Lock struct {
	DeviceID int    `json:"device_id"`
	Name     string `json:"name"`
}

// DisplayName strips a single trailing " - Lock"
func (l Lock) DisplayName() string {
	return strings.TrimSuffix(l.Name, lockNameSuffix)
}

func (l Lock) String() string {
	return l.Name
}

// LocksFrom keeps the entry_control devices, preserving their order
func LocksFrom(devices []Device) []Lock {
	locks := []Lock{}
	for _, d := range devices {
		if d.Type != DeviceTypeLock {
			continue
		}
		locks = append(locks, Lock{DeviceID: d.ID, Name: d.Name})
	}

	return locks
}

// CredentialProvider supplies the account used to open sessions
type CredentialProvider interface {
	Get() (Credentials, error)
	Store(creds Credentials) error
}

// Command is an update_attributes request for one device attribute
type Command struct {
	DeviceID  int
	Attribute string
	Value     string
}

func LockCommand(deviceID int) Command {
	return Command{DeviceID: deviceID, Attribute: "locked", Value: "true"}
}

func UnlockCommand(deviceID int) Command {
	return Command{DeviceID: deviceID, Attribute: "locked", Value: "false"}
}

// TokenRefresher hands out a freshly authenticated token
type TokenRefresher interface {
	RefreshToken(ctx context.Context) (string, error)
}

// LockService is the surface other collaborators use
type LockService interface {
	ListLocks(ctx context.Context) ([]Lock, error)
	Lock(ctx context.Context, deviceID int, onSuccess func(), onFailure func(error))
	Unlock(ctx context.Context, deviceID int, onSuccess func(), onFailure func(error))
	SendCommand(ctx context.Context, cmd Command, onSuccess func(), onFailure func(error))
}
