package smartrent

import (
	"context"
	"net/http"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListDevicesConcatenatesInServerOrder(t *testing.T) {
	f := newFakeCloud(t)
	f.hubs = `[{"id":"h2","serial":"x"},{"id":"h1"}]`
	f.devices["h2"] = `[{"id":5,"name":"Front Door - Lock","type":"entry_control","battery":80},{"id":3,"name":"Hall","type":"thermostat"}]`
	f.devices["h1"] = `[{"id":1,"name":"Back Door - Lock","type":"entry_control"}]`

	d := NewDeviceDirectory(f.baseURL(), http.DefaultClient)
	devices, err := d.ListDevices(context.Background(), "abc")
	require.NoError(t, err)

	assert.Equal(t, []Device{
		{ID: 5, Name: "Front Door - Lock", Type: "entry_control"},
		{ID: 3, Name: "Hall", Type: "thermostat"},
		{ID: 1, Name: "Back Door - Lock", Type: "entry_control"},
	}, devices)

	for _, h := range f.bearers() {
		assert.Equal(t, "Bearer abc", h)
	}
	assert.Len(t, f.bearers(), 3)
}

func TestListDevicesNumericHubID(t *testing.T) {
	f := newFakeCloud(t)
	f.hubs = `[{"id":42}]`
	f.devices["42"] = `[{"id":9,"name":"Gate","type":"entry_control"}]`

	devices, err := NewDeviceDirectory(f.baseURL(), http.DefaultClient).ListDevices(context.Background(), "abc")
	require.NoError(t, err)
	require.Len(t, devices, 1)
	assert.Equal(t, 9, devices[0].ID)
}

func TestListDevicesNoHubs(t *testing.T) {
	f := newFakeCloud(t)

	devices, err := NewDeviceDirectory(f.baseURL(), http.DefaultClient).ListDevices(context.Background(), "abc")
	require.NoError(t, err)
	assert.Empty(t, devices)
	assert.NotNil(t, devices)
}

func TestListDevicesHubsFetchFails(t *testing.T) {
	f := newFakeCloud(t)
	f.hubsStatus = http.StatusUnauthorized

	devices, err := NewDeviceDirectory(f.baseURL(), http.DefaultClient).ListDevices(context.Background(), "expired")
	require.Error(t, err)
	assert.Nil(t, devices)
	assert.True(t, errors.Is(err, ErrAuth))
	assert.Contains(t, err.Error(), "hubs fetch failed")
}

func TestListDevicesFailsFastOnHub(t *testing.T) {
	f := newFakeCloud(t)
	f.hubs = `[{"id":"h1"},{"id":"h2"},{"id":"h3"}]`
	f.devices["h1"] = `[{"id":1,"name":"A - Lock","type":"entry_control"}]`
	f.devicesStatus["h2"] = http.StatusForbidden
	f.devices["h3"] = `[{"id":3,"name":"C - Lock","type":"entry_control"}]`

	devices, err := NewDeviceDirectory(f.baseURL(), http.DefaultClient).ListDevices(context.Background(), "abc")
	require.Error(t, err)
	assert.Nil(t, devices)
	assert.True(t, errors.Is(err, ErrAuth))
	assert.Contains(t, err.Error(), "h2")

	// hubs, h1, h2 and nothing for h3
	assert.Len(t, f.bearers(), 3)
}

func TestListDevicesMalformedBody(t *testing.T) {
	f := newFakeCloud(t)
	f.hubs = `[{"id":"h1"}]`
	f.devices["h1"] = `{"not":"an array"}`

	_, err := NewDeviceDirectory(f.baseURL(), http.DefaultClient).ListDevices(context.Background(), "abc")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrParse))
}

func TestListDevicesRejectsHubWithoutID(t *testing.T) {
	for _, hubs := range []string{`[{"id":null}]`, `[{"id":""}]`, `[{"serial":"x"}]`} {
		t.Run(hubs, func(t *testing.T) {
			f := newFakeCloud(t)
			f.hubs = hubs

			devices, err := NewDeviceDirectory(f.baseURL(), http.DefaultClient).ListDevices(context.Background(), "abc")
			require.Error(t, err)
			assert.Nil(t, devices)
			assert.True(t, errors.Is(err, ErrParse))

			// no hubs//devices request went out
			assert.Len(t, f.bearers(), 1)
		})
	}
}
