package smartrent

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"

	"golang.org/x/oauth2"

	"github.com/jake-scott/smartrent-lock/internal/pkg/logging"
	"github.com/jake-scott/smartrent-lock/version"
)

// DeviceDirectory walks hubs then devices.  Any failed fetch aborts the
// whole listing, partial results are never returned.
type DeviceDirectory struct {
	baseURL    string
	httpClient *http.Client
}

func NewDeviceDirectory(baseURL string, httpClient *http.Client) *DeviceDirectory {
	return &DeviceDirectory{
		baseURL:    baseURL,
		httpClient: httpClient,
	}
}

// api returns an HTTP client that adds the bearer header for token.
// oauth2.NewClient only keeps the base transport, so the per-call timeout
// is carried over by hand.
func (d *DeviceDirectory) api(ctx context.Context, token string) *http.Client {
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token, TokenType: "Bearer"})
	ctx = context.WithValue(ctx, oauth2.HTTPClient, d.httpClient)

	cli := oauth2.NewClient(ctx, ts)
	cli.Timeout = d.httpClient.Timeout
	return cli
}

func (d *DeviceDirectory) getJSON(ctx context.Context, cli *http.Client, u string, dst interface{}) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return 0, transportError(err, "building request for %s", u)
	}
	req.Header.Set("User-Agent", version.UserAgent())

	resp, err := cli.Do(req)
	if err != nil {
		return 0, transportError(err, "fetching %s", u)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, transportError(err, "reading response body from %s", u)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return resp.StatusCode, nil
	}

	if err := json.Unmarshal(bodyBytes, dst); err != nil {
		return resp.StatusCode, parseError(err, "decoding response from %s", u)
	}

	return resp.StatusCode, nil
}

func isSuccess(code int) bool {
	return code >= 200 && code <= 299
}

func (d *DeviceDirectory) Hubs(ctx context.Context, token string) ([]Hub, error) {
	var hubs []Hub

	code, err := d.getJSON(ctx, d.api(ctx, token), d.baseURL+"hubs", &hubs)
	if err != nil {
		return nil, err
	}
	if !isSuccess(code) {
		return nil, authError("hubs fetch failed: HTTP status %d", code)
	}

	return hubs, nil
}

func (d *DeviceDirectory) HubDevices(ctx context.Context, token string, hubID string) ([]Device, error) {
	var devices []Device

	u := d.baseURL + "hubs/" + url.PathEscape(hubID) + "/devices"
	code, err := d.getJSON(ctx, d.api(ctx, token), u, &devices)
	if err != nil {
		return nil, err
	}
	if !isSuccess(code) {
		return nil, authError("failed to fetch devices for hub %s: HTTP status %d", hubID, code)
	}

	return devices, nil
}

// ListDevices flattens the devices of every hub, hub order then device
// order as returned by the server
func (d *DeviceDirectory) ListDevices(ctx context.Context, token string) ([]Device, error) {
	hubs, err := d.Hubs(ctx, token)
	if err != nil {
		return nil, err
	}

	devices := []Device{}
	for _, hub := range hubs {
		hubDevices, err := d.HubDevices(ctx, token, hub.ID)
		if err != nil {
			return nil, err
		}

		logging.Logger(ctx).Debugf("hub %s: %d devices", hub.ID, len(hubDevices))
		devices = append(devices, hubDevices...)
	}

	return devices, nil
}
