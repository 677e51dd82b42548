package smartrent

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/jake-scott/smartrent-lock/internal/pkg/logging"
	"github.com/jake-scott/smartrent-lock/version"
)

type sessionResponse struct {
	AccessToken string `json:"access_token"`
}

// SessionAuthenticator exchanges credentials for a bearer token.  It never
// retries and never touches the TokenStore.
type SessionAuthenticator struct {
	baseURL    string
	httpClient *http.Client
}

func NewSessionAuthenticator(baseURL string, httpClient *http.Client) *SessionAuthenticator {
	return &SessionAuthenticator{
		baseURL:    baseURL,
		httpClient: httpClient,
	}
}

func (a *SessionAuthenticator) Authenticate(ctx context.Context, creds Credentials) (string, error) {
	form := url.Values{}
	form.Set("email", creds.Username)
	form.Set("password", creds.Password)

	sessionsURL := a.baseURL + "sessions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, sessionsURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", transportError(err, "building session request")
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", version.UserAgent())

	logging.Logger(ctx).Debugf("requesting session token from %s for %s", sessionsURL, logging.Redact(creds.Username))

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return "", transportError(err, "executing session request")
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", transportError(err, "reading session response body")
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", authError("non-2xx code from sessions endpoint: %d (%s)", resp.StatusCode, resp.Status)
	}

	sessionResp := sessionResponse{}
	if err := json.Unmarshal(bodyBytes, &sessionResp); err != nil {
		return "", parseError(err, "decoding session response")
	}

	if sessionResp.AccessToken == "" {
		return "", authError("session response has no access_token")
	}

	logging.Logger(ctx).Debugf("got session token %s", logging.Redact(sessionResp.AccessToken))
	return sessionResp.AccessToken, nil
}
