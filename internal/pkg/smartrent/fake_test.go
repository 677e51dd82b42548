package smartrent

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
)

// Script steps understood by the fake socket besides literal frames
const (
	stepClose = "<close>" // drop the TCP connection without a close frame
	stepHang  = "<hang>"  // send nothing more, wait for the client to leave
)

func okReply(deviceID int) string {
	return fmt.Sprintf(`["null","null","devices:%d","phx_reply",{"status":"ok","response":{}}]`, deviceID)
}

func errorReply(deviceID int) string {
	return fmt.Sprintf(`["null","null","devices:%d","phx_reply",{"status":"error","response":{"reason":"unauthorized"}}]`, deviceID)
}

// fakeCloud stands in for the vendor REST API and channel socket
type fakeCloud struct {
	t   *testing.T
	srv *httptest.Server

	mu            sync.Mutex
	tokens        []string
	issued        int
	sessionStatus int
	sessionBody   string
	sessionForms  []map[string]string

	hubs          string
	hubsStatus    int
	hubsDelay     time.Duration
	devices       map[string]string
	devicesStatus map[string]int
	authHeaders   []string

	scripts    [][]string
	connTokens []string
	received   [][]string
}

func newFakeCloud(t *testing.T) *fakeCloud {
	f := &fakeCloud{
		t:             t,
		tokens:        []string{"token-1", "token-2", "token-3"},
		sessionStatus: http.StatusOK,
		hubs:          `[]`,
		hubsStatus:    http.StatusOK,
		devices:       map[string]string{},
		devicesStatus: map[string]int{},
	}

	r := mux.NewRouter()
	r.HandleFunc("/api/v2/sessions", f.handleSessions).Methods(http.MethodPost)
	r.HandleFunc("/api/v2/hubs", f.handleHubs).Methods(http.MethodGet)
	r.HandleFunc("/api/v2/hubs/{id}/devices", f.handleDevices).Methods(http.MethodGet)
	r.HandleFunc("/socket/websocket", f.handleSocket)

	f.srv = httptest.NewServer(r)
	t.Cleanup(f.srv.Close)

	return f
}

func (f *fakeCloud) baseURL() string {
	return f.srv.URL + "/api/v2/"
}

func (f *fakeCloud) socketURL() string {
	return "ws" + strings.TrimPrefix(f.srv.URL, "http") + "/socket/websocket"
}

func (f *fakeCloud) client(creds CredentialProvider) *Client {
	return NewClient(creds).
		WithBaseURL(f.baseURL()).
		WithSocketURL(f.socketURL()).
		WithTimeout(time.Second * 5).
		WithAckTimeout(time.Second * 2)
}

func (f *fakeCloud) script(steps ...[]string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scripts = steps
}

func (f *fakeCloud) connections() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.connTokens)
}

func (f *fakeCloud) sessions() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.issued
}

func (f *fakeCloud) handleSessions(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	f.sessionForms = append(f.sessionForms, map[string]string{
		"email":    r.PostForm.Get("email"),
		"password": r.PostForm.Get("password"),
	})

	if f.sessionStatus != http.StatusOK {
		http.Error(w, "nope", f.sessionStatus)
		return
	}

	if f.sessionBody != "" {
		fmt.Fprint(w, f.sessionBody)
		return
	}

	token := f.tokens[f.issued%len(f.tokens)]
	f.issued++
	fmt.Fprintf(w, `{"access_token":%q,"refresh_token":"r","expires":1}`, token)
}

func (f *fakeCloud) handleHubs(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	delay := f.hubsDelay
	f.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-r.Context().Done():
			return
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	f.authHeaders = append(f.authHeaders, r.Header.Get("Authorization"))
	if f.hubsStatus != http.StatusOK {
		http.Error(w, "nope", f.hubsStatus)
		return
	}
	fmt.Fprint(w, f.hubs)
}

func (f *fakeCloud) handleDevices(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	f.mu.Lock()
	defer f.mu.Unlock()

	f.authHeaders = append(f.authHeaders, r.Header.Get("Authorization"))
	if code, ok := f.devicesStatus[id]; ok && code != http.StatusOK {
		http.Error(w, "nope", code)
		return
	}

	body, ok := f.devices[id]
	if !ok {
		body = `[]`
	}
	fmt.Fprint(w, body)
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(_ *http.Request) bool { return true },
}

func (f *fakeCloud) handleSocket(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("vsn") != protocolVersion {
		http.Error(w, "bad vsn", http.StatusBadRequest)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	f.mu.Lock()
	n := len(f.connTokens)
	f.connTokens = append(f.connTokens, r.URL.Query().Get("token"))
	f.received = append(f.received, nil)
	var steps []string
	if len(f.scripts) > 0 {
		if n < len(f.scripts) {
			steps = f.scripts[n]
		} else {
			steps = f.scripts[len(f.scripts)-1]
		}
	}
	f.mu.Unlock()

	// join then command
	for i := 0; i < 2; i++ {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		f.mu.Lock()
		f.received[n] = append(f.received[n], string(msg))
		f.mu.Unlock()
	}

	for _, step := range steps {
		switch step {
		case stepClose:
			conn.UnderlyingConn().Close()
			return
		case stepHang:
		default:
			if err := conn.WriteMessage(websocket.TextMessage, []byte(step)); err != nil {
				return
			}
		}
	}

	// drain until the client closes
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

// staticCreds is a CredentialProvider for tests
type staticCreds struct {
	mu     sync.Mutex
	creds  Credentials
	stored []Credentials
	err    error
}

func (s *staticCreds) Get() (Credentials, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.creds, s.err
}

func (s *staticCreds) Store(c Credentials) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stored = append(s.stored, c)
	s.creds = c
	return nil
}

func decodeFrame(t *testing.T, s string) []interface{} {
	var v []interface{}
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		t.Fatalf("frame %s is not a JSON array: %s", s, err)
	}
	return v
}

func (f *fakeCloud) forms() []map[string]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]map[string]string(nil), f.sessionForms...)
}

func (f *fakeCloud) bearers() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.authHeaders...)
}

func (f *fakeCloud) socketTokens() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.connTokens...)
}

func (f *fakeCloud) frames(conn int) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.received[conn]...)
}

func (f *fakeCloud) setSessionStatus(code int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sessionStatus = code
}
