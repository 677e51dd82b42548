package credentials

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/pkg/errors"

	"github.com/jake-scott/smartrent-lock/internal/pkg/logging"
	"github.com/jake-scott/smartrent-lock/internal/pkg/smartrent"
)

// ErrNoCredentials is returned by Get when nothing has been stored
var ErrNoCredentials = errors.New("no SmartRent credentials configured")

// Static holds credentials in memory, typically from config or flags
type Static struct {
	mu    sync.RWMutex
	creds smartrent.Credentials
}

var _ smartrent.CredentialProvider = (*Static)(nil)

func NewStatic(username string, password string) *Static {
	return &Static{creds: smartrent.Credentials{Username: username, Password: password}}
}

func (s *Static) Get() (smartrent.Credentials, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.creds.Username == "" {
		return smartrent.Credentials{}, ErrNoCredentials
	}
	return s.creds, nil
}

func (s *Static) Store(creds smartrent.Credentials) error {
	s.mu.Lock()
	s.creds = creds
	s.mu.Unlock()
	return nil
}

// Version of the credentials that we marshal/unmarshal
type fileCredentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// FileStore keeps credentials in a JSON file readable only by its owner
type FileStore struct {
	mu       sync.Mutex
	fileName string
}

var _ smartrent.CredentialProvider = (*FileStore)(nil)

func NewFileStore(fileName string) *FileStore {
	return &FileStore{fileName: fileName}
}

// obfuscate the file contents when stringified
func (s *FileStore) String() string {
	creds, err := s.Get()
	if err != nil {
		return fmt.Sprintf("file [%s] (empty)", s.fileName)
	}

	return fmt.Sprintf("file [%s] email [%s] password [%s]", s.fileName, creds.Username, logging.Redact(creds.Password))
}

func (s *FileStore) Get() (smartrent.Credentials, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	file, err := os.Open(s.fileName)
	if os.IsNotExist(err) {
		return smartrent.Credentials{}, ErrNoCredentials
	}
	if err != nil {
		return smartrent.Credentials{}, errors.Wrapf(err, "opening credentials %s for read", s.fileName)
	}
	defer file.Close()

	fc := fileCredentials{}
	if err := json.NewDecoder(file).Decode(&fc); err != nil {
		return smartrent.Credentials{}, errors.Wrapf(err, "loading credentials from %s", s.fileName)
	}

	if fc.Email == "" {
		return smartrent.Credentials{}, ErrNoCredentials
	}

	return smartrent.Credentials{Username: fc.Email, Password: fc.Password}, nil
}

func (s *FileStore) Store(creds smartrent.Credentials) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	fc := fileCredentials{Email: creds.Username, Password: creds.Password}

	if err := os.MkdirAll(filepath.Dir(s.fileName), 0700); err != nil {
		return errors.Wrapf(err, "creating directory for %s", s.fileName)
	}

	tmp := s.fileName + ".tmp"
	file, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return errors.Wrapf(err, "opening credentials %s for write", tmp)
	}

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(fc); err != nil {
		file.Close()
		os.Remove(tmp)
		return errors.Wrapf(err, "saving credentials to %s", tmp)
	}

	if err := file.Close(); err != nil {
		os.Remove(tmp)
		return errors.Wrapf(err, "closing %s", tmp)
	}

	return errors.Wrapf(os.Rename(tmp, s.fileName), "replacing %s", s.fileName)
}
