package widgets

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/pkg/errors"

	"github.com/jake-scott/smartrent-lock/internal/pkg/smartrent"
)

// LockMap remembers which lock each widget controls
type LockMap interface {
	Save(widgetID string, lock smartrent.Lock) error
	Load(widgetID string) (smartrent.Lock, bool, error)
	Delete(widgetID string) error
}

// Binding is one widget to lock mapping
type Binding struct {
	WidgetID string         `json:"widget_id"`
	Lock     smartrent.Lock `json:"lock"`
}

// FileStore is a LockMap persisted as a JSON object keyed by widget ID.
// The whole file is rewritten on every change.
type FileStore struct {
	mu       sync.Mutex
	fileName string
}

var _ LockMap = (*FileStore)(nil)

func NewFileStore(fileName string) *FileStore {
	return &FileStore{fileName: fileName}
}

func (s *FileStore) read() (map[string]smartrent.Lock, error) {
	m := map[string]smartrent.Lock{}

	file, err := os.Open(s.fileName)
	if os.IsNotExist(err) {
		return m, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "opening widget map %s for read", s.fileName)
	}
	defer file.Close()

	if err := json.NewDecoder(file).Decode(&m); err != nil {
		return nil, errors.Wrapf(err, "loading widget map from %s", s.fileName)
	}

	return m, nil
}

func (s *FileStore) write(m map[string]smartrent.Lock) error {
	if err := os.MkdirAll(filepath.Dir(s.fileName), 0700); err != nil {
		return errors.Wrapf(err, "creating directory for %s", s.fileName)
	}

	tmp := s.fileName + ".tmp"
	file, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return errors.Wrapf(err, "opening widget map %s for write", tmp)
	}

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(m); err != nil {
		file.Close()
		os.Remove(tmp)
		return errors.Wrapf(err, "saving widget map to %s", tmp)
	}

	if err := file.Close(); err != nil {
		os.Remove(tmp)
		return errors.Wrapf(err, "closing %s", tmp)
	}

	return errors.Wrapf(os.Rename(tmp, s.fileName), "replacing %s", s.fileName)
}

func (s *FileStore) Save(widgetID string, lock smartrent.Lock) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, err := s.read()
	if err != nil {
		return err
	}

	m[widgetID] = lock
	return s.write(m)
}

func (s *FileStore) Load(widgetID string) (smartrent.Lock, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, err := s.read()
	if err != nil {
		return smartrent.Lock{}, false, err
	}

	lock, ok := m[widgetID]
	return lock, ok, nil
}

// Delete is a no-op for unknown widgets
func (s *FileStore) Delete(widgetID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, err := s.read()
	if err != nil {
		return err
	}

	if _, ok := m[widgetID]; !ok {
		return nil
	}

	delete(m, widgetID)
	return s.write(m)
}

// List returns every binding ordered by widget ID
func (s *FileStore) List() ([]Binding, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, err := s.read()
	if err != nil {
		return nil, err
	}

	bindings := make([]Binding, 0, len(m))
	for id, lock := range m {
		bindings = append(bindings, Binding{WidgetID: id, Lock: lock})
	}
	sort.Slice(bindings, func(i, j int) bool { return bindings[i].WidgetID < bindings[j].WidgetID })

	return bindings, nil
}

// Restore moves the binding of oldIDs[i] to newIDs[i], as happens when the
// host restores widgets from a backup under new IDs.  Old IDs without a
// binding are skipped.
func (s *FileStore) Restore(oldIDs []string, newIDs []string) error {
	if len(oldIDs) != len(newIDs) {
		return fmt.Errorf("restoring widgets: %d old IDs but %d new IDs", len(oldIDs), len(newIDs))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	m, err := s.read()
	if err != nil {
		return err
	}

	// snapshot first so chains like a->b, b->c move the right locks
	old := make(map[string]smartrent.Lock, len(oldIDs))
	for _, id := range oldIDs {
		if lock, ok := m[id]; ok {
			old[id] = lock
		}
		delete(m, id)
	}

	for i, id := range oldIDs {
		if lock, ok := old[id]; ok {
			m[newIDs[i]] = lock
		}
	}

	return s.write(m)
}
