// Package keystore loads the client-id to API key mapping used to
// authenticate gateway callers.
//
// The mapping is a flat JSON object stored in a local file. A missing file is
// bootstrapped with a default mapping; an unreadable or malformed file yields
// an empty mapping at startup so that every request is rejected rather than
// the server refusing to start. Reloads and additions are strict and never
// discard existing keys.
package keystore

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"sync"

	"github.com/knadh/koanf/providers/file"

	"github.com/teemow/sheetsgate/internal/logging"
)

// KeyPrefix prefixes every generated key.
const KeyPrefix = "sk-"

// ErrDuplicateKey is returned when two clients share the same secret key, or
// when a client id is added twice.
var ErrDuplicateKey = errors.New("duplicate API key")

// DefaultKeys returns the mapping written when no key file exists.
func DefaultKeys() map[string]string {
	return map[string]string{
		"default":        "sk-default-key-change-this",
		"example_client": "sk-example-key-12345",
	}
}

// Load reads the key mapping from path.
//
// If the file does not exist the default mapping is written to path and
// returned. If writing fails, or the file exists but cannot be read or parsed,
// the failure is logged and an empty mapping is returned. The only error
// returned is ErrDuplicateKey (wrapped) when two clients share a key.
//
// Load is the startup path. Reload and Add use the strict read instead and
// never replace a mapping with an empty one.
func Load(path string, logger logging.Logger) (map[string]string, error) {
	if logger == nil {
		logger = logging.DefaultLogger()
	}

	keys, err := read(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		keys = DefaultKeys()
		if err := write(path, keys); err != nil {
			logger.Error("Failed to create default API key file",
				"path", path,
				logging.KeyError, err.Error())
			return map[string]string{}, nil
		}
		logger.Warn("Created default API key file, replace the default keys before exposing the server",
			"path", path,
			"clients", len(keys))
		return keys, nil
	case errors.Is(err, ErrDuplicateKey):
		return nil, err
	case err != nil:
		logger.Error("Failed to load API key file", "path", path, logging.KeyError, err.Error())
		return map[string]string{}, nil
	}

	logger.Info("Loaded API keys", "path", path, "clients", len(keys))
	return keys, nil
}

// read strictly reads the mapping at path. A missing file is reported as an
// error wrapping os.ErrNotExist.
func read(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read key file: %w", err)
	}
	keys, err := parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse key file %s: %w", path, err)
	}
	if err := checkDuplicates(keys); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return keys, nil
}

func parse(data []byte) (map[string]string, error) {
	keys := map[string]string{}
	if err := json.Unmarshal(data, &keys); err != nil {
		return nil, err
	}
	if keys == nil {
		// A literal "null" document.
		keys = map[string]string{}
	}
	return keys, nil
}

func checkDuplicates(keys map[string]string) error {
	owners := make(map[string]string, len(keys))
	// Sorted so the reported pair is stable.
	for _, client := range slices.Sorted(maps.Keys(keys)) {
		key := keys[client]
		if other, ok := owners[key]; ok {
			return fmt.Errorf("%w: clients %q and %q share a key", ErrDuplicateKey, other, client)
		}
		owners[key] = client
	}
	return nil
}

func write(path string, keys map[string]string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return fmt.Errorf("create key directory: %w", err)
		}
	}
	data, err := json.MarshalIndent(keys, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("write key file: %w", err)
	}
	return nil
}

// GenerateKey returns a new random key carrying KeyPrefix.
func GenerateKey() (string, error) {
	buf := make([]byte, 24)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate key: %w", err)
	}
	return KeyPrefix + hex.EncodeToString(buf), nil
}

// Add adds clientID with key to the key file at path, creating the file with
// the default mapping first when it does not exist. It refuses to overwrite an
// existing client id or to reuse a key, and leaves a file it cannot read or
// parse untouched.
func Add(path, clientID, key string, logger logging.Logger) error {
	if clientID == "" {
		return errors.New("client id is required")
	}
	if key == "" {
		return errors.New("key is required")
	}
	if logger == nil {
		logger = logging.DefaultLogger()
	}
	keys, err := read(path)
	if errors.Is(err, os.ErrNotExist) {
		logger.Warn("API key file does not exist, creating it with the default keys", "path", path)
		keys = DefaultKeys()
	} else if err != nil {
		return err
	}
	if _, ok := keys[clientID]; ok {
		return fmt.Errorf("%w: client %q already exists", ErrDuplicateKey, clientID)
	}
	keys[clientID] = key
	if err := checkDuplicates(keys); err != nil {
		return err
	}
	return write(path, keys)
}

// Store holds the current key mapping and lets it be swapped atomically when
// the key file is reloaded.
type Store struct {
	path   string
	logger logging.Logger

	mu       sync.RWMutex
	keys     map[string]string
	onReload func(clients int)
}

// NewStore loads path into a new Store.
func NewStore(path string, logger logging.Logger) (*Store, error) {
	if logger == nil {
		logger = logging.DefaultLogger()
	}
	keys, err := Load(path, logger)
	if err != nil {
		return nil, err
	}
	return &Store{path: path, logger: logger, keys: keys}, nil
}

// NewStaticStore returns a Store over a fixed mapping. It cannot be watched.
func NewStaticStore(keys map[string]string) (*Store, error) {
	if err := checkDuplicates(keys); err != nil {
		return nil, err
	}
	return &Store{logger: logging.DefaultLogger(), keys: maps.Clone(keys)}, nil
}

// Keys returns the current mapping. Callers must not modify it.
func (s *Store) Keys() map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.keys
}

// Len returns the number of configured clients.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.keys)
}

// OnReload registers fn to be called with the number of clients after every
// successful Reload.
func (s *Store) OnReload(fn func(clients int)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onReload = fn
}

// Reload re-reads the key file. A file that is missing, unreadable, malformed
// or maps two clients to one key is rejected and the previous mapping stays in
// effect. Editors that truncate before writing therefore never lock clients out.
func (s *Store) Reload() error {
	if s.path == "" {
		return nil
	}
	keys, err := read(s.path)
	if err != nil {
		s.logger.Error("Rejected reloaded API key file, keeping previous keys",
			"path", s.path,
			logging.KeyError, err.Error())
		return err
	}

	s.mu.Lock()
	s.keys = keys
	onReload := s.onReload
	s.mu.Unlock()

	s.logger.Info("Reloaded API keys", "path", s.path, "clients", len(keys))
	if onReload != nil {
		onReload(len(keys))
	}
	return nil
}

// Watch reloads the mapping whenever the key file changes until ctx is done.
func (s *Store) Watch(ctx context.Context) error {
	if s.path == "" {
		return errors.New("store has no backing file")
	}

	f := file.Provider(s.path)
	if err := f.Watch(func(_ any, err error) {
		if err != nil {
			s.logger.Error("API key file watch error", "path", s.path, logging.KeyError, err.Error())
			return
		}
		s.logger.Info("API key file changed, reloading", "path", s.path)
		_ = s.Reload()
	}); err != nil {
		return fmt.Errorf("watch %s: %w", s.path, err)
	}

	go func() {
		<-ctx.Done()
		if err := f.Unwatch(); err != nil {
			s.logger.Debug("API key file unwatch failed", logging.KeyError, err.Error())
		}
	}()

	s.logger.Info("Watching API key file for changes", "path", s.path)
	return nil
}
