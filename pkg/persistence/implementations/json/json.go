package json

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/relaykit/relaykit/pkg/persistence"
)

const (
	modeFile    = "mode.json"
	sessionFile = "session.json"
	queueFile   = "queue.json"
	flagsFile   = "flags.json"
)

type JsonPersistence struct {
	dataDir string
}

func NewJsonPersistence(config *persistence.Config) (*JsonPersistence, error) {
	jp := &JsonPersistence{
		dataDir: config.DataDir,
	}
	return jp, jp.Initialize()
}

func (jp *JsonPersistence) Initialize() error {
	// Create the base data directory if it doesn't exist
	if err := os.MkdirAll(jp.dataDir, 0755); err != nil {
		return err
	}
	return nil
}

func (jp *JsonPersistence) Close() error {
	// JSON implementation doesn't need to clean up
	return nil
}

func (jp *JsonPersistence) save(name string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(jp.dataDir, name), data, 0644)
}

func (jp *JsonPersistence) load(name string, v any) error {
	data, err := os.ReadFile(filepath.Join(jp.dataDir, name))
	if err != nil {
		if os.IsNotExist(err) {
			return persistence.ErrNotFound
		}
		return err
	}
	return json.Unmarshal(data, v)
}

// SaveModeState persists the operating mode and endpoints to mode.json
func (jp *JsonPersistence) SaveModeState(state persistence.ModeState) error {
	return jp.save(modeFile, state)
}

// LoadModeState loads the operating mode and endpoints from mode.json
func (jp *JsonPersistence) LoadModeState() (persistence.ModeState, error) {
	var state persistence.ModeState
	if err := jp.load(modeFile, &state); err != nil {
		return persistence.ModeState{}, err
	}
	return state, nil
}

// SaveSessionState persists the token and profile to session.json
func (jp *JsonPersistence) SaveSessionState(state persistence.SessionState) error {
	return jp.save(sessionFile, state)
}

// LoadSessionState loads the token and profile from session.json
func (jp *JsonPersistence) LoadSessionState() (persistence.SessionState, error) {
	var state persistence.SessionState
	if err := jp.load(sessionFile, &state); err != nil {
		return persistence.SessionState{}, err
	}
	return state, nil
}

// ClearSessionState removes session.json. Missing file is not an error.
func (jp *JsonPersistence) ClearSessionState() error {
	err := os.Remove(filepath.Join(jp.dataDir, sessionFile))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// SaveQueue rewrites queue.json with the whole ordered log
func (jp *JsonPersistence) SaveQueue(entries []persistence.QueuedRequest) error {
	if entries == nil {
		entries = []persistence.QueuedRequest{}
	}
	return jp.save(queueFile, entries)
}

// LoadQueue loads the ordered log from queue.json
func (jp *JsonPersistence) LoadQueue() ([]persistence.QueuedRequest, error) {
	var entries []persistence.QueuedRequest
	if err := jp.load(queueFile, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// SaveFlags persists markers to flags.json
func (jp *JsonPersistence) SaveFlags(flags persistence.Flags) error {
	return jp.save(flagsFile, flags)
}

// LoadFlags loads markers from flags.json
func (jp *JsonPersistence) LoadFlags() (persistence.Flags, error) {
	var flags persistence.Flags
	if err := jp.load(flagsFile, &flags); err != nil {
		return persistence.Flags{}, err
	}
	return flags, nil
}

// Ensure JsonPersistence implements Persistence
var _ persistence.Persistence = (*JsonPersistence)(nil)
