// Package storage keeps per-guild bot state in a JSON datastore: the command
// history, sync fingerprints and the task lists behind the tasks commands.
package storage

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/keshon/datastore"
)

const commandHistoryLimit int = 20

// GlobalScope is the record key used for the global command scope.
const GlobalScope = "global"

// Backend is the subset of *datastore.DataStore used here.
type Backend interface {
	Add(key string, value any)
	Get(key string) (any, bool)
	Delete(key string)
	Close() error
}

type Storage struct {
	// mu serializes read-modify-write cycles on records.
	mu sync.Mutex
	ds Backend
}

type CommandHistoryRecord struct {
	ChannelID     string    `json:"channel_id"`
	GuildID       string    `json:"guild_id"`
	UserID        string    `json:"user_id"`
	Username      string    `json:"username"`
	Command       string    `json:"command"`
	Params        string    `json:"params,omitempty"`
	Failed        bool      `json:"failed,omitempty"`
	CorrelationID string    `json:"correlation_id,omitempty"`
	Datetime      time.Time `json:"datetime"`
}

type Task struct {
	ID        int        `json:"id"`
	UserID    string     `json:"user_id"`
	Text      string     `json:"text"`
	CreatedAt time.Time  `json:"created_at"`
	DoneAt    *time.Time `json:"done_at,omitempty"`
}

// Done reports whether the task has been completed.
func (t Task) Done() bool { return t.DoneAt != nil }

type Record struct {
	CommandsHistoryList []CommandHistoryRecord `json:"cmd_history"`
	// Fingerprint is the hash of the last payload synced to this scope.
	Fingerprint string `json:"fingerprint,omitempty"`
	Tasks       []Task `json:"tasks,omitempty"`
	NextTaskID  int    `json:"next_task_id,omitempty"`
}

// New opens the datastore file at filePath.
func New(filePath string) (*Storage, error) {
	ds, err := datastore.New(filePath)
	if err != nil {
		return nil, fmt.Errorf("open datastore: %w", err)
	}
	return &Storage{ds: ds}, nil
}

// NewWithBackend wraps an already opened backend.
func NewWithBackend(b Backend) *Storage {
	return &Storage{ds: b}
}

func (s *Storage) Close() error {
	return s.ds.Close()
}

func recordKey(scope string) string {
	if scope == "" {
		return GlobalScope
	}
	return scope
}

// getOrCreateRecord loads the record for scope. Values read back from the
// file come out as generic maps, so they are round-tripped through JSON.
func (s *Storage) getOrCreateRecord(scope string) (*Record, error) {
	data, exists := s.ds.Get(recordKey(scope))
	if !exists {
		return &Record{CommandsHistoryList: []CommandHistoryRecord{}}, nil
	}
	if r, ok := data.(*Record); ok {
		cp := *r
		return &cp, nil
	}

	jsonData, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("error marshalling data: %w", err)
	}
	var record Record
	if err := json.Unmarshal(jsonData, &record); err != nil {
		return nil, fmt.Errorf("error unmarshalling to *Record: %w", err)
	}
	if len(record.CommandsHistoryList) > commandHistoryLimit {
		record.CommandsHistoryList = record.CommandsHistoryList[len(record.CommandsHistoryList)-commandHistoryLimit:]
	}
	return &record, nil
}

func (s *Storage) update(scope string, fn func(*Record) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, err := s.getOrCreateRecord(scope)
	if err != nil {
		return err
	}
	if err := fn(record); err != nil {
		return err
	}
	s.ds.Add(recordKey(scope), record)
	return nil
}

func (s *Storage) view(scope string) (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getOrCreateRecord(scope)
}

// AppendCommandToHistory appends a command history record, keeping the most
// recent entries only.
func (s *Storage) AppendCommandToHistory(guildID string, command CommandHistoryRecord) error {
	return s.update(guildID, func(r *Record) error {
		r.CommandsHistoryList = append(r.CommandsHistoryList, command)
		if len(r.CommandsHistoryList) > commandHistoryLimit {
			r.CommandsHistoryList = r.CommandsHistoryList[len(r.CommandsHistoryList)-commandHistoryLimit:]
		}
		return nil
	})
}

func (s *Storage) FetchCommandHistory(guildID string) ([]CommandHistoryRecord, error) {
	record, err := s.view(guildID)
	if err != nil {
		return nil, err
	}
	return record.CommandsHistoryList, nil
}

// Fingerprint returns the hash of the payload last synced to scope, or ""
// when the scope has never been synced.
func (s *Storage) Fingerprint(scope string) (string, error) {
	record, err := s.view(scope)
	if err != nil {
		return "", err
	}
	return record.Fingerprint, nil
}

func (s *Storage) SetFingerprint(scope, hash string) error {
	return s.update(scope, func(r *Record) error {
		r.Fingerprint = hash
		return nil
	})
}
