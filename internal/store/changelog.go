package store

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/acurast/acurast-cli/internal/model"
)

const changeLogName = "changes.jsonl"

// ChangeOp is the kind of change recorded in the change log
type ChangeOp string

const (
	OpCreate ChangeOp = "create"
	OpAttach ChangeOp = "attach"
)

// ChangeEntry is one line of the change log
type ChangeEntry struct {
	ID           string       `json:"id"`
	At           time.Time    `json:"at"`
	Op           ChangeOp     `json:"op"`
	Project      string       `json:"project"`
	Key          string       `json:"key"`
	File         string       `json:"file"`
	DeploymentID *model.JobID `json:"deploymentId,omitempty"`
}

// ChangeLog is an append-only JSON lines file of record writes
type ChangeLog struct {
	path string
}

// NewChangeLog opens the change log at path. The file is created on first append.
func NewChangeLog(path string) *ChangeLog {
	return &ChangeLog{path: path}
}

// Append adds an entry. ID and At are filled in when empty.
func (c *ChangeLog) Append(entry ChangeEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.At.IsZero() {
		entry.At = time.Now().UTC()
	}

	line, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to encode change entry: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(c.path), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	f, err := os.OpenFile(c.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open change log %s: %w", c.path, err)
	}
	defer f.Close()

	if _, err := f.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("failed to append to change log %s: %w", c.path, err)
	}
	return nil
}

// Entries reads all entries in the order they were appended
func (c *ChangeLog) Entries() ([]ChangeEntry, error) {
	f, err := os.Open(c.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to open change log %s: %w", c.path, err)
	}
	defer f.Close()

	var entries []ChangeEntry
	scanner := bufio.NewScanner(f)
	for line := 1; scanner.Scan(); line++ {
		if len(scanner.Bytes()) == 0 {
			continue
		}
		var entry ChangeEntry
		if err := json.Unmarshal(scanner.Bytes(), &entry); err != nil {
			return nil, fmt.Errorf("failed to parse change log %s line %d: %w", c.path, line, err)
		}
		entries = append(entries, entry)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read change log %s: %w", c.path, err)
	}
	return entries, nil
}
