// Package store persists deployment records as JSON files keyed by their
// creation time.
//
// A record is first written as {project}-{millis}.json. Once the network
// assigns a job id, a sibling {project}-{millis}-{seq}.json carrying the id is
// written and the first file is kept as the pre-identifier snapshot. Records
// are never deleted. Writes are not atomic.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/gofrs/flock"

	"github.com/acurast/acurast-cli/internal/model"
)

// DefaultDir is where deployment records live, relative to the project root
const DefaultDir = "./.acurast/deploy"

// ErrInvalidProject is returned for project names that cannot be part of a
// record file name
var ErrInvalidProject = errors.New("invalid project name")

// Store reads and writes deployment records in a directory
type Store struct {
	dir    string
	logger *slog.Logger
	log    *ChangeLog
}

// Option configures a Store
type Option func(*Store)

// WithLogger sets the logger used for store diagnostics
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// New creates a store rooted at dir. The directory is created on first write.
func New(dir string, opts ...Option) *Store {
	if dir == "" {
		dir = DefaultDir
	}
	s := &Store{
		dir:    dir,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = NewChangeLog(filepath.Join(dir, changeLogName))
	return s
}

// Dir returns the record directory
func (s *Store) Dir() string {
	return s.dir
}

// Record is a deployment record together with the file it was read from
type Record struct {
	Name       string
	Deployment model.Deployment
}

// Create writes the initial record of a deployment. If a record for the
// same creation time already exists nothing is written.
func (s *Store) Create(deployedAt time.Time, cfg model.ProjectConfig, reg model.JobRegistration) error {
	unlock, err := s.lock(cfg.ProjectName)
	if err != nil {
		return err
	}
	defer unlock()

	key := model.DeploymentKey(deployedAt)
	existing, err := s.find(cfg.ProjectName, key)
	if err != nil {
		return err
	}
	if existing != nil {
		s.logger.Debug("deployment record exists, not overwriting", "file", existing.Name, "key", key)
		return nil
	}

	deployment := model.Deployment{
		DeployedAt:   deployedAt.UTC().Truncate(time.Millisecond),
		Status:       model.DeploymentStatusInit,
		Assignments:  []model.Assignment{},
		Config:       cfg,
		Registration: reg,
	}

	name := fmt.Sprintf("%s-%s.json", cfg.ProjectName, key)
	if err := s.write(name, &deployment); err != nil {
		return err
	}
	s.logger.Info("deployment record created", "file", name, "key", key)

	return s.log.Append(ChangeEntry{Op: OpCreate, Key: key, File: name, Project: cfg.ProjectName})
}

// AttachJobID writes a copy of the record project created at deployedAt
// with the job id set. A missing record is not an error and writes nothing.
// The returned name is empty in that case.
func (s *Store) AttachJobID(deployedAt time.Time, project string, id model.JobID) (string, error) {
	key := model.DeploymentKey(deployedAt)
	names, err := s.names()
	if err != nil {
		return "", err
	}
	if len(names) == 0 {
		s.logger.Debug("no deployment records to attach job id to", "key", key, "job", id.String())
		return "", nil
	}

	unlock, err := s.lock(project)
	if err != nil {
		return "", err
	}
	defer unlock()

	existing, err := s.find(project, key)
	if err != nil {
		return "", err
	}
	if existing == nil {
		s.logger.Debug("no deployment record to attach job id to", "key", key, "job", id.String())
		return "", nil
	}

	deployment := existing.Deployment
	jobID := id
	deployment.DeploymentID = &jobID

	name := strings.TrimSuffix(existing.Name, ".json") + "-" + id.Number() + ".json"
	if err := s.write(name, &deployment); err != nil {
		return "", err
	}
	s.logger.Info("job id attached to deployment record", "file", name, "job", id.String())

	err = s.log.Append(ChangeEntry{
		Op:           OpAttach,
		Key:          key,
		File:         name,
		Project:      deployment.Config.ProjectName,
		DeploymentID: &jobID,
	})
	return name, err
}

// Load reads the record stored under name
func (s *Store) Load(name string) (*Record, error) {
	data, err := os.ReadFile(filepath.Join(s.dir, name))
	if err != nil {
		return nil, fmt.Errorf("failed to read deployment record %s: %w", name, err)
	}

	var deployment model.Deployment
	if err := json.Unmarshal(data, &deployment); err != nil {
		return nil, fmt.Errorf("failed to parse deployment record %s: %w", name, err)
	}
	return &Record{Name: name, Deployment: deployment}, nil
}

// Find returns the most recent record of project for a creation time: the
// one carrying a job id when it exists, otherwise the initial record. It
// returns nil when no record exists.
func (s *Store) Find(project string, deployedAt time.Time) (*Record, error) {
	names, err := s.matching(project, model.DeploymentKey(deployedAt))
	if err != nil || len(names) == 0 {
		return nil, err
	}
	return s.Load(names[len(names)-1])
}

// List returns all records ordered by creation time. Records that cannot be
// parsed are skipped and logged.
func (s *Store) List() ([]Record, error) {
	names, err := s.names()
	if err != nil {
		return nil, err
	}

	records := make([]Record, 0, len(names))
	for _, name := range names {
		rec, err := s.Load(name)
		if err != nil {
			s.logger.Warn("skipping unreadable deployment record", "file", name, "error", err)
			continue
		}
		records = append(records, *rec)
	}

	sort.SliceStable(records, func(i, j int) bool {
		a, b := records[i].Deployment.DeployedAt, records[j].Deployment.DeployedAt
		if !a.Equal(b) {
			return a.Before(b)
		}
		return len(records[i].Name) < len(records[j].Name)
	})
	return records, nil
}

// Changes returns the change log of the store
func (s *Store) Changes() ([]ChangeEntry, error) {
	return s.log.Entries()
}

// find returns the initial record of project for key
func (s *Store) find(project, key string) (*Record, error) {
	names, err := s.matching(project, key)
	if err != nil || len(names) == 0 {
		return nil, err
	}
	return s.Load(names[0])
}

// matching lists the record files of project for key, shortest first so
// the initial record precedes its id-bearing siblings
func (s *Store) matching(project, key string) ([]string, error) {
	names, err := s.names()
	if err != nil {
		return nil, err
	}

	base := project + "-" + key
	var matches []string
	for _, name := range names {
		if recordOf(name, base) {
			matches = append(matches, name)
		}
	}
	sort.SliceStable(matches, func(i, j int) bool {
		if len(matches[i]) != len(matches[j]) {
			return len(matches[i]) < len(matches[j])
		}
		return matches[i] < matches[j]
	})
	return matches, nil
}

// recordOf reports whether name is base.json or base-{seq}.json
func recordOf(name, base string) bool {
	stem := strings.TrimSuffix(name, ".json")
	if stem == base {
		return true
	}
	seq, ok := strings.CutPrefix(stem, base+"-")
	if !ok || seq == "" {
		return false
	}
	for _, r := range seq {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func (s *Store) names() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read deployment directory %s: %w", s.dir, err)
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}
		names = append(names, entry.Name())
	}
	return names, nil
}

func (s *Store) write(name string, deployment *model.Deployment) error {
	if err := s.ensureDir(); err != nil {
		return err
	}

	data, err := json.MarshalIndent(deployment, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode deployment record: %w", err)
	}

	path := filepath.Join(s.dir, name)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write deployment record to %s: %w", path, err)
	}
	return nil
}

func (s *Store) ensureDir() error {
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	return nil
}

// lock takes the advisory per-project lock serializing record writes
func (s *Store) lock(project string) (func(), error) {
	if !model.ValidProjectName(project) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidProject, project)
	}
	if err := s.ensureDir(); err != nil {
		return nil, err
	}

	fl := flock.New(filepath.Join(s.dir, "."+project+".lock"))
	if err := fl.Lock(); err != nil {
		return nil, fmt.Errorf("failed to lock deployment records of %s: %w", project, err)
	}
	return func() {
		if err := fl.Unlock(); err != nil {
			s.logger.Warn("failed to release deployment lock", "project", project, "error", err)
		}
	}, nil
}
