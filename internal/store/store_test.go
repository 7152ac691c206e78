package store

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/acurast/acurast-cli/internal/model"
)

func fixture(name string) (model.ProjectConfig, model.JobRegistration) {
	cfg := model.ProjectConfig{
		ProjectName: name,
		FileURL:     "./dist/bundle.js",
		Network:     "canary",
		Execution:   model.Execution{Type: model.ExecutionOneTime, MaxExecutionTimeInMs: 5000},
	}
	reg := model.JobRegistration{
		Script:          "ipfs://QmScript",
		Schedule:        model.Schedule{Duration: 5000, StartTime: 1, EndTime: 5001, Interval: 5000, MaxStartDelay: 10000},
		Memory:          512,
		NetworkRequests: 10,
		Storage:         100,
		RequiredModules: []string{},
		Extra: model.JobExtra{Requirements: model.JobRequirements{
			AssignmentStrategy: model.AssignmentStrategy{Variant: model.VariantSingle},
			Slots:              1,
			Reward:             1000000000,
		}},
	}
	return cfg, reg
}

func TestCreateWritesInitialRecord(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "deploy")
	s := New(dir)
	deployedAt := time.UnixMilli(1_700_000_000_123)
	cfg, reg := fixture("app")

	require.NoError(t, s.Create(deployedAt, cfg, reg))

	rec, err := s.Load("app-1700000000123.json")
	require.NoError(t, err)
	assert.Equal(t, model.DeploymentStatusInit, rec.Deployment.Status)
	assert.Empty(t, rec.Deployment.Assignments)
	assert.NotNil(t, rec.Deployment.Assignments)
	assert.Nil(t, rec.Deployment.DeploymentID)
	assert.Equal(t, cfg, rec.Deployment.Config)
	assert.Equal(t, reg, rec.Deployment.Registration)
	assert.True(t, deployedAt.Equal(rec.Deployment.DeployedAt))
}

func TestCreateTwiceKeepsFirstRecord(t *testing.T) {
	s := New(t.TempDir())
	deployedAt := time.UnixMilli(1_700_000_000_000)
	cfg, reg := fixture("app")

	require.NoError(t, s.Create(deployedAt, cfg, reg))

	changed := cfg
	changed.Network = "mainnet"
	require.NoError(t, s.Create(deployedAt, changed, reg))

	rec, err := s.Load("app-1700000000000.json")
	require.NoError(t, err)
	assert.Equal(t, "canary", rec.Deployment.Config.Network)

	records, err := s.List()
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

func TestAttachJobIDWithoutRecordIsNoop(t *testing.T) {
	dir := t.TempDir()
	s := New(dir)

	name, err := s.AttachJobID(time.UnixMilli(42), "app", model.JobID{Origin: "5Alice", Seq: 7})
	require.NoError(t, err)
	assert.Empty(t, name)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestAttachJobIDWithMissingDirectory(t *testing.T) {
	s := New(filepath.Join(t.TempDir(), "absent"))

	name, err := s.AttachJobID(time.UnixMilli(42), "app", model.JobID{Seq: 1})
	require.NoError(t, err)
	assert.Empty(t, name)
}

func TestAttachJobIDWritesSibling(t *testing.T) {
	s := New(t.TempDir())
	deployedAt := time.UnixMilli(1_700_000_000_000)
	cfg, reg := fixture("app")
	require.NoError(t, s.Create(deployedAt, cfg, reg))

	id := model.JobID{Origin: "5Alice", Seq: 1234}
	name, err := s.AttachJobID(deployedAt, "app", id)
	require.NoError(t, err)
	assert.Equal(t, "app-1700000000000-1234.json", name)

	initial, err := s.Load("app-1700000000000.json")
	require.NoError(t, err)
	assert.Nil(t, initial.Deployment.DeploymentID)

	attached, err := s.Load(name)
	require.NoError(t, err)
	require.NotNil(t, attached.Deployment.DeploymentID)
	assert.Equal(t, id, *attached.Deployment.DeploymentID)

	withoutID := attached.Deployment
	withoutID.DeploymentID = nil
	assert.Equal(t, initial.Deployment, withoutID)

	found, err := s.Find("app", deployedAt)
	require.NoError(t, err)
	assert.Equal(t, name, found.Name)
}

func TestAttachTwiceDerivesFromInitialRecord(t *testing.T) {
	s := New(t.TempDir())
	deployedAt := time.UnixMilli(1_700_000_000_000)
	cfg, reg := fixture("app")
	require.NoError(t, s.Create(deployedAt, cfg, reg))

	_, err := s.AttachJobID(deployedAt, "app", model.JobID{Seq: 1})
	require.NoError(t, err)
	name, err := s.AttachJobID(deployedAt, "app", model.JobID{Seq: 2})
	require.NoError(t, err)
	assert.Equal(t, "app-1700000000000-2.json", name)
}

func TestChangeLogRecordsWrites(t *testing.T) {
	s := New(t.TempDir())
	deployedAt := time.UnixMilli(1_700_000_000_000)
	cfg, reg := fixture("app")

	require.NoError(t, s.Create(deployedAt, cfg, reg))
	require.NoError(t, s.Create(deployedAt, cfg, reg))
	_, err := s.AttachJobID(deployedAt, "app", model.JobID{Origin: "5Alice", Seq: 9})
	require.NoError(t, err)

	entries, err := s.Changes()
	require.NoError(t, err)
	require.Len(t, entries, 2)

	assert.Equal(t, OpCreate, entries[0].Op)
	assert.Equal(t, "app-1700000000000.json", entries[0].File)
	assert.Equal(t, OpAttach, entries[1].Op)
	assert.Equal(t, "app", entries[1].Project)
	require.NotNil(t, entries[1].DeploymentID)
	assert.Equal(t, uint64(9), entries[1].DeploymentID.Seq)
	assert.NotEqual(t, entries[0].ID, entries[1].ID)
}

func TestListOrdersByCreationTime(t *testing.T) {
	s := New(t.TempDir())
	cfgA, reg := fixture("alpha")
	cfgB, _ := fixture("beta")

	require.NoError(t, s.Create(time.UnixMilli(2000), cfgB, reg))
	require.NoError(t, s.Create(time.UnixMilli(1000), cfgA, reg))
	_, err := s.AttachJobID(time.UnixMilli(1000), "alpha", model.JobID{Seq: 5})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(s.Dir(), "broken-3000.json"), []byte("{"), 0644))

	records, err := s.List()
	require.NoError(t, err)

	var names []string
	for _, r := range records {
		names = append(names, r.Name)
	}
	assert.Equal(t, []string{"alpha-1000.json", "alpha-1000-5.json", "beta-2000.json"}, names)
}

func TestSameTimestampAcrossProjects(t *testing.T) {
	s := New(t.TempDir())
	deployedAt := time.UnixMilli(1_700_000_000_000)
	cfgA, reg := fixture("alpha")
	cfgB, _ := fixture("beta")

	require.NoError(t, s.Create(deployedAt, cfgA, reg))
	require.NoError(t, s.Create(deployedAt, cfgB, reg))

	name, err := s.AttachJobID(deployedAt, "beta", model.JobID{Origin: "5Bob", Seq: 7})
	require.NoError(t, err)
	assert.Equal(t, "beta-1700000000000-7.json", name)

	attached, err := s.Load(name)
	require.NoError(t, err)
	assert.Equal(t, "beta", attached.Deployment.Config.ProjectName)

	alpha, err := s.Find("alpha", deployedAt)
	require.NoError(t, err)
	assert.Equal(t, "alpha-1700000000000.json", alpha.Name)
	assert.Nil(t, alpha.Deployment.DeploymentID)

	records, err := s.List()
	require.NoError(t, err)
	assert.Len(t, records, 3)
}

func TestProjectNamePrefixesDoNotMatch(t *testing.T) {
	s := New(t.TempDir())
	deployedAt := time.UnixMilli(1_700_000_000_000)
	cfg, reg := fixture("app-x")
	require.NoError(t, s.Create(deployedAt, cfg, reg))

	name, err := s.AttachJobID(deployedAt, "app", model.JobID{Seq: 1})
	require.NoError(t, err)
	assert.Empty(t, name)

	found, err := s.Find("app", deployedAt)
	require.NoError(t, err)
	assert.Nil(t, found)
}

func TestInvalidProjectNameIsRefused(t *testing.T) {
	dir := t.TempDir()
	s := New(filepath.Join(dir, "deploy"))
	cfg, reg := fixture("../escaped")

	err := s.Create(time.UnixMilli(1), cfg, reg)
	assert.ErrorIs(t, err, ErrInvalidProject)

	_, statErr := os.Stat(filepath.Join(dir, "escaped-1.json"))
	assert.True(t, os.IsNotExist(statErr))
}
