package main

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/juju/clock"

	"github.com/acurast/acurast-cli/internal/chain"
	"github.com/acurast/acurast-cli/internal/loader"
	"github.com/acurast/acurast-cli/internal/model"
	"github.com/acurast/acurast-cli/internal/schema"
	"github.com/acurast/acurast-cli/internal/store"
	"github.com/acurast/acurast-cli/internal/upload"
)

var wallClock clock.Clock = clock.WallClock

func clockNow() time.Time {
	return wallClock.Now()
}

// loadProjectsFile loads and validates the projects file
func loadProjectsFile() (*model.ProjectsFile, error) {
	validator, err := schema.NewValidator()
	if err != nil {
		return nil, err
	}
	return loader.LoadProjects(projectsFile, validator)
}

// selectProjects resolves command arguments to projects. No argument
// selects the only project of the file; all selects every project.
func selectProjects(file *model.ProjectsFile, args []string, all bool) ([]model.ProjectConfig, error) {
	if all {
		names := loader.Names(file)
		if len(names) == 0 {
			return nil, fmt.Errorf("%w: %s defines no projects", loader.ErrProjectNotFound, projectsFile)
		}
		args = names
	}
	if len(args) == 0 {
		cfg, err := loader.SelectProject(file, "")
		if err != nil {
			return nil, err
		}
		return []model.ProjectConfig{cfg}, nil
	}

	projects := make([]model.ProjectConfig, 0, len(args))
	for _, name := range args {
		cfg, err := loader.SelectProject(file, name)
		if err != nil {
			return nil, err
		}
		projects = append(projects, cfg)
	}
	return projects, nil
}

func newUploader() (upload.Uploader, error) {
	if appEnv.IPFSURL == "" {
		slog.Debug("ACURAST_IPFS_URL not set, storing scripts locally", "dir", appEnv.ScriptsDir)
		return upload.NewLocal(appEnv.ScriptsDir), nil
	}
	return upload.NewIPFS(upload.IPFSConfig{
		URL:    appEnv.IPFSURL,
		APIKey: appEnv.IPFSAPIKey,
		Logger: slog.Default(),
	})
}

func newChain() *chain.Simulator {
	return chain.NewSimulator(chain.SimulatorConfig{
		Clock:  wallClock,
		Step:   appEnv.SimulatorStep,
		Logger: slog.Default(),
	})
}

func newStore() *store.Store {
	return store.New(appEnv.DeployDir, store.WithLogger(slog.Default()))
}
