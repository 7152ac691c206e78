package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/acurast/acurast-cli/internal/config"
	"github.com/acurast/acurast-cli/internal/loader"
	"github.com/acurast/acurast-cli/internal/model"
	"github.com/acurast/acurast-cli/internal/schedule"
)

var (
	initName          string
	initFile          string
	initNetwork       string
	initExecution     string
	initDuration      string
	initInterval      string
	initExecutions    uint64
	initReplicas      uint8
	initStrategy      string
	initAttested      bool
	initStartDelay    string
	initMaxCost       uint64
	initMinReputation uint64
	initEnvVars       []string
	initWhitelist     []string
	initModules       []string
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Add a project to the projects file",
	Long:  "Create or extend the projects file with a new project and make sure the .env file lists the keys the CLI needs.",
	RunE: func(cmd *cobra.Command, args []string) error {
		return initProject()
	},
}

func registerInitCommand(root *cobra.Command) {
	root.AddCommand(initCmd)

	initCmd.Flags().StringVarP(&initName, "name", "n", "", "Project name (defaults to the name in package.json)")
	initCmd.Flags().StringVarP(&initFile, "file", "f", "", "Bundled javascript file to run")
	initCmd.Flags().StringVar(&initNetwork, "network", "canary", "Network to deploy to")
	initCmd.Flags().StringVarP(&initExecution, "execution", "e", string(model.ExecutionOneTime), "Execution type (onetime/interval)")
	initCmd.Flags().StringVarP(&initDuration, "duration", "d", "1min", "Maximum execution time of a one-time job (eg. 1s, 5min or 2h)")
	initCmd.Flags().StringVarP(&initInterval, "interval", "i", "", "Interval between executions of an interval job (eg. 1s, 5min or 2h)")
	initCmd.Flags().Uint64Var(&initExecutions, "executions", 1, "Number of executions of an interval job")
	initCmd.Flags().Uint8Var(&initReplicas, "replicas", 1, "Number of processors running the job")
	initCmd.Flags().StringVar(&initStrategy, "strategy", string(model.AssignmentSingle), "Assignment strategy (Single/Competing)")
	initCmd.Flags().BoolVar(&initAttested, "attested", true, "Only run on attested devices")
	initCmd.Flags().StringVar(&initStartDelay, "start-delay", "10s", "Maximum allowed start delay")
	initCmd.Flags().Uint64Var(&initMaxCost, "max-cost", schedule.DefaultReward, "Maximum cost per execution")
	initCmd.Flags().Uint64Var(&initMinReputation, "min-reputation", 0, "Minimum processor reputation (0 for none)")
	initCmd.Flags().StringSliceVar(&initEnvVars, "env-var", nil, "Environment variable passed to the job (repeatable)")
	initCmd.Flags().StringSliceVar(&initWhitelist, "processor", nil, "Processor allowed to run the job (repeatable)")
	initCmd.Flags().StringSliceVar(&initModules, "module", nil, "Required processor module (repeatable)")
}

func initProject() error {
	fmt.Println("□ Initializing Acurast project...")

	file := &model.ProjectsFile{Projects: map[string]model.ProjectConfig{}}
	if _, err := os.Stat(projectsFile); err == nil {
		existing, err := loader.LoadProjects(projectsFile, nil)
		if err != nil {
			return err
		}
		file = existing
		fmt.Printf("  %s exists, adding another project\n", projectsFile)
	} else if !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to access %s: %w", projectsFile, err)
	}

	name := initName
	if name == "" {
		name = packageName("package.json")
	}
	if name == "" {
		return fmt.Errorf("project name is required, pass --name")
	}
	if initFile == "" {
		return fmt.Errorf("script file is required, pass --file")
	}

	cfg, err := newProjectConfig(name, initFile)
	if err != nil {
		return err
	}
	if err := loader.AddProject(file, cfg); err != nil {
		return err
	}

	if err := loader.SaveProjects(projectsFile, file); err != nil {
		return err
	}
	fmt.Printf("✓ Project %s added to %s\n", name, projectsFile)

	keys := append(append([]string{}, config.RequiredKeys...), initEnvVars...)
	added, err := config.EnsureEnvKeys(envFile, keys...)
	if err != nil {
		return err
	}
	for _, key := range added {
		fmt.Printf("  added %s to %s\n", key, envFile)
	}
	if len(added) > 0 {
		fmt.Printf("✓ Fill in the new keys of %s before deploying\n", envFile)
	}

	fmt.Println("You can deploy your app using \"acurast deploy\"")
	return nil
}

func newProjectConfig(name, fileURL string) (model.ProjectConfig, error) {
	execution, err := executionFromFlags()
	if err != nil {
		return model.ProjectConfig{}, err
	}

	startDelay, err := schedule.ParseDuration(initStartDelay)
	if err != nil {
		return model.ProjectConfig{}, fmt.Errorf("invalid start delay: %w", err)
	}

	strategy := model.AssignmentStrategyType(initStrategy)
	if strategy != model.AssignmentSingle && strategy != model.AssignmentCompeting {
		return model.ProjectConfig{}, fmt.Errorf("invalid assignment strategy: %s", initStrategy)
	}

	return model.ProjectConfig{
		ProjectName:         name,
		FileURL:             fileURL,
		Network:             initNetwork,
		OnlyAttestedDevices: initAttested,
		AssignmentStrategy:  model.AssignmentStrategyConfig{Type: strategy},
		Execution:           execution,
		UsageLimit: model.UsageLimit{
			MaxMemory:          model.Uint32(0),
			MaxNetworkRequests: model.Uint32(0),
			MaxStorage:         model.Uint32(0),
		},
		MaxAllowedStartDelayInMs:    model.Uint64(uint64(startDelay / time.Millisecond)),
		NumberOfReplicas:            model.Uint8(initReplicas),
		MinProcessorReputation:      model.Uint64(initMinReputation),
		MaxCostPerExecution:         model.Uint64(initMaxCost),
		RequiredModules:             initModules,
		IncludeEnvironmentVariables: initEnvVars,
		ProcessorWhitelist:          initWhitelist,
	}, nil
}

func executionFromFlags() (model.Execution, error) {
	switch model.ExecutionType(initExecution) {
	case model.ExecutionOneTime:
		d, err := schedule.ParseDuration(initDuration)
		if err != nil {
			return model.Execution{}, fmt.Errorf("invalid duration: %w", err)
		}
		return model.Execution{Type: model.ExecutionOneTime, MaxExecutionTimeInMs: uint64(d / time.Millisecond)}, nil
	case model.ExecutionInterval:
		d, err := schedule.ParseDuration(initInterval)
		if err != nil {
			return model.Execution{}, fmt.Errorf("invalid interval: %w", err)
		}
		if initExecutions == 0 {
			return model.Execution{}, fmt.Errorf("number of executions must be greater than 0")
		}
		return model.Execution{
			Type:               model.ExecutionInterval,
			IntervalInMs:       uint64(d / time.Millisecond),
			NumberOfExecutions: initExecutions,
		}, nil
	default:
		return model.Execution{}, fmt.Errorf("%w: %s", schedule.ErrInvalidExecutionType, initExecution)
	}
}

// packageName reads the project name of a package.json, if any
func packageName(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	var pkg struct {
		Name string `json:"name"`
	}
	if err := json.Unmarshal(data, &pkg); err != nil {
		return ""
	}
	return pkg.Name
}
