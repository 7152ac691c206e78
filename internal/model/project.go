package model

import "regexp"

var projectNamePattern = regexp.MustCompile(`^[A-Za-z0-9_-][A-Za-z0-9._-]*$`)

// ValidProjectName reports whether name is usable as a project name. Names
// become part of record file names, so separators and a leading dot are
// refused.
func ValidProjectName(name string) bool {
	return projectNamePattern.MatchString(name)
}

// ExecutionType selects the execution shape of a project
type ExecutionType string

const (
	ExecutionOneTime  ExecutionType = "onetime"
	ExecutionInterval ExecutionType = "interval"
)

// AssignmentStrategyType selects how processors are matched to a job
type AssignmentStrategyType string

const (
	AssignmentSingle    AssignmentStrategyType = "Single"
	AssignmentCompeting AssignmentStrategyType = "Competing"
)

// ProjectsFile is the acurast.json document holding all projects of a workspace
type ProjectsFile struct {
	Projects map[string]ProjectConfig `yaml:"projects" json:"projects"`
}

// ProjectConfig is the user-authored description of a deployable workload.
//
// Pointer fields distinguish "unset" from an explicit zero. The converter
// still resolves both to the documented defaults.
type ProjectConfig struct {
	ProjectName                 string                   `yaml:"projectName" json:"projectName"`
	FileURL                     string                   `yaml:"fileUrl" json:"fileUrl"`
	Network                     string                   `yaml:"network" json:"network"`
	OnlyAttestedDevices         bool                     `yaml:"onlyAttestedDevices" json:"onlyAttestedDevices"`
	AssignmentStrategy          AssignmentStrategyConfig `yaml:"assignmentStrategy" json:"assignmentStrategy"`
	Execution                   Execution                `yaml:"execution" json:"execution"`
	UsageLimit                  UsageLimit               `yaml:"usageLimit" json:"usageLimit"`
	MaxAllowedStartDelayInMs    *uint64                  `yaml:"maxAllowedStartDelayInMs,omitempty" json:"maxAllowedStartDelayInMs,omitempty"`
	NumberOfReplicas            *uint8                   `yaml:"numberOfReplicas,omitempty" json:"numberOfReplicas,omitempty"`
	MinProcessorReputation      *uint64                  `yaml:"minProcessorReputation,omitempty" json:"minProcessorReputation,omitempty"`
	MaxCostPerExecution         *uint64                  `yaml:"maxCostPerExecution,omitempty" json:"maxCostPerExecution,omitempty"`
	RequiredModules             []string                 `yaml:"requiredModules,omitempty" json:"requiredModules,omitempty"`
	IncludeEnvironmentVariables []string                 `yaml:"includeEnvironmentVariables,omitempty" json:"includeEnvironmentVariables,omitempty"`
	ProcessorWhitelist          []string                 `yaml:"processorWhitelist,omitempty" json:"processorWhitelist,omitempty"`
}

// AssignmentStrategyConfig is the configured assignment strategy
type AssignmentStrategyConfig struct {
	Type         AssignmentStrategyType `yaml:"type" json:"type"`
	InstantMatch []InstantMatchConfig   `yaml:"instantMatch,omitempty" json:"instantMatch,omitempty"`
}

// InstantMatchConfig pre-arranges a processor and the delay it starts at
type InstantMatchConfig struct {
	Processor string `yaml:"processor" json:"processor"`
	RunAt     uint64 `yaml:"runAt" json:"runAt"`
}

// Execution describes when and how often a job runs.
// Only the fields for the selected Type are meaningful.
type Execution struct {
	Type                 ExecutionType `yaml:"type" json:"type"`
	MaxExecutionTimeInMs uint64        `yaml:"maxExecutionTimeInMs,omitempty" json:"maxExecutionTimeInMs,omitempty"`
	IntervalInMs         uint64        `yaml:"intervalInMs,omitempty" json:"intervalInMs,omitempty"`
	NumberOfExecutions   uint64        `yaml:"numberOfExecutions,omitempty" json:"numberOfExecutions,omitempty"`
}

// UsageLimit holds the resource ceilings of a job
type UsageLimit struct {
	MaxMemory          *uint32 `yaml:"maxMemory,omitempty" json:"maxMemory,omitempty"`
	MaxNetworkRequests *uint32 `yaml:"maxNetworkRequests,omitempty" json:"maxNetworkRequests,omitempty"`
	MaxStorage         *uint32 `yaml:"maxStorage,omitempty" json:"maxStorage,omitempty"`
}

// Uint8 returns a pointer to v
func Uint8(v uint8) *uint8 { return &v }

// Uint32 returns a pointer to v
func Uint32(v uint32) *uint32 { return &v }

// Uint64 returns a pointer to v
func Uint64(v uint64) *uint64 { return &v }
