package model

import (
	"strconv"
	"time"
)

// DeploymentStatusInit is the status of a freshly written deployment record
const DeploymentStatusInit = "init"

// AssignmentStatus is the state of a processor assignment
type AssignmentStatus string

const (
	AssignmentMatched      AssignmentStatus = "matched"
	AssignmentAcknowledged AssignmentStatus = "acknowledged"
	AssignmentFailed       AssignmentStatus = "failed"
)

// Deployment is the locally persisted record of one deployment attempt
type Deployment struct {
	DeployedAt   time.Time       `json:"deployedAt"`
	Status       string          `json:"status"`
	Assignments  []Assignment    `json:"assignments"`
	Config       ProjectConfig   `json:"config"`
	Registration JobRegistration `json:"registration"`
	DeploymentID *JobID          `json:"deploymentId,omitempty"`
}

// Assignment is a processor assigned to a deployment
type Assignment struct {
	ProcessorID string           `json:"processorId"`
	Status      AssignmentStatus `json:"status"`
}

// DeploymentKey is the stable key of a record: its creation time in Unix milliseconds
func DeploymentKey(deployedAt time.Time) string {
	return strconv.FormatInt(deployedAt.UnixMilli(), 10)
}
