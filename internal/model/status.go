package model

// DeploymentStatus is a lifecycle state of a deployment, in the order the
// states are reached
type DeploymentStatus int

const (
	StatusUploaded DeploymentStatus = iota + 1
	StatusPrepared
	StatusSubmit
	StatusWaitingForMatch
	StatusMatched
	StatusAcknowledged
	StatusEnvironmentVariablesSet
	StatusStarted
	StatusExecutionDone
	StatusFinalized
)

var statusNames = map[DeploymentStatus]string{
	StatusUploaded:                "Uploaded",
	StatusPrepared:                "Prepared",
	StatusSubmit:                  "Submit",
	StatusWaitingForMatch:         "WaitingForMatch",
	StatusMatched:                 "Matched",
	StatusAcknowledged:            "Acknowledged",
	StatusEnvironmentVariablesSet: "EnvironmentVariablesSet",
	StatusStarted:                 "Started",
	StatusExecutionDone:           "ExecutionDone",
	StatusFinalized:               "Finalized",
}

func (s DeploymentStatus) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return "Unknown"
}

// MarshalText renders the status by name
func (s DeploymentStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}
