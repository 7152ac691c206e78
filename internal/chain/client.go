// Package chain defines the contract the deployment lifecycle needs from a
// chain client, plus an in-process simulated network implementing it.
package chain

import (
	"context"
	"fmt"

	"github.com/acurast/acurast-cli/internal/model"
)

// Event section and method names emitted by the acurast pallet
const (
	SectionAcurast              = "acurast"
	MethodJobRegistrationStored = "JobRegistrationStored"
)

// Client submits registrations and observes job status on chain
type Client interface {
	// SubmitJob submits a registration. The stream ends when ctx is canceled
	// or the transaction reaches a terminal state.
	SubmitJob(ctx context.Context, reg *model.JobRegistration) (<-chan SubmissionUpdate, error)

	// SubscribeJobStatus streams the stored status of each job id until ctx
	// is canceled.
	SubscribeJobStatus(ctx context.Context, ids []model.JobID) (<-chan StatusUpdate, error)

	// DecodeDispatchError resolves a module error into its metadata
	DecodeDispatchError(derr *DispatchError) (ModuleError, error)
}

// TxStatus is the inclusion state of a submitted transaction
type TxStatus string

const (
	TxReady     TxStatus = "Ready"
	TxBroadcast TxStatus = "Broadcast"
	TxInBlock   TxStatus = "InBlock"
	TxFinalized TxStatus = "Finalized"
	TxDropped   TxStatus = "Dropped"
)

// SubmissionUpdate is one status report of a submitted transaction
type SubmissionUpdate struct {
	Status        TxStatus
	TxHash        string
	Events        []Event
	DispatchError *DispatchError
	// Err reports a transport failure; the stream ends after it
	Err error
}

// InBlock reports whether the transaction is included in a block
func (u SubmissionUpdate) InBlock() bool {
	return u.Status == TxInBlock || u.Status == TxFinalized
}

// Event is an on-chain event attached to a transaction
type Event struct {
	Section string
	Method  string
	// JobID is set for JobRegistrationStored events
	JobID *model.JobID
}

// JobIDs returns the ids of all JobRegistrationStored events, in order
func JobIDs(events []Event) []model.JobID {
	var ids []model.JobID
	for _, ev := range events {
		if ev.Section == SectionAcurast && ev.Method == MethodJobRegistrationStored && ev.JobID != nil {
			ids = append(ids, *ev.JobID)
		}
	}
	return ids
}

// DispatchError is a rejection by the runtime. Module errors carry the
// pallet and error index; other errors only a message.
type DispatchError struct {
	Module  *ModuleIndex
	Message string
}

// ModuleIndex locates an error in the runtime metadata
type ModuleIndex struct {
	Index uint8
	Error uint8
}

func (d *DispatchError) String() string {
	if d.Module != nil && d.Message == "" {
		return fmt.Sprintf("Module{index: %d, error: %d}", d.Module.Index, d.Module.Error)
	}
	return d.Message
}

// ModuleError is the decoded metadata of a module dispatch error
type ModuleError struct {
	Section string
	Name    string
	Docs    []string
}

// JobStatusKind is the stored marketplace status of a job
type JobStatusKind string

const (
	JobOpen     JobStatusKind = "Open"
	JobMatched  JobStatusKind = "Matched"
	JobAssigned JobStatusKind = "Assigned"
)

// Marker is a post-acknowledgement progress marker reported for a job
type Marker string

const (
	MarkerEnvironmentVariablesSet Marker = "EnvironmentVariablesSet"
	MarkerStarted                 Marker = "Started"
	MarkerExecutionDone           Marker = "ExecutionDone"
	MarkerFinalized               Marker = "Finalized"
)

// JobStatus is a decoded status value
type JobStatus struct {
	Kind JobStatusKind
	// Assigned is the acknowledgement count for JobAssigned
	Assigned uint64
}

// StatusUpdate is one tick of the job status subscription for one job
type StatusUpdate struct {
	JobID model.JobID
	// Status is nil while the network has not processed the job yet
	Status  *JobStatus
	Markers []Marker
	// Err reports a subscription failure; the stream ends after it
	Err error
}
