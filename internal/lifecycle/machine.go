// Package lifecycle drives a job registration from upload through on-chain
// finalization and reports every state it reaches.
package lifecycle

import (
	"errors"
	"fmt"

	"github.com/acurast/acurast-cli/internal/chain"
	"github.com/acurast/acurast-cli/internal/model"
)

// Event is one lifecycle transition. Only the fields of its Status are set.
// A terminal failure carries Err and the status reached so far.
type Event struct {
	Status model.DeploymentStatus

	// Uploaded
	Locator string
	// Prepared
	Registration *model.JobRegistration
	// Submit
	TxHash string
	// WaitingForMatch
	JobIDs []model.JobID
	// Matched, Acknowledged and the execution states
	JobID *model.JobID
	// Acknowledged
	Acknowledged uint64

	Err error
}

// DispatchErrorDecoder resolves module dispatch errors
type DispatchErrorDecoder interface {
	DecodeDispatchError(derr *chain.DispatchError) (chain.ModuleError, error)
}

type jobProgress struct {
	status       model.DeploymentStatus
	acknowledged uint64
}

var markerStatus = map[chain.Marker]model.DeploymentStatus{
	chain.MarkerEnvironmentVariablesSet: model.StatusEnvironmentVariablesSet,
	chain.MarkerStarted:                 model.StatusStarted,
	chain.MarkerExecutionDone:           model.StatusExecutionDone,
	chain.MarkerFinalized:               model.StatusFinalized,
}

// Machine is the deployment state machine. Each method is one transition:
// it updates the state and returns the events to emit, with no other side
// effects. A Machine is not safe for concurrent use.
type Machine struct {
	decoder DispatchErrorDecoder
	state   model.DeploymentStatus
	failed  bool
	order   []model.JobID
	jobs    map[model.JobID]*jobProgress
}

// NewMachine creates a machine in its initial state. decoder may be nil, in
// which case dispatch errors are rendered generically.
func NewMachine(decoder DispatchErrorDecoder) *Machine {
	return &Machine{
		decoder: decoder,
		jobs:    make(map[model.JobID]*jobProgress),
	}
}

// State returns the furthest submission state reached
func (m *Machine) State() model.DeploymentStatus {
	return m.state
}

// Failed reports whether the submission ended in a terminal failure
func (m *Machine) Failed() bool {
	return m.failed
}

// JobIDs returns the job ids reported by the network, in order
func (m *Machine) JobIDs() []model.JobID {
	ids := make([]model.JobID, len(m.order))
	copy(ids, m.order)
	return ids
}

// Done reports whether the machine will not emit further events
func (m *Machine) Done() bool {
	if m.failed {
		return true
	}
	if m.state < model.StatusWaitingForMatch {
		return false
	}
	for _, p := range m.jobs {
		if p.status != model.StatusFinalized {
			return false
		}
	}
	return true
}

// Uploaded records the content locator of the uploaded script
func (m *Machine) Uploaded(locator string) (Event, error) {
	if err := m.expect(0); err != nil {
		return Event{}, err
	}
	m.state = model.StatusUploaded
	return Event{Status: model.StatusUploaded, Locator: locator}, nil
}

// Prepared records the converted registration. A machine may start here
// when the script was uploaded elsewhere.
func (m *Machine) Prepared(reg *model.JobRegistration) (Event, error) {
	if m.failed || m.state > model.StatusUploaded {
		return Event{}, m.unexpected(model.StatusPrepared)
	}
	m.state = model.StatusPrepared
	return Event{Status: model.StatusPrepared, Registration: reg}, nil
}

// AdvanceSubmission applies one update of the submission stream. A
// dispatch error or transport failure is terminal and returned as error.
// Updates arriving after inclusion are ignored.
func (m *Machine) AdvanceSubmission(u chain.SubmissionUpdate) ([]Event, error) {
	if m.failed {
		return nil, m.unexpected(model.StatusSubmit)
	}
	if m.state >= model.StatusSubmit {
		return nil, nil
	}
	if err := m.expect(model.StatusPrepared); err != nil {
		return nil, err
	}

	switch {
	case u.Err != nil:
		return nil, m.fail(&SubmissionTransportError{Err: u.Err})
	case u.DispatchError != nil:
		return nil, m.fail(m.reject(u.DispatchError))
	case u.Status == chain.TxDropped:
		return nil, m.fail(&SubmissionTransportError{Err: errors.New("transaction dropped")})
	case !u.InBlock():
		return nil, nil
	}

	m.state = model.StatusSubmit
	events := []Event{{Status: model.StatusSubmit, TxHash: u.TxHash}}

	ids := chain.JobIDs(u.Events)
	if len(ids) == 0 {
		return events, nil
	}

	m.state = model.StatusWaitingForMatch
	for _, id := range ids {
		if _, ok := m.jobs[id]; ok {
			continue
		}
		m.order = append(m.order, id)
		m.jobs[id] = &jobProgress{status: model.StatusWaitingForMatch}
	}
	return append(events, Event{Status: model.StatusWaitingForMatch, JobIDs: m.JobIDs()}), nil
}

// AdvanceStatus applies one tick of the job status subscription. Updates
// for unknown jobs or that would move a job backwards produce no events.
func (m *Machine) AdvanceStatus(u chain.StatusUpdate) []Event {
	if m.failed || m.state < model.StatusWaitingForMatch {
		return nil
	}
	p, ok := m.jobs[u.JobID]
	if !ok || u.Status == nil {
		return nil
	}

	id := u.JobID
	var events []Event

	switch u.Status.Kind {
	case chain.JobMatched:
		if p.status < model.StatusMatched {
			p.status = model.StatusMatched
			events = append(events, Event{Status: model.StatusMatched, JobID: &id})
		}
	case chain.JobAssigned:
		if p.status < model.StatusAcknowledged || (p.status == model.StatusAcknowledged && u.Status.Assigned > p.acknowledged) {
			p.status = model.StatusAcknowledged
			p.acknowledged = u.Status.Assigned
			events = append(events, Event{Status: model.StatusAcknowledged, JobID: &id, Acknowledged: u.Status.Assigned})
		}
	}

	reached := p.status
	for _, marker := range u.Markers {
		if s, ok := markerStatus[marker]; ok && s > reached {
			reached = s
		}
	}
	for s := max(p.status+1, model.StatusEnvironmentVariablesSet); s <= reached; s++ {
		events = append(events, Event{Status: s, JobID: &id})
	}
	p.status = reached

	return events
}

func (m *Machine) reject(derr *chain.DispatchError) *SubmissionRejectedError {
	if derr.Module != nil && m.decoder != nil {
		if decoded, err := m.decoder.DecodeDispatchError(derr); err == nil {
			return &SubmissionRejectedError{Section: decoded.Section, Name: decoded.Name, Docs: decoded.Docs}
		}
	}
	return &SubmissionRejectedError{Message: derr.String()}
}

func (m *Machine) fail(err error) error {
	m.failed = true
	return err
}

func (m *Machine) expect(state model.DeploymentStatus) error {
	if m.failed || m.state != state {
		return m.unexpected(state + 1)
	}
	return nil
}

func (m *Machine) unexpected(next model.DeploymentStatus) error {
	return fmt.Errorf("%w: %s after %s", ErrUnexpectedTransition, next, m.state)
}
