package lifecycle

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/acurast/acurast-cli/internal/chain"
	"github.com/acurast/acurast-cli/internal/model"
)

type staticDecoder struct {
	decoded chain.ModuleError
	err     error
}

func (d staticDecoder) DecodeDispatchError(*chain.DispatchError) (chain.ModuleError, error) {
	return d.decoded, d.err
}

func statuses(events []Event) []model.DeploymentStatus {
	out := make([]model.DeploymentStatus, len(events))
	for i, ev := range events {
		out[i] = ev.Status
	}
	return out
}

func stored(ids ...model.JobID) []chain.Event {
	events := make([]chain.Event, len(ids))
	for i := range ids {
		id := ids[i]
		events[i] = chain.Event{Section: chain.SectionAcurast, Method: chain.MethodJobRegistrationStored, JobID: &id}
	}
	return events
}

func preparedMachine(t *testing.T, decoder DispatchErrorDecoder) *Machine {
	t.Helper()
	m := NewMachine(decoder)
	_, err := m.Uploaded("ipfs://QmScript")
	require.NoError(t, err)
	_, err = m.Prepared(&model.JobRegistration{Script: "ipfs://QmScript"})
	require.NoError(t, err)
	return m
}

func TestMachineFullLifecycle(t *testing.T) {
	id := model.JobID{Origin: "5Alice", Seq: 7}
	m := NewMachine(nil)

	var events []Event
	ev, err := m.Uploaded("ipfs://QmScript")
	require.NoError(t, err)
	events = append(events, ev)
	ev, err = m.Prepared(&model.JobRegistration{Script: "ipfs://QmScript"})
	require.NoError(t, err)
	events = append(events, ev)

	for _, u := range []chain.SubmissionUpdate{
		{Status: chain.TxReady},
		{Status: chain.TxBroadcast},
		{Status: chain.TxInBlock, TxHash: "0xabc", Events: stored(id)},
		{Status: chain.TxFinalized, TxHash: "0xabc", Events: stored(id)},
	} {
		out, err := m.AdvanceSubmission(u)
		require.NoError(t, err)
		events = append(events, out...)
	}

	for _, u := range []chain.StatusUpdate{
		{JobID: id},
		{JobID: id, Status: &chain.JobStatus{Kind: chain.JobOpen}},
		{JobID: id, Status: &chain.JobStatus{Kind: chain.JobMatched}},
		{JobID: id, Status: &chain.JobStatus{Kind: chain.JobAssigned, Assigned: 1}},
		{JobID: id, Status: &chain.JobStatus{Kind: chain.JobAssigned, Assigned: 1}, Markers: []chain.Marker{chain.MarkerEnvironmentVariablesSet}},
		{JobID: id, Status: &chain.JobStatus{Kind: chain.JobAssigned, Assigned: 1}, Markers: []chain.Marker{chain.MarkerEnvironmentVariablesSet, chain.MarkerStarted}},
		{JobID: id, Status: &chain.JobStatus{Kind: chain.JobAssigned, Assigned: 1}, Markers: []chain.Marker{chain.MarkerEnvironmentVariablesSet, chain.MarkerStarted, chain.MarkerExecutionDone}},
		{JobID: id, Status: &chain.JobStatus{Kind: chain.JobAssigned, Assigned: 1}, Markers: []chain.Marker{chain.MarkerEnvironmentVariablesSet, chain.MarkerStarted, chain.MarkerExecutionDone, chain.MarkerFinalized}},
	} {
		events = append(events, m.AdvanceStatus(u)...)
	}

	assert.Equal(t, []model.DeploymentStatus{
		model.StatusUploaded,
		model.StatusPrepared,
		model.StatusSubmit,
		model.StatusWaitingForMatch,
		model.StatusMatched,
		model.StatusAcknowledged,
		model.StatusEnvironmentVariablesSet,
		model.StatusStarted,
		model.StatusExecutionDone,
		model.StatusFinalized,
	}, statuses(events))

	assert.Equal(t, "ipfs://QmScript", events[0].Locator)
	assert.Equal(t, "0xabc", events[2].TxHash)
	assert.Equal(t, []model.JobID{id}, events[3].JobIDs)
	require.NotNil(t, events[4].JobID)
	assert.Equal(t, id, *events[4].JobID)
	assert.Equal(t, uint64(1), events[5].Acknowledged)
	assert.True(t, m.Done())
	assert.False(t, m.Failed())
}

func TestMachineDispatchError(t *testing.T) {
	tests := []struct {
		name    string
		decoder DispatchErrorDecoder
		derr    *chain.DispatchError
		message string
	}{
		{
			name: "decoded module error",
			decoder: staticDecoder{decoded: chain.ModuleError{
				Section: "acurast",
				Name:    "JobRegistrationZeroDuration",
				Docs:    []string{"duration must be set"},
			}},
			derr:    &chain.DispatchError{Module: &chain.ModuleIndex{Index: 40, Error: 0}},
			message: "acurast.JobRegistrationZeroDuration: duration must be set",
		},
		{
			name:    "undecodable module error",
			decoder: staticDecoder{err: errors.New("unknown")},
			derr:    &chain.DispatchError{Module: &chain.ModuleIndex{Index: 9, Error: 3}},
			message: "Module{index: 9, error: 3}",
		},
		{
			name:    "non module error",
			decoder: staticDecoder{},
			derr:    &chain.DispatchError{Message: "BadOrigin"},
			message: "BadOrigin",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := preparedMachine(t, tt.decoder)

			events, err := m.AdvanceSubmission(chain.SubmissionUpdate{Status: chain.TxInBlock, DispatchError: tt.derr})
			require.Error(t, err)
			assert.Empty(t, events)

			var rejected *SubmissionRejectedError
			require.ErrorAs(t, err, &rejected)
			assert.Equal(t, tt.message, err.Error())
			assert.True(t, m.Failed())
			assert.True(t, m.Done())
			assert.Equal(t, model.StatusPrepared, m.State())
		})
	}
}

func TestMachineTransportError(t *testing.T) {
	m := preparedMachine(t, nil)
	cause := errors.New("connection reset")

	_, err := m.AdvanceSubmission(chain.SubmissionUpdate{Err: cause})
	require.Error(t, err)
	var transport *SubmissionTransportError
	require.ErrorAs(t, err, &transport)
	assert.ErrorIs(t, err, cause)

	_, err = m.AdvanceSubmission(chain.SubmissionUpdate{Status: chain.TxInBlock})
	assert.ErrorIs(t, err, ErrUnexpectedTransition)
}

func TestMachineDroppedTransaction(t *testing.T) {
	m := preparedMachine(t, nil)

	_, err := m.AdvanceSubmission(chain.SubmissionUpdate{Status: chain.TxDropped})
	var transport *SubmissionTransportError
	assert.ErrorAs(t, err, &transport)
}

func TestMachineInclusionWithoutJobIDs(t *testing.T) {
	m := preparedMachine(t, nil)

	events, err := m.AdvanceSubmission(chain.SubmissionUpdate{Status: chain.TxInBlock, TxHash: "0x1"})
	require.NoError(t, err)
	assert.Equal(t, []model.DeploymentStatus{model.StatusSubmit}, statuses(events))
	assert.Empty(t, m.JobIDs())
	assert.False(t, m.Done())
}

func TestMachineRejectsOutOfOrderTransitions(t *testing.T) {
	m := NewMachine(nil)

	_, err := m.AdvanceSubmission(chain.SubmissionUpdate{Status: chain.TxInBlock})
	assert.ErrorIs(t, err, ErrUnexpectedTransition)

	_, err = m.Uploaded("a")
	require.NoError(t, err)
	_, err = m.Uploaded("b")
	assert.ErrorIs(t, err, ErrUnexpectedTransition)
}

func TestMachinePreparedWithoutUpload(t *testing.T) {
	m := NewMachine(nil)

	ev, err := m.Prepared(&model.JobRegistration{Script: "ipfs://QmScript"})
	require.NoError(t, err)
	assert.Equal(t, model.StatusPrepared, ev.Status)
}

func TestMachineMarkersFillSkippedStates(t *testing.T) {
	id := model.JobID{Origin: "5Alice", Seq: 1}
	m := preparedMachine(t, nil)
	_, err := m.AdvanceSubmission(chain.SubmissionUpdate{Status: chain.TxInBlock, Events: stored(id)})
	require.NoError(t, err)

	events := m.AdvanceStatus(chain.StatusUpdate{
		JobID:   id,
		Status:  &chain.JobStatus{Kind: chain.JobAssigned, Assigned: 1},
		Markers: []chain.Marker{chain.MarkerStarted},
	})
	assert.Equal(t, []model.DeploymentStatus{
		model.StatusAcknowledged,
		model.StatusEnvironmentVariablesSet,
		model.StatusStarted,
	}, statuses(events))

	// repeated and regressing updates are ignored
	assert.Empty(t, m.AdvanceStatus(chain.StatusUpdate{
		JobID:   id,
		Status:  &chain.JobStatus{Kind: chain.JobAssigned, Assigned: 1},
		Markers: []chain.Marker{chain.MarkerEnvironmentVariablesSet},
	}))
	assert.Empty(t, m.AdvanceStatus(chain.StatusUpdate{JobID: id, Status: &chain.JobStatus{Kind: chain.JobMatched}}))
	assert.False(t, m.Done())
}

func TestMachineAcknowledgementGrowth(t *testing.T) {
	id := model.JobID{Origin: "5Alice", Seq: 1}
	m := preparedMachine(t, nil)
	_, err := m.AdvanceSubmission(chain.SubmissionUpdate{Status: chain.TxInBlock, Events: stored(id)})
	require.NoError(t, err)

	var acks []uint64
	for _, n := range []uint64{1, 1, 2, 3, 2} {
		for _, ev := range m.AdvanceStatus(chain.StatusUpdate{JobID: id, Status: &chain.JobStatus{Kind: chain.JobAssigned, Assigned: n}}) {
			require.Equal(t, model.StatusAcknowledged, ev.Status)
			acks = append(acks, ev.Acknowledged)
		}
	}
	assert.Equal(t, []uint64{1, 2, 3}, acks)
}

func TestMachineIgnoresUnknownJobs(t *testing.T) {
	id := model.JobID{Origin: "5Alice", Seq: 1}
	m := preparedMachine(t, nil)
	_, err := m.AdvanceSubmission(chain.SubmissionUpdate{Status: chain.TxInBlock, Events: stored(id)})
	require.NoError(t, err)

	events := m.AdvanceStatus(chain.StatusUpdate{
		JobID:  model.JobID{Origin: "5Bob", Seq: 1},
		Status: &chain.JobStatus{Kind: chain.JobMatched},
	})
	assert.Empty(t, events)
	assert.Empty(t, m.AdvanceStatus(chain.StatusUpdate{JobID: id}))
}

func TestMachineDoneWaitsForEveryJob(t *testing.T) {
	a := model.JobID{Origin: "5Alice", Seq: 1}
	b := model.JobID{Origin: "5Alice", Seq: 2}
	m := preparedMachine(t, nil)
	events, err := m.AdvanceSubmission(chain.SubmissionUpdate{Status: chain.TxInBlock, Events: stored(a, b)})
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, []model.JobID{a, b}, events[1].JobIDs)

	finalized := []chain.Marker{chain.MarkerEnvironmentVariablesSet, chain.MarkerStarted, chain.MarkerExecutionDone, chain.MarkerFinalized}
	m.AdvanceStatus(chain.StatusUpdate{JobID: a, Status: &chain.JobStatus{Kind: chain.JobAssigned, Assigned: 1}, Markers: finalized})
	assert.False(t, m.Done())
	m.AdvanceStatus(chain.StatusUpdate{JobID: b, Status: &chain.JobStatus{Kind: chain.JobAssigned, Assigned: 1}, Markers: finalized})
	assert.True(t, m.Done())
}
