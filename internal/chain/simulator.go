package chain

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/juju/clock"

	"github.com/acurast/acurast-cli/internal/model"
)

// Pallet indices of the simulated runtime metadata
const (
	palletAcurast            uint8 = 40
	palletAcurastMarketplace uint8 = 41
)

var simulatedMetadata = map[uint8]struct {
	section string
	errors  []ModuleError
}{
	palletAcurast: {
		section: "acurast",
		errors: []ModuleError{
			{Name: "JobRegistrationZeroDuration", Docs: []string{"The job registration must specify a non-zero `duration`."}},
			{Name: "JobRegistrationEndBeforeStart", Docs: []string{"The job registration's end is before its start."}},
			{Name: "JobRegistrationDurationExceedsSchedule", Docs: []string{"The job registration's duration is longer than its interval."}},
		},
	},
	palletAcurastMarketplace: {
		section: "acurastMarketplace",
		errors: []ModuleError{
			{Name: "CapacityNonZero", Docs: []string{"The job registration must require at least one slot."}},
		},
	},
}

// SimulatorConfig configures a Simulator
type SimulatorConfig struct {
	// Clock paces the simulated blocks; defaults to the wall clock
	Clock clock.Clock
	// Step is the delay between two simulated updates. Zero emits immediately.
	Step time.Duration
	// Origin is the account that registers jobs
	Origin string
	Logger *slog.Logger
}

// Simulator is an in-process network that accepts registrations, stores
// them and walks every job through matching, assignment and execution.
// It is safe for concurrent use.
type Simulator struct {
	clock  clock.Clock
	step   time.Duration
	origin string
	logger *slog.Logger

	mu      sync.Mutex
	nextSeq uint64
	jobs    map[model.JobID]*model.JobRegistration
}

var _ Client = (*Simulator)(nil)

// NewSimulator creates a simulated network
func NewSimulator(cfg SimulatorConfig) *Simulator {
	clk := cfg.Clock
	if clk == nil {
		clk = clock.WallClock
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	origin := cfg.Origin
	if origin == "" {
		origin = "5SimulatedOrigin"
	}
	return &Simulator{
		clock:   clk,
		step:    cfg.Step,
		origin:  origin,
		logger:  logger,
		nextSeq: 1,
		jobs:    make(map[model.JobID]*model.JobRegistration),
	}
}

// SubmitJob implements Client
func (s *Simulator) SubmitJob(ctx context.Context, reg *model.JobRegistration) (<-chan SubmissionUpdate, error) {
	if reg == nil {
		return nil, fmt.Errorf("registration cannot be nil")
	}

	txHash := fmt.Sprintf("0x%064x", s.clock.Now().UnixNano())
	updates := make(chan SubmissionUpdate)

	go func() {
		defer close(updates)

		if !s.send(ctx, updates, SubmissionUpdate{Status: TxReady, TxHash: txHash}) {
			return
		}
		if !s.send(ctx, updates, SubmissionUpdate{Status: TxBroadcast, TxHash: txHash}) {
			return
		}

		if derr := s.verify(reg); derr != nil {
			s.logger.Debug("simulated registration rejected", "tx", txHash, "error", derr.String())
			s.send(ctx, updates, SubmissionUpdate{Status: TxInBlock, TxHash: txHash, DispatchError: derr})
			return
		}

		id := s.store(reg)
		s.logger.Debug("simulated registration stored", "tx", txHash, "job", id.String())
		events := []Event{{Section: SectionAcurast, Method: MethodJobRegistrationStored, JobID: &id}}
		if !s.send(ctx, updates, SubmissionUpdate{Status: TxInBlock, TxHash: txHash, Events: events}) {
			return
		}
		s.send(ctx, updates, SubmissionUpdate{Status: TxFinalized, TxHash: txHash, Events: events})
	}()

	return updates, nil
}

// SubscribeJobStatus implements Client. Each tick reports the status of
// every requested job. The stream closes once all jobs are finalized or ctx
// is canceled.
func (s *Simulator) SubscribeJobStatus(ctx context.Context, ids []model.JobID) (<-chan StatusUpdate, error) {
	progress := make([][]StatusUpdate, len(ids))
	s.mu.Lock()
	for i, id := range ids {
		progress[i] = statusTimeline(id, s.jobs[id])
	}
	s.mu.Unlock()

	updates := make(chan StatusUpdate)
	go func() {
		defer close(updates)
		for tick := 0; ; tick++ {
			more := false
			for _, timeline := range progress {
				if tick >= len(timeline) {
					continue
				}
				more = true
				if !s.sendStatus(ctx, updates, timeline[tick]) {
					return
				}
			}
			if !more {
				return
			}
		}
	}()
	return updates, nil
}

// DecodeDispatchError implements Client
func (s *Simulator) DecodeDispatchError(derr *DispatchError) (ModuleError, error) {
	if derr == nil || derr.Module == nil {
		return ModuleError{}, fmt.Errorf("not a module error")
	}
	pallet, ok := simulatedMetadata[derr.Module.Index]
	if !ok || int(derr.Module.Error) >= len(pallet.errors) {
		return ModuleError{}, fmt.Errorf("unknown module error %d/%d", derr.Module.Index, derr.Module.Error)
	}
	decoded := pallet.errors[derr.Module.Error]
	decoded.Section = pallet.section
	return decoded, nil
}

// Registration returns a stored registration
func (s *Simulator) Registration(id model.JobID) (*model.JobRegistration, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	reg, ok := s.jobs[id]
	return reg, ok
}

func (s *Simulator) verify(reg *model.JobRegistration) *DispatchError {
	switch {
	case reg.Schedule.Duration == 0:
		return moduleError(palletAcurast, 0)
	case reg.Schedule.EndTime <= reg.Schedule.StartTime:
		return moduleError(palletAcurast, 1)
	case reg.Schedule.Duration > reg.Schedule.Interval:
		return moduleError(palletAcurast, 2)
	case reg.Extra.Requirements.Slots == 0:
		return moduleError(palletAcurastMarketplace, 0)
	}
	return nil
}

func (s *Simulator) store(reg *model.JobRegistration) model.JobID {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := model.JobID{Origin: s.origin, Seq: s.nextSeq}
	s.nextSeq++
	s.jobs[id] = reg
	return id
}

// statusTimeline lists the updates an unknown job or a stored job goes through
func statusTimeline(id model.JobID, reg *model.JobRegistration) []StatusUpdate {
	if reg == nil {
		return []StatusUpdate{{JobID: id}}
	}

	timeline := []StatusUpdate{
		{JobID: id},
		{JobID: id, Status: &JobStatus{Kind: JobOpen}},
		{JobID: id, Status: &JobStatus{Kind: JobMatched}},
	}
	slots := uint64(reg.Extra.Requirements.Slots)
	for n := uint64(1); n <= slots; n++ {
		timeline = append(timeline, StatusUpdate{JobID: id, Status: &JobStatus{Kind: JobAssigned, Assigned: n}})
	}

	var markers []Marker
	for _, m := range []Marker{MarkerEnvironmentVariablesSet, MarkerStarted, MarkerExecutionDone, MarkerFinalized} {
		markers = append(markers, m)
		reached := make([]Marker, len(markers))
		copy(reached, markers)
		timeline = append(timeline, StatusUpdate{
			JobID:   id,
			Status:  &JobStatus{Kind: JobAssigned, Assigned: slots},
			Markers: reached,
		})
	}
	return timeline
}

func moduleError(pallet, index uint8) *DispatchError {
	return &DispatchError{Module: &ModuleIndex{Index: pallet, Error: index}}
}

func (s *Simulator) wait(ctx context.Context) bool {
	if s.step <= 0 {
		return ctx.Err() == nil
	}
	select {
	case <-ctx.Done():
		return false
	case <-s.clock.After(s.step):
		return true
	}
}

func (s *Simulator) send(ctx context.Context, ch chan<- SubmissionUpdate, u SubmissionUpdate) bool {
	if !s.wait(ctx) {
		return false
	}
	select {
	case <-ctx.Done():
		return false
	case ch <- u:
		return true
	}
}

func (s *Simulator) sendStatus(ctx context.Context, ch chan<- StatusUpdate, u StatusUpdate) bool {
	if !s.wait(ctx) {
		return false
	}
	select {
	case <-ctx.Done():
		return false
	case ch <- u:
		return true
	}
}
