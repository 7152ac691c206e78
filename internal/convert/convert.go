package convert

import (
	"errors"
	"fmt"
	"time"

	"github.com/acurast/acurast-cli/internal/model"
	"github.com/acurast/acurast-cli/internal/schedule"
)

// Usage limits applied when a project leaves a ceiling unset or zero.
// They match the network's minimum viable allocation.
const (
	DefaultMemory          uint32 = 512
	DefaultNetworkRequests uint32 = 10
	DefaultStorage         uint32 = 100
	DefaultSlots           uint8  = 1
)

// ConfigToJob transforms a project configuration into a canonical job registration.
// scriptRef is the content locator of the uploaded script; when empty the
// configured fileUrl is used as is. Only startTime and endTime depend on now.
func ConfigToJob(cfg model.ProjectConfig, scriptRef string, now time.Time) (*model.JobRegistration, error) {
	sched, err := schedule.Resolve(cfg.Execution, now, cfg.MaxAllowedStartDelayInMs)
	if err != nil {
		return nil, err
	}

	script := scriptRef
	if script == "" {
		script = cfg.FileURL
	}

	requiredModules := make([]string, len(cfg.RequiredModules))
	copy(requiredModules, cfg.RequiredModules)

	var allowedSources []string
	if len(cfg.ProcessorWhitelist) > 0 {
		allowedSources = make([]string, len(cfg.ProcessorWhitelist))
		copy(allowedSources, cfg.ProcessorWhitelist)
	}

	return &model.JobRegistration{
		Script:                   script,
		AllowedSources:           allowedSources,
		AllowOnlyVerifiedSources: cfg.OnlyAttestedDevices,
		Schedule:                 sched,
		Memory:                   orDefault(cfg.UsageLimit.MaxMemory, DefaultMemory),
		NetworkRequests:          orDefault(cfg.UsageLimit.MaxNetworkRequests, DefaultNetworkRequests),
		Storage:                  orDefault(cfg.UsageLimit.MaxStorage, DefaultStorage),
		RequiredModules:          requiredModules,
		Extra: model.JobExtra{
			Requirements: model.JobRequirements{
				AssignmentStrategy: assignmentStrategy(cfg.AssignmentStrategy),
				Slots:              slots(cfg.NumberOfReplicas),
				Reward:             schedule.Reward(cfg.MaxCostPerExecution),
				MinReputation:      minReputation(cfg.MinProcessorReputation),
			},
		},
	}, nil
}

// assignmentStrategy maps the configured strategy. Anything but Competing
// is treated as Single.
func assignmentStrategy(cfg model.AssignmentStrategyConfig) model.AssignmentStrategy {
	if cfg.Type == model.AssignmentCompeting {
		return model.AssignmentStrategy{Variant: model.VariantCompeting}
	}

	strategy := model.AssignmentStrategy{Variant: model.VariantSingle}
	if len(cfg.InstantMatch) > 0 {
		strategy.InstantMatch = make([]model.PlannedExecution, len(cfg.InstantMatch))
		for i, match := range cfg.InstantMatch {
			strategy.InstantMatch[i] = model.PlannedExecution{
				Source:     match.Processor,
				StartDelay: model.Milliseconds(match.RunAt),
			}
		}
	}
	return strategy
}

// orDefault treats zero like unset. A project cannot ask for a zero ceiling.
func orDefault(v *uint32, def uint32) uint32 {
	if v == nil || *v == 0 {
		return def
	}
	return *v
}

func slots(replicas *uint8) uint8 {
	if replicas == nil || *replicas == 0 {
		return DefaultSlots
	}
	return *replicas
}

// minReputation omits a zero reputation: zero means "no minimum"
func minReputation(v *uint64) *uint64 {
	if v == nil || *v == 0 {
		return nil
	}
	r := *v
	return &r
}

// ErrInvalidRegistration is wrapped by every Check failure
var ErrInvalidRegistration = errors.New("invalid job registration")

// Check verifies the structural rules of a registration
func Check(reg *model.JobRegistration) error {
	if reg == nil {
		return fmt.Errorf("%w: registration cannot be nil", ErrInvalidRegistration)
	}
	s := reg.Schedule
	if s.Duration == 0 {
		return fmt.Errorf("%w: duration must be greater than 0", ErrInvalidRegistration)
	}
	if s.Duration > s.Interval {
		return fmt.Errorf("%w: duration %d exceeds interval %d", ErrInvalidRegistration, s.Duration, s.Interval)
	}
	if s.StartTime >= s.EndTime {
		return fmt.Errorf("%w: start time %d must be before end time %d", ErrInvalidRegistration, s.StartTime, s.EndTime)
	}
	if s.Executions() == 0 {
		return fmt.Errorf("%w: schedule window holds no execution", ErrInvalidRegistration)
	}
	if reg.Memory == 0 || reg.NetworkRequests == 0 || reg.Storage == 0 {
		return fmt.Errorf("%w: usage limits must be greater than 0", ErrInvalidRegistration)
	}
	if reg.Extra.Requirements.Slots == 0 {
		return fmt.Errorf("%w: at least one slot is required", ErrInvalidRegistration)
	}
	if reg.Script == "" {
		return fmt.Errorf("%w: script reference is empty", ErrInvalidRegistration)
	}
	return nil
}
