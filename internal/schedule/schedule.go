// Package schedule turns execution descriptions into absolute job schedules
// and resolves the economic defaults of a registration.
package schedule

import (
	"errors"
	"fmt"
	"math/bits"
	"time"

	"github.com/acurast/acurast-cli/internal/model"
)

const (
	// DefaultMaxAllowedStartDelayMs applies when a project sets no start delay
	DefaultMaxAllowedStartDelayMs uint64 = 10000

	// DefaultReward is the reward per execution in the network's smallest unit
	DefaultReward uint64 = 1000000000
)

// ErrInvalidExecutionType is returned for execution descriptions that are
// neither onetime nor interval
var ErrInvalidExecutionType = errors.New("invalid execution type")

// ErrScheduleOverflow is returned when the schedule window does not fit
// into a millisecond timestamp
var ErrScheduleOverflow = errors.New("schedule window overflows")

// InvalidExecutionTypeError carries the execution type that was rejected
type InvalidExecutionTypeError struct {
	Type model.ExecutionType
}

func (e *InvalidExecutionTypeError) Error() string {
	return fmt.Sprintf("%s: %q", ErrInvalidExecutionType, string(e.Type))
}

// Is lets errors.Is match ErrInvalidExecutionType
func (e *InvalidExecutionTypeError) Is(target error) bool {
	return target == ErrInvalidExecutionType
}

// Resolve computes the absolute schedule for an execution starting at now.
// A nil or zero maxStartDelay falls back to DefaultMaxAllowedStartDelayMs.
func Resolve(exec model.Execution, now time.Time, maxStartDelay *uint64) (model.Schedule, error) {
	start := uint64(now.UnixMilli())
	delay := StartDelay(maxStartDelay)

	switch exec.Type {
	case model.ExecutionOneTime:
		end, carry := bits.Add64(start, exec.MaxExecutionTimeInMs, 0)
		if carry != 0 {
			return model.Schedule{}, fmt.Errorf("%w: duration %d", ErrScheduleOverflow, exec.MaxExecutionTimeInMs)
		}
		return model.Schedule{
			Duration:      exec.MaxExecutionTimeInMs,
			StartTime:     start,
			EndTime:       end,
			Interval:      exec.MaxExecutionTimeInMs,
			MaxStartDelay: delay,
		}, nil
	case model.ExecutionInterval:
		hi, span := bits.Mul64(exec.IntervalInMs, exec.NumberOfExecutions)
		end, carry := bits.Add64(start, span, 0)
		if hi != 0 || carry != 0 {
			return model.Schedule{}, fmt.Errorf("%w: %d executions every %dms", ErrScheduleOverflow, exec.NumberOfExecutions, exec.IntervalInMs)
		}
		return model.Schedule{
			Duration:      exec.IntervalInMs,
			StartTime:     start,
			EndTime:       end,
			Interval:      exec.IntervalInMs,
			MaxStartDelay: delay,
		}, nil
	default:
		return model.Schedule{}, &InvalidExecutionTypeError{Type: exec.Type}
	}
}

// StartDelay resolves the configured maximum start delay
func StartDelay(configured *uint64) uint64 {
	if configured == nil || *configured == 0 {
		return DefaultMaxAllowedStartDelayMs
	}
	return *configured
}

// Reward resolves the configured maximum cost per execution
func Reward(maxCostPerExecution *uint64) uint64 {
	if maxCostPerExecution == nil || *maxCostPerExecution == 0 {
		return DefaultReward
	}
	return *maxCostPerExecution
}
