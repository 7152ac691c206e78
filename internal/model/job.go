package model

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// AssignmentStrategyVariant is the on-chain assignment strategy
type AssignmentStrategyVariant string

const (
	VariantSingle    AssignmentStrategyVariant = "Single"
	VariantCompeting AssignmentStrategyVariant = "Competing"
)

// JobRegistration is the canonical, chain-ready description of a job
type JobRegistration struct {
	Script                   string   `yaml:"script" json:"script"`
	AllowedSources           []string `yaml:"allowedSources,omitempty" json:"allowedSources,omitempty"`
	AllowOnlyVerifiedSources bool     `yaml:"allowOnlyVerifiedSources" json:"allowOnlyVerifiedSources"`
	Schedule                 Schedule `yaml:"schedule" json:"schedule"`
	Memory                   uint32   `yaml:"memory" json:"memory"`
	NetworkRequests          uint32   `yaml:"networkRequests" json:"networkRequests"`
	Storage                  uint32   `yaml:"storage" json:"storage"`
	RequiredModules          []string `yaml:"requiredModules" json:"requiredModules"`
	Extra                    JobExtra `yaml:"extra" json:"extra"`
}

// Schedule holds the execution window of a job. All values are milliseconds.
type Schedule struct {
	Duration      uint64 `yaml:"duration" json:"duration"`
	StartTime     uint64 `yaml:"startTime" json:"startTime"`
	EndTime       uint64 `yaml:"endTime" json:"endTime"`
	Interval      uint64 `yaml:"interval" json:"interval"`
	MaxStartDelay uint64 `yaml:"maxStartDelay" json:"maxStartDelay"`
}

// Executions returns how many executions fit into the schedule window
func (s Schedule) Executions() uint64 {
	if s.Interval == 0 || s.EndTime <= s.StartTime {
		return 0
	}
	return (s.EndTime - s.StartTime) / s.Interval
}

// JobExtra is the marketplace block of a registration
type JobExtra struct {
	Requirements JobRequirements `yaml:"requirements" json:"requirements"`
}

// JobRequirements are the matching requirements of a job
type JobRequirements struct {
	AssignmentStrategy AssignmentStrategy `yaml:"assignmentStrategy" json:"assignmentStrategy"`
	Slots              uint8              `yaml:"slots" json:"slots"`
	Reward             uint64             `yaml:"reward" json:"reward"`
	MinReputation      *uint64            `yaml:"minReputation,omitempty" json:"minReputation,omitempty"`
}

// AssignmentStrategy is the on-chain strategy with an optional instant-match list
type AssignmentStrategy struct {
	Variant      AssignmentStrategyVariant `yaml:"variant" json:"variant"`
	InstantMatch []PlannedExecution        `yaml:"instantMatch,omitempty" json:"instantMatch,omitempty"`
}

// PlannedExecution pre-assigns a source account with a start delay
type PlannedExecution struct {
	Source     string       `yaml:"source" json:"source"`
	StartDelay Milliseconds `yaml:"startDelay" json:"startDelay"`
}

// Milliseconds is an unsigned millisecond count that travels as a decimal
// string in JSON so no consumer parses it as a float.
type Milliseconds uint64

// MarshalJSON implements json.Marshaler
func (m Milliseconds) MarshalJSON() ([]byte, error) {
	return json.Marshal(strconv.FormatUint(uint64(m), 10))
}

// UnmarshalJSON accepts both quoted and bare integers
func (m *Milliseconds) UnmarshalJSON(data []byte) error {
	raw := strings.Trim(string(data), `"`)
	v, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid millisecond value %s: %w", string(data), err)
	}
	*m = Milliseconds(v)
	return nil
}

// JobID identifies a registered job: the registering origin and its sequence number
type JobID struct {
	Origin string `yaml:"origin" json:"origin"`
	Seq    uint64 `yaml:"seq" json:"seq"`
}

// Number is the stable numeric encoding of the identifier used in file names
func (id JobID) Number() string {
	return strconv.FormatUint(id.Seq, 10)
}

func (id JobID) String() string {
	return fmt.Sprintf("%s#%d", id.Origin, id.Seq)
}
