package convert

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/acurast/acurast-cli/internal/model"
	"github.com/acurast/acurast-cli/internal/schedule"
)

func oneTimeConfig() model.ProjectConfig {
	return model.ProjectConfig{
		ProjectName:         "test",
		FileURL:             "./examples/ip.js",
		Network:             "canary",
		OnlyAttestedDevices: true,
		AssignmentStrategy:  model.AssignmentStrategyConfig{Type: model.AssignmentSingle},
		Execution: model.Execution{
			Type:                 model.ExecutionOneTime,
			MaxExecutionTimeInMs: 5000,
		},
		UsageLimit: model.UsageLimit{
			MaxMemory:          model.Uint32(0),
			MaxNetworkRequests: model.Uint32(0),
			MaxStorage:         model.Uint32(0),
		},
		MaxAllowedStartDelayInMs: model.Uint64(0),
		NumberOfReplicas:         model.Uint8(1),
		MinProcessorReputation:   model.Uint64(0),
		MaxCostPerExecution:      model.Uint64(schedule.DefaultReward),
	}
}

func TestConfigToJobOneTime(t *testing.T) {
	now := time.UnixMilli(1_700_000_000_000)

	reg, err := ConfigToJob(oneTimeConfig(), "ipfs://QmScript", now)
	require.NoError(t, err)

	start := uint64(now.UnixMilli())
	expected := &model.JobRegistration{
		Script:                   "ipfs://QmScript",
		AllowOnlyVerifiedSources: true,
		Schedule: model.Schedule{
			Duration:      5000,
			StartTime:     start,
			EndTime:       start + 5000,
			Interval:      5000,
			MaxStartDelay: 10000,
		},
		Memory:          512,
		NetworkRequests: 10,
		Storage:         100,
		RequiredModules: []string{},
		Extra: model.JobExtra{
			Requirements: model.JobRequirements{
				AssignmentStrategy: model.AssignmentStrategy{Variant: model.VariantSingle},
				Slots:              1,
				Reward:             1000000000,
			},
		},
	}
	assert.Equal(t, expected, reg)
	assert.NoError(t, Check(reg))
}

func TestConfigToJobInterval(t *testing.T) {
	cfg := oneTimeConfig()
	cfg.Execution = model.Execution{Type: model.ExecutionInterval, IntervalInMs: 30000, NumberOfExecutions: 4}

	reg, err := ConfigToJob(cfg, "", time.UnixMilli(1000))
	require.NoError(t, err)

	assert.Equal(t, "./examples/ip.js", reg.Script)
	assert.Equal(t, uint64(30000), reg.Schedule.Duration)
	assert.Equal(t, uint64(30000), reg.Schedule.Interval)
	assert.Equal(t, uint64(120000), reg.Schedule.EndTime-reg.Schedule.StartTime)
	assert.Equal(t, uint64(4), reg.Schedule.Executions())
	assert.NoError(t, Check(reg))
}

func TestConfigToJobUsageLimits(t *testing.T) {
	tests := []struct {
		name     string
		limit    model.UsageLimit
		expected [3]uint32
	}{
		{"unset", model.UsageLimit{}, [3]uint32{512, 10, 100}},
		{"zero", model.UsageLimit{MaxMemory: model.Uint32(0), MaxNetworkRequests: model.Uint32(0), MaxStorage: model.Uint32(0)}, [3]uint32{512, 10, 100}},
		{"explicit", model.UsageLimit{MaxMemory: model.Uint32(1024), MaxNetworkRequests: model.Uint32(3), MaxStorage: model.Uint32(7)}, [3]uint32{1024, 3, 7}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := oneTimeConfig()
			cfg.UsageLimit = tt.limit

			reg, err := ConfigToJob(cfg, "", time.Now())
			require.NoError(t, err)
			assert.Equal(t, tt.expected, [3]uint32{reg.Memory, reg.NetworkRequests, reg.Storage})
		})
	}
}

func TestConfigToJobInvalidExecutionType(t *testing.T) {
	cfg := oneTimeConfig()
	cfg.Execution = model.Execution{Type: "invalid"}

	reg, err := ConfigToJob(cfg, "", time.Now())
	assert.Nil(t, reg)
	require.Error(t, err)
	assert.True(t, errors.Is(err, schedule.ErrInvalidExecutionType))
	assert.Contains(t, err.Error(), "invalid execution type")
}

func TestConfigToJobScheduleOverflow(t *testing.T) {
	cfg := oneTimeConfig()
	cfg.Execution = model.Execution{Type: model.ExecutionInterval, IntervalInMs: 3, NumberOfExecutions: 1 << 63}

	reg, err := ConfigToJob(cfg, "", time.UnixMilli(1_700_000_000_000))
	assert.Nil(t, reg)
	assert.ErrorIs(t, err, schedule.ErrScheduleOverflow)
}

func TestConfigToJobAssignmentStrategy(t *testing.T) {
	t.Run("single without instant match", func(t *testing.T) {
		cfg := oneTimeConfig()
		cfg.AssignmentStrategy = model.AssignmentStrategyConfig{Type: model.AssignmentSingle, InstantMatch: []model.InstantMatchConfig{}}

		reg, err := ConfigToJob(cfg, "", time.Now())
		require.NoError(t, err)
		assert.Equal(t, model.VariantSingle, reg.Extra.Requirements.AssignmentStrategy.Variant)
		assert.Nil(t, reg.Extra.Requirements.AssignmentStrategy.InstantMatch)
	})

	t.Run("single keeps instant match order", func(t *testing.T) {
		cfg := oneTimeConfig()
		cfg.AssignmentStrategy = model.AssignmentStrategyConfig{
			Type: model.AssignmentSingle,
			InstantMatch: []model.InstantMatchConfig{
				{Processor: "5GrwvaEF", RunAt: 3000},
				{Processor: "5FHneW46", RunAt: 0},
			},
		}

		reg, err := ConfigToJob(cfg, "", time.Now())
		require.NoError(t, err)
		assert.Equal(t, []model.PlannedExecution{
			{Source: "5GrwvaEF", StartDelay: 3000},
			{Source: "5FHneW46", StartDelay: 0},
		}, reg.Extra.Requirements.AssignmentStrategy.InstantMatch)
	})

	t.Run("competing carries no instant match", func(t *testing.T) {
		cfg := oneTimeConfig()
		cfg.AssignmentStrategy = model.AssignmentStrategyConfig{
			Type:         model.AssignmentCompeting,
			InstantMatch: []model.InstantMatchConfig{{Processor: "5GrwvaEF"}},
		}

		reg, err := ConfigToJob(cfg, "", time.Now())
		require.NoError(t, err)
		assert.Equal(t, model.AssignmentStrategy{Variant: model.VariantCompeting}, reg.Extra.Requirements.AssignmentStrategy)
	})
}

func TestConfigToJobRequirements(t *testing.T) {
	cfg := oneTimeConfig()
	cfg.NumberOfReplicas = nil
	cfg.MaxCostPerExecution = nil
	cfg.MinProcessorReputation = model.Uint64(750)
	cfg.RequiredModules = []string{"DataEncryption"}
	cfg.ProcessorWhitelist = []string{"5GrwvaEF"}

	reg, err := ConfigToJob(cfg, "", time.Now())
	require.NoError(t, err)

	req := reg.Extra.Requirements
	assert.Equal(t, uint8(1), req.Slots)
	assert.Equal(t, schedule.DefaultReward, req.Reward)
	require.NotNil(t, req.MinReputation)
	assert.Equal(t, uint64(750), *req.MinReputation)
	assert.Equal(t, []string{"DataEncryption"}, reg.RequiredModules)
	assert.Equal(t, []string{"5GrwvaEF"}, reg.AllowedSources)

	cfg.RequiredModules[0] = "changed"
	assert.Equal(t, []string{"DataEncryption"}, reg.RequiredModules)
}

func TestConfigToJobIsDeterministic(t *testing.T) {
	now := time.UnixMilli(42)
	a, err := ConfigToJob(oneTimeConfig(), "ipfs://x", now)
	require.NoError(t, err)
	b, err := ConfigToJob(oneTimeConfig(), "ipfs://x", now)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestInstantMatchStartDelayIsString(t *testing.T) {
	cfg := oneTimeConfig()
	cfg.AssignmentStrategy.InstantMatch = []model.InstantMatchConfig{{Processor: "5GrwvaEF", RunAt: 18446744073709551615}}

	reg, err := ConfigToJob(cfg, "", time.Now())
	require.NoError(t, err)

	data, err := json.Marshal(reg.Extra.Requirements.AssignmentStrategy)
	require.NoError(t, err)
	assert.JSONEq(t, `{"variant":"Single","instantMatch":[{"source":"5GrwvaEF","startDelay":"18446744073709551615"}]}`, string(data))

	var decoded model.AssignmentStrategy
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, reg.Extra.Requirements.AssignmentStrategy, decoded)
}

func TestCheck(t *testing.T) {
	valid := func() *model.JobRegistration {
		reg, err := ConfigToJob(oneTimeConfig(), "ipfs://x", time.UnixMilli(1000))
		require.NoError(t, err)
		return reg
	}

	tests := []struct {
		name   string
		mutate func(*model.JobRegistration)
	}{
		{"zero duration", func(r *model.JobRegistration) { r.Schedule.Duration = 0 }},
		{"duration above interval", func(r *model.JobRegistration) { r.Schedule.Interval = r.Schedule.Duration - 1 }},
		{"empty window", func(r *model.JobRegistration) { r.Schedule.EndTime = r.Schedule.StartTime }},
		{"zero memory", func(r *model.JobRegistration) { r.Memory = 0 }},
		{"zero slots", func(r *model.JobRegistration) { r.Extra.Requirements.Slots = 0 }},
		{"empty script", func(r *model.JobRegistration) { r.Script = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg := valid()
			tt.mutate(reg)
			err := Check(reg)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidRegistration))
		})
	}

	assert.Error(t, Check(nil))
}
