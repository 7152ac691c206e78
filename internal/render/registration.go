package render

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/acurast/acurast-cli/internal/model"
)

// Renderer materializes job registrations for display or hand-off
type Renderer struct{}

// NewRenderer creates a new renderer
func NewRenderer() *Renderer {
	return &Renderer{}
}

// RenderJSON renders a registration as JSON
func (r *Renderer) RenderJSON(reg *model.JobRegistration) ([]byte, error) {
	return json.MarshalIndent(reg, "", "  ")
}

// RenderYAML renders a registration as YAML
func (r *Renderer) RenderYAML(reg *model.JobRegistration) ([]byte, error) {
	return yaml.Marshal(reg)
}

// Render renders a registration in the named format: json or yaml
func (r *Renderer) Render(reg *model.JobRegistration, format string) ([]byte, error) {
	switch strings.ToLower(format) {
	case "json", "":
		return r.RenderJSON(reg)
	case "yaml", "yml":
		return r.RenderYAML(reg)
	default:
		return nil, fmt.Errorf("unsupported format: %s", format)
	}
}

// WriteRegistration writes a registration to file (JSON or YAML based on extension)
func (r *Renderer) WriteRegistration(reg *model.JobRegistration, path string) error {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}

	format := "json"
	switch filepath.Ext(path) {
	case ".yaml", ".yml":
		format = "yaml"
	}
	data, err := r.Render(reg, format)
	if err != nil {
		return fmt.Errorf("failed to render registration: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write registration to %s: %w", path, err)
	}
	return nil
}

// Summary outputs a human readable digest of a registration
func (r *Renderer) Summary(reg *model.JobRegistration) string {
	s := reg.Schedule
	req := reg.Extra.Requirements

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Script: %s\n", reg.Script))
	sb.WriteString(fmt.Sprintf("Window: %s → %s\n", formatMillis(s.StartTime), formatMillis(s.EndTime)))
	sb.WriteString(fmt.Sprintf("  Executions: %d every %s, each up to %s\n",
		s.Executions(), time.Duration(s.Interval)*time.Millisecond, time.Duration(s.Duration)*time.Millisecond))
	sb.WriteString(fmt.Sprintf("  MaxStartDelay: %s\n", time.Duration(s.MaxStartDelay)*time.Millisecond))
	sb.WriteString(fmt.Sprintf("Limits: memory %d, network requests %d, storage %d\n", reg.Memory, reg.NetworkRequests, reg.Storage))
	sb.WriteString(fmt.Sprintf("Assignment: %s, %d slot(s), reward %d\n", req.AssignmentStrategy.Variant, req.Slots, req.Reward))
	for _, match := range req.AssignmentStrategy.InstantMatch {
		sb.WriteString(fmt.Sprintf("  Instant match: %s after %dms\n", match.Source, uint64(match.StartDelay)))
	}
	if req.MinReputation != nil {
		sb.WriteString(fmt.Sprintf("  MinReputation: %d\n", *req.MinReputation))
	}
	if len(reg.AllowedSources) > 0 {
		sb.WriteString(fmt.Sprintf("  AllowedSources: %s\n", strings.Join(reg.AllowedSources, ", ")))
	}
	if reg.AllowOnlyVerifiedSources {
		sb.WriteString("  Attested devices only\n")
	}
	if len(reg.RequiredModules) > 0 {
		sb.WriteString(fmt.Sprintf("  RequiredModules: %s\n", strings.Join(reg.RequiredModules, ", ")))
	}
	return sb.String()
}

func formatMillis(ms uint64) string {
	return time.UnixMilli(int64(ms)).UTC().Format(time.RFC3339)
}
