package render

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/acurast/acurast-cli/internal/model"
	"github.com/acurast/acurast-cli/internal/store"
)

// DeploymentViewer provides human-readable views of stored deployment records
type DeploymentViewer struct {
	// byProject holds the latest record of each deployment, oldest first
	byProject map[string][]store.Record
}

// NewDeploymentViewer creates a viewer. Records sharing a creation time are
// collapsed into the one carrying a job id.
func NewDeploymentViewer(records []store.Record) *DeploymentViewer {
	latest := make(map[string]store.Record)
	for _, rec := range records {
		key := rec.Deployment.Config.ProjectName + "/" + model.DeploymentKey(rec.Deployment.DeployedAt)
		current, ok := latest[key]
		if !ok || (current.Deployment.DeploymentID == nil && rec.Deployment.DeploymentID != nil) {
			latest[key] = rec
		}
	}

	byProject := make(map[string][]store.Record)
	for _, rec := range latest {
		project := rec.Deployment.Config.ProjectName
		byProject[project] = append(byProject[project], rec)
	}
	for _, recs := range byProject {
		sort.Slice(recs, func(a, b int) bool {
			return recs[a].Deployment.DeployedAt.Before(recs[b].Deployment.DeployedAt)
		})
	}
	return &DeploymentViewer{byProject: byProject}
}

// ViewTree returns a tree of all deployments grouped by project
func (dv *DeploymentViewer) ViewTree() string {
	if len(dv.byProject) == 0 {
		return "No deployments found"
	}

	projects := make([]string, 0, len(dv.byProject))
	total := 0
	for project, recs := range dv.byProject {
		projects = append(projects, project)
		total += len(recs)
	}
	sort.Strings(projects)

	var sb strings.Builder
	for i, project := range projects {
		isLastProject := i == len(projects)-1
		recs := dv.byProject[project]

		projectPrefix := "├─ "
		connector := "│  "
		if isLastProject {
			projectPrefix = "└─ "
			connector = "   "
		}
		sb.WriteString(fmt.Sprintf("%s%s [%s]\n", projectPrefix, project, recs[len(recs)-1].Deployment.Config.Network))

		for j, rec := range recs {
			prefix := connector + "├─ "
			if j == len(recs)-1 {
				prefix = connector + "└─ "
			}
			sb.WriteString(fmt.Sprintf("%s%s %s (%s)\n", prefix, formatTime(rec.Deployment.DeployedAt), jobLabel(rec.Deployment), rec.Name))
		}
	}

	sb.WriteString("═══════════════════════════════════════════════════════════\n")
	sb.WriteString(fmt.Sprintf("Summary: %d projects, %d deployments\n", len(projects), total))
	return sb.String()
}

// ViewByProject shows the deployments of one project with their registrations
func (dv *DeploymentViewer) ViewByProject(project string) string {
	recs := dv.byProject[project]
	if len(recs) == 0 {
		return fmt.Sprintf("No deployments found for project: %s", project)
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%s [%s]\n", project, recs[len(recs)-1].Deployment.Config.Network))
	sb.WriteString("═══════════════════════════════════════════════════════════\n\n")

	for i, rec := range recs {
		prefix := "├─ "
		connector := "│  "
		if i == len(recs)-1 {
			prefix = "└─ "
			connector = "   "
		}

		d := rec.Deployment
		reg := d.Registration
		sb.WriteString(fmt.Sprintf("%s%s\n", prefix, formatTime(d.DeployedAt)))
		sb.WriteString(fmt.Sprintf("%s  Record: %s\n", connector, rec.Name))
		sb.WriteString(fmt.Sprintf("%s  Job: %s\n", connector, jobLabel(d)))
		sb.WriteString(fmt.Sprintf("%s  Status: %s\n", connector, d.Status))
		sb.WriteString(fmt.Sprintf("%s  Script: %s\n", connector, reg.Script))
		sb.WriteString(fmt.Sprintf("%s  Executions: %d, slots: %d, reward: %d\n",
			connector, reg.Schedule.Executions(), reg.Extra.Requirements.Slots, reg.Extra.Requirements.Reward))

		if len(d.Assignments) > 0 {
			sb.WriteString(fmt.Sprintf("%s  Assignments:\n", connector))
			for _, a := range d.Assignments {
				sb.WriteString(fmt.Sprintf("%s    %s (%s)\n", connector, a.ProcessorID, a.Status))
			}
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

func jobLabel(d model.Deployment) string {
	if d.DeploymentID == nil {
		return "pending"
	}
	return "job " + d.DeploymentID.String()
}

func formatTime(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000Z")
}
