package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/acurast/acurast-cli/internal/render"
)

var deploymentsChanges bool

var deploymentsCmd = &cobra.Command{
	Use:     "deployments [project]",
	Aliases: []string{"deployment"},
	Short:   "List stored deployment records",
	Long:    "List the local deployment records. Use 'acurast deployments <project>' for the records of one project.",
	Args:    cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return listDeployments(args)
	},
}

func registerDeploymentsCommand(root *cobra.Command) {
	root.AddCommand(deploymentsCmd)

	deploymentsCmd.Flags().BoolVar(&deploymentsChanges, "changes", false, "Show the change log of the record store")
}

func listDeployments(args []string) error {
	records := newStore()

	if deploymentsChanges {
		entries, err := records.Changes()
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			fmt.Println("No changes recorded")
			return nil
		}
		for _, entry := range entries {
			if len(args) > 0 && entry.Project != args[0] {
				continue
			}
			line := fmt.Sprintf("%s %-6s %s", entry.At.Format("2006-01-02T15:04:05.000Z"), entry.Op, entry.File)
			if entry.DeploymentID != nil {
				line += " " + entry.DeploymentID.String()
			}
			fmt.Println(line)
		}
		return nil
	}

	list, err := records.List()
	if err != nil {
		return err
	}

	viewer := render.NewDeploymentViewer(list)
	if len(args) > 0 {
		fmt.Println(viewer.ViewByProject(args[0]))
		return nil
	}
	fmt.Println(viewer.ViewTree())
	return nil
}
