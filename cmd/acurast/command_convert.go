package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/acurast/acurast-cli/internal/convert"
	"github.com/acurast/acurast-cli/internal/render"
)

var (
	convertFormat  string
	convertOutput  string
	convertSummary bool
)

var convertCmd = &cobra.Command{
	Use:   "convert [project]",
	Short: "Print the job registration of a project",
	Long:  "Convert a project into the job registration a deployment would submit, without uploading or submitting anything.",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return convertProject(args)
	},
}

func registerConvertCommand(root *cobra.Command) {
	root.AddCommand(convertCmd)

	convertCmd.Flags().StringVarP(&convertFormat, "format", "f", "json", "Output format (json/yaml)")
	convertCmd.Flags().StringVarP(&convertOutput, "output", "o", "", "Write the registration to a file instead of stdout")
	convertCmd.Flags().BoolVarP(&convertSummary, "summary", "s", false, "Print a human readable summary")
}

func convertProject(args []string) error {
	file, err := loadProjectsFile()
	if err != nil {
		return err
	}
	projects, err := selectProjects(file, args, false)
	if err != nil {
		return err
	}
	cfg := projects[0]

	reg, err := convert.ConfigToJob(cfg, "", clockNow())
	if err != nil {
		return fmt.Errorf("failed to convert project %s: %w", cfg.ProjectName, err)
	}
	if err := convert.Check(reg); err != nil {
		return err
	}

	renderer := render.NewRenderer()
	if convertSummary {
		fmt.Print(renderer.Summary(reg))
		return nil
	}

	if convertOutput != "" {
		if err := renderer.WriteRegistration(reg, convertOutput); err != nil {
			return err
		}
		fmt.Printf("✓ Saved to: %s\n", convertOutput)
		return nil
	}

	data, err := renderer.Render(reg, convertFormat)
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}
