package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/acurast/acurast-cli/internal/convert"
	"github.com/acurast/acurast-cli/internal/loader"
	"github.com/acurast/acurast-cli/internal/schema"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the projects file",
	RunE: func(cmd *cobra.Command, args []string) error {
		return validateProjects()
	},
}

func registerValidateCommand(root *cobra.Command) {
	root.AddCommand(validateCmd)
}

func validateProjects() error {
	fmt.Printf("□ Validating %s...\n", projectsFile)
	data, err := os.ReadFile(projectsFile)
	if err != nil {
		return fmt.Errorf("failed to read projects file: %w", err)
	}

	validator, err := schema.NewValidator()
	if err != nil {
		return err
	}
	if err := validator.ValidateBytes(data); err != nil {
		for _, problem := range schema.Problems(err) {
			fmt.Printf("  %s\n", problem)
		}
		return fmt.Errorf("%s does not match the projects schema", projectsFile)
	}
	fmt.Println("✓ Schema is valid")

	file, err := loader.ParseProjects(data)
	if err != nil {
		return fmt.Errorf("failed to parse projects file: %w", err)
	}

	fmt.Println("□ Converting projects...")
	failed := 0
	for _, name := range loader.Names(file) {
		reg, err := convert.ConfigToJob(file.Projects[name], "", clockNow())
		if err == nil {
			err = convert.Check(reg)
		}
		if err != nil {
			failed++
			fmt.Printf("  ✗ %s: %v\n", name, err)
			continue
		}
		fmt.Printf("  ✓ %s: %d execution(s)\n", name, reg.Schedule.Executions())
	}
	if failed > 0 {
		return fmt.Errorf("%d project(s) cannot be converted", failed)
	}

	fmt.Println("✓ All validation passed")
	return nil
}
