package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/acurast/acurast-cli/internal/lifecycle"
	"github.com/acurast/acurast-cli/internal/model"
	"github.com/acurast/acurast-cli/internal/render"
)

var (
	deployAll      bool
	deployParallel int
	deployTimeout  time.Duration
)

var deployCmd = &cobra.Command{
	Use:   "deploy [project...]",
	Short: "Deploy projects and follow them until finalized",
	Long:  "Upload the script of each project, submit its job registration and report every lifecycle state until all jobs are finalized.",
	RunE: func(cmd *cobra.Command, args []string) error {
		return deployProjects(cmd.Context(), args)
	},
}

func registerDeployCommand(root *cobra.Command) {
	root.AddCommand(deployCmd)

	deployCmd.Flags().BoolVarP(&deployAll, "all", "a", false, "Deploy every project of the projects file")
	deployCmd.Flags().IntVarP(&deployParallel, "parallel", "p", 4, "Maximum number of deployments running at once")
	deployCmd.Flags().DurationVar(&deployTimeout, "timeout", 0, "Stop following deployments after this duration (0 waits until finalized)")
}

func deployProjects(ctx context.Context, args []string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()
	if deployTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, deployTimeout)
		defer cancel()
	}

	file, err := loadProjectsFile()
	if err != nil {
		return err
	}
	projects, err := selectProjects(file, args, deployAll)
	if err != nil {
		return err
	}

	if appEnv.Mnemonic == "" {
		slog.Warn("ACURAST_MNEMONIC is not set, registering with the simulated origin")
	}

	uploader, err := newUploader()
	if err != nil {
		return err
	}
	controller, err := lifecycle.New(lifecycle.Config{
		Chain:    newChain(),
		Uploader: uploader,
		Store:    newStore(),
		Clock:    wallClock,
		Logger:   slog.Default(),
	})
	if err != nil {
		return err
	}

	out := &progress{prefixed: len(projects) > 1}

	var g errgroup.Group
	if deployParallel > 0 {
		g.SetLimit(deployParallel)
	}
	var mu sync.Mutex
	var failed []string
	for _, cfg := range projects {
		cfg := cfg
		g.Go(func() error {
			if err := deployProject(ctx, controller, cfg, out); err != nil {
				mu.Lock()
				failed = append(failed, cfg.ProjectName)
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			fmt.Println("□ Timeout reached, deployments keep running on the network")
		} else {
			fmt.Println("□ Interrupted, deployments keep running on the network")
		}
	}
	if len(failed) > 0 {
		return fmt.Errorf("deployment failed for %d project(s): %v", len(failed), failed)
	}
	return nil
}

func deployProject(ctx context.Context, controller *lifecycle.Controller, cfg model.ProjectConfig, out *progress) error {
	out.println(cfg.ProjectName, fmt.Sprintf("□ Deploying %s to %s...", cfg.ProjectName, cfg.Network))

	events, err := controller.Deploy(ctx, cfg)
	if err != nil {
		out.println(cfg.ProjectName, fmt.Sprintf("✗ %v", err))
		return err
	}

	var last lifecycle.Event
	for ev := range events {
		out.println(cfg.ProjectName, render.EventLine(ev))
		last = ev
	}
	if last.Err != nil {
		return last.Err
	}
	if last.Status == model.StatusFinalized {
		out.println(cfg.ProjectName, fmt.Sprintf("✓ Deployment of %s complete", cfg.ProjectName))
	}
	return nil
}

// progress serializes progress lines of concurrent deployments
type progress struct {
	mu       sync.Mutex
	prefixed bool
}

func (p *progress) println(project, line string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.prefixed {
		fmt.Printf("[%s] %s\n", project, line)
		return
	}
	fmt.Println(line)
}
