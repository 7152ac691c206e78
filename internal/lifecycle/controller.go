package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/juju/clock"

	"github.com/acurast/acurast-cli/internal/chain"
	"github.com/acurast/acurast-cli/internal/convert"
	"github.com/acurast/acurast-cli/internal/model"
	"github.com/acurast/acurast-cli/internal/upload"
)

// RecordStore persists deployment records
type RecordStore interface {
	Create(deployedAt time.Time, cfg model.ProjectConfig, reg model.JobRegistration) error
	AttachJobID(deployedAt time.Time, project string, id model.JobID) (string, error)
}

// Config holds the collaborators of a Controller
type Config struct {
	Chain    chain.Client
	Uploader upload.Uploader
	// Store is optional; without it nothing is persisted
	Store  RecordStore
	Clock  clock.Clock
	Logger *slog.Logger
}

// Controller runs deployments against a chain client. It performs no
// retries; a failed submission ends the deployment.
type Controller struct {
	chain    chain.Client
	uploader upload.Uploader
	store    RecordStore
	clock    clock.Clock
	logger   *slog.Logger
}

// New creates a controller
func New(cfg Config) (*Controller, error) {
	if cfg.Chain == nil {
		return nil, errors.New("chain client is required")
	}
	if cfg.Uploader == nil {
		return nil, errors.New("uploader is required")
	}
	clk := cfg.Clock
	if clk == nil {
		clk = clock.WallClock
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{
		chain:    cfg.Chain,
		uploader: cfg.Uploader,
		store:    cfg.Store,
		clock:    clk,
		logger:   logger,
	}, nil
}

// Deploy uploads the project's script, converts the project into a
// registration, persists the initial record and submits it. Events are
// delivered in lifecycle order on the returned channel, which is closed
// once every job is finalized, the status stream ends, a terminal failure
// was delivered or ctx is canceled. The status subscription lives as long
// as ctx.
func (c *Controller) Deploy(ctx context.Context, cfg model.ProjectConfig) (<-chan Event, error) {
	if cfg.ProjectName == "" {
		return nil, errors.New("project name is required")
	}
	if cfg.FileURL == "" {
		return nil, fmt.Errorf("project %s has no script file", cfg.ProjectName)
	}

	events := make(chan Event)
	go func() {
		defer close(events)
		r := &run{
			Controller: c,
			machine:    NewMachine(c.chain),
			out:        events,
			project:    cfg.ProjectName,
			deployedAt: c.clock.Now(),
			logger:     c.logger.With("project", cfg.ProjectName),
		}
		r.deploy(ctx, cfg)
	}()
	return events, nil
}

// Register submits an already prepared registration and blocks until it is
// included in a block. It returns the transaction hash and the job ids
// reported by the network.
func (c *Controller) Register(ctx context.Context, reg *model.JobRegistration) (string, []model.JobID, error) {
	m := NewMachine(c.chain)
	if _, err := m.Prepared(reg); err != nil {
		return "", nil, err
	}

	var txHash string
	err := c.submit(ctx, m, reg, func(ev Event) error {
		if ev.Status == model.StatusSubmit {
			txHash = ev.TxHash
		}
		return nil
	})
	if err != nil {
		return "", nil, err
	}
	return txHash, m.JobIDs(), nil
}

// submit drives the submission stream through m until the transaction is
// included or fails. The submission subscription is canceled on return.
func (c *Controller) submit(ctx context.Context, m *Machine, reg *model.JobRegistration, emit func(Event) error) error {
	subCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	updates, err := c.chain.SubmitJob(subCtx, reg)
	if err != nil {
		m.fail(err)
		return &SubmissionTransportError{Err: err}
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case u, ok := <-updates:
			if !ok {
				if err := ctx.Err(); err != nil {
					return err
				}
				return m.fail(&SubmissionTransportError{Err: errors.New("submission stream ended before inclusion")})
			}

			events, err := m.AdvanceSubmission(u)
			if err != nil {
				return err
			}
			for _, ev := range events {
				if err := emit(ev); err != nil {
					return err
				}
			}
			if m.State() >= model.StatusSubmit {
				return nil
			}
		}
	}
}

// run is the state of one deployment
type run struct {
	*Controller
	machine    *Machine
	out        chan<- Event
	project    string
	deployedAt time.Time
	logger     *slog.Logger
}

func (r *run) deploy(ctx context.Context, cfg model.ProjectConfig) {
	locator, err := r.uploader.Upload(ctx, cfg.FileURL)
	if err != nil {
		r.terminate(ctx, fmt.Errorf("failed to upload script: %w", err))
		return
	}
	ev, err := r.machine.Uploaded(locator)
	if err != nil || r.emit(ctx, ev) != nil {
		r.terminate(ctx, err)
		return
	}

	reg, err := convert.ConfigToJob(cfg, locator, r.deployedAt)
	if err == nil {
		err = convert.Check(reg)
	}
	if err != nil {
		r.terminate(ctx, fmt.Errorf("failed to convert project %s: %w", cfg.ProjectName, err))
		return
	}
	ev, err = r.machine.Prepared(reg)
	if err != nil || r.emit(ctx, ev) != nil {
		r.terminate(ctx, err)
		return
	}

	if r.store != nil {
		if err := r.store.Create(r.deployedAt, cfg, *reg); err != nil {
			r.terminate(ctx, fmt.Errorf("failed to store deployment: %w", err))
			return
		}
	}

	if err := r.submit(ctx, r.machine, reg, func(ev Event) error {
		if ev.Status == model.StatusWaitingForMatch {
			r.attach(ev.JobIDs)
		}
		return r.emit(ctx, ev)
	}); err != nil {
		r.terminate(ctx, err)
		return
	}

	ids := r.machine.JobIDs()
	if len(ids) == 0 {
		r.logger.Warn("registration included without job ids, nothing to observe")
		return
	}
	r.observe(ctx, ids)
}

// observe follows the job status subscription until every job is finalized
func (r *run) observe(ctx context.Context, ids []model.JobID) {
	statuses, err := r.chain.SubscribeJobStatus(ctx, ids)
	if err != nil {
		r.terminate(ctx, err)
		return
	}

	for {
		select {
		case <-ctx.Done():
			return
		case u, ok := <-statuses:
			if !ok {
				return
			}
			if u.Err != nil {
				r.terminate(ctx, u.Err)
				return
			}
			for _, ev := range r.machine.AdvanceStatus(u) {
				if r.emit(ctx, ev) != nil {
					return
				}
			}
			if r.machine.Done() {
				return
			}
		}
	}
}

func (r *run) attach(ids []model.JobID) {
	if r.store == nil {
		return
	}
	for _, id := range ids {
		if _, err := r.store.AttachJobID(r.deployedAt, r.project, id); err != nil {
			r.logger.Error("failed to attach job id to deployment record", "job", id.String(), "error", err)
		}
	}
}

func (r *run) emit(ctx context.Context, ev Event) error {
	r.log(ev)
	select {
	case <-ctx.Done():
		return ctx.Err()
	case r.out <- ev:
		return nil
	}
}

// terminate delivers a terminal failure. Cancellation is not reported.
func (r *run) terminate(ctx context.Context, err error) {
	if err == nil || errors.Is(err, context.Canceled) || ctx.Err() != nil {
		return
	}
	r.logger.Error("deployment failed", "status", r.machine.State().String(), "error", err)
	select {
	case <-ctx.Done():
	case r.out <- Event{Status: r.machine.State(), Err: err}:
	}
}

func (r *run) log(ev Event) {
	attrs := []any{"status", ev.Status.String()}
	switch {
	case ev.Locator != "":
		attrs = append(attrs, "locator", ev.Locator)
	case ev.TxHash != "":
		attrs = append(attrs, "tx", ev.TxHash)
	case len(ev.JobIDs) > 0:
		attrs = append(attrs, "jobs", len(ev.JobIDs))
	case ev.JobID != nil:
		attrs = append(attrs, "job", ev.JobID.String())
	}
	if ev.Status == model.StatusAcknowledged {
		attrs = append(attrs, "acknowledged", ev.Acknowledged)
	}
	r.logger.Info("deployment status", attrs...)
}
