package installer

import (
	"context"
	"fmt"

	"github.com/samber/lo"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/ironsheep/occlusion-mcp/internal/pyenv"
)

// RuntimeLocator finds the interpreter that runs the installer.
// *pyenv.Locator satisfies it.
type RuntimeLocator interface {
	Find(ctx context.Context) (string, error)
}

// Options configures an Orchestrator.
type Options struct {
	// Packages is the fixed list of required packages. Defaults to DefaultPackages.
	Packages []PackageSpec

	// Probe reports which packages are already present. Defaults to an
	// interpreter import check with TargetDir on PYTHONPATH.
	Probe pyenv.Probe

	// Locator finds the Python runtime.
	Locator RuntimeLocator

	// TargetDir is the vendor directory every package is installed into.
	TargetDir string

	// Command builds the installer process. Defaults to PipCommand.
	Command CommandFunc

	// OnFinished, if set, is called once the whole queue has been processed.
	// It is not called when the batch stops on an environment error.
	OnFinished func(Summary)

	Logger *zap.SugaredLogger
}

// Orchestrator checks for and installs the required packages.
type Orchestrator struct {
	packages   []PackageSpec
	probe      pyenv.Probe
	locator    RuntimeLocator
	targetDir  string
	command    CommandFunc
	onFinished func(Summary)
	logger     *zap.SugaredLogger
}

// New creates an Orchestrator.
func New(opts Options) *Orchestrator {
	o := &Orchestrator{
		packages:   opts.Packages,
		probe:      opts.Probe,
		locator:    opts.Locator,
		targetDir:  opts.TargetDir,
		command:    opts.Command,
		onFinished: opts.OnFinished,
		logger:     opts.Logger,
	}
	if o.packages == nil {
		o.packages = DefaultPackages
	}
	if o.locator == nil {
		o.locator = pyenv.NewLocator("")
	}
	if o.probe == nil {
		o.probe = pyenv.NewImportCheck(o.locator, opts.TargetDir)
	}
	if o.command == nil {
		o.command = PipCommand
	}
	if o.logger == nil {
		o.logger = zap.NewNop().Sugar()
	}
	o.logger = o.logger.Named("installer")
	return o
}

// Packages returns the configured package list.
func (o *Orchestrator) Packages() []PackageSpec {
	return o.packages
}

// Missing returns the packages that are not installed, in install order.
func (o *Orchestrator) Missing() []PackageSpec {
	return lo.Filter(o.packages, func(spec PackageSpec, _ int) bool {
		return !o.probe.IsInstalled(spec.ImportName)
	})
}

// CheckAndInstall returns (nil, true) without spawning anything when every
// package is present. Otherwise it starts installing the missing packages
// in the background and returns the running batch with false.
func (o *Orchestrator) CheckAndInstall(ctx context.Context) (*Batch, bool) {
	queue := o.Missing()
	if len(queue) == 0 {
		o.logger.Debugw("all dependencies present", "packages", len(o.packages))
		return nil, true
	}

	o.logger.Infow("installing missing dependencies",
		"packages", lo.Map(queue, func(s PackageSpec, _ int) string { return s.InstallName }),
	)

	b := &Batch{
		updates: make(chan Update, 64),
		done:    make(chan struct{}),
		state:   State{Total: len(queue)},
	}
	// Installs are not cancellable once started.
	go b.run(context.WithoutCancel(ctx), o, queue)
	return b, false
}

// State is the batch bookkeeping. Only the batch coordinator mutates it.
type State struct {
	Total     int         `json:"total"`
	Completed int         `json:"completed"`
	Current   *InstallJob `json:"current,omitempty"`
}

// Update is one step of the batch progress stream.
type Update struct {
	// Package is the install name of the package the update is about, empty
	// for the final update.
	Package string `json:"package,omitempty"`

	// Value is completed*100 + the current package's percent, out of Max.
	Value int `json:"value"`

	// Max is total*100.
	Max int `json:"max"`

	// Percent is Value scaled to 0..100.
	Percent int `json:"percent"`

	Phase   Phase  `json:"phase"`
	Message string `json:"message"`

	// Outcome is set on the update that closes a package.
	Outcome *Outcome `json:"outcome,omitempty"`
}

// PackageError records a package whose installer reported failure.
type PackageError struct {
	Package    string
	Diagnostic string
}

func (e *PackageError) Error() string {
	return fmt.Sprintf("failed to install %s", e.Package)
}

// Summary is the result of a batch.
type Summary struct {
	Total     int       `json:"total"`
	Completed int       `json:"completed"`
	Outcomes  []Outcome `json:"outcomes"`

	// Err is set when the batch stopped early on an environment error.
	Err error `json:"-"`
}

// Ready reports whether the batch ran through the whole queue.
func (s Summary) Ready() bool {
	return s.Err == nil && s.Completed == s.Total
}

// Advisory combines every package failure into one error, or nil when all
// installs succeeded. Failures are advisory: the queue advanced past them.
func (s Summary) Advisory() error {
	var err error
	for _, o := range s.Outcomes {
		if !o.Success {
			err = multierr.Append(err, &PackageError{Package: o.Package, Diagnostic: o.Diagnostic})
		}
	}
	return err
}

// Batch is a running install of the missing packages.
type Batch struct {
	updates chan Update
	done    chan struct{}
	state   State
	summary Summary
}

// Updates returns the progress stream. It is closed when the batch ends and
// must be drained, otherwise the coordinator blocks.
func (b *Batch) Updates() <-chan Update {
	return b.updates
}

// Done is closed when the batch ends.
func (b *Batch) Done() <-chan struct{} {
	return b.done
}

// Wait blocks until the batch ends and returns its summary. It does not read
// Updates.
func (b *Batch) Wait() Summary {
	<-b.done
	return b.summary
}

// Drive delivers every update to fn on the calling goroutine and returns the
// summary once the batch ends.
func Drive(b *Batch, fn func(Update)) Summary {
	for u := range b.Updates() {
		if fn != nil {
			fn(u)
		}
	}
	return b.Wait()
}

func (b *Batch) run(ctx context.Context, o *Orchestrator, queue []PackageSpec) {
	defer close(b.done)
	defer close(b.updates)
	defer func() {
		if r := recover(); r != nil {
			o.logger.Errorw("installation panicked", "panic", r)
			b.summary.Err = fmt.Errorf("an unexpected error occurred during installation: %v", r)
		}
	}()

	b.summary.Total = b.state.Total

	targetDir, err := pyenv.EnsureVendorDir(o.targetDir)
	if err != nil {
		o.logger.Errorw("cannot prepare vendor directory", "dir", o.targetDir, "error", err)
		b.summary.Err = err
		return
	}

	runtime, err := o.locator.Find(ctx)
	if err != nil {
		o.logger.Errorw("cannot install dependencies", "error", err)
		b.summary.Err = fmt.Errorf("failed to start installation: %w", err)
		return
	}
	o.logger.Debugw("using runtime", "runtime", runtime, "target", targetDir)

	for _, spec := range queue {
		outcome := b.install(ctx, o, runtime, targetDir, spec)
		b.summary.Outcomes = append(b.summary.Outcomes, outcome)

		if outcome.Success {
			o.logger.Infow("package installed", "package", spec.InstallName)
		} else {
			// Soft failure: advance as if the install succeeded.
			o.logger.Warnw("package install failed, continuing",
				"package", spec.InstallName,
				"diagnostic", outcome.Diagnostic,
			)
		}

		b.state.Completed++
		b.state.Current = nil
		b.summary.Completed = b.state.Completed
		b.send(Update{
			Package: spec.InstallName,
			Phase:   PhaseInstalling,
			Message: fmt.Sprintf("Finished '%s'.", spec.InstallName),
			Outcome: &outcome,
		})
	}

	b.send(Update{Message: "Dependencies installed. Restart the editor to complete the setup."})
	if o.onFinished != nil {
		o.onFinished(b.summary)
	}
}

// install runs one job and folds its messages into the batch state.
func (b *Batch) install(ctx context.Context, o *Orchestrator, runtime, targetDir string, spec PackageSpec) Outcome {
	job := &InstallJob{Package: spec.InstallName, Phase: PhasePreparing, LastStatus: announcement(spec)}
	b.state.Current = job
	b.send(Update{Package: job.Package, Phase: job.Phase, Message: job.LastStatus})

	msgs := make(chan jobMessage, 16)
	go runJob(o.command(ctx, runtime, spec, targetDir), spec.InstallName, msgs, o.logger)

	outcome := Outcome{Package: spec.InstallName, Diagnostic: "installer exited without reporting a result"}
	for msg := range msgs {
		switch {
		case msg.outcome != nil:
			outcome = *msg.outcome
		case msg.event != nil:
			if msg.phase > job.Phase {
				job.Phase = msg.phase
			}
			// Download percentages restart per file; the bar never moves back.
			if msg.event.Percent > job.Percent {
				job.Percent = msg.event.Percent
			}
			job.LastStatus = msg.event.Message
			b.send(Update{Package: job.Package, Phase: job.Phase, Message: job.LastStatus})
		}
	}
	return outcome
}

// send stamps u with the current aggregate value and publishes it.
func (b *Batch) send(u Update) {
	u.Max = b.state.Total * 100
	u.Value = b.state.Completed * 100
	if b.state.Current != nil {
		u.Value += b.state.Current.Percent
	}
	if u.Max > 0 {
		u.Percent = u.Value * 100 / u.Max
	}
	b.updates <- u
}
