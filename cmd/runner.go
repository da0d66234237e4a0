package main

import (
	"database/sql"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/portage/internal/models"
	"github.com/desertthunder/portage/internal/repositories"
	"github.com/desertthunder/portage/internal/shared"
	"github.com/desertthunder/portage/internal/tasks"
	"github.com/urfave/cli/v3"
)

// localUsername is the tenant every CLI command acts as. The HTTP API
// mints one user per browser session; the CLI always works as this one.
const localUsername = "local"

// Runner holds all dependencies for CLI commands and provides methods for
// each command action. The store is opened lazily so commands that never
// touch the database (setup config) don't require one.
type Runner struct {
	config     *shared.Config
	configPath string
	logger     *log.Logger
	output     io.Writer

	db          *sql.DB
	users       *repositories.UserRepository
	connections *repositories.ConnectionRepository
	jobs        *repositories.JobRepository
	items       *repositories.ItemRepository
	engine      *tasks.PipelineEngine
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Config     *shared.Config
	ConfigPath string
	Logger     *log.Logger
	Output     io.Writer
}

// NewRunner creates a new Runner with the provided configuration.
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Config == nil {
		opts.Config = shared.DefaultConfig()
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}

	return &Runner{
		config:     opts.Config,
		configPath: opts.ConfigPath,
		logger:     opts.Logger,
		output:     opts.Output,
	}
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, serveCommand, connectCommand, importsCommand, reviewCommand, transferCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// openStore connects to the configured SQLite database, applies pending
// migrations, and builds the repositories and pipeline engine.
func (r *Runner) openStore() error {
	if r.db != nil {
		return nil
	}

	db, err := shared.NewDatabase(r.config.Database.Path)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	shared.ConfigureDatabase(db, r.config.Database.MaxOpenConns, r.config.Database.MaxIdleConns)

	if err := shared.RunMigrations(db); err != nil {
		db.Close()
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	r.db = db
	r.users = repositories.NewUserRepository(db)
	r.connections = repositories.NewConnectionRepository(db)
	r.jobs = repositories.NewJobRepository(db)
	r.items = repositories.NewItemRepository(db)
	r.engine = tasks.NewPipelineEngine(r.config, r.connections, r.jobs, r.items, r.logger)
	return nil
}

// closeStore releases the database connection if one was opened.
func (r *Runner) closeStore() {
	if r.db != nil {
		r.db.Close()
		r.db = nil
	}
}

// localUser fetches or creates the CLI tenant user.
func (r *Runner) localUser() (*models.User, error) {
	user, err := r.users.GetByUsername(localUsername)
	if err == nil {
		return user, nil
	}

	user = models.NewUser(0, localUsername, "Local operator")
	if err := r.users.Create(user); err != nil {
		return nil, fmt.Errorf("failed to create local user: %w", err)
	}
	return user, nil
}

// ownedJob fetches a job and verifies it belongs to the given user.
// Foreign jobs read as not found, matching the HTTP API.
func (r *Runner) ownedJob(jobID string, user *models.User) (*models.ImportJob, error) {
	job, err := r.jobs.Get(jobID)
	if err != nil {
		return nil, err
	}
	if job.UserID() != user.ID() {
		return nil, fmt.Errorf("%w: job %s", shared.ErrNotFound, jobID)
	}
	return job, nil
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	output, err := shared.MarshalJSON(data, pretty)
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if _, err := r.output.Write(output); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if _, err := r.output.Write([]byte("\n")); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}

	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainln(format string, args ...any) error {
	text := "\n" + fmt.Sprintf(format, args...) + "\n"
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}
