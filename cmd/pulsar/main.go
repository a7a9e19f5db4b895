// Command pulsar runs AI workflows defined in YAML.
//
// Usage:
//
//	pulsar run workflow.yaml --input "a topic"
//	pulsar plan workflow.yaml
//	pulsar validate workflow.yaml
//	pulsar history --limit 10
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"github.com/fatih/color"
	"github.com/joho/godotenv"

	pulsar "github.com/lsalihi/pulsar-compose"
	"github.com/lsalihi/pulsar-compose/interact"
)

// CLI defines the command-line interface.
type CLI struct {
	Run      RunCmd      `cmd:"" help:"Execute a workflow."`
	Plan     PlanCmd     `cmd:"" help:"Show what a workflow would execute, without running it."`
	Validate ValidateCmd `cmd:"" help:"Check a workflow file for errors."`
	History  HistoryCmd  `cmd:"" help:"List recent workflow runs."`

	RunsDir  string `help:"Directory for run history." default:"" placeholder:"PATH"`
	Postgres string `help:"Postgres DSN for run history instead of the file store." placeholder:"DSN"`
}

// openRunStore picks the history backend from the top-level flags. The
// returned closer is a no-op for the file store.
func openRunStore(ctx context.Context, cli *CLI) (pulsar.RunStore, func(), error) {
	if cli.Postgres != "" {
		store, err := pulsar.NewPostgresRunStore(ctx, cli.Postgres)
		if err != nil {
			return nil, nil, err
		}
		return store, func() { store.Close() }, nil
	}
	store, err := pulsar.NewFileRunStore(cli.RunsDir)
	if err != nil {
		return nil, nil, err
	}
	return store, func() {}, nil
}

// RunCmd executes a workflow.
type RunCmd struct {
	File     string            `arg:"" help:"Workflow YAML file." type:"path"`
	Input    string            `short:"i" help:"User input seeded at the state path \"input\"."`
	State    map[string]string `short:"s" help:"Extra initial state values as key=value pairs." placeholder:"KEY=VALUE"`
	Provider string            `help:"Input provider for interaction steps (console, file)." default:"console"`
	Timeout  time.Duration     `help:"Abort the run after this long (0 means no limit)."`
	JSON     bool              `help:"Print the final state as JSON instead of progress output."`
	NoSave   bool              `name:"no-save" help:"Skip recording the run in history."`
}

func (c *RunCmd) Run(cli *CLI) error {
	workflow, err := pulsar.LoadFile(c.File)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if c.Timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, c.Timeout)
		defer cancel()
	}
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	var formatter pulsar.ExecutionFormatter = pulsar.NewConsoleFormatter(os.Stdout)
	logger := pulsar.NewLogger()
	if c.JSON {
		// keep stdout clean for the final-state document
		formatter = pulsar.NullFormatter{}
		logger = pulsar.NewJSONLogger(os.Stderr)
	}

	var runs pulsar.RunStore = pulsar.NewNullRunStore()
	if !c.NoSave {
		var closeStore func()
		runs, closeStore, err = openRunStore(ctx, cli)
		if err != nil {
			return err
		}
		defer closeStore()
	}

	providers := interact.DefaultRegistry()
	if _, err := providers.Get(c.Provider); err != nil {
		return err
	}

	engine, err := pulsar.NewEngine(pulsar.EngineOptions{
		Workflow:        workflow,
		Logger:          logger,
		Formatter:       formatter,
		Providers:       providers,
		DefaultProvider: c.Provider,
		RunStore:        runs,
	})
	if err != nil {
		return err
	}

	initial := map[string]any{"input": c.Input}
	for key, value := range c.State {
		initial[key] = value
	}
	result := engine.ExecuteWithState(ctx, initial)
	if c.JSON {
		data, err := json.MarshalIndent(result.FinalState, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(data))
	}
	if !result.Success {
		return fmt.Errorf("workflow failed: %s", result.Error)
	}
	return nil
}

// PlanCmd prints a workflow's execution plan.
type PlanCmd struct {
	File string `arg:"" help:"Workflow YAML file." type:"path"`
}

func (c *PlanCmd) Run(cli *CLI) error {
	workflow, err := pulsar.LoadFile(c.File)
	if err != nil {
		return err
	}
	fmt.Printf("%s (%d step(s))\n", workflow.Name(), len(workflow.Steps()))
	for _, step := range workflow.Plan() {
		indent := strings.Repeat("  ", step.Depth+1)
		branch := ""
		if step.Branch != "" {
			branch = step.Branch + ": "
		}
		fmt.Printf("%s%s%s [%s] %s\n", indent, branch, step.Name, step.Kind, step.Detail)
	}
	return nil
}

// ValidateCmd checks a workflow file without running anything.
type ValidateCmd struct {
	File string `arg:"" help:"Workflow YAML file." type:"path"`
}

func (c *ValidateCmd) Run(cli *CLI) error {
	workflow, err := pulsar.LoadFile(c.File)
	if err != nil {
		return err
	}
	if errs := workflow.LintConditions(); len(errs) > 0 {
		for _, lintErr := range errs {
			fmt.Fprintln(os.Stderr, lintErr)
		}
		return fmt.Errorf("%d invalid condition(s)", len(errs))
	}
	color.New(color.FgGreen).Printf("✓ %s is valid\n", c.File)
	return nil
}

// HistoryCmd lists recent runs.
type HistoryCmd struct {
	Limit  int    `help:"Maximum number of runs to show." default:"20"`
	ID     string `help:"Show one run in full as JSON." placeholder:"RUN_ID"`
	Delete string `help:"Delete one run from history." placeholder:"RUN_ID"`
}

func (c *HistoryCmd) Run(cli *CLI) error {
	ctx := context.Background()
	runs, closeStore, err := openRunStore(ctx, cli)
	if err != nil {
		return err
	}
	defer closeStore()

	if c.Delete != "" {
		if err := runs.Delete(ctx, c.Delete); err != nil {
			return err
		}
		fmt.Printf("deleted %s\n", c.Delete)
		return nil
	}

	if c.ID != "" {
		record, err := runs.Get(ctx, c.ID)
		if err != nil {
			return err
		}
		if record == nil {
			return fmt.Errorf("run %q not found", c.ID)
		}
		data, err := json.MarshalIndent(record, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(data))
		return nil
	}

	records, err := runs.List(ctx, c.Limit)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		fmt.Println("no runs recorded")
		return nil
	}

	success := color.New(color.FgGreen)
	failure := color.New(color.FgRed)
	for _, record := range records {
		status := success.Sprint("ok  ")
		if !record.Success {
			status = failure.Sprint("fail")
		}
		fmt.Printf("%s  %s  %-20s  %s  %d step(s)\n",
			status,
			record.StartedAt.Format(time.RFC3339),
			record.WorkflowName,
			record.ID,
			record.StepCount)
	}
	return nil
}

func main() {
	// Missing .env is fine; the environment may already be configured.
	_ = godotenv.Load()

	cli := CLI{}
	ctx := kong.Parse(&cli,
		kong.Name("pulsar"),
		kong.Description("Run AI workflows defined in YAML."),
		kong.UsageOnError(),
	)
	ctx.FatalIfErrorf(ctx.Run(&cli))
}
