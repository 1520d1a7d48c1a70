package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/opforge/opforge/pkg/buildload"
	"github.com/opforge/opforge/pkg/config"
	"github.com/opforge/opforge/pkg/operations"
	"github.com/opforge/opforge/pkg/project"
	"github.com/opforge/opforge/pkg/telemetry"
)

type loadOptions struct {
	output         string
	maxParallelism int
	parallelismSet bool
	projectPath    string
	watch          bool
	metricsAddr    string
}

func newLoadCommand(version string) *cobra.Command {
	opts := &loadOptions{}

	cmd := &cobra.Command{
		Use:   "load [dir]",
		Short: "Load a build and print its project structure",
		Long: `Load the build rooted at dir (default: current directory).

Settings are read from settings.hcl and every project's build.yaml is
evaluated in parallel on the worker pool. The resulting structure is printed
with children sorted by name.`,
		Example: `  # Print the structure of the build in the current directory
  forge load

  # YAML output, serial evaluation
  forge load ./shop --output yaml --max-parallelism 0

  # Reload on every change and expose metrics
  forge load ./shop --watch --metrics :9464`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) > 0 {
				dir = args[0]
			}
			opts.parallelismSet = cmd.Flags().Changed("max-parallelism")
			return runLoad(cmd.Context(), cmd.OutOrStdout(), dir, version, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.output, "output", "o", "json", "output format (json, yaml)")
	cmd.Flags().IntVarP(&opts.maxParallelism, "max-parallelism", "j", -1, "worker threads (negative: one per CPU, 0: serial)")
	cmd.Flags().StringVarP(&opts.projectPath, "project", "p", "", "default project path (e.g. :app)")
	cmd.Flags().BoolVarP(&opts.watch, "watch", "w", false, "reload the build when settings or build files change")
	cmd.Flags().StringVar(&opts.metricsAddr, "metrics", "", "serve Prometheus metrics on this address")

	return cmd
}

func runLoad(ctx context.Context, out io.Writer, dir, version string, opts *loadOptions) error {
	if opts.output != "json" && opts.output != "yaml" {
		return fmt.Errorf("unsupported output format %q (must be json or yaml)", opts.output)
	}

	cfg, err := loadConfig(dir)
	if err != nil {
		return err
	}
	if opts.parallelismSet {
		cfg.MaxParallelism = opts.maxParallelism
	}
	if verbose {
		cfg.Logging.Level = "debug"
	}

	tel, err := telemetry.NewTelemetry(cfg.Telemetry(version))
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tel.Shutdown(shutdownCtx); err != nil {
			tel.Logger.WithError(err).Warn("Telemetry shutdown incomplete")
		}
	}()
	ctx = tel.WithContext(ctx)
	logger := tel.Logger.NewComponentLogger("cli")

	processor, err := operations.NewProcessor(cfg.MaxParallelism,
		operations.WithProcessorLogger(tel.Logger.NewComponentLogger("pool").Zerolog()),
		operations.WithPoolObserver(tel.Metrics),
		operations.WithStopTimeout(cfg.StopTimeout.Std()),
	)
	if err != nil {
		return err
	}
	defer func() {
		if err := processor.Stop(context.Background()); err != nil {
			logger.WithError(err).Warn("Worker pool did not stop cleanly")
		}
	}()
	tel.Metrics.SetPoolThreads(processor.Threads())

	if opts.metricsAddr != "" {
		if _, err := tel.Metrics.StartServer(opts.metricsAddr, logger.Zerolog()); err != nil {
			return fmt.Errorf("failed to start metrics server: %w", err)
		}
	}

	session := &loadSession{
		dir:         dir,
		projectPath: opts.projectPath,
		output:      opts.output,
		out:         out,
		tel:         tel,
		loader:      project.NewLoader(processor),
	}

	if err := session.load(ctx); err != nil {
		if !opts.watch {
			return err
		}
		logger.WithError(err).Error("Initial build load failed")
	}
	if !opts.watch {
		return nil
	}

	watcher, err := project.NewWatcher(dir, logger.Zerolog())
	if err != nil {
		return err
	}
	return watcher.Run(ctx, session.load)
}

// loadSession loads one build directory, once or on every change.
type loadSession struct {
	dir         string
	projectPath string
	output      string
	out         io.Writer
	tel         *telemetry.Telemetry
	loader      *project.Loader
}

func (s *loadSession) load(ctx context.Context) error {
	settings, err := project.ReadSettings(s.dir)
	if err != nil {
		return err
	}

	var defaultProject buildload.ProjectDescriptor
	if s.projectPath != "" {
		d, ok := settings.RootProject.Find(s.projectPath)
		if !ok {
			return fmt.Errorf("project %s is not part of the build", s.projectPath)
		}
		defaultProject = d
	}

	recorder := operations.NewRecorder()
	executor := operations.NewExecutor(
		operations.WithListener(operations.MultiListener{s.tel.OperationListener(), recorder}),
		operations.WithExecutorLogger(s.tel.Logger.NewComponentLogger("executor").Zerolog()),
	)

	build := project.NewBuild(":", s.tel.BuildListener())
	notifying := buildload.NewNotifyingBuildLoader(s.loader, executor)
	if err := notifying.Load(ctx, settings.RootProject, defaultProject, build); err != nil {
		return err
	}

	op, ok := recorder.Find(buildload.LoadingBuildOperation)
	if !ok {
		return fmt.Errorf("build loaded without a %q operation", buildload.LoadingBuildOperation)
	}
	result, ok := op.Outcome.Result.(*buildload.BuildStructureResult)
	if !ok {
		return fmt.Errorf("unexpected build structure result %T", op.Outcome.Result)
	}
	return writeResult(s.out, s.output, result)
}

func writeResult(out io.Writer, format string, result *buildload.BuildStructureResult) error {
	switch format {
	case "yaml":
		enc := yaml.NewEncoder(out)
		enc.SetIndent(2)
		if err := enc.Encode(result); err != nil {
			return fmt.Errorf("failed to encode result: %w", err)
		}
		return enc.Close()
	default:
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}
}

// loadConfig reads --config, or the config file found in the build directory.
func loadConfig(dir string) (*config.Config, error) {
	path := configPath
	if path == "" {
		path = config.Find(dir)
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return cfg, nil
}
