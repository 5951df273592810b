package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-logr/logr"
	"github.com/go-logr/zapr"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/yuriy-kovalchuk/yk-dns-sync/internal/apply"
	"github.com/yuriy-kovalchuk/yk-dns-sync/internal/config"
	"github.com/yuriy-kovalchuk/yk-dns-sync/internal/diff"
	"github.com/yuriy-kovalchuk/yk-dns-sync/internal/dns"
	_ "github.com/yuriy-kovalchuk/yk-dns-sync/internal/dns/providers"
	"github.com/yuriy-kovalchuk/yk-dns-sync/internal/fetch"
	"github.com/yuriy-kovalchuk/yk-dns-sync/internal/source"
)

var Version = "dev"

type options struct {
	dir          string
	configPath   string
	concurrency  int
	allowDeletes bool
	verbose      bool
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	o := &options{}

	root := &cobra.Command{
		Use:           "yk-dns-sync",
		Short:         "Reconcile declarative DNS zone files against a provider",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&o.dir, "dir", "zones", "directory containing per-domain zone files")
	root.PersistentFlags().StringVar(&o.configPath, "config", "", "provider config file (default $DNS_PROVIDER_PATH or configs/dns-provider.yaml)")
	root.PersistentFlags().IntVar(&o.concurrency, "concurrency", 0, "bound on parallel provider operations (overrides config)")
	root.PersistentFlags().BoolVar(&o.allowDeletes, "allow-deletes", false, "allow deleting remote records in managed zones")
	root.PersistentFlags().BoolVarP(&o.verbose, "verbose", "v", false, "enable debug logging")

	root.AddCommand(newPlanCmd(o), newApplyCmd(o))
	return root
}

func newPlanCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "plan",
		Short: "Show the operations needed to make remote state match the zone files",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			plan, _, err := computePlan(cmd.Context(), o, cmd.Flags().Changed("allow-deletes"))
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), diff.Format(plan))
			return fetchFailures(plan)
		},
	}
}

func newApplyCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "apply",
		Short: "Execute the operations needed to make remote state match the zone files",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			plan, env, err := computePlan(ctx, o, cmd.Flags().Changed("allow-deletes"))
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprint(out, diff.Format(plan))

			applier := &apply.Applier{
				Provider:    env.provider,
				Log:         env.log.WithName("apply"),
				Concurrency: env.concurrency,
			}
			report := applier.Apply(ctx, plan)
			printReport(out, report)

			if err := fetchFailures(plan); err != nil {
				return err
			}
			if report.Failed() > 0 {
				return fmt.Errorf("apply finished with status %q: %d of %d operation(s) did not succeed",
					report.Status(), report.Failed(), len(report.Results()))
			}
			return nil
		},
	}
}

// runEnv carries everything a command needs after setup.
type runEnv struct {
	log         logr.Logger
	provider    dns.Provider
	concurrency int
}

// computePlan runs the read-only half of a reconciliation: load and flatten
// the zone files, fetch remote state, diff. Parse and validation failures
// abort before any remote call. allowDeletesSet reports whether the
// --allow-deletes flag was given explicitly; only then does it override the
// config file.
func computePlan(ctx context.Context, o *options, allowDeletesSet bool) (*diff.Plan, *runEnv, error) {
	log, err := newLogger(o.verbose)
	if err != nil {
		return nil, nil, err
	}

	cfg, err := loadConfig(o)
	if err != nil {
		return nil, nil, err
	}
	concurrency := cfg.Concurrency
	if o.concurrency > 0 {
		concurrency = o.concurrency
	}

	zones, err := source.Load(o.dir)
	if err != nil {
		return nil, nil, err
	}
	specs, err := source.Flatten(zones)
	if err != nil {
		return nil, nil, err
	}
	log.Info("loaded desired state", "zones", len(zones), "records", len(specs))

	provider, err := dns.NewProvider(cfg.Provider, log.WithName("dns-"+cfg.Provider), cfg.Settings)
	if err != nil {
		return nil, nil, fmt.Errorf("creating DNS provider: %w", err)
	}

	fetcher := &fetch.Fetcher{
		Provider:    provider,
		Log:         log.WithName("fetch"),
		Concurrency: concurrency,
	}
	names := make([]string, 0, len(zones))
	for _, z := range zones {
		names = append(names, z.Name)
	}
	state, err := fetcher.Fetch(ctx, names)
	if err != nil {
		return nil, nil, err
	}

	plan := diff.Compute(zones, specs, state, diff.Options{
		AllowDeletes: resolveAllowDeletes(allowDeletesSet, o.allowDeletes, cfg.AllowDeletes),
	})
	return plan, &runEnv{log: log, provider: provider, concurrency: concurrency}, nil
}

// resolveAllowDeletes gives an explicitly set flag precedence over the config
// file, so --allow-deletes=false can override allow_deletes: true.
func resolveAllowDeletes(flagSet, flagValue, configValue bool) bool {
	if flagSet {
		return flagValue
	}
	return configValue
}

func loadConfig(o *options) (*config.Config, error) {
	if o.configPath != "" {
		return config.LoadFromPath(o.configPath)
	}
	return config.Load()
}

// fetchFailures turns zones excluded by fetch errors into a command failure
// so partial plans never exit zero.
func fetchFailures(plan *diff.Plan) error {
	failed := 0
	for _, zp := range plan.Zones {
		if zp.FetchErr != nil {
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d zone(s) could not be fetched and were skipped", failed)
	}
	return nil
}

func printReport(out io.Writer, report *apply.Report) {
	for _, res := range report.Results() {
		switch res.Outcome {
		case apply.OutcomeSuccess:
			fmt.Fprintf(out, "ok    %s %s\n", res.Op.Kind, res.Op.Key())
		case apply.OutcomeSkipped:
			fmt.Fprintf(out, "skip  %s %s: %v\n", res.Op.Kind, res.Op.Key(), res.Err)
		default:
			fmt.Fprintf(out, "FAIL  %s %s: %v\n", res.Op.Kind, res.Op.Key(), res.Err)
		}
	}
	fmt.Fprintf(out, "\nrun status: %s\n", report.Status())
}

func newLogger(verbose bool) (logr.Logger, error) {
	cfg := zap.NewDevelopmentConfig()
	if verbose {
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	} else {
		cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}
	zl, err := cfg.Build()
	if err != nil {
		return logr.Logger{}, fmt.Errorf("building logger: %w", err)
	}
	return zapr.NewLogger(zl), nil
}
