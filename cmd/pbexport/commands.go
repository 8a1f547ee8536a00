package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/nerrad567/pbexport/internal/export"
	"github.com/nerrad567/pbexport/internal/ledger"
	"github.com/nerrad567/pbexport/migrations"
)

// app carries the streams and flags shared by every command.
type app struct {
	stdin  io.Reader
	stdout io.Writer

	configPath string
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "pbexport",
		Short:         "Export historian channels to protocol buffer line files",
		Version:       fmt.Sprintf("%s (%s)", version, commit),
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&a.configPath, "config", "c", os.Getenv("PBEXPORT_CONFIG"),
		"configuration file (defaults plus environment when empty)")

	root.AddCommand(
		newExportCmd(a),
		newExportAllCmd(a),
		newInspectCmd(a),
		newStatusCmd(a),
	)
	return root
}

func newExportCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "export",
		Short: "Export PVs named on stdin, acknowledging each on stdout",
		Long: `Reads PV names from stdin, one per line. After each PV, successful or
not, the completion token is written to stdout. The sentinel line or the
end of input ends the batch.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			env, err := a.setup(ctx, 1)
			if err != nil {
				return err
			}
			defer env.close()

			done := export.NewDoneWriter(a.stdout, env.cfg.Export.DoneToken)
			batch := export.NewBatch(env.exporter, env.cfg.Export.Sentinel, env.observers(done)...)
			batch.SetLogger(env.log)

			sum, err := batch.Run(ctx, a.stdin)
			env.log.Info("batch finished",
				"attempted", sum.Attempted, "succeeded", sum.Succeeded, "failed", sum.Failed)
			return err
		},
	}
}

func newExportAllCmd(a *app) *cobra.Command {
	var (
		workers int
		prefix  string
	)
	cmd := &cobra.Command{
		Use:   "exportall",
		Short: "Export every channel of the index in parallel",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			env, err := a.setup(ctx, workers)
			if err != nil {
				return err
			}
			defer env.close()

			channels, err := env.index.Channels(ctx)
			if err != nil {
				return fmt.Errorf("listing channels: %w", err)
			}
			pvs := make([]string, 0, len(channels))
			for _, ch := range channels {
				if strings.HasPrefix(ch.Name, prefix) {
					pvs = append(pvs, ch.Name)
				}
			}

			batch := export.NewBatch(env.exporter, "", env.observers(newProgress(a.stdout))...)
			batch.SetLogger(env.log)

			sum, err := batch.RunAll(ctx, pvs, env.workers)
			fmt.Fprintf(a.stdout, "exported %d PVs: %d ok, %d failed\n",
				sum.Attempted, sum.Succeeded, sum.Failed)
			if err != nil {
				return err
			}
			if sum.Failed > 0 {
				return fmt.Errorf("%d of %d exports failed", sum.Failed, sum.Attempted)
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&workers, "workers", "w", 0, "parallel exports (default from config)")
	cmd.Flags().StringVar(&prefix, "prefix", "", "only export PVs starting with this prefix")
	return cmd
}

func newInspectCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "inspect FILE...",
		Short: "Print the header and last record of exported files",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			var failed int
			for _, path := range args {
				if err := inspectFile(a.stdout, path); err != nil {
					fmt.Fprintf(a.stdout, "%s: %v\n", path, err)
					failed++
				}
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d files could not be inspected", failed, len(args))
			}
			return nil
		},
	}
}

func inspectFile(w io.Writer, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	rec, err := export.Inspect(f)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "%s\n  pv: %s\n  type: %s\n  year: %d\n  elements: %d\n  records: %d (corrupt %d)\n",
		path, rec.Info.PVName, rec.Info.Type, rec.Info.Year, rec.Info.ElementCount,
		rec.Records, rec.Corrupt)
	fmt.Fprintf(w, "  last: %s severity=%d status=%d value=%v\n",
		rec.Sample.Time, rec.Sample.Severity, rec.Sample.Status, rec.Sample.Value)
	for _, fv := range rec.Fields {
		fmt.Fprintf(w, "    %s=%s\n", fv.Name, fv.Val)
	}
	return nil
}

func newStatusCmd(a *app) *cobra.Command {
	var (
		failedOnly bool
		prefix     string
		schema     bool
	)
	cmd := &cobra.Command{
		Use:   "status",
		Short: "List the most recent export outcome of every PV",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			cfg, log, err := a.load()
			if err != nil {
				return err
			}
			db, err := openState(ctx, cfg, log)
			if err != nil {
				return err
			}
			defer db.Close()

			tw := tabwriter.NewWriter(a.stdout, 0, 4, 2, ' ', 0)
			defer tw.Flush()

			if schema {
				status, err := db.MigrationStatus(ctx, migrations.FS)
				if err != nil {
					return err
				}
				fmt.Fprintln(tw, "VERSION\tNAME\tAPPLIED")
				for _, s := range status {
					applied := "pending"
					if s.Applied {
						applied = s.AppliedAt.Format(time.RFC3339)
					}
					fmt.Fprintf(tw, "%s\t%s\t%s\n", s.Version, s.Name, applied)
				}
				return nil
			}

			filter := ledger.Filter{Prefix: prefix}
			if failedOnly {
				filter.Outcome = export.OutcomeFailed
			}
			runs, err := ledger.NewSQLiteRepository(db.DB).Latest(ctx, filter)
			if err != nil {
				return err
			}
			fmt.Fprintln(tw, "PV\tOUTCOME\tRECORDS\tSKIPPED\tFILES\tFINISHED\tERROR")
			for _, r := range runs {
				fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%d\t%s\t%s\n",
					r.PV, r.Outcome, r.Records, r.Skipped, len(r.Files),
					r.Finished.Format(time.RFC3339), r.Error)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&failedOnly, "failed", false, "only PVs whose last export failed")
	cmd.Flags().StringVar(&prefix, "prefix", "", "only PVs starting with this prefix")
	cmd.Flags().BoolVar(&schema, "schema", false, "show state database migrations instead")
	return cmd
}
