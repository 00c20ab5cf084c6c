package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/daisymeal/cyberdefense/internal/adapters/input"
	"github.com/daisymeal/cyberdefense/internal/adapters/output"
	"github.com/daisymeal/cyberdefense/internal/app"
	"github.com/daisymeal/cyberdefense/internal/domain"
	"github.com/daisymeal/cyberdefense/internal/ports"
	"github.com/daisymeal/cyberdefense/internal/tui"
)

var (
	inspectIP      string
	inspectPayload string
	inspectSize    int
	recordFile     string
	outputFormat   string
	fromBeginning  bool
	useTUI         bool
)

var inspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "Inspect one record or a JSON-lines file",
	Long: `Inspect a single record given on the command line, or every record in a
JSON-lines file (one request object per line).

Examples:
  cyberdefense inspect --ip 10.0.0.5 --payload "' OR 1=1 --" --size 50
  cyberdefense inspect --file records.jsonl
  cyberdefense inspect --file records.jsonl --format json --workers 16`,
	RunE: runInspect,
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Follow a JSON-lines file and inspect records as they arrive",
	Long: `Follow a JSON-lines file the way tail -F does, inspecting each new record.

Examples:
  cyberdefense watch --file /var/spool/records.jsonl
  cyberdefense watch --file records.jsonl --from-beginning --show-clean
  cyberdefense watch --file records.jsonl --tui`,
	RunE: runWatch,
}

func init() {
	inspectCmd.Flags().StringVar(&inspectIP, "ip", domain.UnknownSource, "source address of the record")
	inspectCmd.Flags().StringVar(&inspectPayload, "payload", "", "payload text of the record")
	inspectCmd.Flags().IntVar(&inspectSize, "size", 0, "declared size in bytes")

	for _, c := range []*cobra.Command{inspectCmd, watchCmd} {
		c.Flags().StringVarP(&recordFile, "file", "f", "", "JSON-lines record file")
		c.Flags().StringVar(&outputFormat, "format", "console", "verdict output: console or json")
	}
	inspectCmd.Flags().Bool("show-clean", true, "print ALLOW verdicts too")
	watchCmd.Flags().Bool("show-clean", false, "print ALLOW verdicts too")
	watchCmd.Flags().BoolVar(&fromBeginning, "from-beginning", false, "read existing records before following")
	watchCmd.Flags().BoolVar(&useTUI, "tui", false, "show a live dashboard instead of printing verdicts")
}

func newSink(cmd *cobra.Command, hw string) (ports.VerdictSink, error) {
	showClean, _ := cmd.Flags().GetBool("show-clean")
	switch outputFormat {
	case "console":
		return output.NewConsoleSink(os.Stdout, showClean), nil
	case "json":
		return output.NewJSONLinesSink(os.Stdout, hw), nil
	default:
		return nil, fmt.Errorf("unknown format %q: use console or json", outputFormat)
	}
}

func runInspect(cmd *cobra.Command, args []string) error {
	if recordFile != "" {
		return runFile(cmd, false)
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	cfg.Output.MetricsEnabled = false

	p, err := buildPipeline(cfg)
	if err != nil {
		return err
	}
	sink, err := newSink(cmd, string(p.hardware))
	if err != nil {
		return err
	}

	p.dispatcher.Start(context.Background())
	defer p.dispatcher.Stop()

	record := domain.NewTrafficRecord(inspectIP, inspectPayload, inspectSize)
	verdict := p.service.Analyze(context.Background(), record)
	return sink.Emit(ports.SourcedRecord{Record: record}, verdict)
}

func runWatch(cmd *cobra.Command, args []string) error {
	if recordFile == "" {
		return fmt.Errorf("record file required: use --file")
	}
	return runFile(cmd, true)
}

func runFile(cmd *cobra.Command, follow bool) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if !follow {
		cfg.Output.MetricsEnabled = false
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	p, err := buildPipeline(cfg)
	if err != nil {
		return err
	}

	var sink ports.VerdictSink
	var dashboard *tui.Dashboard
	if follow && useTUI {
		dashboard = tui.NewDashboard(recordFile, string(p.hardware), p.metrics, p.sources)
		p.dispatcher.AddSubscriber(dashboard)
		// Log lines would tear the alternate screen.
		log.Logger = log.Logger.Level(zerolog.ErrorLevel)
	} else if sink, err = newSink(cmd, string(p.hardware)); err != nil {
		return err
	}

	p.dispatcher.Start(context.Background())
	defer p.dispatcher.Stop()

	if err := p.startMetrics(); err != nil {
		return err
	}
	if p.prom != nil {
		defer p.prom.StopServer(context.Background())
	}

	tailer := input.NewRecordTailer(input.RecordTailerConfig{
		Path:          recordFile,
		Follow:        follow,
		FromBeginning: fromBeginning,
		BufferSize:    cfg.Workers.BufferSize,
	})
	pool := app.NewWorkerPool(cfg.Workers, p.service, sink, p.metrics)
	analyzer := app.NewAnalyzer(tailer, pool, p.metrics)

	log.Info().
		Str("file", recordFile).
		Bool("follow", follow).
		Int("workers", cfg.Workers.WorkerCount).
		Str("hardware", string(p.hardware)).
		Msg("cyberdefense started")

	if dashboard != nil {
		if err := analyzer.Start(ctx); err != nil {
			return err
		}
		runErr := dashboard.Run(ctx)
		analyzer.Stop()
		if runErr != nil {
			return runErr
		}
		if err := analyzer.Err(); err != nil {
			return err
		}
	} else if err := analyzer.Run(ctx); err != nil {
		return err
	}

	snap := analyzer.Metrics()
	log.Info().
		Int64("records", snap.TotalRecords).
		Int64("allowed", snap.AllowedRecords).
		Int64("dropped", snap.DroppedRecords).
		Int64("blocked", snap.BlockedRecords).
		Int64("alerts", snap.TotalAlerts).
		Dur("elapsed", snap.Uptime).
		Msg("Inspection finished")
	return nil
}
