package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"text/tabwriter"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/panelboard-cli/internal/aggregate"
	"github.com/sells-group/panelboard-cli/internal/extraction"
	"github.com/sells-group/panelboard-cli/internal/model"
	"github.com/sells-group/panelboard-cli/internal/params"
)

// defaultParameterConf is used when an extraction file carries panel
// parameters without its own confidence.
const defaultParameterConf = 0.8

var resolveCmd = &cobra.Command{
	Use:   "resolve FILE...",
	Short: "Fuse extraction results into a resolved panel schedule",
	Long: `Ingest one or more extraction-result JSON files (text OCR, AI vision,
or manual passes over the same panel) and print the fused schedule.

Each file holds one extraction pass: a source id, the extraction method,
per-circuit entries, optional visual breaker groups, and optional
panel-level parameters. Files are ingested in argument order; every
circuit field resolves to the highest-confidence value across all
passes, with conflicts flagged for review.

Examples:
  # Combine two photo passes and a manual correction
  resolve photo1_ocr.json photo1_vision.json manual.json

  # Machine-readable output for the export pipeline
  resolve pass1.json pass2.json --format json

  # Hide low-confidence circuits from the table
  resolve pass1.json --min-confidence 0.5`,
	Args: cobra.MinimumNArgs(1),
	RunE: runResolve,
}

func init() {
	f := resolveCmd.Flags()
	f.String("task", "", "task id (default: random uuid)")
	f.String("format", "table", "output format: table, json, or yaml")
	f.Float64("min-confidence", 0, "hide circuits below this overall confidence in table output")

	rootCmd.AddCommand(resolveCmd)
}

// scheduleOutput is the machine-readable result of a resolve run.
type scheduleOutput struct {
	TaskID        string                          `json:"task_id" yaml:"task_id"`
	Circuits      []model.CircuitExport           `json:"circuits" yaml:"circuits"`
	Summary       aggregate.Summary               `json:"summary" yaml:"summary"`
	Parameters    map[string]params.ParameterInfo `json:"parameters,omitempty" yaml:"parameters,omitempty"`
	Notifications []string                        `json:"notifications,omitempty" yaml:"notifications,omitempty"`
}

func runResolve(cmd *cobra.Command, args []string) error {
	taskID, _ := cmd.Flags().GetString("task")
	format, _ := cmd.Flags().GetString("format")
	minConfidence, _ := cmd.Flags().GetFloat64("min-confidence")

	if taskID == "" {
		taskID = uuid.NewString()
	}

	results, err := loadResults(args)
	if err != nil {
		return err
	}

	svc := aggregate.New(cfg.Aggregation.AggregateConfig())
	store := params.New(cfg.Aggregation.MethodWeights())

	log := zap.L().With(zap.String("command", "resolve"), zap.String("task_id", taskID))

	var notifications []string
	for _, res := range results {
		notifications = append(notifications, svc.IngestResult(taskID, res)...)

		if len(res.Parameters) > 0 {
			conf := res.ParameterConfidence
			if conf <= 0 {
				conf = defaultParameterConf
			}
			decisions := store.UpdateBatch(taskID, res.Parameters, conf, model.ParseMethod(res.Method), res.SourceID)
			log.Info("panel parameters ingested",
				zap.String("source", res.SourceID),
				zap.Int("parameters", len(decisions)),
			)
		}
	}

	out := scheduleOutput{
		TaskID:        taskID,
		Circuits:      exportCircuits(svc.AllResolvedCircuits(taskID)),
		Summary:       svc.Summary(taskID),
		Parameters:    store.AllWithConfidence(taskID),
		Notifications: notifications,
	}

	switch format {
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	case "yaml":
		return yaml.NewEncoder(os.Stdout).Encode(out)
	case "table":
		printSchedule(out, minConfidence)
		return nil
	default:
		return eris.Errorf("resolve: unknown format %q", format)
	}
}

// loadResults parses all extraction files concurrently, preserving
// argument order. A file without a source id gets its base filename.
func loadResults(paths []string) ([]extraction.Result, error) {
	results := make([]extraction.Result, len(paths))

	var g errgroup.Group
	for i, path := range paths {
		i, path := i, path
		g.Go(func() error {
			data, err := os.ReadFile(path)
			if err != nil {
				return eris.Wrapf(err, "resolve: read %s", path)
			}
			var res extraction.Result
			if err := json.Unmarshal(data, &res); err != nil {
				return eris.Wrapf(err, "resolve: parse %s", path)
			}
			if res.SourceID == "" {
				res.SourceID = filepath.Base(path)
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return results, nil
}

func exportCircuits(resolved map[int]*model.ResolvedCircuit) []model.CircuitExport {
	numbers := make([]int, 0, len(resolved))
	for n := range resolved {
		numbers = append(numbers, n)
	}
	sort.Ints(numbers)

	out := make([]model.CircuitExport, 0, len(numbers))
	for _, n := range numbers {
		out = append(out, resolved[n].Export())
	}
	return out
}

func printSchedule(out scheduleOutput, minConfidence float64) {
	for _, n := range out.Notifications {
		fmt.Println(n)
	}
	if len(out.Notifications) > 0 {
		fmt.Println()
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "CKT\tDESCRIPTION\tAMPS\tPOLES\tTYPE\tCONF\tSOURCES\tREVIEW")
	for _, c := range out.Circuits {
		if c.Confidence.Overall < minConfidence {
			continue
		}
		review := ""
		if c.NeedsReview {
			review = "CONFLICT"
		}
		fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%s\t%.2f\t%d\t%s\n",
			c.Number, c.Description, c.BreakerAmps, c.Poles, c.LoadType,
			c.Confidence.Overall, len(c.Sources), review)
	}
	w.Flush()

	fmt.Printf("\n%d circuits from %d observations across %d sources; %d need review; avg confidence %.2f\n",
		out.Summary.TotalCircuits, out.Summary.TotalObservations, len(out.Summary.Sources),
		out.Summary.CircuitsWithConflicts, out.Summary.AverageConfidence)

	if len(out.Parameters) > 0 {
		names := make([]string, 0, len(out.Parameters))
		for name := range out.Parameters {
			names = append(names, name)
		}
		sort.Strings(names)

		fmt.Println("\nPanel parameters:")
		pw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(pw, "PARAMETER\tVALUE\tCONF\tMETHOD\tSOURCE")
		for _, name := range names {
			p := out.Parameters[name]
			fmt.Fprintf(pw, "%s\t%v\t%.2f\t%s\t%s\n", name, p.Value, p.Confidence, p.Method, p.Source)
		}
		pw.Flush()
	}
}
