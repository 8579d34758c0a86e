package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/anstrom/tellix/internal/probe"
)

const (
	outputTable = "table"
	outputJSON  = "json"

	maxTitleLength = 60
)

// probeOptions holds the probe command flags.
type probeOptions struct {
	targets     string
	targetsFile string
	preset      string
	params      string
	output      string
}

var probeOpts probeOptions

// probeCmd runs one probe and prints the records.
var probeCmd = &cobra.Command{
	Use:   "probe",
	Short: "Probe targets and print the results",
	Long: `Run the probing binary once against the given targets.

Use --preset for one of the fixed flag sets (quick, complete, full) or
--params for your own flags. Without either, the quick preset is used.`,
	Example: `  tellix probe --targets example.com
  tellix probe --targets-file hosts.txt --preset complete --output json
  tellix probe --targets "example.com
example.org" --params "-title -status-code"`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.close()
		return runProbe(cmd.Context(), a.prober, probeOpts, cmd.OutOrStdout())
	},
}

// helpBinaryCmd prints the binary's own help text.
var helpBinaryCmd = &cobra.Command{
	Use:   "help-binary",
	Short: "Show the probing binary's help",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.close()

		help, err := a.prober.Help(cmd.Context())
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(cmd.OutOrStdout(), help)
		return err
	},
}

func init() {
	rootCmd.AddCommand(probeCmd)
	rootCmd.AddCommand(helpBinaryCmd)

	probeCmd.Flags().StringVarP(&probeOpts.targets, "targets", "t", "", "Newline or comma separated targets")
	probeCmd.Flags().StringVarP(&probeOpts.targetsFile, "targets-file", "f", "", "File with one target per line")
	probeCmd.Flags().StringVarP(&probeOpts.preset, "preset", "p", "", "Flag preset: quick, complete or full")
	probeCmd.Flags().StringVar(&probeOpts.params, "params", "", "Flags passed to the binary")
	probeCmd.Flags().StringVarP(&probeOpts.output, "output", "o", outputTable, "Output format: table or json")

	probeCmd.MarkFlagsMutuallyExclusive("targets", "targets-file")
	probeCmd.MarkFlagsMutuallyExclusive("preset", "params")
}

// probeRunner is the part of the prober the probe command uses.
type probeRunner interface {
	Probe(ctx context.Context, req probe.Request) (*probe.Result, error)
}

// runProbe resolves opts into a request, runs it and renders the result.
func runProbe(ctx context.Context, runner probeRunner, opts probeOptions, w io.Writer) error {
	if opts.output != outputTable && opts.output != outputJSON {
		return fmt.Errorf("invalid output format %q (use %s or %s)", opts.output, outputTable, outputJSON)
	}

	req, err := buildProbeRequest(opts)
	if err != nil {
		return err
	}

	result, err := runner.Probe(ctx, req)
	if err != nil {
		return err
	}

	if opts.output == outputJSON {
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		encoder.SetEscapeHTML(false)
		return encoder.Encode(result)
	}
	return renderTable(w, result)
}

// buildProbeRequest turns command flags into a probe request.
func buildProbeRequest(opts probeOptions) (probe.Request, error) {
	targets := strings.ReplaceAll(opts.targets, ",", "\n")
	if opts.targetsFile != "" {
		data, err := os.ReadFile(opts.targetsFile) //nolint:gosec // path is supplied by the operator
		if err != nil {
			return probe.Request{}, fmt.Errorf("failed to read targets file: %w", err)
		}
		targets = string(data)
	}
	if probe.CountTargets(targets) == 0 {
		return probe.Request{}, fmt.Errorf("no targets given, use --targets or --targets-file")
	}

	if opts.params != "" {
		args, err := probe.ParseParams(opts.params)
		if err != nil {
			return probe.Request{}, err
		}
		return probe.Request{Targets: targets, Args: args, Level: probe.LevelCustom}, nil
	}

	level := probe.LevelQuick
	if opts.preset != "" {
		var ok bool
		if level, ok = probe.ParseLevel(opts.preset); !ok {
			return probe.Request{}, fmt.Errorf("unknown preset %q (use quick, complete or full)", opts.preset)
		}
	}
	return probe.Request{Targets: targets, Args: probe.PresetFlags(level), Level: level}, nil
}

// httpRecord holds the fields shown in table output.
type httpRecord struct {
	URL        string   `json:"url"`
	Input      string   `json:"input"`
	StatusCode int      `json:"status_code"`
	Title      string   `json:"title"`
	WebServer  string   `json:"webserver"`
	Host       string   `json:"host"`
	Tech       []string `json:"tech"`
	Failed     bool     `json:"failed"`
}

// renderTable prints one row per record. Records that do not decode as
// objects are shown raw.
func renderTable(w io.Writer, result *probe.Result) error {
	table := tablewriter.NewWriter(w)
	table.Header("URL", "Status", "Title", "Server", "IP", "Tech")

	for _, raw := range result.Records {
		var rec httpRecord
		if err := json.Unmarshal(raw, &rec); err != nil {
			_ = table.Append([]string{string(raw), "", "", "", "", ""})
			continue
		}

		url := rec.URL
		if url == "" {
			url = rec.Input
		}
		status := "-"
		if rec.StatusCode > 0 {
			status = fmt.Sprint(rec.StatusCode)
		} else if rec.Failed {
			status = "failed"
		}

		_ = table.Append([]string{
			url,
			status,
			truncate(rec.Title, maxTitleLength),
			rec.WebServer,
			rec.Host,
			strings.Join(rec.Tech, ", "),
		})
	}

	if err := table.Render(); err != nil {
		return err
	}

	_, err := fmt.Fprintf(w, "%d result(s) for %d target(s) in %s\n",
		len(result.Records), result.Targets, result.Duration.Round(time.Millisecond))
	return err
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
