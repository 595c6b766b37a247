package cmd

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/RyanBlaney/sonido-pcg/features"
	"github.com/RyanBlaney/sonido-pcg/pipeline"
	"github.com/spf13/cobra"
)

// requestFlags are the per-analysis overrides shared by analyze and case add.
type requestFlags struct {
	gain        float64
	threshold   float64
	noNormalize bool
	start       float64
	end         float64
	low         float64
	high        float64
	order       int
	kinds       []string
}

func (r *requestFlags) register(cmd *cobra.Command) {
	f := cmd.Flags()
	f.Float64Var(&r.gain, "gain", 1.0, "linear gain applied before the noise gate")
	f.Float64Var(&r.threshold, "threshold", 0.01, "noise gate threshold (absolute amplitude)")
	f.BoolVar(&r.noNormalize, "no-normalize", false, "skip peak normalisation")
	f.Float64Var(&r.start, "start", 0, "analysis window start in seconds")
	f.Float64Var(&r.end, "end", 0, "analysis window end in seconds (default: end of recording)")
	f.Float64Var(&r.low, "low", 25, "band-pass low cutoff in Hz")
	f.Float64Var(&r.high, "high", 400, "band-pass high cutoff in Hz")
	f.IntVar(&r.order, "order", 4, "Butterworth filter order")
	f.StringSliceVar(&r.kinds, "features", nil, "feature kinds to extract (mfcc, chroma, contrast, spectral)")
}

// apply overrides the configured request with flags the user set.
func (r *requestFlags) apply(cmd *cobra.Command, req pipeline.Request) (pipeline.Request, error) {
	f := cmd.Flags()
	if f.Changed("gain") {
		req.Conditioning.Gain = r.gain
	}
	if f.Changed("threshold") {
		req.Conditioning.Threshold = r.threshold
	}
	if f.Changed("no-normalize") {
		req.Conditioning.Normalize = !r.noNormalize
	}
	if f.Changed("start") {
		req.Conditioning.Start = r.start
	}
	if f.Changed("end") {
		end := r.end
		req.Conditioning.End = &end
	}
	if f.Changed("low") {
		req.Filter.Low = r.low
	}
	if f.Changed("high") {
		req.Filter.High = r.high
	}
	if f.Changed("order") {
		req.Filter.Order = r.order
	}
	for _, k := range r.kinds {
		kind, err := features.ParseKind(strings.TrimSpace(k))
		if err != nil {
			return req, err
		}
		req.Kinds = append(req.Kinds, kind)
	}
	return req, nil
}

func newAnalyzeCmd(c *cli) *cobra.Command {
	var (
		rf       requestFlags
		playback string
	)

	cmd := &cobra.Command{
		Use:   "analyze <file.wav>",
		Short: "Run the analysis pipeline on a recording",
		Long: `Decode a WAV recording, condition and band-limit it, and extract
features. With a classifier model configured the recording is also
diagnosed. Use --playback to write the denoised signal as 16-bit WAV.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := c.application(cmd)
			if err != nil {
				return err
			}
			req, err := rf.apply(cmd, a.Request())
			if err != nil {
				return err
			}

			an, err := a.Analyzer.AnalyzeFile(args[0], req)
			if err != nil {
				return err
			}

			if playback != "" {
				wav, err := a.Analyzer.PlaybackWAV(an)
				if err != nil {
					return err
				}
				if err := os.WriteFile(playback, wav, 0o644); err != nil {
					return fmt.Errorf("failed to write playback file: %w", err)
				}
			}

			return writeOutput(c.out(cmd), c.outputFormat(), newAnalysisReport(args[0], an))
		},
	}
	rf.register(cmd)
	cmd.Flags().StringVar(&playback, "playback", "", "write the denoised signal to this WAV file")
	return cmd
}

// AnalysisReport is the printable summary of one analysis.
type AnalysisReport struct {
	File       string               `json:"file" yaml:"file"`
	SampleRate int                  `json:"sample_rate" yaml:"sample_rate"`
	Samples    int                  `json:"samples" yaml:"samples"`
	Duration   string               `json:"duration" yaml:"duration"`
	Analysed   int                  `json:"analysed_samples" yaml:"analysed_samples"`
	Frames     int                  `json:"frames" yaml:"frames"`
	Label      string               `json:"label,omitempty" yaml:"label,omitempty"`
	Diagnosed  bool                 `json:"diagnosed" yaml:"diagnosed"`
	Warnings   []string             `json:"warnings,omitempty" yaml:"warnings,omitempty"`
	Means      map[string][]float64 `json:"means" yaml:"means"`
	Elapsed    string               `json:"elapsed" yaml:"elapsed"`
}

func newAnalysisReport(file string, an *pipeline.Analysis) *AnalysisReport {
	r := &AnalysisReport{
		File:       file,
		SampleRate: an.Raw.SampleRate(),
		Samples:    an.Raw.Len(),
		Duration:   formatDuration(an.Raw.Duration()),
		Analysed:   an.Denoised.Len(),
		Frames:     an.Features.Frames,
		Label:      string(an.Label),
		Diagnosed:  an.Diagnosed,
		Means:      an.Features.Snapshot().Means,
		Elapsed:    formatDuration(an.Elapsed.Round(time.Millisecond)),
	}
	for _, w := range an.Warnings {
		r.Warnings = append(r.Warnings, w.Error())
	}
	return r
}

// Table renders the report as label/value pairs followed by feature means.
func (r *AnalysisReport) Table(s styles) string {
	label := s.Dim.Render("no classifier")
	if r.Diagnosed {
		label = s.Title.Render(r.Label)
	}
	pairs := [][2]string{
		{"File", r.File},
		{"Sample rate", fmt.Sprintf("%d Hz", r.SampleRate)},
		{"Duration", fmt.Sprintf("%s (%d samples)", r.Duration, r.Samples)},
		{"Analysed", fmt.Sprintf("%d samples, %d frames", r.Analysed, r.Frames)},
		{"Diagnosis", label},
		{"Elapsed", r.Elapsed},
	}
	for _, w := range r.Warnings {
		pairs = append(pairs, [2]string{"Warning", s.Warn.Render(w)})
	}

	kinds := make([]string, 0, len(r.Means))
	for k := range r.Means {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	rows := make([][]string, 0, len(kinds))
	for _, k := range kinds {
		rows = append(rows, []string{k, fmt.Sprintf("%d", len(r.Means[k])), formatVector(r.Means[k], 2)})
	}

	return renderPairs(s, pairs) + "\n" + renderTable(s, []string{"Feature", "Rows", "Mean"}, rows)
}
