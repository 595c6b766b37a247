package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/RyanBlaney/sonido-pcg/archive"
	"github.com/RyanBlaney/sonido-pcg/pcm"
	"github.com/RyanBlaney/sonido-pcg/transcode"
	"github.com/spf13/cobra"
)

func newCaseCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "case",
		Short: "Manage archived patient cases",
	}
	cmd.AddCommand(newCaseAddCmd(c))
	cmd.AddCommand(newCaseListCmd(c))
	cmd.AddCommand(newCaseShowCmd(c))
	cmd.AddCommand(newCaseExportCmd(c))
	return cmd
}

func newCaseAddCmd(c *cli) *cobra.Command {
	var (
		rf     requestFlags
		name   string
		age    int
		gender string
		notes  string
	)

	cmd := &cobra.Command{
		Use:   "add <file.wav>",
		Short: "Analyse a recording and archive it with patient metadata",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			meta, err := archive.NewMetadata(name, age, gender, notes)
			if err != nil {
				return err
			}
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
			arc, err := a.Archive(cmd.Context())
			if err != nil {
				return err
			}
			pc, err := a.Analyzer.Save(cmd.Context(), arc, meta, an)
			if err != nil {
				return err
			}
			return writeOutput(c.out(cmd), c.outputFormat(), caseDetail(pc))
		},
	}
	rf.register(cmd)
	f := cmd.Flags()
	f.StringVar(&name, "name", "", "patient name (required)")
	f.IntVar(&age, "age", 0, "patient age in years (0-120)")
	f.StringVar(&gender, "gender", "unspecified", "patient gender (female, male, other, unspecified)")
	f.StringVar(&notes, "notes", "", "free-text notes")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func newCaseListCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List archived cases, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := c.application(cmd)
			if err != nil {
				return err
			}
			arc, err := a.Archive(cmd.Context())
			if err != nil {
				return err
			}
			return writeOutput(c.out(cmd), c.outputFormat(), caseList(arc.List()))
		},
	}
}

func newCaseShowCmd(c *cli) *cobra.Command {
	var reanalyze bool

	cmd := &cobra.Command{
		Use:   "show <case-id>",
		Short: "Show one case; --reanalyze runs the stored recording through the pipeline",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := c.application(cmd)
			if err != nil {
				return err
			}
			arc, err := a.Archive(cmd.Context())
			if err != nil {
				return err
			}
			if !reanalyze {
				pc, err := arc.Get(args[0])
				if err != nil {
					return err
				}
				return writeOutput(c.out(cmd), c.outputFormat(), caseDetail(pc))
			}

			pc, an, err := a.Analyzer.Reanalyze(cmd.Context(), arc, args[0], a.Request())
			if err != nil {
				return err
			}
			return writeOutput(c.out(cmd), c.outputFormat(), newAnalysisReport(pc.BlobKey, an))
		},
	}
	cmd.Flags().BoolVar(&reanalyze, "reanalyze", false, "reload the recording and analyse it again")
	return cmd
}

func newCaseExportCmd(c *cli) *cobra.Command {
	var source bool
	cmd := &cobra.Command{
		Use:   "export <case-id> <out.wav>",
		Short: "Write a case's stored recording as 16-bit WAV",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := c.application(cmd)
			if err != nil {
				return err
			}
			arc, err := a.Archive(cmd.Context())
			if err != nil {
				return err
			}
			var buf *pcm.Buffer
			if source {
				buf, err = arc.LoadSource(cmd.Context(), args[0])
			} else {
				_, buf, err = arc.Load(cmd.Context(), args[0])
			}
			if err != nil {
				return err
			}
			enc, err := transcode.NewEncoder(transcode.PlaybackBitDepth)
			if err != nil {
				return err
			}
			data, err := enc.Encode(buf)
			if err != nil {
				return err
			}
			if err := os.WriteFile(args[1], data, 0o644); err != nil {
				return fmt.Errorf("failed to write %s: %w", args[1], err)
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "Wrote %s (%d samples at %d Hz)\n", args[1], buf.Len(), buf.SampleRate())
			return nil
		},
	}
	cmd.Flags().BoolVar(&source, "source", false, "export the recording as uploaded instead of the denoised signal")
	return cmd
}

type caseList []archive.Summary

func (l caseList) Table(s styles) string {
	if len(l) == 0 {
		return s.Dim.Render("No cases archived yet.")
	}
	rows := make([][]string, 0, len(l))
	for _, c := range l {
		label := string(c.Label)
		if label == "" {
			label = "-"
		}
		rows = append(rows, []string{
			c.ID,
			c.Name,
			fmt.Sprintf("%d", c.Age),
			string(c.Gender),
			formatDuration(c.Duration),
			label,
			c.CreatedAt.Local().Format(time.DateTime),
		})
	}
	return renderTable(s, []string{"ID", "Name", "Age", "Gender", "Length", "Label", "Created"}, rows)
}

// CaseDetail is the printable form of one archived case.
type CaseDetail struct {
	archive.PatientCase `yaml:",inline"`
}

func caseDetail(pc archive.PatientCase) *CaseDetail {
	return &CaseDetail{PatientCase: pc}
}

func (d *CaseDetail) Table(s styles) string {
	label := s.Dim.Render("-")
	if d.Label != "" {
		label = s.Title.Render(string(d.Label))
	}
	pairs := [][2]string{
		{"ID", d.ID},
		{"Name", d.Metadata.Name},
		{"Age", fmt.Sprintf("%d", d.Metadata.Age)},
		{"Gender", string(d.Metadata.Gender)},
		{"Created", d.CreatedAt.Local().Format(time.DateTime)},
		{"Recording", fmt.Sprintf("%s, %d samples at %d Hz", formatDuration(d.Duration()), d.NumSamples, d.SampleRate)},
		{"Blob", d.BlobKey},
		{"Label", label},
	}
	if d.Metadata.Notes != "" {
		pairs = append(pairs, [2]string{"Notes", d.Metadata.Notes})
	}
	out := renderPairs(s, pairs)
	if d.Features != nil {
		rows := make([][]string, 0, len(d.Features.Means))
		for _, k := range d.Features.Kinds() {
			rows = append(rows, []string{k, formatVector(d.Features.Means[k], 2)})
		}
		out += "\n" + renderTable(s, []string{"Feature", "Mean"}, rows)
	}
	return out
}
