package main

import (
	"io"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/okian/scorestat/internal/domain/aggregate"
	"github.com/okian/scorestat/internal/domain/ranking"
	"github.com/okian/scorestat/internal/domain/score"
)

func newReportCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "report",
		Short: "Print the score-level report of every subject",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, stop, err := c.startService(cmd.Context())
			if err != nil {
				return err
			}
			defer stop()

			rep, err := svc.Report(cmd.Context())
			if err != nil {
				return err
			}
			renderReport(cmd.OutOrStdout(), rep)
			return nil
		},
	}
}

func newTopCmd(c *cli) *cobra.Command {
	var limit, minSubjects int
	cmd := &cobra.Command{
		Use:   "top",
		Short: "Print the Group A leaderboard",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, stop, err := c.startService(cmd.Context())
			if err != nil {
				return err
			}
			defer stop()

			res, err := svc.TopStudents(cmd.Context(), limit, minSubjects)
			if err != nil {
				return err
			}
			renderTop(cmd.OutOrStdout(), res)
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", ranking.DefaultLimit, "number of students to list (max 50)")
	cmd.Flags().IntVar(&minSubjects, "min-subjects", ranking.DefaultMinSubjects, "minimum Group A subjects present")
	return cmd
}

func renderReport(out io.Writer, rep aggregate.Report) {
	infoColor.Fprintln(out, "Score levels by subject")
	table := tablewriter.NewWriter(out)
	table.SetHeader([]string{"Subject", "Excellent", "Good", "Average", "Below average", "Total"})
	for _, s := range rep.Subjects {
		st := s.Statistics
		table.Append([]string{
			s.SubjectName,
			strconv.Itoa(st.Excellent),
			strconv.Itoa(st.Good),
			strconv.Itoa(st.Average),
			strconv.Itoa(st.BelowAverage),
			strconv.Itoa(st.Total),
		})
	}
	d, p := rep.Summary.OverallDistribution, rep.Summary.Percentages
	table.SetFooter([]string{
		"All",
		strconv.Itoa(d.Excellent) + " (" + pct(p.Excellent) + ")",
		strconv.Itoa(d.Good) + " (" + pct(p.Good) + ")",
		strconv.Itoa(d.Average) + " (" + pct(p.Average) + ")",
		strconv.Itoa(d.BelowAverage) + " (" + pct(p.BelowAverage) + ")",
		strconv.Itoa(rep.Summary.TotalScoresAnalyzed),
	})
	table.Render()
}

func renderTop(out io.Writer, res ranking.Result) {
	infoColor.Fprintf(out, "Top %d Group A students (min %d subjects)\n", res.Criteria.Limit, res.Criteria.MinimumSubjects)
	if len(res.TopStudents) == 0 {
		warnColor.Fprintln(out, "No eligible students")
		return
	}
	header := []string{"Rank", "Registration"}
	header = append(header, score.DisplayNames(score.GroupA)...)
	header = append(header, "Total", "Average", "Subjects")

	table := tablewriter.NewWriter(out)
	table.SetHeader(header)
	for _, e := range res.TopStudents {
		row := []string{strconv.Itoa(e.Rank), e.RegistrationNumber}
		for _, s := range score.GroupA {
			if v, ok := e.SubjectScores[s.Key()]; ok {
				row = append(row, num(v))
			} else {
				row = append(row, "-")
			}
		}
		row = append(row, num(e.TotalScore), num(e.AverageScore), strconv.Itoa(e.SubjectsCount))
		table.Append(row)
	}
	table.Render()
}

func num(v float64) string { return strconv.FormatFloat(v, 'f', 2, 64) }

func pct(v float64) string { return num(v) + "%" }
