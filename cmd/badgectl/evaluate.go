package main

import (
	"fmt"
	"io"
	"strconv"

	"coachhub/internal/models"
	"coachhub/internal/services"

	"github.com/spf13/cobra"
)

func newEvaluateCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "evaluate",
		Short: "Award badges to athletes whose skills meet the criteria",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "student <student-id>",
		Short: "Evaluate one athlete and persist new awards",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			studentID, err := parseStudentID(args[0])
			if err != nil {
				return err
			}
			return a.withService(cmd, func(svc services.BadgeService) error {
				result, err := svc.EvaluateStudent(cmd.Context(), studentID)
				if err != nil {
					return err
				}
				return a.printResult(cmd.OutOrStdout(), result)
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "all",
		Short: "Evaluate every athlete with skill data",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withService(cmd, func(svc services.BadgeService) error {
				summary, err := svc.EvaluateAll(cmd.Context())
				if err != nil {
					return err
				}
				if a.output == "json" {
					return a.printJSON(cmd.OutOrStdout(), summary)
				}
				printSummary(cmd.OutOrStdout(), summary)
				if summary.HasErrors() {
					return fmt.Errorf("%d athlete(s) failed evaluation", len(summary.Errors))
				}
				return nil
			})
		},
	})

	return cmd
}

func newPreviewCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "preview <student-id>",
		Short: "Show badge progress for one athlete without awarding",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			studentID, err := parseStudentID(args[0])
			if err != nil {
				return err
			}
			return a.withService(cmd, func(svc services.BadgeService) error {
				result, err := svc.PreviewStudent(cmd.Context(), studentID)
				if err != nil {
					return err
				}
				return a.printResult(cmd.OutOrStdout(), result)
			})
		},
	}
}

func parseStudentID(arg string) (int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid student id %q: must be a positive integer", arg)
	}
	return id, nil
}

func (a *app) printResult(w io.Writer, result *models.EvaluationResult) error {
	if a.output == "json" {
		return a.printJSON(w, result)
	}

	fmt.Fprintf(w, "Student %d: %d new badge(s)\n", result.StudentID, len(result.NewlyAwarded))
	for _, award := range result.NewlyAwarded {
		fmt.Fprintf(w, "  + badge %d (score %.2f)\n", award.BadgeID, award.Score)
	}
	for _, p := range result.Progress {
		mark := " "
		if p.Earned {
			mark = "*"
		}
		fmt.Fprintf(w, "  %s %-30s %3d%%\n", mark, p.BadgeName, p.Progress)
	}
	return nil
}

func printSummary(w io.Writer, summary *models.BatchSummary) {
	fmt.Fprintf(w, "Evaluated %d athlete(s), %d new badge(s) in %s\n",
		summary.StudentsEvaluated, summary.TotalNewBadges, summary.Duration)
	for _, e := range summary.Errors {
		fmt.Fprintf(w, "  ! %s\n", e)
	}
}
