package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/ashureev/assessor/internal/assessment"
	"github.com/ashureev/assessor/internal/dialog"
	"github.com/ashureev/assessor/internal/domain"
	"github.com/ashureev/assessor/internal/sheet"
)

func newImportCmd(a *app) *cobra.Command {
	var sc domain.SessionContext
	cmd := &cobra.Command{
		Use:   "import <catalogue.xlsx>",
		Short: "Create a session from a question workbook",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read workbook: %w", err)
			}
			questions, err := sheet.Parse(data)
			if err != nil {
				return err
			}
			repo, err := a.store()
			if err != nil {
				return err
			}
			id, err := dialog.NewService(repo, nil, dialog.Options{}).CreateSession(cmd.Context(), sc, questions)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%d questions\n", id, len(questions))
			return nil
		},
	}
	cmd.Flags().StringVar(&sc.ClientName, "client", "", "client name (required)")
	cmd.Flags().StringVar(&sc.ProjectName, "project", "", "project name (required)")
	cmd.Flags().StringVar(&sc.ProjectOverview, "overview", "", "free-text project overview")
	_ = cmd.MarkFlagRequired("client")
	_ = cmd.MarkFlagRequired("project")
	return cmd
}

func newExportCmd(a *app) *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "export <session-id>",
		Short: "Write a session's catalogue to an .xlsx workbook",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			repo, err := a.store()
			if err != nil {
				return err
			}
			sess, err := repo.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			data, err := sheet.Serialize(sess.Questions)
			if err != nil {
				return err
			}
			if out == "" {
				out = sheet.ExportFilename(sess.Context, time.Now())
			}
			if err := os.WriteFile(out, data, 0o644); err != nil {
				return fmt.Errorf("write workbook: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), out)
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "output", "o", "", "output path (defaults to the export filename)")
	return cmd
}

func newShowCmd(a *app) *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "show <session-id>",
		Short: "Print a session with its progress",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			repo, err := a.store()
			if err != nil {
				return err
			}
			sess, err := repo.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return writeSession(cmd.OutOrStdout(), sess, format)
		},
	}
	cmd.Flags().StringVar(&format, "format", "text", "output format: text, json or yaml")
	return cmd
}

func newNextCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "next <session-id>",
		Short: "Print the question that should be asked next",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			repo, err := a.store()
			if err != nil {
				return err
			}
			sess, err := repo.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			q := assessment.SelectNext(sess.Questions, sess.Context.ProjectOverview)
			if q == nil {
				fmt.Fprintln(cmd.OutOrStdout(), "All questions answered.")
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "#%d [%s] %s\n", q.ID, q.Category, q.Text)
			return nil
		},
	}
}

func newAnswerCmd(a *app) *cobra.Command {
	var answeredBy, comments string
	cmd := &cobra.Command{
		Use:   "answer <session-id> <question-id> <answer>",
		Short: "Record an answer for one question",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			qid, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("invalid question id %q: %w", args[1], domain.ErrMalformedInput)
			}
			repo, err := a.store()
			if err != nil {
				return err
			}
			sess, err := dialog.NewService(repo, nil, dialog.Options{}).
				UpdateAnswer(cmd.Context(), args[0], qid, args[2], answeredBy, comments)
			if err != nil {
				return err
			}
			p := sess.Progress
			fmt.Fprintf(cmd.OutOrStdout(), "answered %d/%d (%d%%)\n", p.Answered, p.Total, p.PercentComplete)
			return nil
		},
	}
	cmd.Flags().StringVar(&answeredBy, "by", "", "respondent name")
	cmd.Flags().StringVar(&comments, "comments", "", "reviewer comments")
	return cmd
}

func newListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List sessions, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			repo, err := a.store()
			if err != nil {
				return err
			}
			sessions, err := repo.List(cmd.Context())
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tCLIENT\tPROJECT\tPROGRESS\tUPDATED")
			for _, s := range sessions {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%d%%\t%s\n", s.ID, s.Context.ClientName, s.Context.ProjectName,
					s.Progress.PercentComplete, s.UpdatedAt.Format(time.RFC3339))
			}
			return tw.Flush()
		},
	}
}

func writeSession(w io.Writer, sess *domain.Session, format string) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(sess)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(sess); err != nil {
			return err
		}
		return enc.Close()
	case "text":
		p := sess.Progress
		fmt.Fprintf(w, "%s / %s (%s)\n", sess.Context.ClientName, sess.Context.ProjectName, sess.ID)
		fmt.Fprintf(w, "Progress: %d/%d answered, %d/%d mandatory, %d%%\n",
			p.Answered, p.Total, p.MandatoryAnswered, p.Mandatory, p.PercentComplete)
		for _, st := range assessment.CategoryStats(sess.Questions) {
			fmt.Fprintf(w, "  %s: %d/%d\n", st.Category, st.Answered, st.Total)
		}
		return nil
	default:
		return fmt.Errorf("unknown format %q: %w", format, domain.ErrMalformedInput)
	}
}
