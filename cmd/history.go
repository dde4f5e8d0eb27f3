package cmd

import (
	"strings"

	"charm.land/lipgloss/v2"
	"github.com/spf13/cobra"

	"github.com/abhisek/grasss/internal/ui/theme"
)

var historyCmd = &cobra.Command{
	Use:   "history <username>",
	Short: "List saved session summaries, newest first",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		subject, _ := cmd.Flags().GetString("subject")
		limit, _ := cmd.Flags().GetInt("limit")

		e, err := openEnv(cmd, false)
		if err != nil {
			return err
		}
		defer e.Close()

		ctx := cmd.Context()
		p, err := e.learner(ctx, args[0])
		if err != nil {
			return err
		}
		summaries, err := e.tutor.History(ctx, p, subject, limit)
		if err != nil {
			return err
		}
		if len(summaries) == 0 {
			lipgloss.Println(theme.Hint.Render("Aucun résumé enregistré."))
			return nil
		}

		for i, s := range summaries {
			if i > 0 {
				lipgloss.Println()
			}
			heading := s.Subject
			if s.Chapter != "" {
				heading += " · " + s.Chapter
			}
			lipgloss.Println(theme.Subtitle.Render(heading) + "  " +
				theme.Label.Render(s.ConversationDate.Local().Format("2006-01-02")))
			lipgloss.Println(theme.Body.Render(s.Text))
			if len(s.KeyConcepts) > 0 {
				lipgloss.Println(theme.Hint.Render("Concepts : " + strings.Join(s.KeyConcepts, ", ")))
			}
		}
		return nil
	},
}

func init() {
	historyCmd.Flags().StringP("subject", "s", "", "Only show this subject")
	historyCmd.Flags().IntP("limit", "n", 10, "Number of summaries to show (0 for all)")
}
