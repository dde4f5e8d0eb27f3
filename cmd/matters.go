package cmd

import (
	"strconv"

	"charm.land/lipgloss/v2"
	"github.com/spf13/cobra"

	"github.com/abhisek/grasss/internal/ui/theme"
)

var mattersCmd = &cobra.Command{
	Use:   "matters <username>",
	Short: "List a learner's matters and the subjects holding retrieval history",
	Long: `List a learner's matters and the subjects holding retrieval history.

With --objective, first record the learner's goal on the matter named by
--subject and --chapter. The matter is created when absent; an empty
objective clears it.`,
	Example: `  grasss matters awa
  grasss matters awa -s SVT -c Génétique --objective "Réussir le BEPC"`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
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
		if cmd.Flags().Changed("objective") {
			subject, _ := cmd.Flags().GetString("subject")
			chapter, _ := cmd.Flags().GetString("chapter")
			objective, _ := cmd.Flags().GetString("objective")
			m, err := e.tutor.SetObjective(ctx, p, subject, chapter, objective)
			if err != nil {
				return err
			}
			lipgloss.Println(theme.Correct.Render("Objective saved on matter " + strconv.Itoa(m.ID) + "."))
		}

		matters, err := e.store.MatterRepo().ListMatters(ctx, p.ID)
		if err != nil {
			return err
		}
		subjects, err := e.tutor.Subjects(ctx, p)
		if err != nil {
			return err
		}

		if len(matters) == 0 {
			lipgloss.Println(theme.Hint.Render("No matters yet."))
		} else {
			rows := make([][]string, 0, len(matters))
			for _, m := range matters {
				rows = append(rows, []string{strconv.Itoa(m.ID), m.Subject, m.Chapter, m.Difficulty,
					m.Objective, m.CreatedAt.Local().Format("2006-01-02")})
			}
			lipgloss.Println(theme.Table([]string{"ID", "Subject", "Chapter", "Difficulty", "Objective", "Created"}, rows))
		}

		if len(subjects) > 0 {
			lipgloss.Println()
			lipgloss.Println(theme.Subtitle.Render("Retrieval history"))
			lipgloss.Print(theme.Bullets(subjects))
		}
		return nil
	},
}

func init() {
	mattersCmd.Flags().StringP("subject", "s", "", "Subject of the matter to update")
	mattersCmd.Flags().StringP("chapter", "c", "", "Chapter of the matter to update")
	mattersCmd.Flags().String("objective", "", "Learner goal to record on the matter")
}
