package cmd

import (
	"fmt"

	"charm.land/lipgloss/v2"
	"github.com/spf13/cobra"

	"github.com/abhisek/grasss/internal/ui/theme"
)

var progressCmd = &cobra.Command{
	Use:   "progress <username>",
	Short: "Show a learner's progression per matter",
	Args:  cobra.ExactArgs(1),
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
		prog, err := e.tutor.Progress(ctx, p)
		if err != nil {
			return err
		}

		lipgloss.Println(theme.Title.Render("Progression de " + p.DisplayName()))
		if prog.Profile != nil {
			lipgloss.Println(theme.Field("Niveau", prog.Profile.Level))
		}
		if len(prog.Matters) == 0 {
			lipgloss.Println(theme.Hint.Render("Aucune matière travaillée pour l'instant."))
			return nil
		}

		rows := make([][]string, 0, len(prog.Matters))
		for _, m := range prog.Matters {
			chapter := m.Chapter
			if chapter == "" {
				chapter = "Général"
			}
			rows = append(rows, []string{
				m.Subject,
				chapter,
				m.Difficulty,
				theme.ProgressBar(m.Progression, 20) + fmt.Sprintf(" %5.1f%%", m.Progression),
				m.UpdatedAt.Local().Format("2006-01-02"),
			})
		}
		lipgloss.Println(theme.Table([]string{"Matière", "Chapitre", "Difficulté", "Progression", "Mis à jour"}, rows))
		lipgloss.Println(theme.Field("Moyenne", fmt.Sprintf("%.1f%%", prog.Average)))
		return nil
	},
}
