package cmd

import (
	"fmt"

	"charm.land/lipgloss/v2"
	"github.com/spf13/cobra"

	"github.com/abhisek/grasss/internal/ui/theme"
)

var resetCmd = &cobra.Command{
	Use:   "reset <username>",
	Short: "Reset a learner's diagnostic and personal context",
	Long: `Return the learner to the pre-diagnosis state: the diagnostic is marked
pending, pending questions are dropped and the personal retrieval context is
rebuilt from the profile alone. Matters, summaries and per-subject history
are kept.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		yes, _ := cmd.Flags().GetBool("yes")
		if !yes {
			return fmt.Errorf("refusing to reset %q without --yes", args[0])
		}

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
		if err := e.tutor.Reset(ctx, p); err != nil {
			return fmt.Errorf("reset %s: %w", p.Username, err)
		}
		lipgloss.Println(theme.Correct.Render("Reset " + p.DisplayName() + ". Run a new diagnostic to rebuild the profile."))
		return nil
	},
}

func init() {
	resetCmd.Flags().BoolP("yes", "y", false, "Confirm the reset")
}
