package cmd

import (
	"fmt"
	"strconv"

	"charm.land/lipgloss/v2"
	"github.com/spf13/cobra"

	"github.com/abhisek/grasss/internal/store"
	"github.com/abhisek/grasss/internal/tutor"
	"github.com/abhisek/grasss/internal/ui/theme"
)

var learnerCmd = &cobra.Command{
	Use:   "learner",
	Short: "Manage learner accounts",
}

var learnerAddCmd = &cobra.Command{
	Use:   "add <username>",
	Short: "Register a learner",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		firstName, _ := cmd.Flags().GetString("first-name")
		classLevel, _ := cmd.Flags().GetString("class-level")

		e, err := openEnv(cmd, false)
		if err != nil {
			return err
		}
		defer e.Close()

		p, prof, err := e.tutor.Register(cmd.Context(), tutor.Registration{
			Username:   args[0],
			FirstName:  firstName,
			ClassLevel: classLevel,
		})
		if err != nil {
			return err
		}
		lipgloss.Println(theme.Correct.Render("Learner registered: ") + theme.Body.Render(p.DisplayName()))
		renderLearner(p, prof)
		return nil
	},
}

var learnerShowCmd = &cobra.Command{
	Use:   "show <username>",
	Short: "Show a learner's profile",
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
		prof, err := e.store.LearnerRepo().Profile(ctx, p.ID)
		if err != nil {
			return err
		}
		renderLearner(p, prof)
		return nil
	},
}

var learnerListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered accounts",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer s.Close()

		principals, err := s.LearnerRepo().ListPrincipals(cmd.Context())
		if err != nil {
			return err
		}
		if len(principals) == 0 {
			lipgloss.Println(theme.Hint.Render("No learners yet. Register one with: grasss learner add <username>"))
			return nil
		}
		rows := make([][]string, 0, len(principals))
		for _, p := range principals {
			rows = append(rows, []string{strconv.Itoa(p.ID), p.Username, p.FirstName, p.Role,
				p.CreatedAt.Local().Format("2006-01-02")})
		}
		lipgloss.Println(theme.Table([]string{"ID", "Username", "First name", "Role", "Created"}, rows))
		return nil
	},
}

func renderLearner(p *store.Principal, prof *store.LearnerProfile) {
	lipgloss.Println(theme.Field("Username", p.Username))
	lipgloss.Println(theme.Field("Role", p.Role))
	if prof == nil {
		lipgloss.Println(theme.Warning.Render("No learner profile."))
		return
	}
	classLevel := prof.ClassLevel
	if classLevel == "" {
		classLevel = "(not set)"
	}
	lipgloss.Println(theme.Field("Class", classLevel))
	lipgloss.Println(theme.Field("Level", prof.Level))
	lipgloss.Println(theme.Field("Learning style", prof.LearningStyle))

	diag := "pending"
	switch {
	case prof.DiagnosticCompleted && prof.DiagnosticDate != nil:
		diag = "completed on " + prof.DiagnosticDate.Local().Format("2006-01-02")
	case prof.DiagnosticCompleted:
		diag = "completed"
	case len(prof.PendingQuestions) > 0:
		diag = "awaiting answers"
	}
	lipgloss.Println(theme.Field("Diagnostic", diag))
}

func init() {
	learnerAddCmd.Flags().String("first-name", "", "Learner's first name")
	learnerAddCmd.Flags().String("class-level", "", fmt.Sprintf("Class level, one of %q", tutor.GradeLevels))

	learnerCmd.AddCommand(learnerAddCmd)
	learnerCmd.AddCommand(learnerShowCmd)
	learnerCmd.AddCommand(learnerListCmd)
}
