package cmd

import (
	"errors"

	"charm.land/lipgloss/v2"
	"github.com/spf13/cobra"

	"github.com/abhisek/grasss/internal/tutor"
	"github.com/abhisek/grasss/internal/ui/theme"
)

var rootCmd = &cobra.Command{
	Use:   "grasss",
	Short: "Retrieval-augmented AI tutor",
	Long: "grasss: adaptive tutor for secondary school learners. It diagnoses a learner's level,\n" +
		"generates exercises and remediation, answers questions and keeps session summaries.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func Execute() error {
	err := rootCmd.Execute()
	if err != nil {
		lipgloss.Fprintln(rootCmd.ErrOrStderr(), theme.Incorrect.Render("Error: "+errorText(err)))
	}
	return err
}

// errorText is what the terminal shows for err. A tutor failure shows its
// learner-facing message; the cause is only in the log.
func errorText(err error) string {
	var fail *tutor.Failure
	if errors.As(err, &fail) {
		return fail.Message
	}
	return err.Error()
}

func init() {
	rootCmd.PersistentFlags().String("db", "", "Path to SQLite database file (overrides GRASSS_DB env var)")
	rootCmd.PersistentFlags().String("config", "", "Path to YAML config file (overrides GRASSS_CONFIG env var)")
	rootCmd.PersistentFlags().Bool("debug", false, "Show internal error detail and debug logs")

	rootCmd.AddCommand(askCmd)
	rootCmd.AddCommand(learnerCmd)
	rootCmd.AddCommand(progressCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(mattersCmd)
	rootCmd.AddCommand(resetCmd)
	rootCmd.AddCommand(llmCmd)
	rootCmd.AddCommand(versionCmd)
}
