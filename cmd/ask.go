package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"charm.land/lipgloss/v2"
	"github.com/spf13/cobra"

	"github.com/abhisek/grasss/internal/tutor"
	"github.com/abhisek/grasss/internal/ui/theme"
)

var askCmd = &cobra.Command{
	Use:   "ask [message]",
	Short: "Send one request to the tutor",
	Long: `Send one request to the tutor on behalf of a learner.

Actions: tutor (default), diagnostic, exercise, remediation, summary.
A diagnostic runs in two steps: first without answers to receive the
questions, then again with one --answer per question.`,
	Example: `  grasss ask -u awa -s Maths "Comment factoriser x² - 9 ?"
  grasss ask -u awa -s Maths -a diagnostic --class-level "3ème"
  grasss ask -u awa -s Maths -a diagnostic --answer 1="x = 3" --answer 2="Je ne sais pas"
  grasss ask -u awa -s Maths -c Fractions -a exercise --difficulty facile`,
	RunE: func(cmd *cobra.Command, args []string) error {
		req, err := askRequest(cmd, args)
		if err != nil {
			return err
		}
		username, _ := cmd.Flags().GetString("user")
		asJSON, _ := cmd.Flags().GetBool("json")

		e, err := openEnv(cmd, true)
		if err != nil {
			return err
		}
		defer e.Close()

		ctx := cmd.Context()
		principal, err := e.learner(ctx, username)
		if err != nil {
			return err
		}

		resp, err := e.tutor.Handle(ctx, principal, req)
		if err != nil {
			var fail *tutor.Failure
			if asJSON && errors.As(err, &fail) {
				_ = writeJSON(map[string]string{"error": fail.Reason, "kind": string(fail.Kind), "message": fail.Message})
			}
			return err
		}
		if asJSON {
			return writeJSON(resp)
		}
		renderResponse(resp)
		return nil
	},
}

func askRequest(cmd *cobra.Command, args []string) (tutor.Request, error) {
	f := cmd.Flags()
	req := tutor.Request{}
	req.Action, _ = f.GetString("action")
	req.Subject, _ = f.GetString("subject")
	req.Chapter, _ = f.GetString("chapter")
	req.Difficulty, _ = f.GetString("difficulty")
	req.ClassLevel, _ = f.GetString("class-level")
	req.FailureCount, _ = f.GetInt("failures")
	req.Message, _ = f.GetString("message")
	if req.Message == "" && len(args) > 0 {
		req.Message = strings.Join(args, " ")
	}

	answers, _ := f.GetStringArray("answer")
	if len(answers) > 0 {
		req.StudentAnswers = make(map[string]any, len(answers))
		for _, a := range answers {
			id, text, ok := strings.Cut(a, "=")
			id = strings.TrimSpace(id)
			if !ok || id == "" {
				return req, fmt.Errorf("invalid --answer %q: want <question id>=<answer>", a)
			}
			req.StudentAnswers[id] = text
		}
	}
	return req, nil
}

func writeJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}

func renderResponse(resp *tutor.Response) {
	switch resp.Status {
	case tutor.StatusQuestionsPosed:
		lipgloss.Println(theme.Title.Render("Diagnostic"))
		for _, q := range resp.Questions {
			lipgloss.Println(theme.Subtitle.Render(q.ID+".") + " " + theme.Body.Render(q.Text))
		}
		lipgloss.Println()
		lipgloss.Println(theme.Hint.Render(resp.Message))

	case tutor.StatusDiagnosticCompleted:
		lipgloss.Println(theme.Correct.Render(resp.Message))
		renderMeta(resp.Metadata, "niveau_global", "style_apprentissage")
		if recs := stringList(resp.Analysis["recommandations"]); len(recs) > 0 {
			lipgloss.Println()
			lipgloss.Println(theme.Subtitle.Render("Recommandations"))
			lipgloss.Print(theme.Bullets(recs))
		}

	case tutor.StatusExerciseGenerated:
		ex := resp.Exercise
		lipgloss.Println(theme.Title.Render("Exercice"))
		lipgloss.Println(theme.Body.Render(ex.Question))
		lipgloss.Println()
		for _, o := range ex.Options {
			lipgloss.Println("  " + theme.Subtitle.Render(o.ID+")") + " " + o.Text)
		}
		if ex.Hint != "" {
			lipgloss.Println()
			lipgloss.Println(theme.Hint.Render("Indice : " + ex.Hint))
		}
		renderMeta(resp.Metadata, "chapitre", "difficulty")

	case tutor.StatusTutorResponse:
		lipgloss.Println(theme.Card.Render(resp.Content))

	case tutor.StatusRemediationProvided:
		lipgloss.Println(theme.Title.Render("Remédiation"))
		if content, _ := resp.Remediation["content"].(string); content != "" {
			lipgloss.Println(theme.Body.Render(content))
		} else {
			out, _ := json.MarshalIndent(resp.Remediation, "", "  ")
			fmt.Println(string(out))
		}
		renderMeta(resp.Metadata, "failure_count")

	case tutor.StatusSummarySaved:
		lipgloss.Println(theme.Correct.Render("Résumé enregistré"))
		if text, _ := resp.Summary["resume_court"].(string); text != "" {
			lipgloss.Println(theme.Body.Render(text))
		}
		if concepts := stringList(resp.Summary["concepts_couverts"]); len(concepts) > 0 {
			lipgloss.Print(theme.Bullets(concepts))
		}
		renderMeta(resp.Metadata, "id", "document_id")

	default:
		_ = writeJSON(resp)
	}
}

func renderMeta(meta map[string]any, keys ...string) {
	if len(keys) == 0 {
		for k := range meta {
			keys = append(keys, k)
		}
		sort.Strings(keys)
	}
	for _, k := range keys {
		if v, ok := meta[k]; ok && v != nil && v != "" {
			lipgloss.Println(theme.Field(k, fmt.Sprint(v)))
		}
	}
}

func stringList(v any) []string {
	list, _ := v.([]any)
	out := make([]string, 0, len(list))
	for _, it := range list {
		if s, ok := it.(string); ok && s != "" {
			out = append(out, s)
		}
	}
	return out
}

func init() {
	askFlags(askCmd)
	_ = askCmd.MarkFlagRequired("user")
}

func askFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringP("user", "u", "", "Learner username")
	f.StringP("subject", "s", "", "Subject (matière)")
	f.StringP("chapter", "c", "", "Chapter (chapitre)")
	f.StringP("action", "a", "", "Action: tutor, diagnostic, exercise, remediation, summary")
	f.StringP("difficulty", "d", "", "Difficulty for a new matter: easy, medium, hard, expert")
	f.StringP("message", "m", "", "Message to the tutor (or pass it as arguments)")
	f.String("class-level", "", `Class level for the diagnostic ("3ème" or "Terminale D")`)
	f.StringArray("answer", nil, "Diagnostic answer as <question id>=<answer> (repeatable)")
	f.Int("failures", 0, "Failed attempts before remediation (default 3 when unset)")
	f.Bool("json", false, "Print the raw response as JSON")
}
