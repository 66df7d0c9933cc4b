package ui

import (
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/thesavant42/arxived/internal/models"
)

// sanitizeInput removes null bytes and other invisible control characters from input
func sanitizeInput(s string) string {
	// Keep printable characters and normal whitespace (space, tab, newline)
	result := strings.Map(func(r rune) rune {
		if r == 0 || (r < 32 && r != '\t' && r != '\n' && r != '\r') {
			return -1
		}
		return r
	}, s)
	return result
}

// QueryInput holds raw form values before validation
type QueryInput struct {
	Topic string
	Limit string
	Start string
	End   string
}

// PromptForQuery asks for the fields of in that are still empty and returns
// the validated query. Values already set are kept as defaults.
func PromptForQuery(in QueryInput, maxLimit int) (models.Query, error) {
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Topic").
				Description("A topic or author of interest").
				Placeholder("Machine Learning").
				Value(&in.Topic).
				Validate(func(s string) error {
					if strings.TrimSpace(s) == "" {
						return errors.New("Please enter a topic")
					}
					return nil
				}),
			huh.NewInput().
				Title(fmt.Sprintf("Result Limit (MAX %d)", maxLimit)).
				Placeholder(fmt.Sprintf("%d", models.DefaultLimit)).
				Value(&in.Limit),
			huh.NewInput().
				Title("Start Date").
				Description("Optional (Ex: 1/01/2020)").
				Value(&in.Start),
			huh.NewInput().
				Title("End Date").
				Description("Optional (Ex: 5/01/2020)").
				Value(&in.End).
				Validate(func(string) error {
					// Cross-field checks run once every value is in
					_, err := parseInput(in, maxLimit)
					return err
				}),
		),
	).WithTheme(NewAppTheme())

	if err := form.Run(); err != nil {
		return models.Query{}, fmt.Errorf("prompt cancelled: %w", err)
	}

	return parseInput(in, maxLimit)
}

func parseInput(in QueryInput, maxLimit int) (models.Query, error) {
	limit := strings.TrimSpace(in.Limit)
	if limit == "" {
		limit = fmt.Sprintf("%d", models.DefaultLimit)
	}
	return models.ParseQuery(
		sanitizeInput(in.Topic),
		sanitizeInput(limit),
		sanitizeInput(in.Start),
		sanitizeInput(in.End),
		maxLimit,
	)
}

// ResolveQuery validates in directly when it is complete enough, prompting only
// when interactive and the topic is missing.
func ResolveQuery(in QueryInput, maxLimit int, interactive bool) (models.Query, error) {
	if strings.TrimSpace(in.Topic) == "" && interactive {
		return PromptForQuery(in, maxLimit)
	}
	q, err := parseInput(in, maxLimit)
	var verr *models.ValidationError
	if errors.As(err, &verr) && interactive {
		return PromptForQuery(in, maxLimit)
	}
	return q, err
}

// ConfirmOverwrite asks before replacing an existing export file
func ConfirmOverwrite(path string) (bool, error) {
	var confirm bool

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title(fmt.Sprintf("Overwrite %s?", path)).
				Description("The file already exists").
				Affirmative("Yes, overwrite").
				Negative("Cancel").
				Value(&confirm),
		),
	).WithTheme(NewAppTheme())

	if err := form.Run(); err != nil {
		return false, err
	}

	return confirm, nil
}
