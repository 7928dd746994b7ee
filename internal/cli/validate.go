package cli

import (
	"fmt"

	json "github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/edtacey/jsonmapper/internal/validate"
)

// EntityValidation is the validation result of one entity.
type EntityValidation struct {
	Entity string `json:"entity"`
	validate.Result
}

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid    bool               `json:"valid"`
	Entities []EntityValidation `json:"entities"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <definitions>",
		Short: "Validate entity mapping rules",
		Long: `Validate the mapping rules of every entity in a definitions file or CUE
directory against the entity's source and target schemas.

Checks path existence (with suggestions), type compatibility, kind-specific
configuration, value mapping references and completeness of required target
properties.

Exit codes:
  0 - All entities valid
  1 - One or more validation errors
  2 - Definitions could not be loaded`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)

	bundle, err := loadDefinitions(formatter, path)
	if err != nil {
		return err
	}

	result := ValidationResult{Valid: true, Entities: []EntityValidation{}}
	failed := 0
	for _, e := range bundle.Entities {
		formatter.VerboseLog("Validating entity: %s", e.ID)
		res := e.Check(bundle.ValueMappings...)
		if !res.Valid {
			result.Valid = false
			failed += len(res.Errors)
		}
		result.Entities = append(result.Entities, EntityValidation{Entity: e.ID, Result: res})
	}

	if result.Valid {
		return outputValidateSuccess(formatter, result)
	}
	return outputValidationErrors(formatter, result, failed)
}

// outputValidateSuccess outputs successful validation results.
func outputValidateSuccess(formatter *OutputFormatter, result ValidationResult) error {
	if formatter.Format == "json" {
		return formatter.Success(result)
	}

	fmt.Fprintf(formatter.Writer, "✓ All %d entit(ies) valid\n", len(result.Entities))
	return nil
}

// outputValidationErrors outputs every error of every invalid entity.
func outputValidationErrors(formatter *OutputFormatter, result ValidationResult, count int) error {
	if formatter.Format == "json" {
		var first validate.ValidationError
		for _, ev := range result.Entities {
			if len(ev.Errors) > 0 {
				first = ev.Errors[0]
				break
			}
		}
		response := CLIResponse{
			Status: "error",
			Data:   result,
			Error: &CLIError{
				Code:    first.Code,
				Message: first.Message,
			},
		}

		encoder := json.NewEncoder(formatter.Writer)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(response); err != nil {
			return err
		}

		// Validation failures = exit code 1 (test/validation failure)
		return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", count))
	}

	fmt.Fprintln(formatter.Writer, "✗ Validation failed")
	fmt.Fprintln(formatter.Writer)

	for _, ev := range result.Entities {
		if ev.Valid {
			fmt.Fprintf(formatter.Writer, "%s: ok\n\n", ev.Entity)
			continue
		}
		fmt.Fprintf(formatter.Writer, "%s:\n", ev.Entity)
		for _, e := range ev.Errors {
			fmt.Fprintf(formatter.Writer, "  %s\n", e.Error())
			if len(e.Suggestions) > 0 {
				fmt.Fprintf(formatter.Writer, "    did you mean: %v\n", e.Suggestions)
			}
		}
		fmt.Fprintln(formatter.Writer)
	}

	// Validation failures = exit code 1 (test/validation failure)
	return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", count))
}
