package cli

import (
	"errors"
	"fmt"
	"io"

	"cuelang.org/go/cue/token"
	"github.com/spf13/cobra"

	"github.com/roach88/gridroute/internal/compiler"
)

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid   bool                       `json:"valid"`
	Layouts []string                   `json:"layouts,omitempty"`
	Weights []string                   `json:"weights,omitempty"`
	Errors  []compiler.ValidationError `json:"errors,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <layouts-dir>",
		Short: "Validate layouts and weight tables",
		Long: `Compile the CUE layouts and weight tables in a directory and check them.

Layouts must own every cell of their global index space exactly once and
place at most one DE on each PET. Weight tables must have non-negative
indices, finite factors and no repeated (dst, src) pairs.

Examples:
  routectl validate ./layouts
  routectl validate ./layouts --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, layoutsDir string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)

	loadResult, loadErrors := LoadLayouts(layoutsDir, LoadModeCollectAll)
	if loadResult == nil {
		var loadErr *LoadError
		if errors.As(loadErrors[0], &loadErr) {
			return outputValidateError(formatter, loadErr.Code, loadErr.Message, nil)
		}
		return outputValidateError(formatter, ErrCodeGeneric, loadErrors[0].Error(), nil)
	}

	formatter.VerboseLog("Found %d CUE file(s) in %s", loadResult.FileCount, layoutsDir)

	validationErrors := append(validateBundle(loadResult.Bundle, formatter), asValidationErrors(loadErrors)...)

	result := ValidationResult{
		Valid:   len(validationErrors) == 0,
		Layouts: loadResult.Bundle.LayoutNames(),
		Weights: loadResult.Bundle.WeightNames(),
		Errors:  validationErrors,
	}
	if !result.Valid {
		return outputValidationErrors(formatter, result)
	}
	return outputValidateSuccess(formatter, result)
}

// validateBundle validates every compiled layout and weight table. Error
// fields are prefixed with the definition's CUE path.
func validateBundle(b *compiler.Bundle, formatter *OutputFormatter) []compiler.ValidationError {
	var all []compiler.ValidationError

	for _, name := range b.LayoutNames() {
		formatter.VerboseLog("Validating layout: %s", name)
		for _, e := range compiler.Validate(b.Layouts[name]) {
			e.Field = "layout." + name + "." + e.Field
			all = append(all, e)
		}
	}
	for _, name := range b.WeightNames() {
		formatter.VerboseLog("Validating weights: %s", name)
		for _, e := range compiler.Validate(b.Weights[name]) {
			e.Field = "weights." + name + "." + e.Field
			all = append(all, e)
		}
	}
	return all
}

// lineOf extracts the line number from a token.Pos.
func lineOf(pos token.Pos) int {
	if pos.IsValid() {
		return pos.Line()
	}
	return 0
}

func outputValidateSuccess(formatter *OutputFormatter, result ValidationResult) error {
	if formatter.Format == "json" {
		return formatter.Success(result)
	}

	fmt.Fprintf(formatter.Writer, "✓ All layouts valid (%d layouts, %d weight tables)\n",
		len(result.Layouts), len(result.Weights))
	return nil
}

// outputValidateError reports a directory that could not be compiled at all.
func outputValidateError(formatter *OutputFormatter, code, message string, details interface{}) error {
	_ = formatter.Error(code, message, details)
	return NewExitError(ExitCommandError, fmt.Sprintf("%s: %s", code, message))
}

func outputValidationErrors(formatter *OutputFormatter, result ValidationResult) error {
	errs := result.Errors
	failed := NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(errs)))

	if formatter.Format == "json" {
		if err := formatter.Report(CLIResponse{
			Status: "error",
			Data:   result,
			Error: &CLIError{
				Code:    errs[0].Code,
				Message: errs[0].Message,
			},
		}); err != nil {
			return err
		}
		return failed
	}

	fmt.Fprintln(formatter.Writer, "✗ Validation failed")
	fmt.Fprintln(formatter.Writer)

	for _, err := range errs {
		if err.Line > 0 {
			fmt.Fprintf(formatter.Writer, "line %d\n", err.Line)
		}
		fmt.Fprintf(formatter.Writer, "  %s: %s: %s\n\n", err.Code, err.Field, err.Message)
	}
	return failed
}

// ValidateLayoutsDir validates every layout and weight table in a
// directory. Compile errors are reported as validation errors.
func ValidateLayoutsDir(layoutsDir string) ([]compiler.ValidationError, error) {
	loadResult, loadErrors := LoadLayouts(layoutsDir, LoadModeCollectAll)
	if loadResult == nil {
		return nil, loadErrors[0]
	}

	silent := &OutputFormatter{Format: "text", Writer: io.Discard}
	return append(validateBundle(loadResult.Bundle, silent), asValidationErrors(loadErrors)...), nil
}

// asValidationErrors reports compile errors of individual definitions
// alongside validation errors.
func asValidationErrors(loadErrors []error) []compiler.ValidationError {
	var out []compiler.ValidationError
	for _, err := range loadErrors {
		var loadErr *LoadError
		if errors.As(err, &loadErr) {
			out = append(out, compiler.ValidationError{
				Field:   "load",
				Message: loadErr.Message,
				Code:    loadErr.Code,
				Line:    lineOf(loadErr.Pos),
			})
		}
	}
	return out
}
