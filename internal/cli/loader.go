package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"cuelang.org/go/cue/token"

	"github.com/roach88/gridroute/internal/compiler"
)

// LoadMode controls how errors are handled during layout loading.
type LoadMode int

const (
	// LoadModeFailFast keeps only the first compile error.
	LoadModeFailFast LoadMode = iota
	// LoadModeCollectAll keeps every compile error.
	LoadModeCollectAll
)

// LoadResult contains the layouts and weight tables loaded from a directory.
type LoadResult struct {
	Bundle    *compiler.Bundle
	FileCount int // Number of CUE files found
}

// LoadError represents an error that occurred during layout loading.
type LoadError struct {
	Code    string
	Message string
	Pos     token.Pos // CUE position if available
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// LoadLayouts compiles the CUE package in dir.
//
// A nil result means nothing could be compiled (missing directory, no CUE
// files, CUE syntax or unification errors). A non-nil result may still
// carry errors for individual layouts or weight tables that failed to
// compile; the rest of the bundle is usable.
func LoadLayouts(dir string, mode LoadMode) (*LoadResult, []error) {
	info, err := os.Stat(dir)
	if os.IsNotExist(err) {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("layouts directory not found: %s", dir)}}
	}
	if err != nil {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("error accessing layouts directory: %v", err)}}
	}
	if !info.IsDir() {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("not a directory: %s", dir)}}
	}

	cueFiles, err := FindCUEFiles(dir)
	if err != nil {
		return nil, []error{&LoadError{Code: ErrCodeScanError, Message: fmt.Sprintf("error scanning directory: %v", err)}}
	}
	if len(cueFiles) == 0 {
		return nil, []error{&LoadError{Code: ErrCodeNoFiles, Message: fmt.Sprintf("no CUE files found in %s", dir)}}
	}

	bundle, compileErrs := compiler.LoadDir(dir)
	if bundle == nil {
		var cErr *compiler.CompileError
		if len(compileErrs) > 0 && errors.As(compileErrs[0], &cErr) {
			return nil, []error{&LoadError{Code: ErrCodeBuildFailed, Message: cErr.Message, Pos: cErr.Pos}}
		}
		msg := "no CUE instances loaded"
		if len(compileErrs) > 0 {
			msg = compileErrs[0].Error()
		}
		return nil, []error{&LoadError{Code: ErrCodeLoadFailed, Message: msg}}
	}

	result := &LoadResult{Bundle: bundle, FileCount: len(cueFiles)}
	var errs []error
	for _, err := range compileErrs {
		errs = append(errs, convertCompileError(err))
		if mode == LoadModeFailFast {
			break
		}
	}
	return result, errs
}

// FindCUEFiles walks the directory and returns all .cue file paths.
func FindCUEFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() && filepath.Ext(path) == ".cue" {
			files = append(files, path)
		}
		return nil
	})
	return files, err
}

// convertCompileError converts a compiler error to a LoadError with position
// info. The "layout.<name>" or "weights.<name>" prefix the bundle adds is
// kept in the message.
func convertCompileError(err error) *LoadError {
	var compileErr *compiler.CompileError
	if errors.As(err, &compileErr) {
		msg := compileErr.Message
		if where := strings.TrimSuffix(strings.TrimSuffix(err.Error(), compileErr.Error()), ": "); where != "" {
			msg = where + ": " + msg
		}
		return &LoadError{
			Code:    MapFieldToErrorCode(compileErr.Field),
			Message: msg,
			Pos:     compileErr.Pos,
		}
	}
	return &LoadError{
		Code:    ErrCodeGeneric,
		Message: err.Error(),
	}
}

// Error code constants - unified across all CLI commands.
const (
	ErrCodeGeneric     = "E001" // Generic/unknown error
	ErrCodeScanError   = "E002" // Directory scan error
	ErrCodeNoFiles     = "E003" // No CUE files found
	ErrCodeLoadFailed  = "E004" // CUE load failed
	ErrCodeNotFound    = "E005" // Path not found
	ErrCodeBuildFailed = "E006" // CUE build failed
	ErrCodeWriteFailed = "E007" // File write error
)

// MapFieldToErrorCode maps a compiler error field to a validation code.
func MapFieldToErrorCode(field string) string {
	switch field {
	case "name":
		return compiler.ErrLayoutName
	case "layout", "global_count", "grid", "counts", "halo", "periodic", "blocks", "decomp_ids":
		return compiler.ErrLayoutInvalid
	case "pets":
		return compiler.ErrLayoutDEPlace
	case "rows", "triples", "dst", "src":
		return compiler.ErrWeightsIndex
	case "factor":
		return compiler.ErrWeightsFactor
	case "terms":
		return compiler.ErrWeightsEmptyRow
	case "cue":
		return ErrCodeBuildFailed
	default:
		return ErrCodeGeneric
	}
}
