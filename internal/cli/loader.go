package cli

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/edtacey/jsonmapper/internal/document"
	"github.com/edtacey/jsonmapper/internal/ruleset"
)

// Error code constants for CLI responses. Definition load failures carry
// the ruleset.LoadError codes (E001-E007); validation failures carry the
// validator codes (E2xx).
const (
	ErrCodeInput   = "E010" // unreadable or malformed input document
	ErrCodeConfig  = "E011" // invalid configuration
	ErrCodeStore   = "E020" // database open/read/write failure
	ErrCodeProcess = "E030" // document rejected by the pipeline
	ErrCodeServe   = "E040" // HTTP server failure
)

// loadDefinitions loads a bundle and reports load errors as command
// errors.
func loadDefinitions(f *OutputFormatter, path string) (*ruleset.Bundle, error) {
	b, err := ruleset.Load(path)
	if err == nil {
		f.VerboseLog("Loaded %d entit(ies) and %d shared value mapping(s) from %s",
			len(b.Entities), len(b.ValueMappings), path)
		return b, nil
	}
	var le *ruleset.LoadError
	if errors.As(err, &le) {
		_ = f.Error(le.Code, le.Error(), nil)
		return nil, WrapExitError(ExitCommandError, "failed to load definitions", err)
	}
	return nil, f.Fail(ExitCommandError, ruleset.ErrCodeGeneric, "failed to load definitions", err)
}

// readInput reads path, or stdin when path is "-".
func readInput(cmd *cobra.Command, path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(cmd.InOrStdin())
	}
	return os.ReadFile(path)
}

// readDocument reads one JSON object.
func readDocument(cmd *cobra.Command, path string) (map[string]any, error) {
	data, err := readInput(cmd, path)
	if err != nil {
		return nil, err
	}
	return document.DecodeObject(data)
}

// readDocuments reads a JSON object or an array of objects.
func readDocuments(cmd *cobra.Command, path string) ([]map[string]any, bool, error) {
	data, err := readInput(cmd, path)
	if err != nil {
		return nil, false, err
	}
	v, err := document.Decode(data)
	if err != nil {
		return nil, false, err
	}
	switch val := v.(type) {
	case map[string]any:
		return []map[string]any{val}, false, nil
	case []any:
		docs := make([]map[string]any, len(val))
		for i, e := range val {
			obj, ok := e.(map[string]any)
			if !ok {
				return nil, true, fmt.Errorf("element %d: expected object, got %s", i, document.TypeName(e))
			}
			docs[i] = obj
		}
		return docs, true, nil
	default:
		return nil, false, fmt.Errorf("expected object or array, got %s", document.TypeName(v))
	}
}
