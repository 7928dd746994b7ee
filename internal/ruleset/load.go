package ruleset

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/load"
	"cuelang.org/go/cue/token"
	json "github.com/goccy/go-json"
	"gopkg.in/yaml.v3"

	"github.com/edtacey/jsonmapper/internal/valuemap"
)

// Load error codes.
const (
	ErrCodeGeneric     = "E001" // generic error
	ErrCodeScanError   = "E002" // directory scan error
	ErrCodeNoFiles     = "E003" // no definition files found
	ErrCodeLoadFailed  = "E004" // CUE load failed
	ErrCodeNotFound    = "E005" // path not found
	ErrCodeBuildFailed = "E006" // CUE build failed
	ErrCodeDecode      = "E007" // definition does not decode
)

// LoadError reports a definition that could not be loaded.
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

// Load reads definitions from path: a directory is loaded as a CUE
// package, a file by its extension.
func Load(path string) (*Bundle, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: err.Error()}
	}
	if info.IsDir() {
		return LoadCUEDir(path)
	}
	return LoadFile(path)
}

// LoadFile reads a YAML (.yaml, .yml) or JSON (.json) definition file.
func LoadFile(path string) (*Bundle, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: err.Error()}
	}
	var b Bundle
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		err = json.Unmarshal(data, &b)
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &b)
	default:
		return nil, &LoadError{Code: ErrCodeGeneric, Message: fmt.Sprintf("unsupported definition file %s", path)}
	}
	if err != nil {
		return nil, &LoadError{Code: ErrCodeDecode, Message: fmt.Sprintf("%s: %v", path, err)}
	}
	if err := b.finish(); err != nil {
		return nil, &LoadError{Code: ErrCodeDecode, Message: fmt.Sprintf("%s: %v", path, err)}
	}
	return &b, nil
}

// LoadCUEDir loads the CUE package in dir. Entities are the fields of the
// top-level "entity" struct, keyed by id; shared value mappings are the
// fields of "valueMapping".
//
//	entity: orders: {
//		name: "Order"
//		rules: [{sourcePath: "orderId", targetPath: "id"}]
//	}
func LoadCUEDir(dir string) (*Bundle, error) {
	files, err := FindCUEFiles(dir)
	if err != nil {
		return nil, &LoadError{Code: ErrCodeScanError, Message: fmt.Sprintf("error scanning directory: %v", err)}
	}
	if len(files) == 0 {
		return nil, &LoadError{Code: ErrCodeNoFiles, Message: fmt.Sprintf("no CUE files found in %s", dir)}
	}

	ctx := cuecontext.New()
	instances := load.Instances([]string{"."}, &load.Config{Dir: dir})
	if len(instances) == 0 {
		return nil, &LoadError{Code: ErrCodeLoadFailed, Message: "no CUE instances loaded"}
	}
	inst := instances[0]
	if inst.Err != nil {
		return nil, &LoadError{Code: ErrCodeLoadFailed, Message: fmt.Sprintf("loading CUE files: %v", inst.Err)}
	}
	value := ctx.BuildInstance(inst)
	if err := value.Err(); err != nil {
		return nil, &LoadError{Code: ErrCodeBuildFailed, Message: cueerrors.Details(err, nil)}
	}

	var b Bundle
	err = eachField(value, "entity", func(label string, v cue.Value) error {
		var e Entity
		if err := decode(v, &e); err != nil {
			return err
		}
		if e.ID == "" {
			e.ID = label
		}
		b.Entities = append(b.Entities, &e)
		return nil
	})
	if err != nil {
		return nil, err
	}
	err = eachField(value, "valueMapping", func(label string, v cue.Value) error {
		var m valuemap.ValueMapping
		if err := decode(v, &m); err != nil {
			return err
		}
		if m.ID == "" {
			m.ID = label
		}
		b.ValueMappings = append(b.ValueMappings, &m)
		return nil
	})
	if err != nil {
		return nil, err
	}

	if len(b.Entities) == 0 && len(b.ValueMappings) == 0 {
		return nil, &LoadError{Code: ErrCodeGeneric, Message: "no entities or value mappings found"}
	}
	if err := b.finish(); err != nil {
		return nil, &LoadError{Code: ErrCodeDecode, Message: err.Error()}
	}
	return &b, nil
}

// eachField calls fn for every field of the struct at path, in order.
func eachField(root cue.Value, path string, fn func(label string, v cue.Value) error) error {
	v := root.LookupPath(cue.ParsePath(path))
	if !v.Exists() {
		return nil
	}
	iter, err := v.Fields()
	if err != nil {
		return &LoadError{Code: ErrCodeGeneric, Message: fmt.Sprintf("iterating %s: %v", path, err), Pos: v.Pos()}
	}
	for iter.Next() {
		if err := fn(iter.Selector().Unquoted(), iter.Value()); err != nil {
			return &LoadError{
				Code:    ErrCodeDecode,
				Message: fmt.Sprintf("%s.%s: %v", path, iter.Selector(), err),
				Pos:     iter.Value().Pos(),
			}
		}
	}
	return nil
}

// decode exports a concrete CUE value as JSON and decodes it into out, so
// that CUE definitions go through the same codecs as JSON files.
func decode(v cue.Value, out any) error {
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return fmt.Errorf("%s", cueerrors.Details(err, nil))
	}
	data, err := v.MarshalJSON()
	if err != nil {
		return err
	}
	return json.Unmarshal(data, out)
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
