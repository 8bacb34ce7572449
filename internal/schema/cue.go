package schema

import (
	"fmt"
	"os"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
)

// LoadCUE evaluates a CUE file and decodes its top-level "entities" list:
//
//	entities: [{name: "Customer", fields: [{name: "Name", type: "String", length: 50}]}]
func LoadCUE(path string) (*Schema, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read schema: %w", err)
	}
	return CompileCUE(src, path)
}

// CompileCUE is LoadCUE for in-memory sources.
func CompileCUE(src []byte, filename string) (*Schema, error) {
	ctx := cuecontext.New()
	val := ctx.CompileBytes(src, cue.Filename(filename))
	if val.Err() != nil {
		return nil, fmt.Errorf("building schema: %w", val.Err())
	}
	entities := val.LookupPath(cue.ParsePath("entities"))
	if !entities.Exists() {
		return nil, fmt.Errorf("building schema: %s has no entities", filename)
	}
	var desc Description
	if err := entities.Decode(&desc); err != nil {
		return nil, fmt.Errorf("decoding schema: %w", err)
	}
	return New(desc), nil
}
