package compiler

import (
	"bytes"
	_ "embed"
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"gopkg.in/yaml.v3"
)

//go:embed schema.cue
var schemaSource []byte

// cueDecoder validates CUE catalog files against the embedded schema. A
// decoder owns one CUE context and must not be shared between goroutines.
type cueDecoder struct {
	ctx  *cue.Context
	file cue.Value
}

func newCUEDecoder() (*cueDecoder, error) {
	ctx := cuecontext.New()
	schema := ctx.CompileBytes(schemaSource, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return nil, fmt.Errorf("catalog schema: %w", err)
	}
	return &cueDecoder{ctx: ctx, file: schema.LookupPath(cue.ParsePath("#File"))}, nil
}

// decode compiles one CUE file, unifies it with #File and decodes it.
func (d *cueDecoder) decode(name string, data []byte) (*File, error) {
	v := d.ctx.CompileBytes(data, cue.Filename(name))
	if err := v.Err(); err != nil {
		return nil, formatCUEError(name, err)
	}
	v = d.file.Unify(v)
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return nil, formatCUEError(name, err)
	}

	var f File
	if err := v.Decode(&f); err != nil {
		return nil, formatCUEError(name, err)
	}

	rules := v.LookupPath(cue.ParsePath("rules"))
	if rules.Exists() {
		it, err := rules.List()
		if err != nil {
			return nil, formatCUEError(name, err)
		}
		for i := 0; it.Next() && i < len(f.Rules); i++ {
			if pos := it.Value().Pos(); pos.IsValid() {
				f.Rules[i].Pos = pos.String()
			} else {
				f.Rules[i].Pos = fmt.Sprintf("%s:rules[%d]", name, i)
			}
		}
	}
	return &f, nil
}

// decodeYAML decodes a YAML catalog file, rejecting unknown fields.
func decodeYAML(name string, data []byte) (*File, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var f File
	if err := dec.Decode(&f); err != nil {
		return nil, &PatternSyntaxError{Field: "yaml", Code: ErrCatalogFile, Message: err.Error(), Pos: name}
	}
	for i := range f.Rules {
		f.Rules[i].Pos = fmt.Sprintf("%s:rules[%d]", name, i)
		if len(f.Rules[i].Before) == 0 {
			return nil, &PatternSyntaxError{RuleID: f.Rules[i].ID, Field: "before", Code: ErrBeforeSyntax,
				Message: "at least one before pattern is required", Pos: f.Rules[i].Pos}
		}
	}
	return &f, nil
}
