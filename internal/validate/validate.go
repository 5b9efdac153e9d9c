// Package validate checks JSON request bodies against embedded JSON Schemas
// before they are decoded into request structs.
package validate

import (
	"bytes"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"path"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/joblinker/backend/internal/apperr"
)

//go:embed schemas/*.json
var schemaFS embed.FS

// Schema names, one per request body.
const (
	CreateUser       = "create_user"
	UpdateRole       = "update_role"
	IssueToken       = "issue_token"
	CreateTask       = "create_task"
	UpdateTask       = "update_task"
	CreateSubmission = "create_submission"
	DecideSubmission = "decide_submission"
	CreateWithdrawal = "create_withdrawal"
	DecideWithdrawal = "decide_withdrawal"
)

const schemaBaseURL = "https://joblinker.dev/schemas/"

type Validator struct {
	schemas map[string]*jsonschema.Schema
}

// New compiles every embedded schema. An error means a schema file is broken.
func New() (*Validator, error) {
	names, err := fs.Glob(schemaFS, "schemas/*.json")
	if err != nil {
		return nil, err
	}
	c := jsonschema.NewCompiler()
	c.AssertFormat = true
	for _, name := range names {
		data, err := schemaFS.ReadFile(name)
		if err != nil {
			return nil, fmt.Errorf("read %q: %w", name, err)
		}
		if err := c.AddResource(schemaBaseURL+path.Base(name), bytes.NewReader(data)); err != nil {
			return nil, fmt.Errorf("add %q: %w", name, err)
		}
	}
	schemas := make(map[string]*jsonschema.Schema, len(names))
	for _, name := range names {
		key := strings.TrimSuffix(path.Base(name), ".json")
		if schemas[key], err = c.Compile(schemaBaseURL + path.Base(name)); err != nil {
			return nil, fmt.Errorf("compile schema %q: %w", key, err)
		}
	}
	return &Validator{schemas: schemas}, nil
}

// Decode reads a JSON body, validates it against the named schema and
// decodes it into dst. Every failure is an apperr InvalidArgument.
func (v *Validator) Decode(body io.Reader, schema string, dst any) error {
	s, ok := v.schemas[schema]
	if !ok {
		return fmt.Errorf("unknown schema %q", schema)
	}
	data, err := io.ReadAll(body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return apperr.InvalidArgument("request body exceeds %d bytes", tooLarge.Limit)
		}
		return apperr.InvalidArgument("read request body: %v", err)
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return apperr.InvalidArgument("invalid JSON")
	}
	if dec.More() {
		return apperr.InvalidArgument("invalid JSON: trailing data")
	}
	if err := s.Validate(doc); err != nil {
		return apperr.InvalidArgument("%s", describe(err))
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return apperr.InvalidArgument("invalid request: %v", err)
	}
	return nil
}

// describe flattens a schema validation error to its deepest causes, with
// the JSON pointer of each offending field.
func describe(err error) string {
	var ve *jsonschema.ValidationError
	if !errors.As(err, &ve) {
		return err.Error()
	}
	var msgs []string
	var walk func(e *jsonschema.ValidationError)
	walk = func(e *jsonschema.ValidationError) {
		if len(e.Causes) == 0 {
			loc := e.InstanceLocation
			if loc == "" {
				loc = "/"
			}
			msgs = append(msgs, loc+": "+e.Message)
			return
		}
		for _, c := range e.Causes {
			walk(c)
		}
	}
	walk(ve)
	return strings.Join(msgs, "; ")
}
