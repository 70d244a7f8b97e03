package event

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"
)

//go:embed schema.json
var schemaJSON []byte

// ErrSchema indicates the payload violated the inbound event schema.
var ErrSchema = errors.New("event: schema violation")

var (
	compileOnce    sync.Once
	compiledSchema *gojsonschema.Schema
	compileErr     error
)

func schema() (*gojsonschema.Schema, error) {
	compileOnce.Do(func() {
		compiledSchema, compileErr = gojsonschema.NewSchema(gojsonschema.NewBytesLoader(schemaJSON))
	})

	return compiledSchema, compileErr
}

// Decode validates data against the inbound event schema, unmarshals it, and
// runs the structural Validate check. The returned error wraps ErrSchema for
// schema violations so callers can distinguish client faults.
func Decode(data []byte) (*Event, error) {
	sch, err := schema()
	if err != nil {
		return nil, fmt.Errorf("compile event schema: %w", err)
	}

	result, err := sch.Validate(gojsonschema.NewBytesLoader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSchema, err)
	}

	if !result.Valid() {
		descs := make([]string, 0, len(result.Errors()))
		for _, re := range result.Errors() {
			descs = append(descs, re.String())
		}

		return nil, fmt.Errorf("%w: %s", ErrSchema, strings.Join(descs, "; "))
	}

	var ev Event

	err = json.Unmarshal(data, &ev)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSchema, err)
	}

	err = ev.Validate()
	if err != nil {
		return nil, err
	}

	return &ev, nil
}
