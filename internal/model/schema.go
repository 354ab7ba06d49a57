package model

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	jsonschema "github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed items.schema.json
var itemsSchema []byte

const itemsSchemaURL = "items.schema.json"

// ErrInvalidList wraps every schema violation reported by ValidateListJSON.
var ErrInvalidList = errors.New("invalid todo list")

var (
	schemaOnce sync.Once
	schema     *jsonschema.Schema
	schemaErr  error
)

func compiledSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource(itemsSchemaURL, bytes.NewReader(itemsSchema)); err != nil {
			schemaErr = fmt.Errorf("add schema: %w", err)
			return
		}
		schema, schemaErr = compiler.Compile(itemsSchemaURL)
	})
	return schema, schemaErr
}

// ValidateListJSON checks that data is a JSON array of todo items.
func ValidateListJSON(data []byte) error {
	sch, err := compiledSchema()
	if err != nil {
		return err
	}
	var doc interface{}
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidList, err)
	}
	if err := sch.Validate(doc); err != nil {
		var ve *jsonschema.ValidationError
		if errors.As(err, &ve) {
			return fmt.Errorf("%w: %s", ErrInvalidList, firstCause(ve))
		}
		return fmt.Errorf("%w: %v", ErrInvalidList, err)
	}
	return nil
}

// DecodeList validates data and unmarshals it.
func DecodeList(data []byte) ([]Item, error) {
	if err := ValidateListJSON(data); err != nil {
		return nil, err
	}
	var items []Item
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("json unmarshal: %w", err)
	}
	if items == nil {
		items = []Item{}
	}
	return items, nil
}

func firstCause(ve *jsonschema.ValidationError) string {
	for len(ve.Causes) > 0 {
		ve = ve.Causes[0]
	}
	if ve.InstanceLocation == "" {
		return ve.Message
	}
	return ve.InstanceLocation + ": " + ve.Message
}
