package announce

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed schema/announcement.json
var announcementSchemaJSON string

// Validator checks announcement payloads.
type Validator struct {
	schema *jsonschema.Schema
}

// NewValidator compiles the embedded announcement schema.
func NewValidator() (*Validator, error) {
	compiler := jsonschema.NewCompiler()

	if err := compiler.AddResource("announcement.json",
		strings.NewReader(announcementSchemaJSON)); err != nil {
		return nil, fmt.Errorf("failed to add schema resource: %w", err)
	}

	schema, err := compiler.Compile("announcement.json")
	if err != nil {
		return nil, fmt.Errorf("failed to compile schema: %w", err)
	}

	return &Validator{schema: schema}, nil
}

// Validate checks syntax first, then structure. The two failures are
// reported as ErrMalformedPayload and ErrIncompletePayload.
func (v *Validator) Validate(data []byte) error {
	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}

	if err := v.schema.Validate(doc); err != nil {
		return fmt.Errorf("%w: %v", ErrIncompletePayload, err)
	}
	return nil
}
