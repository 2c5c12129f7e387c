package insights

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/kaptinlin/jsonschema"

	"linkboard/internal/domain"
)

//go:embed plan.schema.json
var planSchemaJSON []byte

var (
	schemaOnce sync.Once
	planSchema *jsonschema.Schema
	schemaErr  error
)

// ErrInvalidContent marks generated content that does not match the plan schema.
var ErrInvalidContent = errors.New("invalid plan content")

func compiledSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		planSchema, schemaErr = jsonschema.NewCompiler().Compile(planSchemaJSON)
	})
	return planSchema, schemaErr
}

// ValidateContent checks content against the embedded plan schema.
func ValidateContent(content domain.PlanContent) error {
	raw, err := json.Marshal(content)
	if err != nil {
		return fmt.Errorf("marshal content: %w", err)
	}
	return ValidateRaw(raw)
}

// ValidateRaw checks a JSON document against the embedded plan schema.
func ValidateRaw(raw []byte) error {
	schema, err := compiledSchema()
	if err != nil {
		return fmt.Errorf("compile plan schema: %w", err)
	}
	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidContent, err)
	}
	result := schema.Validate(doc)
	if result.IsValid() {
		return nil
	}
	var msgs []string
	for field, evalErr := range result.Errors {
		msgs = append(msgs, fmt.Sprintf("%s: %s", field, evalErr.Error()))
	}
	sort.Strings(msgs)
	return fmt.Errorf("%w: %s", ErrInvalidContent, strings.Join(msgs, "; "))
}
