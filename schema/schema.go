// Package schema checks parsed articles against the JSON schema of the
// silver layer. Violations are reported, never enforced: a record missing a
// conventionally mandatory field is still a valid record.
package schema

import (
	_ "embed"
	"fmt"
	"sort"

	"github.com/pkg/errors"
	"github.com/xeipuuv/gojsonschema"
)

//go:embed silver.schema.json
var silverSchema string

// Violation is a single schema problem.
type Violation struct {
	Field       string `json:"field"`
	Description string `json:"description"`
}

func (v Violation) String() string {
	return fmt.Sprintf("%s: %s", v.Field, v.Description)
}

// Validator evaluates documents against the silver schema.
type Validator struct {
	schema *gojsonschema.Schema
}

func NewValidator() (*Validator, error) {
	s, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(silverSchema))
	if err != nil {
		return nil, errors.Wrap(err, "compiling silver schema")
	}
	return &Validator{schema: s}, nil
}

// Validate returns the violations found in doc, which may be any value that
// encodes to a JSON object, sorted by field.
func (v *Validator) Validate(doc interface{}) ([]Violation, error) {
	res, err := v.schema.Validate(gojsonschema.NewGoLoader(doc))
	if err != nil {
		return nil, errors.Wrap(err, "validating document")
	}
	if res.Valid() {
		return nil, nil
	}

	violations := make([]Violation, 0, len(res.Errors()))
	for _, re := range res.Errors() {
		field := re.Field()
		// Missing required properties are reported against the parent.
		if re.Type() == "required" {
			if prop, ok := re.Details()["property"].(string); ok {
				field = prop
			}
		}
		violations = append(violations, Violation{Field: field, Description: re.Description()})
	}
	sort.SliceStable(violations, func(i, j int) bool {
		return violations[i].Field < violations[j].Field
	})
	return violations, nil
}
