package contract

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/dyluth/warren/pkg/pipeline"
)

// ValidationError carries every violation found in a draft contract, not
// just the first, so a human or producer can fix all issues without repeated
// round-trips.
type ValidationError struct {
	Kind       pipeline.ArtifactKind
	Violations []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s contract failed validation: %s",
		e.Kind, strings.Join(e.Violations, "; "))
}

// IsValidationError returns true if the error is a ValidationError.
func IsValidationError(err error) bool {
	var target *ValidationError
	return errors.As(err, &target)
}

// Validate applies the schema's generic rules to a draft contract.
// Returns a ValidationError listing all violations, or nil if the draft is
// clean. A contract that fails validation must never be persisted or hashed.
func Validate(draft pipeline.Contract, schema *Schema) error {
	if draft.Kind() != schema.Kind {
		return &ValidationError{
			Kind:       schema.Kind,
			Violations: []string{fmt.Sprintf("contract kind %q does not match schema kind %q", draft.Kind(), schema.Kind)},
		}
	}

	fields, err := contractFields(draft)
	if err != nil {
		return fmt.Errorf("failed to inspect contract: %w", err)
	}

	var violations []string

	for _, name := range schema.Required {
		value, present := fields[name]
		if !present {
			violations = append(violations, fmt.Sprintf("required field %q is missing", name))
			continue
		}
		if s, isString := value.(string); isString && s == "" {
			violations = append(violations, fmt.Sprintf("required field %q is empty", name))
		}
	}

	for _, name := range schema.NonEmptyLists {
		list, ok := rawList(fields, name)
		if !ok {
			violations = append(violations, fmt.Sprintf("list field %q is missing", name))
			continue
		}
		if len(list) == 0 {
			violations = append(violations, fmt.Sprintf("list field %q must contain at least one element", name))
		}
	}

	for _, name := range schema.Canonical {
		list, ok := stringList(fields, name)
		if !ok {
			continue // absence is reported by Required/NonEmptyLists if declared
		}
		if !sort.StringsAreSorted(list) {
			violations = append(violations, fmt.Sprintf("field %q is not in canonical sorted order", name))
		}
	}

	for _, pair := range schema.Exclusive {
		first, _ := stringList(fields, pair[0])
		second, _ := stringList(fields, pair[1])

		seen := make(map[string]bool, len(first))
		for _, v := range first {
			seen[v] = true
		}
		for _, v := range second {
			if seen[v] {
				violations = append(violations, fmt.Sprintf("%q appears in both %q and %q", v, pair[0], pair[1]))
			}
		}
	}

	if len(violations) > 0 {
		return &ValidationError{Kind: schema.Kind, Violations: violations}
	}

	return nil
}

// contractFields round-trips a contract through JSON to get its fields keyed
// by JSON name. Struct tags are the single source of field naming.
func contractFields(c pipeline.Contract) (map[string]interface{}, error) {
	data, err := pipeline.EncodeContract(c)
	if err != nil {
		return nil, err
	}

	var fields map[string]interface{}
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, fmt.Errorf("failed to decode contract fields: %w", err)
	}

	return fields, nil
}

// rawList extracts a list field's elements regardless of element type, so
// the non-empty check counts object elements (e.g. plan sections) as well as
// strings. Returns (nil, true) for a present but null list.
func rawList(fields map[string]interface{}, name string) ([]interface{}, bool) {
	value, present := fields[name]
	if !present {
		return nil, false
	}

	raw, ok := value.([]interface{})
	if !ok {
		return nil, value == nil
	}

	return raw, true
}

// stringList coerces a list field's elements to strings. The canonical-order
// and exclusivity rules only apply to string lists; non-string elements are
// skipped.
func stringList(fields map[string]interface{}, name string) ([]string, bool) {
	raw, ok := rawList(fields, name)
	if !ok {
		return nil, false
	}

	list := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			list = append(list, s)
		}
	}

	return list, true
}
