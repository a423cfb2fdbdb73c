// Package validate implements the input-validation layer of spec §4.8:
// per-field schemas (required/type/min-max/length/pattern/custom
// validator/sanitize), null-byte rejection, SQL/Cypher/script/command
// injection detection, and the is_valid_entity_id / is_safe_cypher_input /
// sanitize helpers. Grounded on `github.com/go-playground/validator/v10`
// (teacher's own dependency, struct-tag validation) for scalar field rules,
// and on `github.com/microcosm-cc/bluemonday` (teacher's
// `showcases/profile/main.go` sanitizer usage) for HTML-entity escaping.
package validate

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	playgroundvalidator "github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"

	"github.com/nahisaho/YAGOKORO-sub003/kinderr"
)

// entityIDPattern is spec §8's boundary: `^[A-Za-z0-9_-]{1,128}$`.
var entityIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,128}$`)

// IsValidEntityID reports whether id satisfies the entity-ID shape.
func IsValidEntityID(id string) bool {
	return entityIDPattern.MatchString(id)
}

// injectionPatterns are the literal attack shapes spec §8 names plus their
// general forms: SQL, Cypher, script, and shell-command injection.
var injectionPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(;|')\s*(drop|delete|truncate|update|insert|alter)\s+`),
	regexp.MustCompile(`(?i)'\s*or\s*'?\d*'?\s*=\s*'?\d*'?`),
	regexp.MustCompile(`(?i)<script[\s>]`),
	regexp.MustCompile(`(?i)\bmatch\s*\([^)]*\)\s*(delete|detach\s+delete|set)\b`),
	regexp.MustCompile(`\$\([^)]*\)`),
	regexp.MustCompile("`[^`]*`"),
	regexp.MustCompile(`(?i)\bunion\s+select\b`),
}

// ContainsInjection reports whether s matches any known SQL/Cypher/script/
// command-injection shape (spec §8's six literal test strings plus their
// generalisations).
func ContainsInjection(s string) bool {
	for _, p := range injectionPatterns {
		if p.MatchString(s) {
			return true
		}
	}
	return false
}

// IsSafeCypherInput reports whether s is free of null bytes and injection
// patterns, suitable to bind as a parameterised-traversal-template
// parameter (never as raw Cypher text — spec §6's invariant).
func IsSafeCypherInput(s string) bool {
	return !strings.ContainsRune(s, 0) && !ContainsInjection(s)
}

var sanitizerPolicy = bluemonday.UGCPolicy()

// Sanitize HTML-entity-escapes s, stripping any markup the policy does not
// explicitly allow.
func Sanitize(s string) string {
	return sanitizerPolicy.Sanitize(s)
}

// FieldKind is a closed tag for a schema field's expected scalar type.
type FieldKind string

const (
	KindString FieldKind = "string"
	KindInt    FieldKind = "int"
	KindFloat  FieldKind = "float"
	KindBool   FieldKind = "bool"
	KindSlice  FieldKind = "slice"
)

// FieldSchema describes the validation rule for a single field, per spec
// §4.8: "Schema per field with required | type | min/max | minLength/
// maxLength | pattern | validator | sanitize".
type FieldSchema struct {
	Required  bool
	// Type is not checked by Validate: string rules apply to string values
	// and min/max rules to numeric values, whatever Type says.
	Type      FieldKind
	Min, Max  float64
	HasMin, HasMax bool
	MinLength, MaxLength int
	Pattern   *regexp.Regexp
	Validator func(v any) error
	Sanitize  bool
}

// Schema maps field name to its FieldSchema.
type Schema map[string]FieldSchema

// Validate checks values against s, returning the first violation as a
// kinderr ValidationError (field-annotated) or InjectionDetected error.
// Sanitized string values are written back into the returned map.
func (s Schema) Validate(ctx context.Context, values map[string]any) (map[string]any, error) {
	out := make(map[string]any, len(values))
	for k, v := range values {
		out[k] = v
	}

	for field, rule := range s {
		v, present := values[field]
		if !present || v == nil {
			if rule.Required {
				return nil, kinderr.New(kinderr.ValidationError, "field %q is required", field).WithField(field)
			}
			continue
		}

		if str, ok := v.(string); ok {
			if strings.ContainsRune(str, 0) {
				return nil, kinderr.New(kinderr.ValidationError, "field %q contains a null byte", field).WithField(field)
			}
			if ContainsInjection(str) {
				return nil, kinderr.New(kinderr.InjectionDetected, "field %q matches a known injection pattern", field).WithField(field)
			}
			if rule.MinLength > 0 && len(str) < rule.MinLength {
				return nil, kinderr.New(kinderr.ValidationError, "field %q shorter than %d", field, rule.MinLength).WithField(field)
			}
			if rule.MaxLength > 0 && len(str) > rule.MaxLength {
				return nil, kinderr.New(kinderr.ValidationError, "field %q longer than %d", field, rule.MaxLength).WithField(field)
			}
			if rule.Pattern != nil && !rule.Pattern.MatchString(str) {
				return nil, kinderr.New(kinderr.ValidationError, "field %q does not match required pattern", field).WithField(field)
			}
			if rule.Sanitize {
				out[field] = Sanitize(str)
			}
		}

		if num, ok := toFloat(v); ok {
			if rule.HasMin && num < rule.Min {
				return nil, kinderr.New(kinderr.ValidationError, "field %q below minimum %v", field, rule.Min).WithField(field)
			}
			if rule.HasMax && num > rule.Max {
				return nil, kinderr.New(kinderr.ValidationError, "field %q above maximum %v", field, rule.Max).WithField(field)
			}
		}

		if rule.Validator != nil {
			if err := rule.Validator(v); err != nil {
				return nil, kinderr.Wrap(kinderr.ValidationError, err, "field %q failed custom validation", field).WithField(field)
			}
		}
	}
	return out, nil
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case float64:
		return n, true
	case float32:
		return float64(n), true
	default:
		return 0, false
	}
}

// structValidator wraps go-playground/validator/v10 for tag-based struct
// validation of strongly-typed request DTOs (complementing Schema's
// dynamic map-based validation for loosely-typed CLI/MCP inputs).
var structValidator = playgroundvalidator.New()

// ValidateStruct runs struct-tag validation (`validate:"..."` tags) over v,
// translating the first failure into a kinderr ValidationError.
func ValidateStruct(v any) error {
	if err := structValidator.Struct(v); err != nil {
		if verrs, ok := err.(playgroundvalidator.ValidationErrors); ok && len(verrs) > 0 {
			fe := verrs[0]
			return kinderr.New(kinderr.ValidationError, "field %q failed %q validation", fe.Field(), fe.Tag()).WithField(fe.Field())
		}
		return kinderr.Wrap(kinderr.ValidationError, err, "struct validation failed")
	}
	return nil
}

// String formats a FieldSchema for diagnostic logging.
func (r FieldSchema) String() string {
	return fmt.Sprintf("FieldSchema{Type=%s Required=%v}", r.Type, r.Required)
}
