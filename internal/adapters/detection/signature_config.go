package detection

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/daisymeal/cyberdefense/internal/domain"
)

// SignatureDefinition is the configuration form of a signature, as found in
// the detection.signatures list of the config file.
type SignatureDefinition struct {
	Name     string   `json:"name" yaml:"name"`
	Kind     string   `json:"kind" yaml:"kind"`
	Text     string   `json:"text,omitempty" yaml:"text,omitempty"`
	Patterns []string `json:"patterns,omitempty" yaml:"patterns,omitempty"`
	Keywords []string `json:"keywords,omitempty" yaml:"keywords,omitempty"`
}

const definitionSchema = `{
  "type": "array",
  "items": {
    "type": "object",
    "required": ["name", "kind"],
    "additionalProperties": false,
    "properties": {
      "name": {"type": "string", "pattern": "^[A-Z][A-Z0-9_]*$", "maxLength": 64},
      "kind": {"enum": ["literal", "patterns"]},
      "text": {"type": "string", "minLength": 1},
      "patterns": {"type": "array", "minItems": 1, "items": {"type": "string", "minLength": 1}},
      "keywords": {"type": "array", "items": {"type": "string", "minLength": 1}}
    },
    "anyOf": [
      {"properties": {"kind": {"enum": ["literal"]}}, "required": ["text"]},
      {"properties": {"kind": {"enum": ["patterns"]}}, "required": ["patterns"]}
    ]
  }
}`

var definitionSchemaLoader = gojsonschema.NewStringLoader(definitionSchema)

// ParseSignatureDefinitions validates raw configuration (as decoded by viper
// or encoding/json) against the definition schema. A nil value yields no
// definitions.
func ParseSignatureDefinitions(raw interface{}) ([]SignatureDefinition, error) {
	if raw == nil {
		return nil, nil
	}

	result, err := gojsonschema.Validate(definitionSchemaLoader, gojsonschema.NewGoLoader(raw))
	if err != nil {
		return nil, fmt.Errorf("signature definitions: %w", err)
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}
		return nil, fmt.Errorf("signature definitions: %s", strings.Join(msgs, "; "))
	}

	data, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("signature definitions: %w", err)
	}
	var defs []SignatureDefinition
	if err := json.Unmarshal(data, &defs); err != nil {
		return nil, fmt.Errorf("signature definitions: %w", err)
	}
	return defs, nil
}

func (d SignatureDefinition) Compile() (*Signature, error) {
	name := domain.ThreatType(d.Name)
	switch MatchKind(d.Kind) {
	case MatchLiteral:
		return NewLiteralSignature(name, d.Text)
	case MatchPatterns:
		return NewPatternSignature(name, d.Keywords, d.Patterns...)
	default:
		return nil, fmt.Errorf("%s: unknown kind %q", d.Name, d.Kind)
	}
}

// Definition converts a signature back to its configuration form.
func (s *Signature) Definition() SignatureDefinition {
	return SignatureDefinition{
		Name:     string(s.Name),
		Kind:     string(s.Kind),
		Text:     s.Literal,
		Patterns: s.Patterns,
		Keywords: s.Keywords,
	}
}

// BuildSignatureTable returns the built-in signatures followed by the extra
// definitions, in that order. Extras can never outrank a built-in, and a
// name already in use is rejected.
func BuildSignatureTable(extra []SignatureDefinition) (*SignatureTable, error) {
	signatures := DefaultSignatures()
	for _, def := range extra {
		sig, err := def.Compile()
		if err != nil {
			return nil, err
		}
		signatures = append(signatures, sig)
	}
	return NewSignatureTable(signatures)
}
