package detection

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/daisymeal/cyberdefense/internal/domain"
)

func TestParseSignatureDefinitions_Valid(t *testing.T) {
	raw := []interface{}{
		map[string]interface{}{
			"name": "LOG4SHELL",
			"kind": "patterns",
			"patterns": []interface{}{
				`\$\{jndi:`,
			},
			"keywords": []interface{}{"jndi"},
		},
		map[string]interface{}{
			"name": "CANARY_TOKEN",
			"kind": "literal",
			"text": "canary-7f3a",
		},
	}

	defs, err := ParseSignatureDefinitions(raw)
	require.NoError(t, err)
	require.Len(t, defs, 2)
	assert.Equal(t, "LOG4SHELL", defs[0].Name)
	assert.Equal(t, []string{`\$\{jndi:`}, defs[0].Patterns)
	assert.Equal(t, "canary-7f3a", defs[1].Text)
}

func TestParseSignatureDefinitions_Nil(t *testing.T) {
	defs, err := ParseSignatureDefinitions(nil)
	require.NoError(t, err)
	assert.Empty(t, defs)
}

func TestParseSignatureDefinitions_Invalid(t *testing.T) {
	tests := []struct {
		name string
		raw  interface{}
	}{
		{"not a list", map[string]interface{}{"name": "X"}},
		{"missing kind", []interface{}{map[string]interface{}{"name": "X", "text": "a"}}},
		{"bad kind", []interface{}{map[string]interface{}{"name": "X", "kind": "regex", "text": "a"}}},
		{"lowercase name", []interface{}{map[string]interface{}{"name": "bad_name", "kind": "literal", "text": "a"}}},
		{"literal without text", []interface{}{map[string]interface{}{"name": "X", "kind": "literal"}}},
		{"patterns without list", []interface{}{map[string]interface{}{"name": "X", "kind": "patterns", "text": "a"}}},
		{"empty pattern list", []interface{}{map[string]interface{}{"name": "X", "kind": "patterns", "patterns": []interface{}{}}}},
		{"unknown field", []interface{}{map[string]interface{}{"name": "X", "kind": "literal", "text": "a", "priority": 1}}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseSignatureDefinitions(tc.raw)
			assert.Error(t, err)
		})
	}
}

func TestBuildSignatureTable_AppendsAfterBuiltins(t *testing.T) {
	table, err := BuildSignatureTable([]SignatureDefinition{
		{Name: "LOG4SHELL", Kind: "patterns", Patterns: []string{`\$\{jndi:`}, Keywords: []string{"jndi"}},
		{Name: "WIDE_SQL", Kind: "patterns", Patterns: []string{`select`}, Keywords: []string{"select"}},
	})
	require.NoError(t, err)

	assert.Equal(t, 7, table.Len())
	assert.True(t, table.PreFiltered())
	assert.Equal(t, domain.ThreatType("LOG4SHELL"), table.Scan("${JNDI:ldap://x}").Signature)

	// a built-in still wins over an extra that also matches
	assert.Equal(t, domain.ThreatTypeSQLInjection, table.Scan("union select").Signature)
	assert.Equal(t, domain.ThreatType("WIDE_SQL"), table.Scan("select 1").Signature)
}

func TestBuildSignatureTable_Errors(t *testing.T) {
	_, err := BuildSignatureTable([]SignatureDefinition{
		{Name: string(domain.ThreatTypeXSS), Kind: "literal", Text: "x"},
	})
	assert.ErrorIs(t, err, ErrDuplicateSignature)

	_, err = BuildSignatureTable([]SignatureDefinition{
		{Name: "BROKEN", Kind: "patterns", Patterns: []string{"(("}},
	})
	assert.Error(t, err)

	_, err = BuildSignatureTable([]SignatureDefinition{
		{Name: "ODD", Kind: "fuzzy"},
	})
	assert.Error(t, err)
}

func TestSignatureDefinitionRoundTrip(t *testing.T) {
	for _, sig := range DefaultSignatures() {
		compiled, err := sig.Definition().Compile()
		require.NoError(t, err)
		assert.Equal(t, sig.Name, compiled.Name)
		assert.Equal(t, sig.Kind, compiled.Kind)
	}
}
