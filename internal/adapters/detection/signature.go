package detection

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync/atomic"

	"github.com/daisymeal/cyberdefense/internal/domain"
	"github.com/daisymeal/cyberdefense/pkg/ahocorasick"
)

var (
	ErrDuplicateSignature = errors.New("duplicate signature name")
	ErrEmptySignature     = errors.New("signature has nothing to match")
)

// ws matches one or more whitespace characters, including the Unicode
// separators and the ASCII control separators that regexp's \s leaves out.
const ws = `[\t\n\v\f\r\x{1c}-\x{1f}\x{85}\p{Z}]+`

type MatchKind string

const (
	// MatchLiteral is a case-sensitive substring search. The text is never
	// interpreted as a pattern.
	MatchLiteral MatchKind = "literal"
	// MatchPatterns is a case-insensitive search for any of a set of regular
	// expression alternatives.
	MatchPatterns MatchKind = "patterns"
)

// Signature is a named detection rule.
//
// Keywords feed the table's pre-filter: every payload the signature matches
// must contain at least one keyword (ASCII case-insensitively). A signature
// with no keywords disables the pre-filter for its whole table.
type Signature struct {
	Name     domain.ThreatType
	Kind     MatchKind
	Literal  string
	Patterns []string
	Keywords []string

	regex *regexp.Regexp
}

func NewLiteralSignature(name domain.ThreatType, text string) (*Signature, error) {
	if text == "" {
		return nil, fmt.Errorf("%s: %w", name, ErrEmptySignature)
	}
	return &Signature{
		Name:     name,
		Kind:     MatchLiteral,
		Literal:  text,
		Keywords: []string{text},
	}, nil
}

// NewPatternSignature compiles the alternatives into a single case-insensitive
// regular expression searched anywhere in the payload.
func NewPatternSignature(name domain.ThreatType, keywords []string, patterns ...string) (*Signature, error) {
	if len(patterns) == 0 {
		return nil, fmt.Errorf("%s: %w", name, ErrEmptySignature)
	}

	alternatives := make([]string, len(patterns))
	for i, p := range patterns {
		if p == "" {
			return nil, fmt.Errorf("%s: pattern %d: %w", name, i, ErrEmptySignature)
		}
		alternatives[i] = "(?:" + p + ")"
	}

	regex, err := regexp.Compile("(?i)" + strings.Join(alternatives, "|"))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}

	return &Signature{
		Name:     name,
		Kind:     MatchPatterns,
		Patterns: patterns,
		Keywords: keywords,
		regex:    regex,
	}, nil
}

func (s *Signature) Match(payload string) bool {
	switch s.Kind {
	case MatchLiteral:
		return strings.Contains(payload, s.Literal)
	case MatchPatterns:
		return s.regex.MatchString(foldTurkishI(payload))
	default:
		return false
	}
}

func mustSignature(sig *Signature, err error) *Signature {
	if err != nil {
		panic(err)
	}
	return sig
}

// DefaultSignatures returns the built-in table in priority order.
func DefaultSignatures() []*Signature {
	return []*Signature{
		mustSignature(NewLiteralSignature(
			domain.ThreatTypeTestVirus,
			"TEST_VIRUS_ACTIVE_BLOCK_THIS_IMMEDIATELY",
		)),
		mustSignature(NewLiteralSignature(
			domain.ThreatTypeEICAR,
			`X5O!P%@AP[4\PZX54(P^)7CC)7}$EICAR-STANDARD-ANTIVIRUS-TEST-FILE!$H+H*`,
		)),
		mustSignature(NewPatternSignature(
			domain.ThreatTypeSQLInjection,
			[]string{"union", "drop", "insert", "1=1"},
			`union`+ws+`select`,
			`drop`+ws+`table`,
			`insert`+ws+`into`,
			`or`+ws+`1=1`,
		)),
		mustSignature(NewPatternSignature(
			domain.ThreatTypeXSS,
			[]string{"<script>", "alert(", "document.cookie"},
			`<script>`,
			`alert\(`,
			`document\.cookie`,
		)),
		mustSignature(NewPatternSignature(
			domain.ThreatTypeReverseShell,
			[]string{"/bin/sh", "nc", "bash"},
			`/bin/sh`,
			`nc`+ws+`-e`,
			`bash`+ws+`-i`,
		)),
	}
}

// SignatureTable is an immutable, ordered set of signatures. Order is match
// priority: Scan reports the first signature that matches.
type SignatureTable struct {
	signatures []*Signature
	preFilter  *ahocorasick.Matcher
	owner      []int // keyword index -> signature index
}

func NewSignatureTable(signatures []*Signature) (*SignatureTable, error) {
	t := &SignatureTable{
		signatures: make([]*Signature, 0, len(signatures)),
	}

	var keywords []string
	var owner []int
	seen := make(map[domain.ThreatType]struct{}, len(signatures))
	filterable := true
	for _, sig := range signatures {
		if sig == nil {
			continue
		}
		if _, dup := seen[sig.Name]; dup {
			return nil, fmt.Errorf("%s: %w", sig.Name, ErrDuplicateSignature)
		}
		seen[sig.Name] = struct{}{}

		if len(sig.Keywords) == 0 {
			filterable = false
		}
		for _, kw := range sig.Keywords {
			keywords = append(keywords, kw)
			owner = append(owner, len(t.signatures))
		}
		t.signatures = append(t.signatures, sig)
	}

	if filterable && len(keywords) > 0 {
		t.preFilter = ahocorasick.New(keywords)
		t.owner = owner
	}
	return t, nil
}

// DefaultSignatureTable returns a table holding DefaultSignatures.
func DefaultSignatureTable() *SignatureTable {
	t, err := NewSignatureTable(DefaultSignatures())
	if err != nil {
		panic(err)
	}
	return t
}

func (t *SignatureTable) Scan(payload string) domain.ScanResult {
	if payload == "" {
		return domain.ScanClean()
	}

	// The pre-filter folds ASCII only; regexp folds Unicode. Non-ASCII
	// payloads always take the full pass.
	if t.preFilter != nil && isASCII(payload) {
		return t.scanCandidates(payload)
	}

	for _, sig := range t.signatures {
		if sig.Match(payload) {
			return domain.ScanMatched(sig.Name)
		}
	}
	return domain.ScanClean()
}

// scanCandidates only tries signatures that own a keyword present in
// payload, still in table order.
func (t *SignatureTable) scanCandidates(payload string) domain.ScanResult {
	hits := t.preFilter.MatchAll(payload)
	if len(hits) == 0 {
		return domain.ScanClean()
	}

	candidate := make([]bool, len(t.signatures))
	for _, kw := range hits {
		candidate[t.owner[kw]] = true
	}
	for i, sig := range t.signatures {
		if candidate[i] && sig.Match(payload) {
			return domain.ScanMatched(sig.Name)
		}
	}
	return domain.ScanClean()
}

func (t *SignatureTable) Len() int {
	return len(t.signatures)
}

// Signatures returns the table contents in priority order.
func (t *SignatureTable) Signatures() []*Signature {
	out := make([]*Signature, len(t.signatures))
	copy(out, t.signatures)
	return out
}

func (t *SignatureTable) PreFiltered() bool {
	return t.preFilter != nil
}

// SignatureScanner serves scans from the current table snapshot. Swap
// installs a new table without blocking scans already running.
type SignatureScanner struct {
	table atomic.Pointer[SignatureTable]
}

// NewSignatureScanner returns a scanner over table, or over the default table
// when table is nil.
func NewSignatureScanner(table *SignatureTable) *SignatureScanner {
	if table == nil {
		table = DefaultSignatureTable()
	}
	s := &SignatureScanner{}
	s.table.Store(table)
	return s
}

func (s *SignatureScanner) Scan(payload string) domain.ScanResult {
	return s.table.Load().Scan(payload)
}

func (s *SignatureScanner) SignatureCount() int {
	return s.table.Load().Len()
}

func (s *SignatureScanner) Table() *SignatureTable {
	return s.table.Load()
}

// Swap installs table and returns the one it replaced. A nil table is
// ignored.
func (s *SignatureScanner) Swap(table *SignatureTable) *SignatureTable {
	if table == nil {
		return s.table.Load()
	}
	return s.table.Swap(table)
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] > 127 {
			return false
		}
	}
	return true
}

// foldTurkishI maps U+0130 and U+0131 to 'i'. Both fold to i under the usual
// case-insensitive rules but sit outside Go's simple folding orbit for it.
func foldTurkishI(s string) string {
	if !strings.ContainsAny(s, "\u0130\u0131") {
		return s
	}
	return strings.Map(func(r rune) rune {
		if r == '\u0130' || r == '\u0131' {
			return 'i'
		}
		return r
	}, s)
}
