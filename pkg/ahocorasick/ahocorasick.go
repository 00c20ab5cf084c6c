// Package ahocorasick implements Aho-Corasick multi-keyword matching over bytes.
//
// The automaton is compiled into a dense transition table, so matching is a
// single pass over the input with one table lookup per byte. ASCII letters
// are folded to lower case on both sides; all other bytes match exactly.
//
// Used by the signature table as a pre-filter: a payload containing none of
// the keywords cannot match any signature, and MatchAll narrows the regex
// pass to the signatures whose keywords occur.
//
// Thread Safety: A Matcher is immutable after New() returns and safe for
// concurrent use.
package ahocorasick

const alphabet = 256

// Matcher is a compiled keyword automaton.
type Matcher struct {
	next     [][alphabet]int32 // Dense transitions, next[state][byte]
	output   [][]int           // Keyword indices accepted at each state
	keywords []string          // Original keywords for reference
}

// New compiles a matcher from keywords. Empty keywords are ignored because
// they would match every input.
func New(keywords []string) *Matcher {
	m := &Matcher{
		keywords: keywords,
	}
	m.addState()

	for i, kw := range keywords {
		if kw == "" {
			continue
		}
		m.insert(kw, i)
	}

	m.link()
	return m
}

func (m *Matcher) addState() int32 {
	var row [alphabet]int32
	for i := range row {
		row[i] = -1
	}
	m.next = append(m.next, row)
	m.output = append(m.output, nil)
	return int32(len(m.next) - 1)
}

func (m *Matcher) insert(keyword string, index int) {
	state := int32(0)
	for i := 0; i < len(keyword); i++ {
		c := fold(keyword[i])
		if m.next[state][c] < 0 {
			s := m.addState()
			m.next[state][c] = s
		}
		state = m.next[state][c]
	}
	m.output[state] = append(m.output[state], index)
}

// link fills in failure transitions breadth first so every state has a
// defined move on every byte.
func (m *Matcher) link() {
	fail := make([]int32, len(m.next))
	queue := make([]int32, 0, len(m.next))

	for c := 0; c < alphabet; c++ {
		s := m.next[0][c]
		if s < 0 {
			m.next[0][c] = 0
			continue
		}
		fail[s] = 0
		queue = append(queue, s)
	}

	for len(queue) > 0 {
		state := queue[0]
		queue = queue[1:]

		f := fail[state]
		m.output[state] = append(m.output[state], m.output[f]...)

		for c := 0; c < alphabet; c++ {
			s := m.next[state][c]
			if s < 0 {
				m.next[state][c] = m.next[f][c]
				continue
			}
			fail[s] = m.next[f][c]
			queue = append(queue, s)
		}
	}
}

// Match reports whether any keyword occurs in text.
func (m *Matcher) Match(text string) bool {
	if len(m.keywords) == 0 {
		return false
	}
	state := int32(0)
	for i := 0; i < len(text); i++ {
		state = m.next[state][fold(text[i])]
		if len(m.output[state]) > 0 {
			return true
		}
	}
	return false
}

// MatchAll returns the indices of every keyword found in text, each once, in
// order of first occurrence.
func (m *Matcher) MatchAll(text string) []int {
	if len(m.keywords) == 0 {
		return nil
	}

	var matches []int
	seen := make(map[int]bool)

	state := int32(0)
	for i := 0; i < len(text); i++ {
		state = m.next[state][fold(text[i])]
		for _, idx := range m.output[state] {
			if !seen[idx] {
				seen[idx] = true
				matches = append(matches, idx)
			}
		}
	}
	return matches
}

func fold(c byte) byte {
	if c >= 'A' && c <= 'Z' {
		return c + ('a' - 'A')
	}
	return c
}
