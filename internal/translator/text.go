package translator

import (
	"strconv"
	"strings"
	"unicode"

	"github.com/kailas-cloud/ftcatalog/internal/domain"
	"github.com/kailas-cloud/ftcatalog/internal/domain/predicate"
	"github.com/kailas-cloud/ftcatalog/internal/domain/schema"
	"github.com/kailas-cloud/ftcatalog/internal/markup"
	"github.com/kailas-cloud/ftcatalog/internal/mapper"
)

// minPrefixLen is the shortest literal the engine expands as a prefix.
const minPrefixLen = 2

// piece is one pattern element: a literal rune or a wildcard.
type piece struct {
	r      rune
	many   bool
	single bool
}

func (p piece) wild() bool { return p.many || p.single }

type word []piece

func (w word) literal() string {
	var b strings.Builder
	for _, p := range w {
		if !p.wild() {
			b.WriteRune(p.r)
		}
	}
	return b.String()
}

func (w word) hasWildcard() bool {
	for _, p := range w {
		if p.wild() {
			return true
		}
	}
	return false
}

func (w word) onlyWildcards() bool {
	for _, p := range w {
		if !p.many {
			return false
		}
	}
	return len(w) > 0
}

func (w word) lower() word {
	out := make(word, len(w))
	for i, p := range w {
		p.r = unicode.ToLower(p.r)
		out[i] = p
	}
	return out
}

// phrase is a quoted run of words or a single unquoted word.
type phrase struct {
	words  []word
	quoted bool
}

type pattern struct {
	wildcard, single, escape rune
}

func patternOf(n *predicate.Node) pattern {
	p := pattern{wildcard: n.Wildcard, single: n.Single, escape: n.Escape}
	if p.wildcard == 0 {
		p.wildcard = predicate.DefaultWildcard
	}
	if p.single == 0 {
		p.single = predicate.DefaultSingle
	}
	if p.escape == 0 {
		p.escape = predicate.DefaultEscape
	}
	return p
}

// words splits s into word tokens the way the index tokenizes text.
// Double quotes group words into phrases.
func (p pattern) words(s string) []phrase {
	var (
		out     []phrase
		cur     word
		quoted  []word
		inQuote bool
		escaped bool
	)
	flush := func() {
		if len(cur) == 0 {
			return
		}
		if inQuote {
			quoted = append(quoted, cur)
		} else {
			out = append(out, phrase{words: []word{cur}})
		}
		cur = nil
	}
	for _, r := range s {
		switch {
		case escaped:
			escaped = false
			if unicode.IsLetter(r) || unicode.IsDigit(r) {
				cur = append(cur, piece{r: r})
			} else {
				flush()
			}
		case r == p.escape:
			escaped = true
		case r == p.wildcard:
			cur = append(cur, piece{many: true})
		case r == p.single:
			cur = append(cur, piece{single: true})
		case r == '"':
			flush()
			if inQuote && len(quoted) > 0 {
				out = append(out, phrase{words: quoted, quoted: true})
			}
			quoted = nil
			inQuote = !inQuote
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			cur = append(cur, piece{r: r})
		default:
			flush()
		}
	}
	flush()
	if inQuote {
		for _, w := range quoted {
			out = append(out, phrase{words: []word{w}})
		}
	}
	return out
}

// whole reads s as one word, keeping every literal character.
func (p pattern) whole(s string) word {
	var w word
	escaped := false
	for _, r := range s {
		switch {
		case escaped:
			escaped = false
			w = append(w, piece{r: r})
		case r == p.escape:
			escaped = true
		case r == p.wildcard:
			w = append(w, piece{many: true})
		case r == p.single:
			w = append(w, piece{single: true})
		default:
			w = append(w, piece{r: r})
		}
	}
	return w
}

// textTerm renders a word for a TEXT field.
func textTerm(w word) string {
	if !w.hasWildcard() {
		return escapeQuery(w.literal())
	}
	if n := len(w); !w[n-1].single {
		prefix := w
		for len(prefix) > 0 && prefix[len(prefix)-1].many {
			prefix = prefix[:len(prefix)-1]
		}
		if lit := prefix.literal(); !prefix.hasWildcard() && len([]rune(lit)) >= minPrefixLen {
			return escapeQuery(lit) + "*"
		}
	}
	return "w'" + wildcardBody(w) + "'"
}

// tagTerm renders a word for a TAG field.
func tagTerm(w word) string {
	if !w.hasWildcard() {
		return escapeTag(w.literal())
	}
	return "w'" + wildcardBody(w) + "'"
}

func wildcardBody(w word) string {
	var b strings.Builder
	for _, p := range w {
		switch {
		case p.many:
			b.WriteByte('*')
		case p.single:
			b.WriteByte('?')
		default:
			b.WriteString(wildcardEscaper.Replace(string(p.r)))
		}
	}
	return b.String()
}

// textClause matches phrases against a TEXT field.
func (c *Compiler) textClause(field string, phrases []phrase, presence Clause) Clause {
	var terms []string
	sawWildcardOnly := false
	for _, ph := range phrases {
		if ph.quoted {
			lits := make([]string, 0, len(ph.words))
			for _, w := range ph.words {
				if lit := w.literal(); lit != "" {
					lits = append(lits, escapeQuery(strings.ToLower(lit)))
				}
			}
			if len(lits) > 0 {
				terms = append(terms, `"`+strings.Join(lits, " ")+`"`)
			}
			continue
		}
		w := ph.words[0]
		if w.onlyWildcards() {
			sawWildcardOnly = true
			continue
		}
		terms = append(terms, textTerm(w.lower()))
	}
	if len(terms) == 0 {
		if sawWildcardOnly {
			return presence
		}
		return None()
	}
	c.scored = true
	return Raw("@" + field + ":(" + strings.Join(terms, " ") + ")")
}

// caseClause matches every word against a case-preserving TAG field.
func caseClause(field string, phrases []phrase, presence Clause) Clause {
	var cs []Clause
	sawWildcardOnly := false
	for _, ph := range phrases {
		for _, w := range ph.words {
			if w.onlyWildcards() {
				sawWildcardOnly = true
				continue
			}
			cs = append(cs, Raw("@"+field+":{"+tagTerm(w)+"}"))
		}
	}
	if len(cs) == 0 {
		if sawWildcardOnly {
			return presence
		}
		return None()
	}
	return And(cs...)
}

func (c *Compiler) like(n *predicate.Node) (Clause, error) {
	p := patternOf(n)
	phrases := p.words(n.Text)
	l := c.t.layout

	if n.Attribute == schema.AnyText {
		if !n.MatchCase {
			return c.textClause(mapper.FieldAnyText, phrases, All()), nil
		}
		var cs []Clause
		for _, d := range c.textAttributes() {
			cs = append(cs, caseClause(l.Field(d.Name, mapper.SuffixCase), phrases, c.present(d.Name)))
		}
		return Or(cs...), nil
	}

	d, ok := c.indexed(n.Attribute)
	if !ok || !d.Type.IsText() {
		return None(), nil
	}
	presence := c.present(d.Name)
	switch {
	case n.MatchCase:
		return caseClause(l.Field(d.Name, mapper.SuffixCase), phrases, presence), nil
	case d.Tokenized:
		return c.textClause(l.Field(d.Name, mapper.SuffixText), phrases, presence), nil
	default:
		w := p.whole(strings.TrimSpace(n.Text)).lower()
		if len(w) == 0 {
			return None(), nil
		}
		if w.onlyWildcards() {
			return presence, nil
		}
		return Raw("@" + l.Field(d.Name, mapper.SuffixTokens) + ":{" + tagTerm(w) + "}"), nil
	}
}

// fuzzyField resolves the TEXT field a fuzzy or proximity predicate runs on.
// Known attributes that are not text are rejected.
func (c *Compiler) fuzzyField(attr, kind string) (string, bool, error) {
	if attr == schema.AnyText {
		return mapper.FieldAnyText, true, nil
	}
	d, known := c.t.layout.Descriptor(attr)
	if !known {
		return "", false, nil
	}
	if !d.Type.IsText() {
		return "", false, domain.NewQueryError(opCompile, attr, domain.ErrUnsupportedPredicate,
			"%s matching requires a text attribute, %q is %s", kind, attr, d.Type)
	}
	if !d.Indexed || !d.Tokenized {
		return "", false, nil
	}
	return c.t.layout.Field(d.Name, mapper.SuffixText), true, nil
}

func (c *Compiler) fuzzy(n *predicate.Node) (Clause, error) {
	field, ok, err := c.fuzzyField(n.Attribute, "fuzzy")
	if err != nil || !ok {
		return None(), err
	}
	var terms []string
	for _, ph := range patternOf(n).words(n.Text) {
		for _, w := range ph.words {
			lit := strings.ToLower(w.literal())
			if lit == "" {
				continue
			}
			terms = append(terms, fuzzyTerm(lit))
		}
	}
	if len(terms) == 0 {
		return None(), nil
	}
	c.scored = true
	return Raw("@" + field + ":(" + strings.Join(terms, " ") + ")"), nil
}

// fuzzyTerm widens the tolerated edit distance for longer terms.
func fuzzyTerm(term string) string {
	switch n := len([]rune(term)); {
	case n < 3:
		return escapeQuery(term)
	case n < 6:
		return "%" + term + "%"
	default:
		return "%%" + term + "%%"
	}
}

func (c *Compiler) proximity(attr string, slop int, text string) (Clause, error) {
	field, ok := "", false
	if attr == schema.AnyText {
		field, ok = mapper.FieldAnyText, true
	} else if d, found := c.indexed(attr); found && d.Type.IsText() && d.Tokenized {
		field, ok = c.t.layout.Field(d.Name, mapper.SuffixText), true
	}
	if !ok {
		return None(), nil
	}
	if slop < 0 {
		slop = 0
	}
	var terms []string
	for _, w := range mapper.Tokenize(text) {
		terms = append(terms, escapeQuery(strings.ToLower(w)))
	}
	switch len(terms) {
	case 0:
		return None(), nil
	case 1:
		c.scored = true
		return Raw("@" + field + ":(" + terms[0] + ")"), nil
	}
	c.scored = true
	return Raw("(@" + field + ":(" + strings.Join(terms, " ") + ") => { $slop: " +
		strconv.Itoa(slop) + "; $inorder: false; })"), nil
}

func (c *Compiler) structural(n *predicate.Node) (Clause, error) {
	if !c.t.settings.StructuralIndex() {
		return None(), nil
	}
	path := markup.NormalizePath(n.Path)
	if path == "/" || path == "//" {
		return Clause{}, domain.NewQueryError(opCompile, "", domain.ErrInvalidQuery, "empty structural path %q", n.Path)
	}
	switch n.Structural {
	case predicate.PathExists:
		return Raw("@" + mapper.FieldXPath + ":{" + escapeTag(path) + "}"), nil
	case predicate.PathLike:
		p := patternOf(n)
		w := p.whole(strings.TrimSpace(n.Text)).lower()
		if len(w) == 0 {
			return None(), nil
		}
		prefix := make(word, 0, len(path)+1+len(w))
		for _, r := range path + "=" {
			prefix = append(prefix, piece{r: r})
		}
		return Raw("@" + mapper.FieldXPathVal + ":{" + tagTerm(append(prefix, w...)) + "}"), nil
	default:
		return Clause{}, domain.NewQueryError(opCompile, "", domain.ErrUnsupportedPredicate,
			"structural operator %d", n.Structural)
	}
}

var tagEscaper = strings.NewReplacer(
	`\`, `\\`,
	",", "\\,",
	".", "\\.",
	"<", "\\<",
	">", "\\>",
	"{", "\\{",
	"}", "\\}",
	"[", "\\[",
	"]", "\\]",
	"\"", "\\\"",
	"'", "\\'",
	":", "\\:",
	";", "\\;",
	"!", "\\!",
	"@", "\\@",
	"#", "\\#",
	"$", "\\$",
	"%", "\\%",
	"^", "\\^",
	"&", "\\&",
	"*", "\\*",
	"?", "\\?",
	"(", "\\(",
	")", "\\)",
	"-", "\\-",
	"+", "\\+",
	"=", "\\=",
	"~", "\\~",
	"|", "\\|",
	"/", "\\/",
	" ", "\\ ",
)

func escapeTag(s string) string { return tagEscaper.Replace(s) }

var queryEscaper = strings.NewReplacer(
	`\`, `\\`,
	`'`, `\'`,
	`"`, `\"`,
	`@`, `\@`,
	`{`, `\{`,
	`}`, `\}`,
	`(`, `\(`,
	`)`, `\)`,
	`|`, `\|`,
	`-`, `\-`,
	`~`, `\~`,
	`*`, `\*`,
	`[`, `\[`,
	`]`, `\]`,
	`!`, `\!`,
	`%`, `\%`,
	`^`, `\^`,
	`$`, `\$`,
	`<`, `\<`,
	`>`, `\>`,
	`=`, `\=`,
	`;`, `\;`,
	`+`, `\+`,
	`:`, `\:`,
)

func escapeQuery(s string) string { return queryEscaper.Replace(s) }

// wildcardEscaper escapes literals inside a w'...' pattern.
var wildcardEscaper = strings.NewReplacer(`\`, `\\`, `'`, `\'`, `*`, `\*`, `?`, `\?`)
