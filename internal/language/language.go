package language

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	xlang "golang.org/x/text/language"
)

// ErrUnknownLanguage indicates an identifier that matches no known language.
var ErrUnknownLanguage = errors.New("unknown language")

type entry struct {
	code2 string   // ISO 639-1 (2-letter)
	code3 string   // ISO 639-2 primary (3-letter)
	alt3  string   // ISO 639-2 bibliographic alternate (e.g. "fre" vs "fra")
	words []string // Full word forms (e.g. "english")
}

var entries = []entry{
	{"en", "eng", "", []string{"english"}},
	{"es", "spa", "", []string{"spanish", "castilian"}},
	{"fr", "fra", "fre", []string{"french"}},
	{"de", "deu", "ger", []string{"german"}},
	{"it", "ita", "", []string{"italian"}},
	{"pt", "por", "", []string{"portuguese"}},
	{"ja", "jpn", "", []string{"japanese"}},
	{"ko", "kor", "", []string{"korean"}},
	{"zh", "zho", "chi", []string{"chinese", "mandarin"}},
	{"ru", "rus", "", []string{"russian"}},
	{"ar", "ara", "", []string{"arabic"}},
	{"hi", "hin", "", []string{"hindi"}},
	{"nl", "nld", "dut", []string{"dutch", "flemish"}},
	{"pl", "pol", "", []string{"polish"}},
	{"sv", "swe", "", []string{"swedish"}},
	{"da", "dan", "", []string{"danish"}},
	{"no", "nor", "", []string{"norwegian"}},
	{"fi", "fin", "", []string{"finnish"}},
	{"cs", "ces", "cze", []string{"czech"}},
	{"el", "ell", "gre", []string{"greek"}},
	{"he", "heb", "", []string{"hebrew"}},
	{"hu", "hun", "", []string{"hungarian"}},
	{"ro", "ron", "rum", []string{"romanian"}},
	{"th", "tha", "", []string{"thai"}},
	{"tr", "tur", "", []string{"turkish"}},
	{"uk", "ukr", "", []string{"ukrainian"}},
	{"vi", "vie", "", []string{"vietnamese"}},
}

// Index maps built at init time.
var (
	byCode2 map[string]*entry
	byCode3 map[string]*entry
	byWord  map[string]*entry
)

func init() {
	byCode2 = make(map[string]*entry, len(entries))
	byCode3 = make(map[string]*entry, len(entries)*2)
	byWord = make(map[string]*entry, len(entries))
	for i := range entries {
		e := &entries[i]
		byCode2[e.code2] = e
		byCode3[e.code3] = e
		if e.alt3 != "" {
			byCode3[e.alt3] = e
		}
		for _, w := range e.words {
			byWord[w] = e
		}
	}
}

func lookup(identifier string) *entry {
	identifier = strings.ToLower(strings.TrimSpace(identifier))
	if identifier == "" {
		return nil
	}
	if e, ok := byCode2[identifier]; ok {
		return e
	}
	if e, ok := byCode3[identifier]; ok {
		return e
	}
	if e, ok := byWord[identifier]; ok {
		return e
	}
	return nil
}

// Lang is the canonical form of a recognized language. The zero value is
// invalid and never matches anything.
type Lang struct {
	code2 string
	code3 string
	word  string
}

// Normalize maps a full English name, 2-letter, or 3-letter code
// (case-insensitive) to its canonical form. Returns ErrUnknownLanguage
// when the identifier matches no known language.
func Normalize(identifier string) (Lang, error) {
	e := lookup(identifier)
	if e == nil {
		return Lang{}, fmt.Errorf("%w: %q", ErrUnknownLanguage, strings.TrimSpace(identifier))
	}
	return Lang{code2: e.code2, code3: e.code3, word: e.words[0]}, nil
}

// IsZero reports whether the language is unset.
func (l Lang) IsZero() bool {
	return l.code2 == ""
}

// Code2 returns the ISO 639-1 code.
func (l Lang) Code2() string { return l.code2 }

// Code3 returns the ISO 639-2 primary code.
func (l Lang) Code3() string { return l.code3 }

// DisplayName returns the title-cased English name.
func (l Lang) DisplayName() string {
	if l.word == "" {
		return "Unknown"
	}
	return cases.Title(xlang.Und).String(l.word)
}

// Matches reports whether a raw track identifier refers to this language.
// Unknown or empty identifiers never match, including against each other.
func (l Lang) Matches(raw string) bool {
	if l.IsZero() {
		return false
	}
	e := lookup(raw)
	if e == nil {
		return false
	}
	return e.code2 == l.code2
}

// Same compares two raw identifiers via their canonical forms. Either side
// being unrecognized means no match.
func Same(a, b string) bool {
	la, err := Normalize(a)
	if err != nil {
		return false
	}
	return la.Matches(b)
}
