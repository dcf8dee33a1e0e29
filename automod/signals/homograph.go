package signals

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/net/idna"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/linkguard/linkguard/automod/event"
	"github.com/linkguard/linkguard/automod/helpers"
	"github.com/linkguard/linkguard/automod/setstore"
)

const (
	ScoreHomographCollision      = 0.9
	ScoreHomographCollisionMixed = 0.95
	ScoreMixedScript             = 0.85
	ScoreBrandSubdomain          = 0.85
)

// Detects lookalike domains: internationalized names which fold to the same "skeleton" as a protected brand, labels mixing writing systems, and brand names used as subdomains of unrelated domains.
type HomographChecker struct {
	Sets setstore.SetStore
}

var _ Checker = (*HomographChecker)(nil)

func (c *HomographChecker) Kind() Kind {
	return KindHomograph
}

// Characters which render (nearly) identically to latin letters. Not exhaustive; see Unicode TR39 confusables.txt for the full table.
var confusables = map[rune]string{
	// cyrillic
	'а': "a", 'в': "b", 'с': "c", 'ԁ': "d", 'е': "e", 'һ': "h", 'і': "i", 'ј': "j", 'к': "k",
	'ӏ': "l", 'м': "m", 'п': "n", 'о': "o", 'р': "p", 'ԛ': "q", 'г': "r", 'ѕ': "s", 'т': "t",
	'ѵ': "v", 'ԝ': "w", 'х': "x", 'у': "y",
	// greek
	'α': "a", 'β': "b", 'ε': "e", 'η': "n", 'ι': "i", 'κ': "k", 'ν': "v", 'ο': "o",
	'ρ': "p", 'τ': "t", 'υ': "u", 'χ': "x", 'γ': "y", 'ω': "w",
	// armenian
	'օ': "o", 'ս': "u", 'ց': "g", 'հ': "h", 'ո': "n",
	// latin lookalikes
	'ı': "i", 'ɡ': "g", 'ʐ': "z", 'ƅ': "b", 'ɑ': "a", 'ł': "l", 'ø': "o", 'đ': "d", 'ħ': "h",
	// digits
	'0': "o", '1': "l", '3': "e", '5': "s",
}

// multi-character sequences which read as a single latin letter
var digraphs = strings.NewReplacer("rn", "m", "vv", "w", "cl", "d")

// Folds a domain label to a lower-case latin "skeleton", for lookalike comparisons.
func Skeleton(label string) string {
	// this function needs to be re-defined in every function call to prevent a race condition
	fold := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	s, _, err := transform.String(fold, strings.ToLower(label))
	if err != nil {
		s = strings.ToLower(label)
	}
	var b strings.Builder
	for _, r := range s {
		if m, ok := confusables[r]; ok {
			b.WriteString(m)
		} else {
			b.WriteRune(r)
		}
	}
	return digraphs.Replace(b.String())
}

var scriptTables = []struct {
	name  string
	table *unicode.RangeTable
}{
	{"latin", unicode.Latin},
	{"cyrillic", unicode.Cyrillic},
	{"greek", unicode.Greek},
	{"armenian", unicode.Armenian},
	{"cherokee", unicode.Cherokee},
	{"arabic", unicode.Arabic},
	{"hebrew", unicode.Hebrew},
	{"thai", unicode.Thai},
	{"devanagari", unicode.Devanagari},
	{"hangul", unicode.Hangul},
	// han, hiragana, and katakana are routinely mixed in japanese
	{"cjk", unicode.Han},
	{"cjk", unicode.Hiragana},
	{"cjk", unicode.Katakana},
}

func runeScript(r rune) string {
	// digits, hyphens, combining marks, and shared punctuation like the katakana prolonged sound mark
	if unicode.Is(unicode.Common, r) || unicode.Is(unicode.Inherited, r) {
		return ""
	}
	for _, st := range scriptTables {
		if unicode.Is(st.table, r) {
			return st.name
		}
	}
	if unicode.IsLetter(r) {
		return "other"
	}
	return ""
}

// Returns the distinct writing systems used by letters in a label
func LabelScripts(label string) []string {
	var out []string
	for _, r := range label {
		s := runeScript(r)
		if s == "" {
			continue
		}
		found := false
		for _, o := range out {
			if o == s {
				found = true
				break
			}
		}
		if !found {
			out = append(out, s)
		}
	}
	return out
}

// splits a registrable domain in to its first label and the public suffix
func splitRegistrable(reg string) (string, string) {
	label, suffix, _ := strings.Cut(reg, ".")
	return label, suffix
}

func (c *HomographChecker) Check(ctx context.Context, le *event.LinkEvent) Result {
	host := strings.ToLower(le.Domain)
	reg := helpers.RegistrableDomain(host)
	ureg, err := idna.Punycode.ToUnicode(reg)
	if err != nil {
		return Scored(KindHomograph, ScoreMixedScript, "undecodable punycode label", "bad-punycode")
	}
	label, _ := splitRegistrable(ureg)
	scripts := LabelScripts(label)
	mixed := len(scripts) > 1
	skel := Skeleton(label)

	brands, err := c.Sets.SetMembers(ctx, setstore.SetProtectedBrands)
	if err != nil {
		return Unavailable(KindHomograph, err)
	}

	for _, brand := range brands {
		if reg == brand || helpers.IsSubdomainOf(host, brand) {
			// the genuine brand domain
			return Scored(KindHomograph, 0.0, "protected brand domain")
		}
	}

	for _, brand := range brands {
		blabel, _ := splitRegistrable(brand)
		if label != blabel && skel == Skeleton(blabel) {
			if mixed {
				return Scored(KindHomograph, ScoreHomographCollisionMixed, fmt.Sprintf("mixed-script lookalike of %s", brand), "homograph", "mixed-script")
			}
			return Scored(KindHomograph, ScoreHomographCollision, fmt.Sprintf("lookalike of %s", brand), "homograph")
		}
	}

	if mixed {
		return Scored(KindHomograph, ScoreMixedScript, fmt.Sprintf("label mixes scripts: %s", strings.Join(scripts, ", ")), "mixed-script")
	}

	for _, brand := range brands {
		if strings.HasPrefix(host, brand+".") || strings.Contains(host, "."+brand+".") {
			return Scored(KindHomograph, ScoreBrandSubdomain, fmt.Sprintf("%s used as a subdomain of %s", brand, reg), "brand-subdomain")
		}
	}
	return Scored(KindHomograph, 0.0, "no lookalike detected")
}
