// Package normalize implements the identifier normalizer (C4): turning a
// list of free-form gene identifiers into canonical, deduplicated Gene
// values, with a conservative offline fallback when the resolver provider
// is unavailable or returns nothing. Grounded on gene_validator.py's
// clean/map/fallback pipeline, generalized to Go's context-first resolver
// interface and resilience.Call retry wrapping.
package normalize

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"unicode"

	"github.com/cardiopath/nets/internal/resilience"
	"github.com/cardiopath/nets/pkg/models"
	"github.com/cardiopath/nets/pkg/providers"
)

var greekToLatin = map[rune]string{
	'α': "alpha", 'β': "beta", 'γ': "gamma", 'δ': "delta", 'ε': "epsilon",
	'ζ': "zeta", 'η': "eta", 'θ': "theta", 'κ': "kappa", 'λ': "lambda",
	'μ': "mu", 'ν': "nu", 'ξ': "xi", 'π': "pi", 'ρ': "rho", 'σ': "sigma",
	'τ': "tau", 'φ': "phi", 'χ': "chi", 'ψ': "psi", 'ω': "omega",
}

// commonAliases maps frequently-used alternative names and typos to their
// standard HGNC symbol, as gene_validator.py's _map_common_names does.
var commonAliases = map[string]string{
	"PI3KCA":       "PIK3CA",
	"BETA-CATENIN": "CTNNB1",
	"BETA-ACTIN":   "ACTB",
	"ALPHA-ACTIN":  "ACTA1",
	"NF-KAPPAB":    "NFKB1",
	"P53":          "TP53",
	"P21":          "CDKN1A",
	"P27":          "CDKN1B",
	"P16":          "CDKN2A",
	"MDM-2":        "MDM2",
	"BCL-2":        "BCL2",
	"CASP-3":       "CASP3",
	"CASP-9":       "CASP9",
}

// knownAbbreviations are short, vowel-less gene symbols accepted as valid
// despite failing the general vowel heuristic.
var knownAbbreviations = map[string]struct{}{
	"BRCA": {}, "TP53": {}, "MYC": {}, "SRC": {}, "JAK": {}, "STAT": {},
	"MAPK": {}, "ERK": {}, "JNK": {}, "MTOR": {}, "ATM": {}, "ATR": {},
	"CHK": {}, "CDK": {}, "GSK": {}, "PTEN": {}, "RB1": {}, "APC": {},
	"NF1": {}, "NF2": {}, "VHL": {}, "WT1": {}, "RET": {}, "ALK": {},
	"MET": {}, "KIT": {}, "TNF": {}, "IFN": {}, "MHC": {}, "HLA": {},
}

var trailingDigitsRe = regexp.MustCompile(`\d{3,}$`)
var trailingLetterDigitRe = regexp.MustCompile(`^[A-Z]+[A-Z0-9]*\d+$`)

// CleanID trims whitespace and transliterates Greek letters to their
// English names, e.g. "TNF-α" -> "TNF-alpha".
func CleanID(id string) string {
	id = strings.TrimSpace(id)
	var b strings.Builder
	for _, r := range id {
		if repl, ok := greekToLatin[r]; ok {
			if unicode.IsUpper(r) {
				b.WriteString(strings.ToUpper(repl[:1]) + repl[1:])
			} else {
				b.WriteString(repl)
			}
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// MapCommonName rewrites a known alternative name or typo to its standard
// symbol; returns id unchanged if no mapping applies.
func MapCommonName(id string) string {
	if mapped, ok := commonAliases[strings.ToUpper(id)]; ok {
		return mapped
	}
	return id
}

// IsValidSymbolShape reports whether id has the general shape of a gene
// symbol: 2-15 alphanumeric-or-hyphen characters starting with a letter,
// not ending in 3+ digits, with enough distinct characters to not look like
// noise, per gene_validator.py's _is_valid_gene_symbol.
func IsValidSymbolShape(id string) bool {
	if len(id) < 2 || len(id) > 15 {
		return false
	}
	if !unicode.IsLetter(rune(id[0])) {
		return false
	}
	for _, c := range id {
		if !(unicode.IsLetter(c) || unicode.IsDigit(c) || c == '-') {
			return false
		}
	}
	if trailingDigitsRe.MatchString(id) {
		return false
	}
	distinct := map[rune]struct{}{}
	for _, c := range strings.ToUpper(id) {
		distinct[c] = struct{}{}
	}
	if float64(len(distinct)) < float64(len(id))*0.4 {
		return false
	}
	upper := strings.ToUpper(id)
	hasVowel := strings.ContainsAny(upper, "AEIOU")
	if !hasVowel {
		if _, known := knownAbbreviations[upper]; !known && len(upper) > 4 {
			if !trailingLetterDigitRe.MatchString(upper) {
				return false
			}
		}
	}
	return true
}

// IsValidSymbolStrict applies IsValidSymbolShape plus the stricter checks
// gene_validator.py reserves for offline fallback acceptance: no
// triple-repeated letters, minimum length 3.
func IsValidSymbolStrict(id string) bool {
	if !IsValidSymbolShape(id) {
		return false
	}
	if len(id) < 3 {
		return false
	}
	for i := 0; i+2 < len(id); i++ {
		if id[i] == id[i+1] && id[i+1] == id[i+2] {
			return false
		}
	}
	return true
}

// Result is the outcome of normalizing a batch of identifiers.
type Result struct {
	Valid    []models.Gene
	Invalid  []string
	Warnings []string
}

// Normalizer resolves identifiers via a providers.IdResolver, wrapped in
// resilience.Call, falling back to an offline heuristic when the resolver
// errs or returns nothing.
type Normalizer struct {
	Resolver      providers.IdResolver
	Limiter       *resilience.Limiter
	TargetSpecies string
}

// New constructs a Normalizer.
func New(resolver providers.IdResolver, limiter *resilience.Limiter, targetSpecies string) *Normalizer {
	return &Normalizer{Resolver: resolver, Limiter: limiter, TargetSpecies: targetSpecies}
}

// Normalize validates and canonicalizes ids, deduplicating by resolved
// symbol and recording a warning for every duplicate collapsed from a
// different input string (a repeat of the same input is dropped silently),
// following
// gene_validator.py's validate_genes dedup-by-symbol behavior.
func (n *Normalizer) Normalize(ctx context.Context, ids []string) Result {
	res := Result{}
	seenSymbol := make(map[string]string, len(ids)) // symbol -> first input that produced it

	for _, raw := range ids {
		gene, err := n.normalizeOne(ctx, raw)
		if err != nil || gene.Symbol == "" {
			res.Invalid = append(res.Invalid, raw)
			continue
		}
		if original, dup := seenSymbol[gene.Symbol]; dup {
			if original != raw {
				res.Warnings = append(res.Warnings, "duplicate gene: '"+raw+"' maps to same symbol as '"+original+"' ("+gene.Symbol+")")
			}
			continue
		}
		seenSymbol[gene.Symbol] = raw
		res.Valid = append(res.Valid, gene)
	}
	return res
}

func (n *Normalizer) normalizeOne(ctx context.Context, raw string) (models.Gene, error) {
	cleaned := CleanID(raw)
	mapped := MapCommonName(cleaned)

	gene, err := resilience.Call(ctx, n.Limiter, "id_resolver", func(ctx context.Context) (models.Gene, error) {
		return n.Resolver.Resolve(ctx, mapped, n.TargetSpecies)
	})
	if err == nil && gene.Valid(n.TargetSpecies) {
		gene.InputID = raw
		return gene, nil
	}

	if !IsValidSymbolStrict(cleaned) {
		if err == nil {
			err = errors.New("resolver returned no match")
		}
		return models.Gene{}, models.NewError(models.KindValidationFailed, err)
	}
	return models.Gene{
		InputID:     raw,
		CanonicalID: "unknown",
		Symbol:      strings.ToUpper(cleaned),
		Species:     n.TargetSpecies,
	}, nil
}
