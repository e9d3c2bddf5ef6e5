package classify

import (
	"sort"
	"strings"

	"MetalsMonitor/internal/domain"
)

// categoryOrder fixes the iteration order used for scoring; the first
// category to reach the maximum score wins ties.
var categoryOrder = []domain.Category{
	domain.CategoryPrices,
	domain.CategoryProduction,
	domain.CategoryTechnology,
	domain.CategorySupplyChain,
}

var categoryKeywords = map[domain.Category][]string{
	domain.CategoryPrices: {
		"price", "prices", "market", "lme", "futures", "premium", "tariff",
		"demand", "surplus", "deficit", "rally", "contango", "backwardation",
	},
	domain.CategoryProduction: {
		"production", "smelter", "capacity", "output", "mill", "furnace",
		"plant", "mine", "refinery", "restart", "expansion", "curtailment",
	},
	domain.CategoryTechnology: {
		"technology", "innovation", "sustainability", "decarbonization",
		"hydrogen", "recycling", "emissions", "green", "electrolysis",
		"low-carbon", "patent", "research",
	},
	domain.CategorySupplyChain: {
		"supply chain", "logistics", "shipping", "export", "import",
		"inventory", "stockpile", "freight", "port", "sanctions", "quota",
	},
}

// Tag family tables. Keys are the canonical tag; values are the aliases
// matched as case-insensitive substrings.
var metalTags = map[string][]string{
	"aluminum": {"aluminum", "aluminium", "alumina", "bauxite"},
	"steel":    {"steel", "stainless", "rebar", "hot-rolled", "ferrous"},
	"copper":   {"copper", "cathode", "cuprum"},
	"nickel":   {"nickel", "ferronickel", "npi"},
}

var organizationTags = map[string][]string{
	"cogne-acciai-speciali": {"cogne acciai", "cogne"},
	"tenaris":               {"tenaris"},
	"prysmian":              {"prysmian"},
	"enel-x":                {"enel x", "enel-x"},
	"italbronze":            {"italbronze"},
	"acciai-speciali-terni": {"acciai speciali terni", "ast terni"},
	"arvedi":                {"arvedi"},
	"danieli":               {"danieli"},
	"acciaierie-italia":     {"acciaierie d'italia", "ilva"},
	"kme":                   {"kme"},
}

var stageTags = map[string][]string{
	"pricing":    {"price", "market", "lme", "premium"},
	"production": {"smelter", "capacity", "output", "plant", "mill"},
	"logistics":  {"shipping", "freight", "logistics", "port", "export", "import"},
	"recycling":  {"recycling", "scrap", "circular"},
	"policy":     {"tariff", "sanctions", "regulation", "policy", "subsidy"},
}

// Classify maps free text to one category and a set of descriptive tags.
// It is a pure function of its inputs and the static tables above.
func Classify(title, summary string) (domain.Category, []string) {
	text := strings.ToLower(title + " " + summary)

	best := domain.CategoryGeneral
	bestScore := 0
	for _, cat := range categoryOrder {
		score := 0
		for _, kw := range categoryKeywords[cat] {
			if strings.Contains(text, kw) {
				score++
			}
		}
		if score > bestScore {
			bestScore = score
			best = cat
		}
	}

	return best, Tags(text)
}

// Tags extracts metal, organization and value-chain tags from lowered text.
// Families are evaluated in a fixed order and each family's matches are
// sorted, so identical input always yields identical output.
func Tags(loweredText string) []string {
	var tags []string
	for _, family := range []map[string][]string{metalTags, organizationTags, stageTags} {
		tags = append(tags, matchFamily(loweredText, family)...)
	}
	return tags
}

func matchFamily(text string, family map[string][]string) []string {
	var matched []string
	for tag, aliases := range family {
		for _, alias := range aliases {
			if strings.Contains(text, alias) {
				matched = append(matched, tag)
				break
			}
		}
	}
	sort.Strings(matched)
	return matched
}
