package usecase

import (
	"regexp"
	"strings"

	"github.com/kirillkom/provenance-rag/internal/core/domain"
)

// RouterRules is the data-driven pattern set behind query classification.
// Pattern literals must be lower-case: matching happens on the normalized
// query, and a same-case mismatch here is a correctness bug.
type RouterRules struct {
	SemanticPatterns []string                   `yaml:"semantic_patterns"`
	Interrogatives   []string                   `yaml:"interrogatives"`
	FactKeywords     map[string]domain.FactType `yaml:"fact_keywords"`
	SubjectStopwords []string                   `yaml:"subject_stopwords"`
}

func DefaultRouterRules() RouterRules {
	return RouterRules{
		SemanticPatterns: []string{
			"why", "how does", "how did", "explain", "impact",
			"what caused", "relationship between", "compare", "implication",
		},
		Interrogatives: []string{
			"what", "which", "when", "show", "list", "give", "latest", "current",
		},
		FactKeywords: map[string]domain.FactType{
			"rating":         domain.FactRating,
			"recommendation": domain.FactRating,
			"price target":   domain.FactPriceTarget,
			"target price":   domain.FactPriceTarget,
			"margin":         domain.FactMetric,
			"revenue":        domain.FactMetric,
			"eps":            domain.FactMetric,
			"earnings":       domain.FactMetric,
			"guidance":       domain.FactMetric,
		},
		SubjectStopwords: []string{
			"BUY", "SELL", "HOLD", "EPS", "CEO", "CFO", "FY", "GAAP", "YOY",
		},
	}
}

var (
	subjectPattern = regexp.MustCompile(`\b[A-Z]{2,5}\b`)
	periodPattern  = regexp.MustCompile(`\b(?:q[1-4]\s*(?:fy)?\s*20\d{2}|fy\s*20\d{2}|q[1-4])\b`)
)

type routeRule struct {
	match      func(q routedQuery) bool
	queryType  domain.QueryType
	confidence float64
}

type routedQuery struct {
	hasFact     bool
	hasSemantic bool
	hasSubject  bool
	hasQuestion bool
	storeOnline bool
}

// Router classifies queries into structured, semantic, hybrid or unknown.
// It is a pure function over its inputs and safe for concurrent use.
type Router struct {
	rules    RouterRules
	cascade  []routeRule
	stopword map[string]struct{}
}

func NewRouter(rules RouterRules) *Router {
	if len(rules.SemanticPatterns) == 0 && len(rules.FactKeywords) == 0 {
		rules = DefaultRouterRules()
	}
	stopword := make(map[string]struct{}, len(rules.SubjectStopwords))
	for _, w := range rules.SubjectStopwords {
		stopword[strings.ToUpper(w)] = struct{}{}
	}

	// Ordered cascade, first match wins.
	cascade := []routeRule{
		{
			match:      func(q routedQuery) bool { return q.hasFact && q.hasSubject && q.hasSemantic },
			queryType:  domain.QueryHybrid,
			confidence: 0.85,
		},
		{
			match:      func(q routedQuery) bool { return q.hasSemantic },
			queryType:  domain.QuerySemantic,
			confidence: 0.90,
		},
		{
			match: func(q routedQuery) bool {
				return q.storeOnline && q.hasQuestion && q.hasSubject && q.hasFact
			},
			queryType:  domain.QueryStructured,
			confidence: 0.90,
		},
	}

	return &Router{rules: rules, cascade: cascade, stopword: stopword}
}

// Classify inspects a query and emits a classification plus extracted
// parameters. It never fails: the worst case is unknown with confidence 0,
// which callers treat as semantic.
func (r *Router) Classify(queryText string, structuredAvailable bool) domain.QueryClassification {
	normalized := strings.ToLower(queryText)

	subject := r.extractSubject(queryText)
	factType := r.extractFactType(normalized)
	period := extractPeriod(queryText, normalized)

	q := routedQuery{
		hasFact:     factType != "",
		hasSemantic: r.matchesSemantic(normalized),
		hasSubject:  subject != "",
		hasQuestion: r.matchesInterrogative(normalized),
		storeOnline: structuredAvailable,
	}

	for _, rule := range r.cascade {
		if rule.match(q) {
			return domain.QueryClassification{
				QueryType:        rule.queryType,
				Confidence:       rule.confidence,
				ExtractedSubject: subject,
				ExtractedFact:    factType,
				ExtractedPeriod:  period,
			}
		}
	}

	return domain.QueryClassification{
		QueryType:        domain.QueryUnknown,
		Confidence:       0,
		ExtractedSubject: subject,
		ExtractedFact:    factType,
		ExtractedPeriod:  period,
	}
}

func (r *Router) matchesSemantic(normalized string) bool {
	for _, p := range r.rules.SemanticPatterns {
		if strings.Contains(normalized, p) {
			return true
		}
	}
	return false
}

func (r *Router) matchesInterrogative(normalized string) bool {
	for _, p := range r.rules.Interrogatives {
		if strings.Contains(normalized, p) {
			return true
		}
	}
	return false
}

func (r *Router) extractFactType(normalized string) domain.FactType {
	// Longer keywords first so "price target" beats a bare "target".
	best := ""
	var bestType domain.FactType
	for keyword, factType := range r.rules.FactKeywords {
		if strings.Contains(normalized, keyword) && len(keyword) > len(best) {
			best = keyword
			bestType = factType
		}
	}
	return bestType
}

// extractSubject returns the first ticker-like token from the original
// query so display keeps the author's casing.
func (r *Router) extractSubject(original string) string {
	for _, candidate := range subjectPattern.FindAllString(original, -1) {
		if _, skip := r.stopword[candidate]; skip {
			continue
		}
		return candidate
	}
	return ""
}

// extractPeriod matches on the normalized text but slices the original so
// "q2 2024" comes back as "Q2 2024". Normalization is ASCII lower-casing,
// so indexes line up between the two strings.
func extractPeriod(original, normalized string) string {
	loc := periodPattern.FindStringIndex(normalized)
	if loc == nil {
		return ""
	}
	if loc[1] <= len(original) {
		return original[loc[0]:loc[1]]
	}
	return normalized[loc[0]:loc[1]]
}
