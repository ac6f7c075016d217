// Complexity Analyzer.
//
// Scores a prompt from weighted keyword and structural indicators and maps
// the score to a tier. Pure and deterministic; safe for concurrent use.

package orchestration

import (
	"regexp"
	"strings"
)

// tokensPerWord is the rough word-to-token ratio used for estimates.
const tokensPerWord = 1.3

func keywordPattern(words ...string) *regexp.Regexp {
	quoted := make([]string, len(words))
	for i, w := range words {
		quoted[i] = strings.ReplaceAll(regexp.QuoteMeta(w), " ", `\s+`)
	}
	return regexp.MustCompile(`(?i)\b(?:` + strings.Join(quoted, "|") + `)\b`)
}

var (
	legalPattern    = keywordPattern("lawsuit", "legal", "case", "law firm", "attorney", "contract", "litigation")
	analysisPattern = keywordPattern("analyze", "analyse", "review", "examine", "assess", "evaluate", "compare", "identify", "determine")
	researchPattern = keywordPattern("research", "search for", "look up", "locate", "find firms", "find lawyers")
	listPattern     = keywordPattern("list", "enumerate", "identify all", "find all")
	partsPattern    = keywordPattern("then", "also", "additionally", "furthermore", "based on", "after that")
	filesPattern    = keywordPattern("uploaded", "attached", "file", "files", "document", "documents", "case files", "summary")

	// numberedListPattern matches markers such as "1)" or "2." at a line
	// start or after whitespace, so decimals like "2.5" do not count.
	numberedListPattern = regexp.MustCompile(`(?m)(?:^|\s)\d{1,2}[.)](?:\s|$)`)
)

// Analyzer scores prompts with a fixed weight table.
type Analyzer struct {
	weights   Weights
	cutoffs   Cutoffs
	longWords int
}

// NewAnalyzer creates an analyzer from cfg; zero fields take defaults.
func NewAnalyzer(cfg Config) *Analyzer {
	cfg = cfg.withDefaults()
	return &Analyzer{
		weights:   cfg.Weights,
		cutoffs:   cfg.Cutoffs,
		longWords: cfg.LongWordThreshold,
	}
}

// Analyze scores prompt text alone.
func (a *Analyzer) Analyze(prompt string) ComplexityAnalysis {
	return a.AnalyzeWithFiles(prompt, false)
}

// AnalyzeWithFiles scores prompt, treating attached files as a file reference.
func (a *Analyzer) AnalyzeWithFiles(prompt string, hasFiles bool) ComplexityAnalysis {
	words := len(strings.Fields(prompt))
	questions := strings.Count(prompt, "?")

	ind := Indicators{
		MultipleQuestions: questions > 1,
		LongContext:       words > a.longWords,
		NumberedList:      numberedListPattern.MatchString(prompt),
		Legal:             legalPattern.MatchString(prompt),
		AnalysisRequest:   analysisPattern.MatchString(prompt),
		ResearchRequest:   researchPattern.MatchString(prompt),
		ListRequest:       listPattern.MatchString(prompt),
		MultipleParts:     partsPattern.MatchString(prompt),
		FileReferences:    hasFiles || filesPattern.MatchString(prompt),
	}

	score := a.score(ind)
	tier := a.tierFor(score)

	return ComplexityAnalysis{
		Tier:            tier,
		Score:           score,
		Indicators:      ind,
		Strategy:        StrategyFor(tier),
		WordCount:       words,
		QuestionCount:   questions,
		EstimatedTokens: int(float64(words) * tokensPerWord),
	}
}

func (a *Analyzer) score(ind Indicators) int {
	w := a.weights
	score := 0
	for _, term := range []struct {
		on     bool
		weight int
	}{
		{ind.MultipleQuestions, w.MultipleQuestions},
		{ind.LongContext, w.LongContext},
		{ind.NumberedList, w.NumberedList},
		{ind.Legal, w.Legal},
		{ind.AnalysisRequest, w.AnalysisRequest},
		{ind.ResearchRequest, w.ResearchRequest},
		{ind.ListRequest, w.ListRequest},
		{ind.MultipleParts, w.MultipleParts},
		{ind.FileReferences, w.FileReferences},
	} {
		if term.on {
			score += term.weight
		}
	}
	return score
}

func (a *Analyzer) tierFor(score int) Tier {
	switch {
	case score >= a.cutoffs.MultiFaceted:
		return TierMultiFaceted
	case score >= a.cutoffs.Complex:
		return TierComplex
	case score >= a.cutoffs.Moderate:
		return TierModerate
	default:
		return TierSimple
	}
}

// subTaskRange returns the sub-task count requested from the decomposer.
func subTaskRange(t Tier, limit int) (int, int) {
	lo, hi := 2, 5
	if t == TierMultiFaceted {
		lo, hi = 3, 7
	}
	if hi > limit {
		hi = limit
	}
	if lo > hi {
		lo = hi
	}
	return lo, hi
}
