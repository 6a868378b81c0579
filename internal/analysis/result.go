package analysis

import (
	"strings"
	"time"
)

// TermType classifies an extracted key term.
type TermType string

const (
	TermParty       TermType = "party"
	TermDate        TermType = "date"
	TermAmount      TermType = "amount"
	TermPaymentTerm TermType = "payment_term"
	TermObligation  TermType = "obligation"
	TermOther       TermType = "other"
)

// Severity is shared by overall risk and individual risks.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// DefaultConfidenceScore is used when the model omits confidenceScore.
const DefaultConfidenceScore = 75

// defaultItemConfidence back-fills a missing per-item confidence.
const defaultItemConfidence = 50

// Result is the structured legal analysis persisted on a document.
type Result struct {
	KeyTerms         []KeyTerm        `json:"keyTerms"`
	RiskAssessment   RiskAssessment   `json:"riskAssessment"`
	ClauseAnalysis   []ClauseAnalysis `json:"clauseAnalysis"`
	ComplianceCheck  ComplianceCheck  `json:"complianceCheck"`
	ExecutiveSummary ExecutiveSummary `json:"executiveSummary"`
	ConfidenceScore  float64          `json:"confidenceScore"`
	ProcessedAt      time.Time        `json:"processedAt"`
}

type KeyTerm struct {
	Type       TermType `json:"type"`
	Value      string   `json:"value"`
	Confidence float64  `json:"confidence"`
	Location   string   `json:"location"`
}

type RiskAssessment struct {
	OverallRisk Severity `json:"overallRisk"`
	Risks       []Risk   `json:"risks"`
	TotalScore  float64  `json:"totalScore"`
}

type Risk struct {
	Category       string   `json:"category"`
	Description    string   `json:"description"`
	Severity       Severity `json:"severity"`
	Recommendation string   `json:"recommendation"`
	Confidence     float64  `json:"confidence"`
}

type ClauseAnalysis struct {
	ClauseType     string   `json:"clauseType"`
	Content        string   `json:"content"`
	IsStandard     bool     `json:"isStandard"`
	UnusualAspects []string `json:"unusualAspects"`
	Recommendation string   `json:"recommendation"`
}

type ComplianceCheck struct {
	OverallCompliance  float64  `json:"overallCompliance"`
	MissingClauses     []string `json:"missingClauses"`
	NonStandardClauses []string `json:"nonStandardClauses"`
	Recommendations    []string `json:"recommendations"`
}

type ExecutiveSummary struct {
	Overview       string   `json:"overview"`
	KeyHighlights  []string `json:"keyHighlights"`
	MajorConcerns  []string `json:"majorConcerns"`
	Recommendation string   `json:"recommendation"`
}

// ParseTermType maps model vocabulary onto TermType; anything unrecognized is TermOther.
func ParseTermType(raw string) TermType {
	switch normalizeWord(raw) {
	case "party", "parties":
		return TermParty
	case "date", "dates":
		return TermDate
	case "amount", "amounts":
		return TermAmount
	case "payment_term", "payment_terms", "payment":
		return TermPaymentTerm
	case "obligation", "obligations":
		return TermObligation
	default:
		return TermOther
	}
}

// ParseSeverity maps model vocabulary onto Severity; anything unrecognized is SeverityMedium.
func ParseSeverity(raw string) Severity {
	switch normalizeWord(raw) {
	case "low":
		return SeverityLow
	case "medium", "moderate":
		return SeverityMedium
	case "high":
		return SeverityHigh
	case "critical":
		return SeverityCritical
	default:
		return SeverityMedium
	}
}

// Valid reports whether t is one of the declared term types.
func (t TermType) Valid() bool {
	switch t {
	case TermParty, TermDate, TermAmount, TermPaymentTerm, TermObligation, TermOther:
		return true
	}
	return false
}

// Valid reports whether s is one of the declared severities.
func (s Severity) Valid() bool {
	switch s {
	case SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical:
		return true
	}
	return false
}

func normalizeWord(raw string) string {
	s := strings.ToLower(strings.TrimSpace(raw))
	s = strings.ReplaceAll(s, "-", "_")
	s = strings.ReplaceAll(s, " ", "_")
	return s
}

func DefaultRiskAssessment() RiskAssessment {
	return RiskAssessment{OverallRisk: SeverityMedium, Risks: []Risk{}, TotalScore: 50}
}

func DefaultComplianceCheck() ComplianceCheck {
	return ComplianceCheck{
		OverallCompliance:  70,
		MissingClauses:     []string{},
		NonStandardClauses: []string{},
		Recommendations:    []string{},
	}
}

func DefaultExecutiveSummary() ExecutiveSummary {
	return ExecutiveSummary{
		Overview:       "Analysis completed",
		KeyHighlights:  []string{},
		MajorConcerns:  []string{},
		Recommendation: "Review recommended",
	}
}

// Fallback is substituted when the model output cannot be parsed at all.
func Fallback(now time.Time) Result {
	return Result{
		KeyTerms: []KeyTerm{
			{Type: TermOther, Value: "Analysis completed", Confidence: 50, Location: "Document"},
		},
		RiskAssessment: RiskAssessment{
			OverallRisk: SeverityMedium,
			Risks: []Risk{
				{
					Category:       "General",
					Description:    "Automated risk analysis could not be completed for this document",
					Severity:       SeverityMedium,
					Recommendation: "Have a qualified reviewer examine the full document",
					Confidence:     50,
				},
			},
			TotalScore: 50,
		},
		ClauseAnalysis: []ClauseAnalysis{
			{
				ClauseType:     "General",
				Content:        "Document text was processed; clause-level analysis is unavailable",
				IsStandard:     true,
				UnusualAspects: []string{},
				Recommendation: "Review clauses manually",
			},
		},
		ComplianceCheck: ComplianceCheck{
			OverallCompliance:  50,
			MissingClauses:     []string{},
			NonStandardClauses: []string{},
			Recommendations:    []string{"Manual review recommended to confirm compliance"},
		},
		ExecutiveSummary: ExecutiveSummary{
			Overview:       "Text extraction succeeded but detailed analysis is unavailable",
			KeyHighlights:  []string{"Document text extracted successfully"},
			MajorConcerns:  []string{"Detailed automated analysis could not be produced"},
			Recommendation: "Manual review recommended",
		},
		ConfidenceScore: 50,
		ProcessedAt:     now.UTC(),
	}
}
