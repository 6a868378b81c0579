package analysis

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"
)

// Interpreter turns raw model output into a Result. It never fails: sections that
// are missing or malformed fall back to their defaults, and output with no
// parseable object becomes the Fallback.
type Interpreter struct {
	Now func() time.Time
}

// NewInterpreter returns an Interpreter stamping results with the wall clock.
func NewInterpreter() *Interpreter {
	return &Interpreter{Now: time.Now}
}

// Interpret maps raw into a Result. The second return reports whether the
// fallback analysis was substituted.
func (in *Interpreter) Interpret(raw string) (Result, bool) {
	now := in.now()

	obj, ok := ExtractJSONObject(raw)
	if !ok {
		return Fallback(now), true
	}
	var sections map[string]json.RawMessage
	if err := json.Unmarshal([]byte(obj), &sections); err != nil {
		return Fallback(now), true
	}

	return Result{
		KeyTerms:         mapKeyTerms(sections["keyTerms"]),
		RiskAssessment:   mapRiskAssessment(sections["riskAssessment"]),
		ClauseAnalysis:   mapClauses(sections["clauseAnalysis"]),
		ComplianceCheck:  mapCompliance(sections["complianceCheck"]),
		ExecutiveSummary: mapSummary(sections["executiveSummary"]),
		ConfidenceScore:  scoreOr(sections["confidenceScore"], DefaultConfidenceScore),
		ProcessedAt:      now.UTC(),
	}, false
}

func (in *Interpreter) now() time.Time {
	if in == nil || in.Now == nil {
		return time.Now()
	}
	return in.Now()
}

// ExtractJSONObject returns the first balanced {...} substring of raw. Braces
// inside JSON string literals do not count toward depth. It reports false when
// raw has no '{' or the first one is never closed.
func ExtractJSONObject(raw string) (string, bool) {
	start := strings.IndexByte(raw, '{')
	if start < 0 {
		return "", false
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(raw); i++ {
		ch := raw[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}
		switch ch {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return raw[start : i+1], true
			}
		}
	}
	return "", false
}

func mapKeyTerms(raw json.RawMessage) []KeyTerm {
	out := []KeyTerm{}
	for _, item := range objectList(raw) {
		out = append(out, KeyTerm{
			Type:       ParseTermType(stringOr(item["type"], "")),
			Value:      stringOr(item["value"], ""),
			Confidence: scoreOr(item["confidence"], defaultItemConfidence),
			Location:   stringOr(item["location"], ""),
		})
	}
	return out
}

func mapRiskAssessment(raw json.RawMessage) RiskAssessment {
	obj, ok := object(raw)
	if !ok {
		return DefaultRiskAssessment()
	}
	def := DefaultRiskAssessment()
	risks := []Risk{}
	for _, item := range objectList(obj["risks"]) {
		risks = append(risks, Risk{
			Category:       stringOr(item["category"], ""),
			Description:    stringOr(item["description"], ""),
			Severity:       ParseSeverity(stringOr(item["severity"], "")),
			Recommendation: stringOr(item["recommendation"], ""),
			Confidence:     scoreOr(item["confidence"], defaultItemConfidence),
		})
	}
	overall := def.OverallRisk
	if s, ok := stringValue(obj["overallRisk"]); ok {
		overall = ParseSeverity(s)
	}
	return RiskAssessment{
		OverallRisk: overall,
		Risks:       risks,
		TotalScore:  scoreOr(obj["totalScore"], def.TotalScore),
	}
}

func mapClauses(raw json.RawMessage) []ClauseAnalysis {
	out := []ClauseAnalysis{}
	for _, item := range objectList(raw) {
		out = append(out, ClauseAnalysis{
			ClauseType:     stringOr(item["clauseType"], ""),
			Content:        stringOr(item["content"], ""),
			IsStandard:     boolOr(item["isStandard"], false),
			UnusualAspects: stringList(item["unusualAspects"]),
			Recommendation: stringOr(item["recommendation"], ""),
		})
	}
	return out
}

func mapCompliance(raw json.RawMessage) ComplianceCheck {
	obj, ok := object(raw)
	if !ok {
		return DefaultComplianceCheck()
	}
	return ComplianceCheck{
		OverallCompliance:  scoreOr(obj["overallCompliance"], DefaultComplianceCheck().OverallCompliance),
		MissingClauses:     stringList(obj["missingClauses"]),
		NonStandardClauses: stringList(obj["nonStandardClauses"]),
		Recommendations:    stringList(obj["recommendations"]),
	}
}

func mapSummary(raw json.RawMessage) ExecutiveSummary {
	obj, ok := object(raw)
	if !ok {
		return DefaultExecutiveSummary()
	}
	def := DefaultExecutiveSummary()
	return ExecutiveSummary{
		Overview:       stringOr(obj["overview"], def.Overview),
		KeyHighlights:  stringList(obj["keyHighlights"]),
		MajorConcerns:  stringList(obj["majorConcerns"]),
		Recommendation: stringOr(obj["recommendation"], def.Recommendation),
	}
}

func isNull(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}

func object(raw json.RawMessage) (map[string]json.RawMessage, bool) {
	if isNull(raw) {
		return nil, false
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil || obj == nil {
		return nil, false
	}
	return obj, true
}

// objectList decodes an array of objects, skipping elements that are not objects.
func objectList(raw json.RawMessage) []map[string]json.RawMessage {
	if isNull(raw) {
		return nil
	}
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil
	}
	out := make([]map[string]json.RawMessage, 0, len(items))
	for _, item := range items {
		if obj, ok := object(item); ok {
			out = append(out, obj)
		}
	}
	return out
}

// stringValue accepts strings, numbers and booleans. Strings come back
// byte-for-byte; callers that match vocabulary normalize for themselves.
func stringValue(raw json.RawMessage) (string, bool) {
	if isNull(raw) {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, true
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String(), true
	}
	var b bool
	if err := json.Unmarshal(raw, &b); err == nil {
		return strconv.FormatBool(b), true
	}
	return "", false
}

func stringOr(raw json.RawMessage, def string) string {
	if s, ok := stringValue(raw); ok {
		return s
	}
	return def
}

// stringList accepts an array or a single scalar. Array elements that are not
// scalars are dropped; empty strings inside an array are kept as given.
func stringList(raw json.RawMessage) []string {
	out := []string{}
	if isNull(raw) {
		return out
	}
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		if s, ok := stringValue(raw); ok && strings.TrimSpace(s) != "" {
			out = append(out, s)
		}
		return out
	}
	for _, item := range items {
		if s, ok := stringValue(item); ok {
			out = append(out, s)
		}
	}
	return out
}

func boolOr(raw json.RawMessage, def bool) bool {
	s, ok := stringValue(raw)
	if !ok {
		return def
	}
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "yes", "1":
		return true
	case "false", "no", "0":
		return false
	}
	return def
}

// scoreOr reads a number or numeric string ("85", "85%") and clamps it to [0,100].
func scoreOr(raw json.RawMessage, def float64) float64 {
	s, ok := stringValue(raw)
	if !ok {
		return def
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "%")
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return def
	}
	return clampScore(v)
}

func clampScore(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
