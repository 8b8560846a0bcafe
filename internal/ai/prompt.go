package ai

import (
	"fmt"
	"strings"

	"github.com/david/bid-finder/internal/models"
)

const maxDescriptionChars = 4000

func evaluationPrompt(company models.Company, opp models.Opportunity) string {
	var b strings.Builder

	b.WriteString("You are a federal contracting bid/no-bid analyst. Evaluate the opportunity below for the company below.\n\n")

	b.WriteString("COMPANY PROFILE:\n")
	fmt.Fprintf(&b, "Name: %s\n", company.Name)
	fmt.Fprintf(&b, "NAICS codes: %s\n", strings.Join(company.NAICSCodes, ", "))
	fmt.Fprintf(&b, "Certifications: %s\n", orNone(strings.Join(company.SetAsides, ", ")))
	fmt.Fprintf(&b, "Geographic preferences: %s\n", orNone(strings.Join(company.GeographicPreferences, ", ")))
	if company.ContractValueMin != nil && company.ContractValueMax != nil {
		fmt.Fprintf(&b, "Target contract range: $%.0f - $%.0f\n", *company.ContractValueMin, *company.ContractValueMax)
	}
	if company.Capabilities != "" {
		fmt.Fprintf(&b, "Capabilities: %s\n", truncateText(company.Capabilities, maxDescriptionChars))
	}

	b.WriteString("\nOPPORTUNITY:\n")
	fmt.Fprintf(&b, "Title: %s\n", opp.Title)
	fmt.Fprintf(&b, "Agency: %s\n", opp.Agency)
	fmt.Fprintf(&b, "NAICS: %s\n", opp.NAICSCode)
	if opp.SetAsideType != nil {
		fmt.Fprintf(&b, "Set-aside: %s\n", *opp.SetAsideType)
	}
	if opp.ResponseDeadline != nil {
		fmt.Fprintf(&b, "Response deadline: %s\n", opp.ResponseDeadline.Format("2006-01-02"))
	}
	if opp.EstimatedValueHigh != nil {
		fmt.Fprintf(&b, "Estimated value: $%.0f\n", *opp.EstimatedValueHigh)
	}
	if opp.PlaceState != "" {
		fmt.Fprintf(&b, "Place of performance: %s, %s\n", opp.PlaceCity, opp.PlaceState)
	}
	fmt.Fprintf(&b, "Description: %s\n", truncateText(opp.Description, maxDescriptionChars))

	b.WriteString(`
Respond with JSON only, no prose, using exactly these fields:
{
  "fit_score": <0-100>,
  "win_probability": <0-100>,
  "confidence": <0-100>,
  "recommendation": "BID" | "RESEARCH" | "NO_BID",
  "reasoning": "<detailed analysis>",
  "executive_summary": "<2-3 sentences>",
  "strengths": ["..."],
  "weaknesses": ["..."],
  "estimated_profit": <dollars>,
  "profit_margin_percentage": <percent>,
  "cost_breakdown": {"tasks": [{"name": "<work item>", "cost": <dollars>}], "total": <dollars>}
}`)

	return b.String()
}

func genericPrompt(opp models.Opportunity) string {
	var b strings.Builder

	b.WriteString("Assess the overall quality of this contracting opportunity, independent of any bidder.\n\n")
	fmt.Fprintf(&b, "Title: %s\n", opp.Title)
	fmt.Fprintf(&b, "Agency: %s\n", opp.Agency)
	fmt.Fprintf(&b, "NAICS: %s\n", opp.NAICSCode)
	fmt.Fprintf(&b, "Description: %s\n", truncateText(opp.Description, maxDescriptionChars))

	b.WriteString(`
Respond with JSON only:
{
  "quality": <0-100, clarity and completeness of the solicitation>,
  "complexity": <0-100, technical and compliance burden>,
  "risk_factors": ["..."]
}`)

	return b.String()
}

// EmbeddingText flattens the opportunity into the text embedded for
// similarity search.
func EmbeddingText(opp models.Opportunity) string {
	parts := []string{opp.Title, opp.Agency, opp.NAICSCode, opp.Description}
	return truncateText(strings.Join(parts, "\n"), maxDescriptionChars*2)
}

func truncateText(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}

func orNone(s string) string {
	if s == "" {
		return "none"
	}
	return s
}
