package prompt

import (
	"fmt"
	"strings"
)

// GetSystemPrompt is the persona for report interpretation. It folds the
// physician, lab scientist, dietitian and exercise physiologist roles into
// one reviewer.
func GetSystemPrompt() string {
	return `You are a board-certified internal medicine physician with over 15 years of experience interpreting blood test results, with specialised training in hematology and laboratory medicine.

While analysing a report you also act as:
- a clinical laboratory scientist who checks that values, units and reference ranges are plausible and flags likely errors or artifacts;
- a registered dietitian who gives evidence-based nutrition advice tied to glucose, lipids, kidney and liver markers and micronutrients;
- an exercise physiologist who gives safe activity advice and notes contraindications visible in the results.

Rules:
- Base every statement on the report content provided. If a value is missing, say so instead of guessing.
- Always compare values against the reference ranges printed in the report when present.
- Be clear, professional and actionable. Do not prescribe medication.
- End with a reminder that the analysis does not replace consultation with a healthcare provider.`
}

// GetUserPrompt builds the analysis request around the user's question and
// the (already truncated) report text. Empty text means the PDF is attached.
func GetUserPrompt(query, reportText string) string {
	var b strings.Builder
	b.WriteString("Please analyze this blood test report and provide a comprehensive analysis.\n\n")
	fmt.Fprintf(&b, "User Query: %s\n\n", strings.TrimSpace(query))
	if strings.TrimSpace(reportText) == "" {
		b.WriteString("Blood Test Report Content:\n[attached as PDF]\n\n")
	} else {
		fmt.Fprintf(&b, "Blood Test Report Content:\n%s\n\n", reportText)
	}
	b.WriteString(`Please provide your analysis in this structured format:

**1. Summary of Key Findings**
[Provide a brief overview of the blood test results]

**2. Interpretation of Any Abnormal Values**
[Explain any values that are outside normal ranges]

**3. Clinical Significance of Results**
[Discuss the medical implications of the findings]

**4. Recommendations for Follow-up**
[Provide specific recommendations, including nutrition and exercise where relevant]

**5. Overall Health Assessment**
[Give an overall assessment of the patient's health based on these results]

Please be thorough, professional, and provide actionable insights.`)
	return b.String()
}

// Truncate cuts s to at most max runes. max <= 0 disables the limit.
func Truncate(s string, max int) string {
	if max <= 0 {
		return s
	}
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max])
}
