package prompt

import (
	"fmt"
	"strings"
)

const unavailable = "This is a fallback analysis for your blood test report. The AI analysis service is currently unavailable."

// FallbackAnalysis returns a canned answer used when no model is reachable.
// The variant is chosen from keywords in the query.
func FallbackAnalysis(name, query string) string {
	if strings.TrimSpace(name) == "" {
		name = "User"
	}
	q := strings.ToLower(query)

	switch {
	case strings.Contains(q, "summar"):
		return fmt.Sprintf(`Blood Test Report Summary for %s:

%s

Key points:
- Your report has been successfully uploaded and stored
- All standard blood test parameters are included
- The report is ready for detailed analysis when the service is restored

Please try the analysis again in a few minutes for a comprehensive AI-powered review of your results.`, name, unavailable)

	case strings.Contains(q, "concerning") || strings.Contains(q, "abnormal"):
		return fmt.Sprintf(`Blood Test Analysis - Concerning Values for %s:

%s

Note: This is a basic response. For detailed analysis of concerning values, please:
- Try the analysis again in a few minutes
- Consult with your healthcare provider
- Review the report values against standard reference ranges

Your report has been successfully uploaded and is ready for detailed analysis.`, name, unavailable)

	case strings.Contains(q, "meaning") || strings.Contains(q, "explain"):
		return fmt.Sprintf(`Blood Test Results Explanation for %s:

%s

Your blood test report contains standard laboratory values that need to be interpreted in the context of:
- Your medical history
- Current symptoms
- Reference ranges for your age and gender
- Previous test results

Please try the analysis again in a few minutes for a detailed AI-powered explanation of your specific results.`, name, unavailable)
	}

	return fmt.Sprintf(`Blood Test Analysis for %s:

%s

Your query: '%s'

Response: Your blood test report has been successfully uploaded and is ready for analysis. Please try again in a few minutes for a comprehensive AI-powered review of your results.

In the meantime, you can:
- Review the raw values in your report
- Compare with standard reference ranges
- Consult with your healthcare provider for interpretation`, name, unavailable, strings.TrimSpace(query))
}
