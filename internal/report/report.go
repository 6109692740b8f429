// Package report turns recorded anomalies into DORA incident reports and
// keeps them on disk with an optional S3 archive.
package report

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"phalanx/internal/scoring"
)

// Report is one generated incident report.
type Report struct {
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
	Size      int64     `json:"size"`
}

// Build renders the incident report for one verdict.
func Build(v *scoring.Verdict, now time.Time) string {
	var b strings.Builder

	b.WriteString("DORA Incident Report\n")
	b.WriteString("--------------------\n\n")
	fmt.Fprintf(&b, "Date of Incident: %s\n", now.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(&b, "Date of Detection: %s\n\n", v.Timestamp.Format("2006-01-02 15:04:05"))

	b.WriteString("Description of Incident:\n")
	if v.Event != nil {
		fmt.Fprintf(&b, "Anomalous %s event detected for user %s.\n\n", v.Event.EventType, v.Event.UserID)
	} else {
		b.WriteString("Anomalous event detected.\n\n")
	}

	b.WriteString("Detection Reasons:\n")
	if len(v.Reasons) == 0 && v.Reason != "" {
		fmt.Fprintf(&b, "- %s\n", v.Reason)
	}
	for _, r := range v.Reasons {
		fmt.Fprintf(&b, "- %s\n", r)
	}
	b.WriteString("\n")

	b.WriteString("Offending Payload:\n")
	b.WriteString(payloadJSON(v))
	b.WriteString("\n\n")

	b.WriteString("Initial Assessment:\n")
	b.WriteString("Potential unauthorized access or data exfiltration attempt.\n\n")

	b.WriteString("Next Steps:\n")
	b.WriteString("- Escalate to security team for investigation.\n")
	b.WriteString("- Preserve relevant logs and evidence.\n")

	return b.String()
}

// BuildMonthly renders the periodic summary report over a drained batch.
func BuildMonthly(verdicts []*scoring.Verdict, now time.Time) string {
	var b strings.Builder

	b.WriteString("DORA Monthly Incident Summary\n")
	b.WriteString("-----------------------------\n\n")
	fmt.Fprintf(&b, "Report Date: %s\n", now.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(&b, "Incidents This Period: %d\n\n", len(verdicts))

	if len(verdicts) == 0 {
		b.WriteString("No anomalies were recorded in this reporting period.\n")
		return b.String()
	}

	byUser := make(map[string]int)
	for _, v := range verdicts {
		if v.Event != nil {
			byUser[v.Event.UserID]++
		}
	}
	b.WriteString("Incidents by User:\n")
	for user, n := range byUser {
		fmt.Fprintf(&b, "- %s: %d\n", user, n)
	}
	b.WriteString("\n")

	b.WriteString("Incident Log:\n")
	for i, v := range verdicts {
		user, eventType := "unknown", "unknown"
		if v.Event != nil {
			user, eventType = v.Event.UserID, v.Event.EventType
		}
		fmt.Fprintf(&b, "%d. [%s] user=%s type=%s reason=%s\n",
			i+1, v.Timestamp.Format("2006-01-02 15:04:05"), user, eventType, v.Reason)
	}

	return b.String()
}

func payloadJSON(v *scoring.Verdict) string {
	if v.Event == nil {
		return "{}"
	}
	data, err := json.MarshalIndent(v.Event, "", "  ")
	if err != nil {
		return "{}"
	}
	return string(data)
}
