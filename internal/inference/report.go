package inference

import (
	"fmt"
	"strings"
	"time"
)

const (
	reportRule       = "=================================================="
	reportTimeLayout = "2006-01-02 15:04:05"
)

// BuildReport renders the multi-section result report that accompanies a
// successful job: header, run details, decision text, balances and disclaimer.
func (c *Catalog) BuildReport(req JobRequest, decisionText string) string {
	labels := c.report
	var b strings.Builder

	b.WriteString(labels.Title)
	b.WriteByte('\n')
	b.WriteString(reportRule)
	b.WriteByte('\n')

	fmt.Fprintf(&b, "%s: %s\n", labels.ExecutedAt, reportTime(req.StartedAt))
	fmt.Fprintf(&b, "%s: %s\n", labels.Trigger, req.Trigger)
	fmt.Fprintf(&b, "%s: %s\n\n", labels.DataSource, req.TransactionLogPath)

	b.WriteString(labels.Decisions)
	b.WriteByte('\n')
	b.WriteString(strings.TrimSpace(decisionText))
	b.WriteString("\n\n")

	b.WriteString(labels.Balances)
	b.WriteByte('\n')
	if len(req.Assets) == 0 {
		b.WriteString(labels.NoBalances)
		b.WriteByte('\n')
	}
	for _, currency := range req.Assets.Currencies() {
		fmt.Fprintf(&b, "  %s: %.2f\n", currency, req.Assets[currency])
	}
	b.WriteByte('\n')

	b.WriteString(labels.Disclaimer)
	b.WriteByte('\n')
	for _, line := range labels.Disclaimers {
		b.WriteString(line)
		b.WriteByte('\n')
	}
	return b.String()
}

func reportTime(t time.Time) string {
	if t.IsZero() {
		t = time.Now()
	}
	return t.Format(reportTimeLayout)
}
