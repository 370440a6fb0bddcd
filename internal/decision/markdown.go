package decision

import (
	"fmt"
	"strings"
)

// RenderMarkdown renders a batch of evaluations as a Markdown table.
func RenderMarkdown(evals []*Evaluation) string {
	var sb strings.Builder

	sb.WriteString("| Hotkey | Netuid | Stake | Received | Slippage | Threshold | Verdict |\n")
	sb.WriteString("|--------|--------|-------|----------|----------|-----------|---------|\n")
	for _, e := range evals {
		sb.WriteString(fmt.Sprintf("| %s | %d | %s | %s | %.4f%% | %s | %s |\n",
			shortKey(e.Target.Hotkey),
			e.Target.Netuid,
			e.Stake,
			e.Received,
			e.SlippagePct,
			e.Threshold,
			e.Verdict,
		))
	}

	return sb.String()
}

// RenderChecklist renders the checks of one evaluation.
func RenderChecklist(e *Evaluation) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("## %s on netuid %d: %s\n\n", shortKey(e.Target.Hotkey), e.Target.Netuid, e.Verdict))
	sb.WriteString("| # | Check | Threshold | Actual | Pass |\n")
	sb.WriteString("|---|-------|-----------|--------|------|\n")
	for i, c := range e.Checks {
		passStr := "PASS"
		if !c.Pass {
			passStr = "FAIL"
		}
		sb.WriteString(fmt.Sprintf("| %d | %s | %s | %s | %s |\n", i+1, c.Name, c.Threshold, c.Actual, passStr))
	}

	return sb.String()
}

// shortKey abbreviates an SS58 address for tables.
func shortKey(key string) string {
	if len(key) <= 12 {
		return key
	}
	return key[:6] + "…" + key[len(key)-4:]
}
