package decision

import (
	"strings"
	"testing"

	"github.com/K-tang-mkv/bittensor-strat/internal/domain"
)

func TestRenderMarkdown(t *testing.T) {
	evals := []*Evaluation{
		{
			Target:      Target{Hotkey: "5FLSigC9HGRKVhB9FiEo4Y3koPsNmBmLJbpXg2mp1hXcS59Y", Netuid: 5},
			Stake:       domain.MustParseTao("100"),
			Received:    domain.MustParseTao("95"),
			SlippagePct: 5,
			Threshold:   domain.MustParseTao("1"),
			Verdict:     VerdictExecute,
		},
	}

	out := RenderMarkdown(evals)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected header, separator and one row, got %d lines", len(lines))
	}
	if !strings.Contains(lines[2], "| 5FLSig…S59Y | 5 |") {
		t.Errorf("row missing abbreviated hotkey: %s", lines[2])
	}
	if !strings.Contains(lines[2], "5.0000%") || !strings.Contains(lines[2], "EXECUTE") {
		t.Errorf("row missing slippage or verdict: %s", lines[2])
	}
}

func TestRenderChecklist(t *testing.T) {
	e := &Evaluation{
		Target:  Target{Hotkey: "5Hot", Netuid: 3},
		Verdict: VerdictSkipBelowThreshold,
		Checks: []CriterionResult{
			{Name: "stake present", Threshold: "> 0", Actual: "τ1.000000000", Pass: true},
			{Name: "received above threshold", Threshold: "> τ2.000000000", Actual: "τ1.000000000", Pass: false},
		},
	}

	out := RenderChecklist(e)
	if !strings.HasPrefix(out, "## 5Hot on netuid 3: SKIP_BELOW_THRESHOLD") {
		t.Errorf("unexpected heading: %s", out)
	}
	if !strings.Contains(out, "| 1 | stake present | > 0 | τ1.000000000 | PASS |") {
		t.Errorf("missing passing check:\n%s", out)
	}
	if !strings.Contains(out, "| 2 | received above threshold | > τ2.000000000 | τ1.000000000 | FAIL |") {
		t.Errorf("missing failing check:\n%s", out)
	}
}
