package decision

import (
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/K-tang-mkv/bittensor-strat/internal/domain"
)

const hotkeyH = "5HotkeyHHHHHHHHHHHHHHHHHHHHHHHHHHHHHHHHHHHHHHHH"

func snapshotWith(subnet domain.SubnetInfo, stakes ...domain.StakeRecord) *domain.Snapshot {
	snap := &domain.Snapshot{
		BlockHash: "0xabc",
		Subnets:   map[uint16]domain.SubnetInfo{subnet.Netuid: subnet},
		Stakes:    make(map[domain.StakeKey]domain.StakeRecord),
	}
	for _, s := range stakes {
		snap.Stakes[s.Key()] = s
	}
	return snap
}

func TestDecide(t *testing.T) {
	tests := []struct {
		name      string
		found     bool
		received  domain.Balance
		threshold domain.Balance
		want      Verdict
	}{
		{"no stake, zero threshold", false, 0, 0, VerdictSkipNoStake},
		{"no stake ignores received", false, 1_000, 0, VerdictSkipNoStake},
		{"equal is skipped", true, 50, 50, VerdictSkipBelowThreshold},
		{"below", true, 49, 50, VerdictSkipBelowThreshold},
		{"above", true, 51, 50, VerdictExecute},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Decide(tt.found, tt.received, tt.threshold); got != tt.want {
				t.Errorf("Decide() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestEvaluate_StaticExecute(t *testing.T) {
	subnet := domain.SubnetInfo{Netuid: 0, Price: decimal.NewFromInt(1)}
	snap := snapshotWith(subnet, domain.StakeRecord{Hotkey: hotkeyH, Netuid: 0, Stake: domain.MustParseTao("100")})

	ev, err := NewEvaluator(DefaultCriteria(domain.MustParseTao("50")))
	if err != nil {
		t.Fatalf("NewEvaluator: %v", err)
	}

	result, err := ev.Evaluate(snap, Target{Hotkey: hotkeyH, Netuid: 0})
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}

	if result.Verdict != VerdictExecute {
		t.Errorf("expected EXECUTE, got %s", result.Verdict)
	}
	if result.Received != domain.MustParseTao("100") {
		t.Errorf("expected received 100, got %s", result.Received)
	}
	if result.SlippagePct != 0 {
		t.Errorf("expected 0%% slippage, got %f", result.SlippagePct)
	}
	if result.Request == nil {
		t.Fatal("expected request on EXECUTE")
	}
	if !result.Request.PriceLimit.Equal(decimal.NewFromInt(1)) {
		t.Errorf("static price limit should be 1, got %s", result.Request.PriceLimit)
	}
	if result.Request.Amount != domain.MustParseTao("100") {
		t.Errorf("expected full stake requested, got %s", result.Request.Amount)
	}
}

func TestEvaluate_DynamicBelowThreshold(t *testing.T) {
	subnet := domain.SubnetInfo{
		Netuid:    5,
		IsDynamic: true,
		Price:     decimal.NewFromInt(1),
		TaoIn:     domain.MustParseTao("1900"),
		AlphaIn:   domain.MustParseTao("1900"),
	}
	snap := snapshotWith(subnet, domain.StakeRecord{Hotkey: hotkeyH, Netuid: 5, Stake: domain.MustParseTao("100")})

	ev, _ := NewEvaluator(DefaultCriteria(domain.MustParseTao("96")))
	result, err := ev.Evaluate(snap, Target{Hotkey: hotkeyH, Netuid: 5})
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}

	if result.Verdict != VerdictSkipBelowThreshold {
		t.Errorf("expected SKIP_BELOW_THRESHOLD, got %s", result.Verdict)
	}
	if result.Received != domain.MustParseTao("95") {
		t.Errorf("expected received 95, got %s", result.Received)
	}
	if result.Request != nil {
		t.Error("request must only be built on EXECUTE")
	}
}

func TestEvaluate_NoStake(t *testing.T) {
	subnet := domain.SubnetInfo{Netuid: 5, IsDynamic: true, Price: decimal.NewFromInt(1)}
	snap := snapshotWith(subnet, domain.StakeRecord{Hotkey: "other", Netuid: 5, Stake: 10})

	for _, threshold := range []domain.Balance{0, 1, domain.MustParseTao("1000000")} {
		ev, _ := NewEvaluator(DefaultCriteria(threshold))
		result, err := ev.Evaluate(snap, Target{Hotkey: hotkeyH, Netuid: 5})
		if err != nil {
			t.Fatalf("Evaluate: %v", err)
		}
		if result.Verdict != VerdictSkipNoStake {
			t.Errorf("threshold %s: expected SKIP_NO_STAKE, got %s", threshold, result.Verdict)
		}
	}
}

func TestEvaluate_UnknownSubnet(t *testing.T) {
	snap := snapshotWith(domain.SubnetInfo{Netuid: 1})
	ev, _ := NewEvaluator(DefaultCriteria(0))

	if _, err := ev.Evaluate(snap, Target{Hotkey: hotkeyH, Netuid: 9}); err == nil {
		t.Error("expected error for unknown subnet")
	}
}

func TestEvaluate_DoesNotMutateSnapshot(t *testing.T) {
	subnet := domain.SubnetInfo{
		Netuid: 3, IsDynamic: true, Price: decimal.RequireFromString("0.5"),
		TaoIn: domain.MustParseTao("500"), AlphaIn: domain.MustParseTao("1000"),
	}
	stake := domain.StakeRecord{Hotkey: hotkeyH, Netuid: 3, Stake: domain.MustParseTao("10")}
	snap := snapshotWith(subnet, stake)

	ev, _ := NewEvaluator(DefaultCriteria(0))
	if _, err := ev.Evaluate(snap, Target{Hotkey: hotkeyH, Netuid: 3}); err != nil {
		t.Fatalf("Evaluate: %v", err)
	}

	if got := snap.Stakes[stake.Key()]; got != stake {
		t.Errorf("stake record mutated: %+v", got)
	}
}

func TestPriceLimit(t *testing.T) {
	dynamic := domain.SubnetInfo{IsDynamic: true, Price: decimal.RequireFromString("0.2")}

	// 5% slippage * 2.1 = 10.5% haircut
	got := PriceLimit(dynamic, 5, DefaultToleranceMultiplier)
	want := decimal.RequireFromString("0.179")
	if !got.Equal(want) {
		t.Errorf("PriceLimit = %s, want %s", got, want)
	}

	// Slippage large enough to push the factor negative clamps to zero.
	if got := PriceLimit(dynamic, 60, DefaultToleranceMultiplier); !got.IsZero() {
		t.Errorf("expected clamped zero limit, got %s", got)
	}

	static := domain.SubnetInfo{IsDynamic: false, Price: decimal.RequireFromString("3")}
	if got := PriceLimit(static, 5, DefaultToleranceMultiplier); !got.Equal(decimal.NewFromInt(1)) {
		t.Errorf("static limit should be 1, got %s", got)
	}
}

func TestRenderMarkdown_SkipVerdict(t *testing.T) {
	evals := []*Evaluation{
		{Target: Target{Hotkey: hotkeyH, Netuid: 5}, Verdict: VerdictSkipBelowThreshold, SlippagePct: 5},
	}
	md := RenderMarkdown(evals)

	if !strings.Contains(md, "SKIP_BELOW_THRESHOLD") {
		t.Error("expected verdict in markdown")
	}
	if !strings.Contains(md, "5.0000%") {
		t.Error("expected slippage in markdown")
	}
}
