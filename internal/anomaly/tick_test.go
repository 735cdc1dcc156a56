package anomaly

import (
	"testing"
	"time"

	"TrustPulse/internal/domain/models"
)

func tickSignals() map[string]models.Signal {
	return map[string]models.Signal{
		"social.mentions": {Key: "social.mentions", Role: models.RoleSentiment},
		"chain.activity":  {Key: "chain.activity", Role: models.RoleOnChain},
		"price.close":     {Key: "price.close", Role: models.RolePrice},
	}
}

func snap(scores map[string]float64) map[string]models.NormalizedScore {
	out := make(map[string]models.NormalizedScore, len(scores))
	for k, s := range scores {
		out[k] = models.NormalizedScore{SignalKey: k, Score: s}
	}
	return out
}

func TestSentimentShiftOnlyFiresForSentimentRole(t *testing.T) {
	a := NewTickAnalyzer(TickConfig{SentimentShiftRate: 15}, tickSignals())

	prev := snap(map[string]float64{"social.mentions": 40, "chain.activity": 40})
	cur := snap(map[string]float64{"social.mentions": 60, "chain.activity": 60})

	events := a.Evaluate(time.Now(), prev, cur)
	if len(events) != 1 {
		t.Fatalf("events = %d, want 1", len(events))
	}
	ev := events[0]
	if ev.Kind != models.AnomalySentimentShift || ev.SignalKey != "social.mentions" {
		t.Fatalf("unexpected event %+v", ev)
	}
	if ev.Polarity != 1 || ev.Delta != 20 {
		t.Fatalf("polarity/delta = %d/%v", ev.Polarity, ev.Delta)
	}
}

func TestSentimentShiftNegativePolarity(t *testing.T) {
	a := NewTickAnalyzer(TickConfig{SentimentShiftRate: 15}, tickSignals())

	prev := snap(map[string]float64{"social.mentions": 70})
	cur := snap(map[string]float64{"social.mentions": 50})

	events := a.Evaluate(time.Now(), prev, cur)
	if len(events) != 1 || events[0].Polarity != -1 {
		t.Fatalf("expected one negative shift, got %+v", events)
	}
}

func TestSentimentShiftSkipsNoData(t *testing.T) {
	a := NewTickAnalyzer(TickConfig{SentimentShiftRate: 15}, tickSignals())

	prev := snap(map[string]float64{"social.mentions": 40})
	cur := map[string]models.NormalizedScore{
		"social.mentions": {SignalKey: "social.mentions", NoData: true},
	}
	if events := a.Evaluate(time.Now(), prev, cur); len(events) != 0 {
		t.Fatalf("no-data produced events: %+v", events)
	}
}

func TestDivergenceRequiresOppositeDirections(t *testing.T) {
	cfg := TickConfig{
		DivergenceMagnitude: 10,
		DivergencePairs:     [][2]string{{"price.close", "social.mentions"}},
	}
	a := NewTickAnalyzer(cfg, tickSignals())

	// same direction: no event
	prev := snap(map[string]float64{"price.close": 50, "social.mentions": 50})
	cur := snap(map[string]float64{"price.close": 65, "social.mentions": 70})
	if events := a.Evaluate(time.Now(), prev, cur); len(events) != 0 {
		t.Fatalf("same-direction move flagged: %+v", events)
	}

	// opposite directions, both legs over the threshold
	cur = snap(map[string]float64{"price.close": 65, "social.mentions": 35})
	events := a.Evaluate(time.Now(), prev, cur)
	if len(events) != 1 {
		t.Fatalf("events = %d, want 1", len(events))
	}
	ev := events[0]
	if ev.Kind != models.AnomalyDivergence {
		t.Fatalf("kind = %v", ev.Kind)
	}
	if ev.SignalKey != "price.close" || ev.PairedKey != "social.mentions" {
		t.Fatalf("pair = %s/%s", ev.SignalKey, ev.PairedKey)
	}
	if want := (15.0 + 15.0) / 200; !almost(ev.Severity, want) {
		t.Fatalf("severity = %v, want %v", ev.Severity, want)
	}
}

func TestDivergenceRequiresBothLegsOverMagnitude(t *testing.T) {
	cfg := TickConfig{
		DivergenceMagnitude: 10,
		DivergencePairs:     [][2]string{{"price.close", "social.mentions"}},
	}
	a := NewTickAnalyzer(cfg, tickSignals())

	prev := snap(map[string]float64{"price.close": 50, "social.mentions": 50})
	cur := snap(map[string]float64{"price.close": 65, "social.mentions": 45})
	if events := a.Evaluate(time.Now(), prev, cur); len(events) != 0 {
		t.Fatalf("weak leg flagged: %+v", events)
	}
}
