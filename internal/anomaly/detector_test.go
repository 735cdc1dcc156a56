package anomaly

import (
	"testing"
	"time"

	"TrustPulse/internal/domain/models"
)

func feed(d *KeyDetector, n int, v float64) {
	now := time.Now()
	for i := 0; i < n; i++ {
		d.Observe("sig", now.Add(time.Duration(i)*time.Second), v, models.QualityOK)
	}
}

func TestDetectorWarmup(t *testing.T) {
	d := NewKeyDetector(Config{WindowCapacity: 60, WarmupSize: 20, ZCutoff: 2})

	ev, status := d.Observe("sig", time.Now(), 1e9, models.QualityOK)
	if ev != nil {
		t.Fatalf("event during warmup: %+v", ev)
	}
	if status != models.StatusWarming {
		t.Fatalf("status = %v, want warming", status)
	}

	feed(d, 19, 100)
	if d.Status() != models.StatusReady {
		t.Fatalf("status after warmup = %v, want ready", d.Status())
	}
}

func TestDetectorFlagsSpikeOnFlatHistory(t *testing.T) {
	d := NewKeyDetector(Config{WindowCapacity: 60, WarmupSize: 20, ZCutoff: 2})
	feed(d, 20, 100)

	ev, status := d.Observe("sig", time.Now(), 400, models.QualityOK)
	if status != models.StatusReady {
		t.Fatalf("status = %v, want ready", status)
	}
	if ev == nil {
		t.Fatal("expected a spike event")
	}
	if ev.Kind != models.AnomalyVolumeSpike {
		t.Fatalf("kind = %v", ev.Kind)
	}
	if ev.ZScore <= 2 {
		t.Fatalf("z = %v, want > cutoff", ev.ZScore)
	}
	if ev.ZScore > zCap {
		t.Fatalf("z = %v exceeds cap", ev.ZScore)
	}
	if ev.Severity != 1 {
		t.Fatalf("severity = %v, want saturated", ev.Severity)
	}
}

func TestDetectorIgnoresIdenticalValueOnFlatHistory(t *testing.T) {
	d := NewKeyDetector(Config{WindowCapacity: 60, WarmupSize: 20, ZCutoff: 2})
	feed(d, 20, 100)

	ev, _ := d.Observe("sig", time.Now(), 100, models.QualityOK)
	if ev != nil {
		t.Fatalf("identical value flagged: %+v", ev)
	}
}

func TestDetectorZScoreAndSeverity(t *testing.T) {
	// window {90,110,90,110}: mean 100, population std 10
	d := NewKeyDetector(Config{WindowCapacity: 8, WarmupSize: 4, ZCutoff: 2, SeverityCapZ: 6})
	now := time.Now()
	for i, v := range []float64{90, 110, 90, 110} {
		d.Observe("sig", now.Add(time.Duration(i)*time.Second), v, models.QualityOK)
	}

	ev, _ := d.Observe("sig", now.Add(5*time.Second), 125, models.QualityOK)
	if ev == nil {
		t.Fatal("expected event at z=2.5")
	}
	if got, want := ev.ZScore, 2.5; !almost(got, want) {
		t.Fatalf("z = %v, want %v", got, want)
	}
	if got, want := ev.Severity, 2.5/6; !almost(got, want) {
		t.Fatalf("severity = %v, want %v", got, want)
	}

	ev, _ = d.Observe("sig", now.Add(6*time.Second), 101, models.QualityOK)
	if ev != nil {
		t.Fatalf("sub-cutoff move flagged: %+v", ev)
	}
}

func TestDetectorSkipsDegradedQuality(t *testing.T) {
	d := NewKeyDetector(Config{WindowCapacity: 60, WarmupSize: 20, ZCutoff: 2})
	feed(d, 20, 100)
	n := d.Window().Len()

	ev, _ := d.Observe("sig", time.Now(), 400, models.QualityStale)
	if ev != nil {
		t.Fatalf("stale point flagged: %+v", ev)
	}
	if d.Window().Len() != n {
		t.Fatalf("stale point entered window: %d -> %d", n, d.Window().Len())
	}
}

func almost(a, b float64) bool {
	d := a - b
	if d < 0 {
		d = -d
	}
	return d < 1e-9
}
