package anomaly

import (
	"math"
	"time"

	"TrustPulse/internal/domain/models"
)

// Detection thresholds. ZCutoff is the minimum |z| that flags a spike;
// severity saturates at SeverityCapZ.
type Config struct {
	WindowCapacity int
	WarmupSize     int
	ZCutoff        float64
	SeverityCapZ   float64
}

func (c *Config) normalize() {
	if c.WindowCapacity <= 0 {
		c.WindowCapacity = 60
	}
	if c.WarmupSize <= 0 {
		c.WarmupSize = 20
	}
	if c.WarmupSize > c.WindowCapacity {
		c.WarmupSize = c.WindowCapacity
	}
	if c.ZCutoff <= 0 {
		c.ZCutoff = 2.0
	}
	if c.SeverityCapZ <= c.ZCutoff {
		c.SeverityCapZ = c.ZCutoff * 3
	}
}

// stdFloor keeps the z computation defined when a non-zero deviation meets a
// degenerate (zero variance) window. A zero deviation on a zero-variance
// window reports nothing.
const stdFloor = 1e-12

// zCap bounds reported z-scores so degenerate windows stay JSON-friendly.
const zCap = 1e9

// KeyDetector evaluates the volume-spike rule for one signal key. It owns
// the key's RollingWindow; callers must serialize access per key.
type KeyDetector struct {
	cfg    Config
	window *RollingWindow
}

func NewKeyDetector(cfg Config) *KeyDetector {
	cfg.normalize()
	return &KeyDetector{
		cfg:    cfg,
		window: NewRollingWindow(cfg.WindowCapacity),
	}
}

// Status reports the window state: WARMING until the warm-up count is met.
func (d *KeyDetector) Status() models.DetectorStatus {
	if d.window.Len() < d.cfg.WarmupSize {
		return models.StatusWarming
	}
	return models.StatusReady
}

// Window exposes the underlying rolling window for snapshot reads.
func (d *KeyDetector) Window() *RollingWindow { return d.window }

// Observe evaluates v against the window's prior history, then appends it.
// While warming it returns no event and StatusWarming so callers can surface
// insufficient-data instead of a false anomaly. Degraded-quality points are
// kept out of the window entirely so they never skew the statistics.
func (d *KeyDetector) Observe(key string, ts time.Time, v float64, quality models.QualityFlag) (*models.AnomalyEvent, models.DetectorStatus) {
	status := d.Status()

	var ev *models.AnomalyEvent
	if status == models.StatusReady && quality == models.QualityOK {
		ev = d.evaluate(key, ts, v)
	}
	if quality == models.QualityOK {
		d.window.Append(ts, v)
	}
	return ev, status
}

func (d *KeyDetector) evaluate(key string, ts time.Time, v float64) *models.AnomalyEvent {
	dev := v - d.window.Mean()
	std := d.window.StdDev()
	if std < stdFloor {
		if dev == 0 {
			return nil // identical history, identical value: nothing to flag
		}
		std = stdFloor
	}
	z := dev / std
	if z > zCap {
		z = zCap
	} else if z < -zCap {
		z = -zCap
	}
	if math.Abs(z) <= d.cfg.ZCutoff {
		return nil
	}
	return &models.AnomalyEvent{
		SignalKey:  key,
		Kind:       models.AnomalyVolumeSpike,
		Severity:   severity(math.Abs(z), d.cfg.SeverityCapZ),
		ZScore:     z,
		DetectedAt: ts,
	}
}

// severity scales z magnitude onto [0,1], saturating at capZ.
func severity(absZ, capZ float64) float64 {
	s := absZ / capZ
	if s > 1 {
		return 1
	}
	return s
}
