package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"TrustPulse/internal/domain/models"
	domrepo "TrustPulse/internal/domain/repository"
	pkgch "TrustPulse/pkg/clickhouse"
	applogger "TrustPulse/pkg/logger"
)

// CHHistoryStore implements HistoryStore backed by ClickHouse. Scores and
// alert transitions are append-only; the engine's sliding windows never
// read back from here, only the lookback endpoints do.
type CHHistoryStore struct {
	db          *sql.DB
	scoresTable string
	alertsTable string
	l           *applogger.Logger
}

func NewCHHistoryStore(ch *pkgch.Client, scoresTable, alertsTable string) domrepo.HistoryStore {
	return &CHHistoryStore{db: ch.DB(), scoresTable: scoresTable, alertsTable: alertsTable}
}

// SetLogger injects a structured logger.
func (s *CHHistoryStore) SetLogger(l *applogger.Logger) { s.l = l }

func (s *CHHistoryStore) Init(ctx context.Context) error {
	return nil // schema init happens in pkg/clickhouse at startup
}

func (s *CHHistoryStore) StoreScore(ctx context.Context, sc *models.NormalizedScore) error {
	q := fmt.Sprintf("INSERT INTO %s (ts, signal_key, score, bucket, quality) VALUES (?, ?, ?, ?, ?)", s.scoresTable)
	_, err := s.db.ExecContext(ctx, q, sc.Timestamp, sc.SignalKey, sc.Score, string(sc.Bucket), string(sc.Quality))
	return err
}

func (s *CHHistoryStore) StoreScoreBatch(ctx context.Context, scores []*models.NormalizedScore) error {
	if len(scores) == 0 {
		return nil
	}
	const chunkSize = 2000
	for start := 0; start < len(scores); start += chunkSize {
		end := start + chunkSize
		if end > len(scores) {
			end = len(scores)
		}
		values := make([]string, 0, end-start)
		args := make([]interface{}, 0, (end-start)*5)
		for _, sc := range scores[start:end] {
			if sc == nil || sc.SignalKey == "" {
				continue
			}
			values = append(values, "(?, ?, ?, ?, ?)")
			args = append(args, sc.Timestamp, sc.SignalKey, sc.Score, string(sc.Bucket), string(sc.Quality))
		}
		if len(values) == 0 {
			continue
		}
		q := fmt.Sprintf("INSERT INTO %s (ts, signal_key, score, bucket, quality) VALUES %s", s.scoresTable, strings.Join(values, ","))
		if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
			return err
		}
	}
	return nil
}

func (s *CHHistoryStore) StoreAlert(ctx context.Context, a *models.Alert) error {
	q := fmt.Sprintf("INSERT INTO %s (ts, id, fingerprint, signal_key, kind, state, priority, severity, message) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)", s.alertsTable)
	_, err := s.db.ExecContext(ctx, q,
		a.UpdatedAt, a.ID, a.Fingerprint, a.SignalKey, a.Kind,
		string(a.State), string(a.Priority), a.Severity, a.Message,
	)
	return err
}

func (s *CHHistoryStore) QueryScores(ctx context.Context, signalKey string, from, to time.Time, limit int) ([]*models.NormalizedScore, error) {
	q := fmt.Sprintf("SELECT signal_key, ts, score, bucket, quality FROM %s WHERE signal_key = ? AND ts >= ? AND ts <= ? ORDER BY ts DESC LIMIT ?", s.scoresTable)
	rows, err := s.db.QueryContext(ctx, q, signalKey, from, to, limit)
	if err != nil {
		if s.l != nil {
			s.l.Error("clickhouse score history query error",
				applogger.String("signal_key", signalKey), applogger.Error(err))
		}
		return nil, fmt.Errorf("query scores: %w", err)
	}
	defer rows.Close()

	var out []*models.NormalizedScore
	for rows.Next() {
		var sc models.NormalizedScore
		var bucket, quality string
		if err := rows.Scan(&sc.SignalKey, &sc.Timestamp, &sc.Score, &bucket, &quality); err != nil {
			return nil, fmt.Errorf("scan score: %w", err)
		}
		sc.Bucket = models.Bucket(bucket)
		sc.Quality = models.QualityFlag(quality)
		out = append(out, &sc)
	}
	return out, rows.Err()
}

func (s *CHHistoryStore) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *CHHistoryStore) Close() error {
	return nil // connection is managed by pkg/clickhouse
}
