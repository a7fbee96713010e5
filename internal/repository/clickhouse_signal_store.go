package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"FinFuse/internal/domain/models"
	pkgch "FinFuse/pkg/clickhouse"
	"FinFuse/pkg/logger"
)

// SignalSchema creates the append-only history tables.
var SignalSchema = []string{
	`CREATE TABLE IF NOT EXISTS fused_signals (
		created_at   DateTime64(3, 'UTC'),
		subject      LowCardinality(String),
		direction    LowCardinality(String),
		conviction   Float64,
		signal_count UInt32,
		sources      Array(String),
		types        Array(String),
		entry        Decimal(18, 4),
		target       Decimal(18, 4),
		stop         Decimal(18, 4),
		horizon      LowCardinality(String)
	) ENGINE = MergeTree
	ORDER BY (subject, created_at)`,
	`CREATE TABLE IF NOT EXISTS signal_outcomes (
		recorded_at DateTime64(3, 'UTC'),
		signal_type LowCardinality(String),
		correct     UInt8,
		weight      Float64
	) ENGINE = MergeTree
	ORDER BY (signal_type, recorded_at)`,
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	PingContext(ctx context.Context) error
}

// CHSignalStore writes fused signals and outcomes to ClickHouse.
type CHSignalStore struct {
	db     execer
	closer func() error
	now    func() time.Time
	l      *logger.Logger
}

// NewCHSignalStore uses the client's pool. Schema setup is the caller's job
// (see SignalSchema).
func NewCHSignalStore(ch *pkgch.Client, l *logger.Logger) *CHSignalStore {
	return newCHSignalStore(ch.DB(), ch.Close, l)
}

func newCHSignalStore(db execer, closer func() error, l *logger.Logger) *CHSignalStore {
	if l == nil {
		l = logger.Nop()
	}
	return &CHSignalStore{db: db, closer: closer, now: time.Now, l: l.Component("signal-store")}
}

const insertFused = `INSERT INTO fused_signals
	(created_at, subject, direction, conviction, signal_count, sources, types, entry, target, stop, horizon)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

func (s *CHSignalStore) SaveFused(ctx context.Context, f models.FusedSignal) error {
	types := make([]string, len(f.Types))
	for i, t := range f.Types {
		types[i] = string(t)
	}
	_, err := s.db.ExecContext(ctx, insertFused,
		f.CreatedAt.UTC(),
		f.Subject,
		string(f.Direction),
		f.Conviction,
		uint32(f.SignalCount),
		f.Sources,
		types,
		f.Entry.String(),
		f.Target.String(),
		f.Stop.String(),
		string(f.Horizon),
	)
	if err != nil {
		s.l.Error("insert fused signal",
			logger.String("subject", f.Subject),
			logger.Error(err))
		return fmt.Errorf("save fused %s: %w", f.Subject, err)
	}
	return nil
}

const insertOutcome = `INSERT INTO signal_outcomes (recorded_at, signal_type, correct, weight) VALUES (?, ?, ?, ?)`

func (s *CHSignalStore) SaveOutcome(ctx context.Context, t models.SignalType, correct bool, weight float64) error {
	var c uint8
	if correct {
		c = 1
	}
	if _, err := s.db.ExecContext(ctx, insertOutcome, s.now().UTC(), string(t), c, weight); err != nil {
		s.l.Error("insert outcome", logger.String("type", string(t)), logger.Error(err))
		return fmt.Errorf("save outcome %s: %w", t, err)
	}
	return nil
}

func (s *CHSignalStore) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *CHSignalStore) Close() error {
	if s.closer != nil {
		return s.closer()
	}
	return nil
}
