package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"FolioSim/internal/domain/models"
	"FolioSim/internal/domain/repository"
	pkgkafka "FolioSim/pkg/kafka"
)

// ClickHouseArchive implements RunArchive on ClickHouse.
type ClickHouseArchive struct {
	db    *sql.DB
	table string
}

// NewClickHouseArchive creates ClickHouse-backed archive storage.
func NewClickHouseArchive(db *sql.DB, table string) repository.RunArchive {
	return &ClickHouseArchive{db: db, table: table}
}

func (a *ClickHouseArchive) Init(ctx context.Context) error {
	return nil // Schema init in pkg
}

func (a *ClickHouseArchive) Store(ctx context.Context, rec *models.RunRecord) error {
	s := rec.Summary()
	q := fmt.Sprintf("INSERT INTO %s (id, ts, initial_investment, time_horizon, num_simulations, mode, account_type, median_final_value, mean_final_value, p5_final_value, p90_final_value, elapsed_ms) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)", a.table)
	_, err := a.db.ExecContext(ctx, q,
		s.ID,
		s.Timestamp,
		s.InitialInvestment,
		int32(s.TimeHorizon),
		int32(s.NumSimulations),
		s.Mode,
		s.AccountType,
		s.MedianFinalValue,
		s.MeanFinalValue,
		s.P5FinalValue,
		s.P90FinalValue,
		s.ElapsedMS,
	)
	if err != nil {
		return fmt.Errorf("archive insert: %w", err)
	}
	return nil
}

func (a *ClickHouseArchive) Query(ctx context.Context, from, to time.Time, limit int) ([]*models.RunSummary, error) {
	q := fmt.Sprintf("SELECT id, ts, initial_investment, time_horizon, num_simulations, mode, account_type, median_final_value, mean_final_value, p5_final_value, p90_final_value, elapsed_ms FROM %s WHERE ts >= ? AND ts <= ? ORDER BY ts DESC LIMIT ?", a.table)
	rows, err := a.db.QueryContext(ctx, q, from, to, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var summaries []*models.RunSummary
	for rows.Next() {
		var (
			s       models.RunSummary
			horizon int32
			sims    int32
		)
		if err := rows.Scan(&s.ID, &s.Timestamp, &s.InitialInvestment, &horizon, &sims, &s.Mode, &s.AccountType, &s.MedianFinalValue, &s.MeanFinalValue, &s.P5FinalValue, &s.P90FinalValue, &s.ElapsedMS); err != nil {
			return nil, err
		}
		s.TimeHorizon = int(horizon)
		s.NumSimulations = int(sims)
		summaries = append(summaries, &s)
	}
	return summaries, rows.Err()
}

func (a *ClickHouseArchive) Health(ctx context.Context) error {
	return a.db.PingContext(ctx)
}

func (a *ClickHouseArchive) Close() error {
	return nil // Managed by pkg
}

// KafkaRunPublisher implements Publisher for run-completed events.
type KafkaRunPublisher struct {
	producer *pkgkafka.Producer
	topic    string
}

// NewKafkaRunPublisher creates a Kafka run-event publisher.
func NewKafkaRunPublisher(producer *pkgkafka.Producer, topic string) repository.Publisher {
	return &KafkaRunPublisher{producer: producer, topic: topic}
}

func (p *KafkaRunPublisher) Publish(ctx context.Context, rec *models.RunRecord) error {
	return p.producer.Publish(ctx, p.topic, []byte(rec.ID), rec)
}

func (p *KafkaRunPublisher) Close() error {
	if p.producer != nil {
		return p.producer.Close()
	}
	return nil
}
