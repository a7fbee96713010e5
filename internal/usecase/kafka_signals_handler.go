package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"FinFuse/internal/domain/models"
	drepo "FinFuse/internal/domain/repository"
	pkgkafka "FinFuse/pkg/kafka"
	"FinFuse/pkg/logger"
)

// SignalSink accepts one detector signal.
type SignalSink interface {
	AddSignal(ctx context.Context, s models.Signal) (*models.FusedSignal, bool)
}

// KafkaSignalsHandler decodes Signal JSON from the ingest topic and feeds it
// to the fusion engine.
type KafkaSignalsHandler struct {
	topic   string
	sink    SignalSink
	metrics drepo.Metrics
	l       *logger.Logger
}

func NewKafkaSignalsHandler(topic string, sink SignalSink, metrics drepo.Metrics, l *logger.Logger) *KafkaSignalsHandler {
	return &KafkaSignalsHandler{topic: topic, sink: sink, metrics: metrics, l: l.Component("signals-ingest")}
}

func (h *KafkaSignalsHandler) Topic() string { return h.topic }

// Handle returns an error only for undecodable payloads, which the consumer
// routes to the DLQ. Signals the engine rejects are logged and committed.
func (h *KafkaSignalsHandler) Handle(ctx context.Context, b []byte) error {
	var s models.Signal
	if err := json.Unmarshal(b, &s); err != nil {
		h.metrics.RecordError("signal_decode")
		return fmt.Errorf("decode signal: %w", err)
	}

	start := time.Now()
	if _, ok := h.sink.AddSignal(ctx, s); !ok {
		h.metrics.RecordError("signal_rejected")
		h.l.Warn("signal rejected",
			logger.String("subject", s.Subject),
			logger.String("type", string(s.Type)),
			logger.String("trace_id", pkgkafka.TraceID(ctx)))
		return nil
	}
	h.metrics.RecordLatency("signal_ingest", time.Since(start).Seconds())
	if !s.CreatedAt.IsZero() {
		h.metrics.RecordLatency("signal_e2e", time.Since(s.CreatedAt).Seconds())
	}
	return nil
}

var _ pkgkafka.MessageHandler = (*KafkaSignalsHandler)(nil)
