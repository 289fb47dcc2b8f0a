// Package kafka writes records that need out-of-band reconciliation.
package kafka

import (
	"context"
	"encoding/json"
	"log/slog"
	"strconv"
	"time"

	k "github.com/segmentio/kafka-go"

	"chat-app-service/internal/models"
)

// messageWriter is the part of *kafka.Writer used here.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...k.Message) error
	Close() error
}

// ReconcileWriter records ties detaches that failed after a chat was deleted,
// so a consumer can retry them.
type ReconcileWriter struct {
	w      messageWriter
	logger *slog.Logger
}

// NewReconcileWriter returns a writer for topic. With no brokers it only logs.
func NewReconcileWriter(brokers []string, topic string, logger *slog.Logger) *ReconcileWriter {
	if logger == nil {
		logger = slog.Default()
	}
	if len(brokers) == 0 {
		logger.Info("kafka reconciliation disabled: no brokers")
		return &ReconcileWriter{logger: logger}
	}
	w := &k.Writer{
		Addr:         k.TCP(brokers...),
		Topic:        topic,
		Balancer:     &k.Hash{},
		BatchTimeout: 50 * time.Millisecond,
		RequiredAcks: k.RequireOne,
	}
	return &ReconcileWriter{w: w, logger: logger}
}

func (r *ReconcileWriter) RecordTiesDetachFailure(ctx context.Context, f models.TiesDetachFailure) error {
	if r.w == nil {
		r.logger.Warn("ties detach needs reconciliation",
			slog.Int64("chat_id", f.ChatID),
			slog.String("requester_id", f.RequesterID),
			slog.String("partner_id", f.PartnerID),
			slog.String("reason", f.Reason))
		return nil
	}

	body, err := json.Marshal(f)
	if err != nil {
		return err
	}
	return r.w.WriteMessages(ctx, k.Message{
		Key:   []byte(strconv.FormatInt(f.ChatID, 10)),
		Value: body,
		Time:  f.OccurredAt,
	})
}

func (r *ReconcileWriter) Close() error {
	if r.w == nil {
		return nil
	}
	return r.w.Close()
}
