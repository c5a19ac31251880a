package usecase

import (
	"context"
	"encoding/json"
	"fmt"

	domsvc "FinCast/internal/domain/service"
	applogger "FinCast/pkg/logger"
)

// TrainJobType is the queue message type of a training request.
const TrainJobType = "train"

// TrainRequestHandler runs training requests arriving from Kafka or from
// the job queue. Payload: {"symbol": "BBCA.JK"} or {"all": true}.
type TrainRequestHandler struct {
	topic   string
	trainer domsvc.ModelTrainer
	l       *applogger.Logger
}

func NewTrainRequestHandler(topic string, trainer domsvc.ModelTrainer, l *applogger.Logger) *TrainRequestHandler {
	if l == nil {
		l = applogger.Nop()
	}
	return &TrainRequestHandler{topic: topic, trainer: trainer, l: l.With("train_requests")}
}

func (h *TrainRequestHandler) Topic() string { return h.topic }

func (h *TrainRequestHandler) Type() string { return TrainJobType }

func (h *TrainRequestHandler) Handle(ctx context.Context, b []byte) error {
	var req struct {
		Symbol string `json:"symbol"`
		All    bool   `json:"all"`
	}
	if err := json.Unmarshal(b, &req); err != nil {
		return fmt.Errorf("decode train request: %w", err)
	}
	switch {
	case req.All:
		reps, err := h.trainer.TrainAll(ctx)
		h.l.Info("train all request handled", applogger.Int("trained", len(reps)), applogger.Error(err))
		return err
	case req.Symbol != "":
		_, err := h.trainer.TrainInstrument(ctx, req.Symbol)
		return err
	default:
		return fmt.Errorf("train request needs symbol or all")
	}
}
