package models

import "time"

// ArtifactID identifies one persisted model artifact.
type ArtifactID string

// Regressor maps a feature vector to a predicted close.
type Regressor interface {
	Predict(x []float64) (float64, error)
	NumFeatures() int
}

// ModelMeta describes how a model was trained.
type ModelMeta struct {
	Estimators      int       `json:"estimators"`
	Seed            uint64    `json:"seed"`
	TestRatio       float64   `json:"test_ratio"`
	Examples        int       `json:"examples"`
	TrainExamples   int       `json:"train_examples"`
	HoldoutExamples int       `json:"holdout_examples"`
	FirstDate       Date      `json:"first_date"`
	LastDate        Date      `json:"last_date"`
	HoldoutMAPE     *float64  `json:"holdout_mape,omitempty"`
	TrainedAt       time.Time `json:"trained_at"`
}

// Model is an immutable trained regressor for one instrument.
type Model struct {
	Instrument string        `json:"instrument"`
	Schema     FeatureSchema `json:"schema"`
	Meta       ModelMeta     `json:"meta"`
	Regressor  Regressor     `json:"-"`
}

// TrainingReport summarizes one training run.
type TrainingReport struct {
	Instrument      string     `json:"instrument"`
	ArtifactID      ArtifactID `json:"artifact_id"`
	Examples        int        `json:"examples"`
	TrainExamples   int        `json:"train_examples"`
	HoldoutExamples int        `json:"holdout_examples"`
	HoldoutMAPE     *float64   `json:"holdout_mape,omitempty"`
	TrainedAt       time.Time  `json:"trained_at"`
}
