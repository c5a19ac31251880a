package models

// Requests for forecast HTTP endpoints.

type ForecastRequest struct {
	Symbol string `query:"symbol" json:"symbol" validate:"required"`
}

type TrainRequest struct {
	Symbol string `query:"symbol" json:"symbol"`
	All    bool   `query:"all" json:"all"`
}

type StreamRequest struct {
	Symbol   string `query:"symbol" json:"symbol" validate:"required"`
	Interval int    `query:"interval" json:"interval" default:"30" validate:"gte=5,lte=3600"`
}
