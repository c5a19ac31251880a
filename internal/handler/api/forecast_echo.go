package api

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"FinCast/internal/domain/models"
	domsvc "FinCast/internal/domain/service"
	"FinCast/internal/service/metrics"
	"FinCast/internal/service/ratelimit"
	"FinCast/internal/usecase"
	"FinCast/pkg/format"
	xhttp "FinCast/pkg/http"
	xlogger "FinCast/pkg/logger"
	"FinCast/pkg/queue"
	"FinCast/pkg/util"
)

// InstrumentLister exposes the supported catalog.
type InstrumentLister interface {
	Instruments() []models.Instrument
}

// ForecastDisplay holds the presentation strings of one forecast.
type ForecastDisplay struct {
	PredictedClose   string `json:"predicted_close"`
	ReferenceClose   string `json:"reference_close"`
	PercentageChange string `json:"percentage_change"`
	AccuracyMAPE     string `json:"accuracy_mape"`
	ApplicableDate   string `json:"applicable_date"`
}

// ForecastResponse is the body of GET /api/forecast.
type ForecastResponse struct {
	models.ForecastView
	Display ForecastDisplay `json:"display"`
}

// ForecastEchoHandler serves the forecast dashboard API.
type ForecastEchoHandler struct {
	logger      *xlogger.Logger
	forecaster  domsvc.Forecaster
	instruments InstrumentLister
	trainer     domsvc.ModelTrainer
	jobs        queue.Enqueuer
	money       format.Spec
	rl          *ratelimit.Limiter
	burst       float64
	perSec      float64
}

func NewForecastEchoHandler(logger *xlogger.Logger, forecaster domsvc.Forecaster, instruments InstrumentLister, trainer domsvc.ModelTrainer) *ForecastEchoHandler {
	metrics.Register()
	if logger == nil {
		logger = xlogger.Nop()
	}
	return &ForecastEchoHandler{
		logger:      logger.With("api"),
		forecaster:  forecaster,
		instruments: instruments,
		trainer:     trainer,
		money:       format.IDR,
		rl:          ratelimit.New(),
		burst:       10,
		perSec:      2,
	}
}

// SetRateLimit changes the per-client forecast budget.
func (h *ForecastEchoHandler) SetRateLimit(burst, perSec float64) {
	h.burst, h.perSec = burst, perSec
}

// SetQueue routes whole-catalog training through the job queue.
func (h *ForecastEchoHandler) SetQueue(q queue.Enqueuer) { h.jobs = q }

// SetFormat changes how money is rendered in the display block.
func (h *ForecastEchoHandler) SetFormat(spec format.Spec) { h.money = spec }

func (h *ForecastEchoHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api")
	g.GET("/instruments", h.Instruments)
	g.GET("/forecast", h.Forecast)
	if h.trainer != nil {
		g.POST("/train", h.Train)
	}
}

func (h *ForecastEchoHandler) Instruments(c echo.Context) error {
	list := h.instruments.Instruments()
	return xhttp.ListResponse(c, list, int64(len(list)))
}

func (h *ForecastEchoHandler) Forecast(c echo.Context) error {
	start := time.Now()
	const endpoint = "forecast"
	defer func() { metrics.APILatency.WithLabelValues(endpoint).Observe(time.Since(start).Seconds()) }()

	req := &models.ForecastRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		metrics.APIErrors.WithLabelValues(endpoint, "VALIDATION").Inc()
		return xhttp.BadRequestResponse(c, verr)
	}
	if !h.rl.Allow(c.RealIP()+":"+endpoint, h.burst, h.perSec) {
		metrics.APIErrors.WithLabelValues(endpoint, "RATE_LIMITED").Inc()
		h.logger.Warn("api.forecast rate_limited", xlogger.String("remote", c.RealIP()))
		return xhttp.DataResponse(c, http.StatusTooManyRequests, "rate limited")
	}

	view, err := h.forecaster.Forecast(c.Request().Context(), util.NormalizeSymbol(req.Symbol))
	if err != nil {
		metrics.APIErrors.WithLabelValues(endpoint, string(models.KindOf(err))).Inc()
		h.logger.Warn("forecast usecase error", xlogger.String("symbol", req.Symbol), xlogger.Error(err))
		return xhttp.AppErrorResponse(c, toAppError(err))
	}
	c.Response().Header().Set(echo.HeaderCacheControl, "private, max-age=30")
	return xhttp.SuccessResponse(c, ForecastResponse{ForecastView: view, Display: h.display(view.Record)})
}

func (h *ForecastEchoHandler) Train(c echo.Context) error {
	const endpoint = "train"
	req := &models.TrainRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		metrics.APIErrors.WithLabelValues(endpoint, "VALIDATION").Inc()
		return xhttp.BadRequestResponse(c, verr)
	}

	switch {
	case req.All && h.jobs != nil:
		if err := h.jobs.Enqueue(c.Request().Context(), usecase.TrainJobType, models.TrainRequest{All: true}); err != nil {
			h.logger.Error("api.train enqueue failed", xlogger.Error(err))
			return xhttp.AppErrorResponse(c, xhttp.InternalError("could not queue training").WithError(err))
		}
		return xhttp.AcceptedResponse(c, map[string]interface{}{"all": true, "queued": true})
	case req.All:
		// Training the whole catalog outlives the request.
		ctx := context.WithoutCancel(c.Request().Context())
		go func() {
			reps, err := h.trainer.TrainAll(ctx)
			h.logger.Info("api.train all finished", xlogger.Int("trained", len(reps)), xlogger.Error(err))
		}()
		return xhttp.AcceptedResponse(c, map[string]interface{}{"all": true})
	case req.Symbol != "":
		rep, err := h.trainer.TrainInstrument(c.Request().Context(), util.NormalizeSymbol(req.Symbol))
		if err != nil {
			metrics.APIErrors.WithLabelValues(endpoint, string(models.KindOf(err))).Inc()
			return xhttp.AppErrorResponse(c, toAppError(err))
		}
		return xhttp.SuccessResponse(c, rep)
	default:
		return xhttp.BadRequestResponse(c, []xhttp.ValidationError{{
			Code:    "ERR_REQUIRED",
			Field:   "symbol",
			Message: "symbol or all is required",
		}})
	}
}

func (h *ForecastEchoHandler) display(r models.ForecastRecord) ForecastDisplay {
	return ForecastDisplay{
		PredictedClose:   format.Currency(r.PredictedClose, h.money),
		ReferenceClose:   format.Currency(r.ReferenceClose, h.money),
		PercentageChange: format.Percent(r.PercentageChange, h.money),
		AccuracyMAPE:     format.Percent(r.AccuracyMAPE, h.money),
		ApplicableDate:   r.ApplicableDate.String(),
	}
}
