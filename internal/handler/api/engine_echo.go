package api

import (
	"math"
	"time"

	models "TrustPulse/internal/domain/models"
	domrepo "TrustPulse/internal/domain/repository"
	"TrustPulse/internal/middleware"
	apimetrics "TrustPulse/internal/service/metrics"
	"TrustPulse/internal/service/ratelimit"
	"TrustPulse/internal/usecase"
	xhttp "TrustPulse/pkg/http"
	xlogger "TrustPulse/pkg/logger"

	"github.com/labstack/echo/v4"
)

// EngineHandler exposes the engine query surface and the submit endpoint
// over Echo. Risk queries are rate limited per caller since each cache miss
// runs a full simulation.
type EngineHandler struct {
	logger  *xlogger.Logger
	queries *usecase.EngineQueries
	history *usecase.HistoryUseCase
	pipe    *middleware.IngestPipeline
	rl      *ratelimit.Limiter
}

func NewEngineHandler(logger *xlogger.Logger, queries *usecase.EngineQueries, history *usecase.HistoryUseCase, pipe *middleware.IngestPipeline) *EngineHandler {
	apimetrics.Register()
	return &EngineHandler{
		logger:  logger,
		queries: queries,
		history: history,
		pipe:    pipe,
		rl:      ratelimit.New(),
	}
}

func (h *EngineHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api")
	g.POST("/submit", h.Submit)
	g.GET("/score", h.Score)
	g.GET("/watchlist", h.Watchlist)
	g.GET("/anomaly", h.Anomaly)
	g.GET("/alerts", h.Alerts)
	g.GET("/correlation", h.Correlation)
	g.GET("/correlations", h.Correlations)
	g.GET("/ensemble", h.Ensemble)
	g.GET("/risk", h.Risk)
	g.GET("/history", h.History)
}

func (h *EngineHandler) Submit(c echo.Context) error {
	req := &models.SubmitRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	value := math.NaN()
	if req.Value != nil {
		value = *req.Value
	}
	obs := &models.Observation{
		SignalKey: req.SignalKey,
		Timestamp: time.Unix(req.Timestamp, 0).UTC(),
		Value:     value,
		Quality:   models.QualityFlag(req.Quality),
		Producer:  req.Producer,
	}
	if err := h.pipe.Process(c.Request().Context(), obs); err != nil {
		h.logger.Warn("submit rejected", xlogger.String("signal", req.SignalKey), xlogger.Error(err))
		return xhttp.BadRequestResponse(c, err.Error())
	}
	return xhttp.CreatedResponse(c, map[string]string{"status": "accepted"})
}

func (h *EngineHandler) Score(c echo.Context) error {
	req := &models.ScoreRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	res, err := h.queries.Score(c.Request().Context(), req.SignalKey)
	if err != nil {
		return xhttp.NotFoundResponse(c, err.Error())
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *EngineHandler) Watchlist(c echo.Context) error {
	req := &models.WatchlistRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	return xhttp.SuccessResponse(c, h.queries.Watchlist(c.Request().Context(), req.Group))
}

func (h *EngineHandler) Anomaly(c echo.Context) error {
	req := &models.AnomalyQueryRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	return xhttp.SuccessResponse(c, h.queries.Anomalies(c.Request().Context(), req.SignalKey, req.Limit))
}

func (h *EngineHandler) Alerts(c echo.Context) error {
	req := &models.AlertsRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	return xhttp.SuccessResponse(c, h.queries.Alerts(c.Request().Context(), req.State))
}

func (h *EngineHandler) Correlation(c echo.Context) error {
	req := &models.CorrelationRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	res, err := h.queries.Correlation(c.Request().Context(), req.EventKey, req.ReactionKey)
	if err != nil {
		return xhttp.NotFoundResponse(c, err.Error())
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *EngineHandler) Correlations(c echo.Context) error {
	return xhttp.SuccessResponse(c, h.queries.Correlations(c.Request().Context()))
}

func (h *EngineHandler) Ensemble(c echo.Context) error {
	return xhttp.SuccessResponse(c, h.queries.Ensemble(c.Request().Context()))
}

func (h *EngineHandler) Risk(c echo.Context) error {
	start := time.Now()
	defer func() { apimetrics.APILatency.WithLabelValues("risk").Observe(time.Since(start).Seconds()) }()

	req := &models.RiskRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	if !h.rl.Allow(c.RealIP()+":risk", 3, 1) {
		h.logger.Warn("risk rate_limited", xlogger.String("remote", c.RealIP()))
		return xhttp.DataResponse(c, 429, "rate limited")
	}

	res, err := h.queries.Risk(c.Request().Context(), req.SignalKey, req.HorizonDays, req.Confidence)
	if err != nil {
		apimetrics.APIErrors.WithLabelValues("risk").Inc()
		h.logger.Error("risk usecase error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *EngineHandler) History(c echo.Context) error {
	start := time.Now()
	defer func() { apimetrics.APILatency.WithLabelValues("history").Observe(time.Since(start).Seconds()) }()

	req := &models.HistoryRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	tf := domrepo.NormalizeTimeframe(req.TF)
	now := time.Now().UTC()
	to := xhttp.ParseTimeDefault(req.To, now)
	from := xhttp.ParseTimeDefault(req.From, to.Add(-tf.Span()))
	from, to = xhttp.AlignFromTo(from, to, string(tf))

	res, err := h.history.GetHistory(c.Request().Context(), usecase.GetHistoryParams{
		SignalKey: req.SignalKey,
		From:      from,
		To:        to,
		Limit:     req.N,
	})
	if err != nil {
		apimetrics.APIErrors.WithLabelValues("history").Inc()
		h.logger.Error("history usecase error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.SuccessResponse(c, res)
}
