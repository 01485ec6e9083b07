package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/hansel67/stock-analyzer/internal/analysisconfig"
	"github.com/hansel67/stock-analyzer/internal/contracts"
	"github.com/hansel67/stock-analyzer/pkg/logger"
)

// Analyzer 분석 서비스 (pipeline.Analyzer)
type Analyzer interface {
	Analyze(ctx context.Context, symbol string) (*contracts.Report, error)
	ConfigHash() string
}

// AnalysisHandler handles analysis API endpoints
// ⭐ SSOT: 분석 API 핸들러는 이 구조체에서만
type AnalysisHandler struct {
	analyzer Analyzer
	profile  *analysisconfig.Config
	logger   *logger.Logger
}

// NewAnalysisHandler creates a new analysis handler
func NewAnalysisHandler(analyzer Analyzer, profile *analysisconfig.Config, log *logger.Logger) *AnalysisHandler {
	return &AnalysisHandler{
		analyzer: analyzer,
		profile:  profile,
		logger:   log,
	}
}

// Summary 시계열을 제외한 요약 응답
type Summary struct {
	RunID        string                      `json:"run_id"`
	Symbol       string                      `json:"symbol"`
	From         string                      `json:"from"`
	To           string                      `json:"to"`
	ConfigHash   string                      `json:"config_hash"`
	Prices       int                         `json:"prices"`
	Params       contracts.GARCHParams       `json:"garch"`
	Split        contracts.Split             `json:"split"`
	MSE          float64                     `json:"mse"`
	RMSE         float64                     `json:"rmse"`
	MAE          float64                     `json:"mae"`
	R2           float64                     `json:"r2"`
	LastSigma    float64                     `json:"last_sigma"`
	Distribution contracts.DistributionStats `json:"distribution"`
}

// NewSummary condenses a report
func NewSummary(r *contracts.Report) Summary {
	s := Summary{
		RunID:        r.RunID,
		Symbol:       r.Symbol,
		From:         r.From.Format("2006-01-02"),
		To:           r.To.Format("2006-01-02"),
		ConfigHash:   r.ConfigHash,
		Prices:       r.Prices.Len(),
		Params:       r.Params,
		Split:        r.Split,
		MSE:          r.Forecast.MSE,
		RMSE:         r.Forecast.RMSE,
		MAE:          r.Forecast.MAE,
		R2:           r.Forecast.R2,
		Distribution: r.Distribution,
	}
	if n := len(r.Volatility.Sigma); n > 0 {
		s.LastSigma = r.Volatility.Sigma[n-1]
	}
	s.Distribution.Histogram = nil
	s.Distribution.NormalCurve = nil
	return s
}

// Analyze runs (or serves from cache) the analysis for a symbol
// GET /api/analyze/{symbol}?summary=true
func (h *AnalysisHandler) Analyze(w http.ResponseWriter, r *http.Request) {
	symbol := mux.Vars(r)["symbol"]
	if symbol == "" {
		respondError(w, http.StatusBadRequest, "symbol is required")
		return
	}

	report, err := h.analyzer.Analyze(r.Context(), symbol)
	if err != nil {
		status := StatusFor(err)
		entry := h.logger.WithError(err).WithFields(map[string]interface{}{
			"symbol": symbol,
			"status": status,
		})
		if status >= 500 {
			entry.Error("Analysis failed")
		} else {
			entry.Warn("Analysis rejected")
		}
		respondError(w, status, err.Error())
		return
	}

	if summary, _ := strconv.ParseBool(r.URL.Query().Get("summary")); summary {
		respondJSON(w, http.StatusOK, NewSummary(report))
		return
	}
	respondJSON(w, http.StatusOK, report)
}

// Profile returns the active analysis profile and its hash
// GET /api/profile
func (h *AnalysisHandler) Profile(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"config_hash": h.analyzer.ConfigHash(),
		"profile":     h.profile,
	})
}

// StatusFor maps the analysis error taxonomy onto HTTP status codes
func StatusFor(err error) int {
	switch {
	case errors.Is(err, contracts.ErrDataUnavailable):
		return http.StatusNotFound
	case contracts.IsInputError(err):
		return http.StatusUnprocessableEntity
	case errors.Is(err, context.Canceled):
		return 499
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{
		"error": message,
	})
}
