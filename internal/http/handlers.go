package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/kjstillabower/flight-risk-service/internal/models"
	"github.com/kjstillabower/flight-risk-service/internal/service"
)

const maxBodyBytes = 1 << 20

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	flights          *service.FlightService
	airports         *service.AirportService
	assessments      *service.AssessmentService
	healthConfig     *HealthConfig
	logger           *zap.Logger
	healthStatusMu   sync.Mutex
	healthStatusPrev string
}

// NewHandler returns a new Handler. healthConfig may be nil, in which case /health only
// reports lifecycle state.
func NewHandler(
	flights *service.FlightService,
	airports *service.AirportService,
	assessments *service.AssessmentService,
	healthConfig *HealthConfig,
	logger *zap.Logger,
) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		flights:      flights,
		airports:     airports,
		assessments:  assessments,
		healthConfig: healthConfig,
		logger:       logger,
	}
}

// ListFlights handles GET /flights.
func (h *Handler) ListFlights(w http.ResponseWriter, r *http.Request) {
	flights, err := h.flights.List(r.Context())
	if err != nil {
		writeServiceError(w, r, err, "FLIGHT_NOT_FOUND")
		return
	}
	writeJSON(w, http.StatusOK, flights)
}

// SearchFlights handles GET /flights/search?origin=&destination=&date=.
func (h *Handler) SearchFlights(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	flights, err := h.flights.Search(r.Context(), q.Get("origin"), q.Get("destination"), q.Get("date"))
	if err != nil {
		writeServiceError(w, r, err, "FLIGHT_NOT_FOUND")
		return
	}
	writeJSON(w, http.StatusOK, flights)
}

// GetFlight handles GET /flights/{id}.
func (h *Handler) GetFlight(w http.ResponseWriter, r *http.Request) {
	id, ok := flightID(w, r)
	if !ok {
		return
	}
	f, err := h.flights.Get(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err, "FLIGHT_NOT_FOUND")
		return
	}
	writeJSON(w, http.StatusOK, f)
}

type createFlightRequest struct {
	FlightNumber  string  `json:"flightNumber"`
	DepartureCode string  `json:"departureCode"`
	ArrivalCode   string  `json:"arrivalCode"`
	DepartureTime string  `json:"departureTime"`
	ArrivalTime   string  `json:"arrivalTime"`
	AircraftID    *int64  `json:"aircraftId"`
	BaseFare      float64 `json:"baseFare"`
}

// CreateFlight handles POST /flights.
func (h *Handler) CreateFlight(w http.ResponseWriter, r *http.Request) {
	var req createFlightRequest
	if !decodeBody(w, r, &req) {
		return
	}
	dep, err := models.ParseLocalTime(req.DepartureTime)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "INVALID_ARGUMENT", "departureTime: "+err.Error())
		return
	}
	arr, err := models.ParseLocalTime(req.ArrivalTime)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "INVALID_ARGUMENT", "arrivalTime: "+err.Error())
		return
	}
	f, err := h.flights.Create(r.Context(), service.CreateFlightInput{
		FlightNumber:  req.FlightNumber,
		DepartureCode: req.DepartureCode,
		ArrivalCode:   req.ArrivalCode,
		DepartureTime: dep,
		ArrivalTime:   arr,
		AircraftID:    req.AircraftID,
		BaseFare:      req.BaseFare,
	})
	if err != nil {
		writeServiceError(w, r, err, "FLIGHT_NOT_FOUND")
		return
	}
	writeJSON(w, http.StatusCreated, f)
}

// UpdateFlightStatus handles PUT /flights/{id}/status with body {"status":"DELAYED"}.
func (h *Handler) UpdateFlightStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := flightID(w, r)
	if !ok {
		return
	}
	var req struct {
		Status string `json:"status"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	status := models.FlightStatus(strings.ToUpper(strings.TrimSpace(req.Status)))
	f, err := h.flights.UpdateStatus(r.Context(), id, status)
	if err != nil {
		writeServiceError(w, r, err, "FLIGHT_NOT_FOUND")
		return
	}
	writeJSON(w, http.StatusOK, f)
}

// GetFlightWeather handles GET /flights/{id}/weather.
func (h *Handler) GetFlightWeather(w http.ResponseWriter, r *http.Request) {
	id, ok := flightID(w, r)
	if !ok {
		return
	}
	weather, err := h.assessments.GetWeather(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err, "FLIGHT_NOT_FOUND")
		return
	}
	writeJSON(w, http.StatusOK, weather)
}

// GetDelayRisk handles GET /flights/{id}/delay-risk.
func (h *Handler) GetDelayRisk(w http.ResponseWriter, r *http.Request) {
	id, ok := flightID(w, r)
	if !ok {
		return
	}
	level, err := h.assessments.GetDelayRisk(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err, "FLIGHT_NOT_FOUND")
		return
	}
	writeJSON(w, http.StatusOK, map[string]models.RiskLevel{"riskLevel": level})
}

// ListAirports handles GET /airports.
func (h *Handler) ListAirports(w http.ResponseWriter, r *http.Request) {
	airports, err := h.airports.List(r.Context())
	if err != nil {
		writeServiceError(w, r, err, "AIRPORT_NOT_FOUND")
		return
	}
	writeJSON(w, http.StatusOK, airports)
}

// SearchAirports handles GET /airports/search?q=.
func (h *Handler) SearchAirports(w http.ResponseWriter, r *http.Request) {
	airports, err := h.airports.Search(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		writeServiceError(w, r, err, "AIRPORT_NOT_FOUND")
		return
	}
	writeJSON(w, http.StatusOK, airports)
}

// GetAirport handles GET /airports/{code}.
func (h *Handler) GetAirport(w http.ResponseWriter, r *http.Request) {
	a, err := h.airports.GetAirport(r.Context(), mux.Vars(r)["code"])
	if err != nil {
		writeServiceError(w, r, err, "AIRPORT_NOT_FOUND")
		return
	}
	writeJSON(w, http.StatusOK, a)
}

// CreateAirport handles POST /airports.
func (h *Handler) CreateAirport(w http.ResponseWriter, r *http.Request) {
	var req models.Airport
	if !decodeBody(w, r, &req) {
		return
	}
	a, err := h.airports.Create(r.Context(), req)
	if err != nil {
		writeServiceError(w, r, err, "AIRPORT_NOT_FOUND")
		return
	}
	writeJSON(w, http.StatusCreated, a)
}

// flightID reads the {id} route variable. On failure it writes a 400 and returns false.
func flightID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	raw := mux.Vars(r)["id"]
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		writeError(w, r, http.StatusBadRequest, "INVALID_ARGUMENT", "flight id must be a positive integer")
		return 0, false
	}
	return id, true
}

func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		writeError(w, r, http.StatusBadRequest, "INVALID_ARGUMENT", "malformed request body: "+err.Error())
		return false
	}
	return true
}

// writeJSON writes a JSON response with the specified HTTP status code.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes an error response in the standard error format with code, message,
// and requestId (correlation ID) if available in request context.
func writeError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	writeJSON(w, status, map[string]interface{}{
		"error": map[string]string{
			"code":      code,
			"message":   message,
			"requestId": correlationID(r),
		},
	})
}

// writeServiceError maps service sentinels onto status codes. notFoundCode names the
// missing resource. Unrecognised errors are logged and answered with 500.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error, notFoundCode string) {
	switch {
	case errors.Is(err, service.ErrInvalidArgument):
		writeError(w, r, http.StatusBadRequest, "INVALID_ARGUMENT", err.Error())
	case errors.Is(err, service.ErrNotFound):
		writeError(w, r, http.StatusNotFound, notFoundCode, err.Error())
	case errors.Is(err, models.ErrInvalidTransition):
		writeError(w, r, http.StatusConflict, "INVALID_TRANSITION", err.Error())
	case errors.Is(err, service.ErrConflict):
		writeError(w, r, http.StatusConflict, "CONFLICT", err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		writeError(w, r, http.StatusGatewayTimeout, "TIMEOUT", "request timed out")
	default:
		if logger := loggerFromRequest(r); logger != nil {
			logger.Error("request failed", zap.Error(err))
		}
		writeError(w, r, http.StatusInternalServerError, "INTERNAL", "internal error")
	}
}

func correlationID(r *http.Request) string {
	if v, ok := r.Context().Value("correlation_id").(string); ok {
		return v
	}
	return ""
}

func loggerFromRequest(r *http.Request) *zap.Logger {
	if logger, ok := r.Context().Value("logger").(*zap.Logger); ok {
		return logger
	}
	return nil
}
