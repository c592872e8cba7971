package http

import (
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kjstillabower/flight-risk-service/internal/observability"
)

// NewRouter wires the API routes. /health and /metrics bypass the rate limiter and the
// request timeout so probes keep answering under load.
func NewRouter(h *Handler, logger *zap.Logger, limiter *rate.Limiter, requestTimeout time.Duration) *mux.Router {
	router := mux.NewRouter()
	router.Use(CorrelationIDMiddleware(logger))
	router.Use(MetricsMiddleware)
	router.HandleFunc("/health", h.GetHealth).Methods("GET")
	router.Handle("/metrics", observability.MetricsHandler())

	flights := router.PathPrefix("/flights").Subrouter()
	flights.Use(RateLimitMiddleware(limiter))
	flights.Use(TimeoutMiddleware(requestTimeout))
	flights.HandleFunc("", h.ListFlights).Methods("GET")
	flights.HandleFunc("", h.CreateFlight).Methods("POST")
	flights.HandleFunc("/search", h.SearchFlights).Methods("GET")
	flights.HandleFunc("/{id:[0-9]+}", h.GetFlight).Methods("GET")
	flights.HandleFunc("/{id:[0-9]+}/status", h.UpdateFlightStatus).Methods("PUT")
	flights.HandleFunc("/{id:[0-9]+}/weather", h.GetFlightWeather).Methods("GET")
	flights.HandleFunc("/{id:[0-9]+}/delay-risk", h.GetDelayRisk).Methods("GET")

	airports := router.PathPrefix("/airports").Subrouter()
	airports.Use(RateLimitMiddleware(limiter))
	airports.Use(TimeoutMiddleware(requestTimeout))
	airports.HandleFunc("", h.ListAirports).Methods("GET")
	airports.HandleFunc("", h.CreateAirport).Methods("POST")
	airports.HandleFunc("/search", h.SearchAirports).Methods("GET")
	airports.HandleFunc("/{code}", h.GetAirport).Methods("GET")

	return router
}
