// Shelfwise - Book Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/shelfwise

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tomtom215/shelfwise/internal/middleware"
)

// RequestIDHeaderName is the header carrying the request id in both
// directions.
const RequestIDHeaderName = middleware.RequestIDHeader

// Router wires handlers and middleware into a Chi mux.
type Router struct {
	handler       *Handler
	chiMiddleware *ChiMiddleware

	// SlowRequestThreshold is the latency above which requests are logged
	// at warn. Zero uses the middleware default.
	SlowRequestThreshold time.Duration
}

// NewRouter creates a router. A nil mw uses DefaultChiMiddlewareConfig.
func NewRouter(handler *Handler, mw *ChiMiddleware) *Router {
	if mw == nil {
		mw = NewChiMiddleware(nil)
	}
	return &Router{handler: handler, chiMiddleware: mw}
}

// SetupChi configures all HTTP routes.
func (router *Router) SetupChi() http.Handler {
	r := chi.NewRouter()

	// Global middleware, applied to all routes in order
	r.Use(middleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(router.chiMiddleware.CORS()) // global so OPTIONS preflight is answered
	r.Use(middleware.PrometheusMetrics)
	r.Use(middleware.SlowRequests(router.SlowRequestThreshold))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		NewResponseWriter(w, r).NotFound("Route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		NewResponseWriter(w, r).Error(http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed")
	})

	h := router.handler

	r.Route("/api/v1", func(r chi.Router) {
		// promhttp negotiates its own gzip
		r.With(router.chiMiddleware.RateLimitCustom(RateLimitHealth)).Handle("/metrics", promhttp.Handler())

		r.Route("/health", func(r chi.Router) {
			r.Use(router.chiMiddleware.RateLimitCustom(RateLimitHealth))
			r.Use(APISecurityHeaders())
			r.Get("/live", h.HealthLive)
			r.Get("/ready", h.HealthReady)
		})

		r.Group(func(r chi.Router) {
			r.Use(router.chiMiddleware.RateLimit())
			r.Use(APISecurityHeaders())
			r.Use(middleware.Compression)

			r.Get("/stats", h.Stats)

			r.Route("/books", func(r chi.Router) {
				r.Get("/", h.ListBooks)
				r.Get("/trending", h.TrendingBooks)
				r.Get("/{bookID}", h.GetBook)
				r.Get("/{bookID}/similar", h.SimilarToBook)
			})

			r.Get("/search/similar", h.SearchSimilar)

			r.With(router.chiMiddleware.RateLimitCustom(RateLimitWrite)).Post("/ratings", h.SubmitRating)

			r.Route("/users", func(r chi.Router) {
				r.With(router.chiMiddleware.RateLimitCustom(RateLimitWrite)).Post("/", h.CreateUser)
				r.Get("/by-name/{username}", h.GetUserByName)
				r.Get("/{userID}/ratings", h.UserRatings)
				r.Get("/{userID}/recommendations", h.UserRecommendations)
				r.Get("/{userID}/content-matches", h.ContentMatches)
			})

			r.Route("/recommendations", func(r chi.Router) {
				r.Get("/status", h.RecommendationStatus)
				r.With(router.chiMiddleware.RateLimitCustom(RateLimitTrain)).Post("/train", h.TriggerTraining)
			})
		})
	})

	return r
}
