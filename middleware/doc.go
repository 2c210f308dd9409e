// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package middleware provides HTTP middleware and helper functions.

# Request Logging

Wrap handlers with request logging:

	mux.HandleFunc("GET /health", middleware.WithLogging(handler))

Logs request completion with status and duration_ms. WebSocket upgrades pass
through the wrapper unchanged.

# CORS Middleware

Enable cross-origin reads for the web client:

	server := http.Server{
		Handler: middleware.CORS(mux, cfg.AllowedOrigins),
	}

OriginAllowed applies the same allow list to WebSocket handshakes.

# JSON Helpers

	middleware.JSONResponse(w, http.StatusOK, data)
	middleware.RawJSONResponse(w, http.StatusOK, encoded)
	middleware.ErrorResponse(w, http.StatusServiceUnavailable, "message")

# Client IP Extraction

Get the original client IP (handles X-Forwarded-For, X-Real-IP):

	ip := middleware.GetClientIP(r)
*/
package middleware
