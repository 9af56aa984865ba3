package main

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/commitfmt/commitfmt-bridge/internal/bridge"
	"github.com/commitfmt/commitfmt-bridge/internal/forge"
	"github.com/commitfmt/commitfmt-bridge/internal/httpclient"
	"github.com/justinas/alice"
	"github.com/rs/zerolog/log"
)

func configureRoutes(b *bridge.Bridge) http.Handler {
	mux := http.NewServeMux()

	// The editor sends only small query-string requests; anything larger is
	// a broken or hostile client.
	requestLimitBytes := int64(20 << 10) // 20 KB
	standard := alice.New(maxRequestSize(requestLimitBytes), requestLogger)

	mux.Handle("GET /repo", standard.Then(handleGetRepo(b)))
	mux.Handle("GET /issues", standard.Then(handleGetIssues(b)))
	mux.Handle("GET /token", standard.Then(handleGetToken(b)))
	mux.Handle("POST /refresh", standard.Then(handlePostRefresh(b)))
	mux.Handle("GET /healthcheck", standard.Then(handleHealthCheck()))

	return mux
}

// handleGetRepo classifies the remote URL supplied by the editor.
func handleGetRepo(b *bridge.Bridge) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		remoteURL, ok := requireRemote(w, r)
		if !ok {
			return
		}

		info, err := b.Repo(r.Context(), remoteURL)
		if err != nil {
			writeError(w, err)
			return
		}

		writeJSON(w, info)
	})
}

// handleGetIssues lists open issues for the remote's repository, up to the
// optional "max" query parameter.
func handleGetIssues(b *bridge.Bridge) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		remoteURL, ok := requireRemote(w, r)
		if !ok {
			return
		}

		max := 0
		if raw := r.URL.Query().Get("max"); raw != "" {
			parsed, err := strconv.Atoi(raw)
			if err != nil || parsed < 0 {
				writeJSONError(w, http.StatusBadRequest, "max must be a non-negative integer")
				return
			}
			max = parsed
		}

		issues, err := b.ListOpenIssues(r.Context(), remoteURL, max)
		if err != nil {
			writeError(w, err)
			return
		}

		if issues == nil {
			issues = []forge.Issue{}
		}
		writeJSON(w, issues)
	})
}

// handleGetToken reports whether a token is configured for the remote's
// forge, so the editor can prompt for credentials before fetching.
func handleGetToken(b *bridge.Bridge) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		remoteURL, ok := requireRemote(w, r)
		if !ok {
			return
		}

		configured, err := b.ResolveToken(r.Context(), remoteURL)
		if err != nil {
			writeError(w, err)
			return
		}

		writeJSON(w, struct {
			Configured bool `json:"configured"`
		}{Configured: configured})
	})
}

// handlePostRefresh invalidates cached state: one repository when a remote
// is given, everything otherwise.
func handlePostRefresh(b *bridge.Bridge) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		remoteURL := r.URL.Query().Get("remote")

		if remoteURL == "" {
			b.ClearAll()
			w.WriteHeader(http.StatusNoContent)
			return
		}

		if err := b.Invalidate(r.Context(), remoteURL); err != nil {
			writeError(w, err)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	})
}

func handleHealthCheck() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
}

func requireRemote(w http.ResponseWriter, r *http.Request) (string, bool) {
	remoteURL := r.URL.Query().Get("remote")
	if remoteURL == "" {
		writeJSONError(w, http.StatusBadRequest, "remote query parameter is required")
		return "", false
	}
	return remoteURL, true
}

func maxRequestSize(limit int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.MaxBytesHandler(next, limit)
	}
}

// requestLogger logs each request after completion, with the remote URL
// redacted in case a misconfigured client embeds credentials in it.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(recorder, r)

		log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Str("remote", httpclient.RedactString(r.URL.Query().Get("remote"))).
			Int("status", recorder.status).
			Dur("elapsed", time.Since(start)).
			Msg("request")
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// ErrorResponse is the JSON body of every error response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// writeError maps bridge and forge failures onto HTTP statuses. Error
// messages are written verbatim: the bridge's errors are designed to be
// user-facing.
func writeError(w http.ResponseWriter, err error) {
	var (
		missing     *forge.MissingTokenError
		unsupported *forge.UnsupportedForgeError
		status      *httpclient.StatusError
	)

	switch {
	case errors.Is(err, bridge.ErrUnrecognizedRemote):
		writeJSONError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.As(err, &missing):
		writeJSONError(w, http.StatusUnauthorized, err.Error())
	case errors.As(err, &unsupported):
		writeJSONError(w, http.StatusBadRequest, err.Error())
	case errors.As(err, &status), errors.Is(err, httpclient.ErrResponseTooLarge):
		writeJSONError(w, http.StatusBadGateway, err.Error())
	default:
		log.Info().Msgf("issue fetch failed: %v", err)
		writeJSONError(w, http.StatusBadGateway, err.Error())
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	payload, err := json.Marshal(v)
	if err != nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if _, err := w.Write(payload); err != nil {
		log.Info().Msgf("failed to write response: %v", err)
	}
}

func writeJSONError(w http.ResponseWriter, statusCode int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(ErrorResponse{Error: message}); err != nil {
		// the status line is already written, logging is all that's left
		log.Info().Msgf("failed to write error response: %v", err)
	}
}
