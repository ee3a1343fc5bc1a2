package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/starford/shikibuild/internal/apperr"
	"github.com/starford/shikibuild/internal/buildservice"
)

// Handler holds API route handlers.
type Handler struct {
	svc *buildservice.Service
}

// NewHandler creates a new Handler.
func NewHandler(svc *buildservice.Service) *Handler {
	return &Handler{svc: svc}
}

// resultPath extracts the result path from the URL (everything after
// /api/results/). Encoded slashes are accepted.
func resultPath(r *http.Request) string {
	raw := strings.TrimPrefix(chi.URLParam(r, "*"), "/")
	if raw == "" {
		return ""
	}
	decoded, err := url.PathUnescape(raw)
	if err != nil {
		return raw
	}
	return decoded
}

func writeLookupError(w http.ResponseWriter, what string, err error) {
	if errors.Is(err, apperr.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, errorBody("not found"))
		return
	}
	slog.Error("api: "+what+" failed", slog.String("error", err.Error()))
	writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
}

// ListBuilds handles GET /api/builds.
//
//	@Summary		List recent builds, newest first
//	@Tags			builds
//	@Produce		json
//	@Param			limit	query		int	false	"Maximum number of builds"
//	@Success		200		{object}	BuildListResponse
//	@Security		BearerAuth
//	@Router			/builds [get]
func (h *Handler) ListBuilds(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	builds, err := h.svc.Recent(r.Context(), limit)
	if err != nil {
		writeLookupError(w, "list builds", err)
		return
	}
	writeJSON(w, http.StatusOK, BuildListResponse{Builds: builds})
}

// LatestBuild handles GET /api/builds/latest.
//
//	@Summary		Full report of the latest build in this process
//	@Tags			builds
//	@Produce		json
//	@Success		200	{object}	build.Report
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/builds/latest [get]
func (h *Handler) LatestBuild(w http.ResponseWriter, _ *http.Request) {
	report, err := h.svc.Latest()
	if err != nil {
		writeLookupError(w, "latest build", err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// GetBuild handles GET /api/builds/{id}.
//
//	@Summary		Get one build summary
//	@Tags			builds
//	@Produce		json
//	@Param			id	path		string	true	"Build id"
//	@Success		200	{object}	history.Summary
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/builds/{id} [get]
func (h *Handler) GetBuild(w http.ResponseWriter, r *http.Request) {
	b, err := h.svc.Build(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeLookupError(w, "get build", err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

// BuildErrors handles GET /api/builds/{id}/errors.
//
//	@Summary		List the block errors of one build
//	@Tags			builds
//	@Produce		json
//	@Param			id	path		string	true	"Build id"
//	@Success		200	{array}		models.ProcessError
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/builds/{id}/errors [get]
func (h *Handler) BuildErrors(w http.ResponseWriter, r *http.Request) {
	errs, err := h.svc.BuildErrors(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeLookupError(w, "build errors", err)
		return
	}
	writeJSON(w, http.StatusOK, errs)
}

// TriggerBuild handles POST /api/builds.
//
//	@Summary		Run a build and return its report
//	@Tags			builds
//	@Produce		json
//	@Success		200	{object}	build.Report
//	@Failure		409	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/builds [post]
func (h *Handler) TriggerBuild(w http.ResponseWriter, r *http.Request) {
	report, err := h.svc.Trigger(r.Context())
	if err != nil {
		switch {
		case errors.Is(err, apperr.ErrBuildInProgress):
			writeJSON(w, http.StatusConflict, errorBody("build already in progress"))
		case errors.Is(err, apperr.ErrInvalidConfig):
			writeJSON(w, http.StatusInternalServerError, errorBody(err.Error()))
		default:
			slog.Error("api: trigger build failed", slog.String("error", err.Error()))
			writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		}
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// ListLanguages handles GET /api/languages.
//
//	@Summary		List supported languages
//	@Tags			languages
//	@Produce		json
//	@Success		200	{object}	LanguageListResponse
//	@Security		BearerAuth
//	@Router			/languages [get]
func (h *Handler) ListLanguages(w http.ResponseWriter, _ *http.Request) {
	langs := h.svc.Languages()
	writeJSON(w, http.StatusOK, LanguageListResponse{Languages: langs, Total: len(langs)})
}

// CheckLanguage handles GET /api/languages/{tag}.
//
//	@Summary		Resolve a fence tag, with suggestions when unsupported
//	@Tags			languages
//	@Produce		json
//	@Param			tag	path		string	true	"Fence tag"
//	@Success		200	{object}	buildservice.LanguageCheck
//	@Security		BearerAuth
//	@Router			/languages/{tag} [get]
func (h *Handler) CheckLanguage(w http.ResponseWriter, r *http.Request) {
	tag, err := url.PathUnescape(chi.URLParam(r, "tag"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid tag"))
		return
	}
	writeJSON(w, http.StatusOK, h.svc.CheckLanguage(tag))
}

// ListThemes handles GET /api/themes.
//
//	@Summary		List available and configured themes
//	@Tags			themes
//	@Produce		json
//	@Success		200	{object}	buildservice.ThemeList
//	@Security		BearerAuth
//	@Router			/themes [get]
func (h *Handler) ListThemes(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.Themes())
}

// Highlight handles POST /api/highlight.
//
//	@Summary		Render one snippet with the configured themes
//	@Tags			highlight
//	@Accept			json
//	@Produce		json
//	@Param			body	body		HighlightRequest	true	"Snippet"
//	@Success		200		{object}	buildservice.HighlightResult
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/highlight [post]
func (h *Handler) Highlight(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	var req HighlightRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if req.Code == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("code is required"))
		return
	}
	writeJSON(w, http.StatusOK, h.svc.Highlight(r.Context(), req.Code, req.Lang, req.Meta))
}

// GetResult handles GET /api/results/*.
//
//	@Summary		Get the stored block results of one content file
//	@Tags			results
//	@Produce		json
//	@Param			path	path		string	true	"Content or result path"
//	@Success		200		{array}		models.BlockResult
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/results/{path} [get]
func (h *Handler) GetResult(w http.ResponseWriter, r *http.Request) {
	path := resultPath(r)
	if path == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path is required"))
		return
	}
	results, err := h.svc.Result(path)
	if err != nil {
		writeLookupError(w, "get result", err)
		return
	}
	writeJSON(w, http.StatusOK, results)
}
