package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
)

type generateFunc func(ctx context.Context) (string, error)

func (h *Handler) aiSummary(w http.ResponseWriter, r *http.Request) {
	h.generate(w, r, "summary", func(c Coach) generateFunc { return c.WeeklySummary })
}

func (h *Handler) aiCoaching(w http.ResponseWriter, r *http.Request) {
	h.generate(w, r, "coaching", func(c Coach) generateFunc { return c.Coaching })
}

func (h *Handler) aiPlaybook(w http.ResponseWriter, r *http.Request) {
	h.generate(w, r, "playbook", func(c Coach) generateFunc { return c.Playbook })
}

func (h *Handler) aiContentIdeas(w http.ResponseWriter, r *http.Request) {
	var req GenerationRequest
	if err := decodeOptional(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "unable to parse body")
		return
	}
	platform := strings.TrimSpace(req.Platform)
	if platform == "" {
		writeError(w, http.StatusBadRequest, "platform is required")
		return
	}
	h.generate(w, r, "content_ideas", func(c Coach) generateFunc {
		return func(ctx context.Context) (string, error) {
			return c.ContentIdeas(ctx, platform)
		}
	})
}

func (h *Handler) generate(w http.ResponseWriter, r *http.Request, kind string, pick func(Coach) generateFunc) {
	if h.coach == nil {
		writeError(w, http.StatusServiceUnavailable, "AI coach is not configured")
		return
	}
	text, err := pick(h.coach)(r.Context())
	if err != nil {
		h.fail(w, r, "generate "+kind, err)
		return
	}
	writeJSON(w, http.StatusOK, GenerationResponse{Text: text})
}

// decodeOptional tolerates an empty request body.
func decodeOptional(r *http.Request, dst any) error {
	err := json.NewDecoder(r.Body).Decode(dst)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}
