// Package handler はHTTPハンドラーとルーティングを提供する。
package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/hitoshi/voicelibrary/internal/middleware"
	"github.com/hitoshi/voicelibrary/internal/model"
	"github.com/hitoshi/voicelibrary/internal/skill"
)

// SkillDispatcher は会話リクエストを処理するインターフェース。
type SkillDispatcher interface {
	Handle(ctx context.Context, req skill.Request) skill.Response
}

// SkillHandler は会話ホストからのリクエストを処理するハンドラー。
type SkillHandler struct {
	dispatcher SkillDispatcher
	logger     *slog.Logger
}

// NewSkillHandler は新しいSkillHandlerを生成する。
func NewSkillHandler(dispatcher SkillDispatcher, logger *slog.Logger) *SkillHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &SkillHandler{dispatcher: dispatcher, logger: logger}
}

// Handle は1回分の会話ターンを処理する。
// POST /skill
func (h *SkillHandler) Handle(w http.ResponseWriter, r *http.Request) {
	var req skill.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError("malformed JSON"))
		return
	}

	req.UserID = strings.TrimSpace(req.UserID)
	if req.UserID == "" {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewMissingUserIDError())
		return
	}

	resp := h.dispatcher.Handle(r.Context(), req)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		h.logger.Error("failed to encode skill response",
			slog.String("user_id", req.UserID),
			slog.String("error", err.Error()),
		)
	}
}
