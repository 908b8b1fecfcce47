package handlers

import (
	"encoding/base64"
	"log/slog"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/relaybot/relaybot/internal/bot"
	"github.com/relaybot/relaybot/internal/reply"
)

// ReplyRequest is the inbound turn the gateway posts.
type ReplyRequest struct {
	Query       string `json:"query"`
	Type        string `json:"type"`
	SessionID   string `json:"session_id"`
	IsGroup     bool   `json:"is_group"`
	NeedReply   bool   `json:"need_reply"`
	ReplyTarget string `json:"reply_target"`

	OtherUserID        string `json:"other_user_id"`
	ActualUserID       string `json:"actual_user_id"`
	OtherUserNickname  string `json:"other_user_nickname"`
	ActualUserNickname string `json:"actual_user_nickname"`
}

// ReplyResponse carries the final reply of a turn. Image bytes travel
// base64-encoded.
type ReplyResponse struct {
	Type    string `json:"type"`
	Content string `json:"content,omitempty"`
	Image   string `json:"image,omitempty"`
}

type CacheImageRequest struct {
	SessionID string `json:"session_id"`
	Path      string `json:"path"`
}

// ReplyHandler exposes the bot facade over HTTP.
type ReplyHandler struct {
	facade *bot.Facade
	logger *slog.Logger
}

func NewReplyHandler(log *slog.Logger, facade *bot.Facade) *ReplyHandler {
	return &ReplyHandler{
		facade: facade,
		logger: log.With(slog.String("handler", "reply")),
	}
}

func (h *ReplyHandler) Register(e *echo.Echo) {
	e.POST("/reply", h.Reply)
	e.POST("/images", h.CacheImage)
	e.DELETE("/sessions/:session_id", h.ClearSession)
	e.DELETE("/sessions", h.ClearAllSessions)
}

func (h *ReplyHandler) Reply(c echo.Context) error {
	var req ReplyRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if strings.TrimSpace(req.Query) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "query is required")
	}
	turnType := bot.ContextTypeText
	if req.Type != "" {
		turnType = bot.ContextType(req.Type)
	}

	r := h.facade.Reply(c.Request().Context(), req.Query, bot.Context{
		Type:        turnType,
		SessionID:   req.SessionID,
		IsGroup:     req.IsGroup,
		NeedReply:   req.NeedReply,
		ReplyTarget: req.ReplyTarget,
		Msg: bot.ChannelMessage{
			OtherUserID:        req.OtherUserID,
			ActualUserID:       req.ActualUserID,
			OtherUserNickname:  req.OtherUserNickname,
			ActualUserNickname: req.ActualUserNickname,
		},
	})
	if r == nil {
		return c.NoContent(http.StatusNoContent)
	}

	resp := ReplyResponse{Type: string(r.Type), Content: r.Content}
	if r.Type == reply.TypeImage {
		resp.Image = base64.StdEncoding.EncodeToString(r.Image)
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *ReplyHandler) CacheImage(c echo.Context) error {
	var req CacheImageRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.SessionID == "" || req.Path == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "session_id and path are required")
	}
	h.facade.CacheImage(req.SessionID, req.Path)
	return c.NoContent(http.StatusNoContent)
}

func (h *ReplyHandler) ClearSession(c echo.Context) error {
	sessionID := c.Param("session_id")
	if sessionID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "session id is required")
	}
	h.facade.ClearSession(sessionID, c.QueryParam("group_id"))
	return c.NoContent(http.StatusNoContent)
}

func (h *ReplyHandler) ClearAllSessions(c echo.Context) error {
	h.facade.ClearAllSessions()
	return c.NoContent(http.StatusNoContent)
}
