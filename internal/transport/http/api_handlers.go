package http

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/chatme/relay-server/internal/core"
	"github.com/chatme/relay-server/internal/store"
)

// DirectoryHandlers provides the REST API over the user/group directory
// and message history.
type DirectoryHandlers struct {
	store store.Store
	hub   *core.Hub
	log   *zerolog.Logger
}

// NewDirectoryHandlers creates a new directory handlers instance.
func NewDirectoryHandlers(st store.Store, hub *core.Hub, logger *zerolog.Logger) *DirectoryHandlers {
	return &DirectoryHandlers{
		store: st,
		hub:   hub,
		log:   logger,
	}
}

// RegisterRequest represents the registration request body.
type RegisterRequest struct {
	Username string `json:"username" binding:"required"`
}

// CreateGroupRequest represents the group creation request body.
type CreateGroupRequest struct {
	Name string `json:"name" binding:"required"`
}

// UsersResponse lists registered usernames.
type UsersResponse struct {
	Users []string `json:"users"`
}

// GroupsResponse lists group names.
type GroupsResponse struct {
	Groups []string `json:"groups"`
}

// HistoryMessage is one persisted message in a history response.
type HistoryMessage struct {
	From    string `json:"from"`
	To      string `json:"to"`
	Body    string `json:"body"`
	IsGroup bool   `json:"isGroup"`
	Kind    string `json:"kind"`
	Audio   string `json:"audio,omitempty"`
	TS      int64  `json:"ts"`
}

// HistoryResponse holds a conversation's history, oldest first.
type HistoryResponse struct {
	Target   string           `json:"target"`
	Messages []HistoryMessage `json:"messages"`
}

// ErrorResponse represents an error response body.
type ErrorResponse struct {
	Error string `json:"error"`
}

// Register records a username in the directory and announces it to
// connected clients.
// POST /api/register
func (h *DirectoryHandlers) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Debug().Err(err).Msg("invalid register request")
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}
	if !store.ValidName(req.Username) {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid username"})
		return
	}

	if err := h.store.RegisterUser(c.Request.Context(), req.Username); err != nil {
		h.log.Error().Err(err).Str("username", req.Username).Msg("failed to register user")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	h.hub.AnnounceUser(req.Username)

	h.log.Info().Str("username", req.Username).Msg("user registered")
	c.JSON(http.StatusCreated, gin.H{"username": req.Username})
}

// CreateGroup records a group name.
// POST /api/groups
func (h *DirectoryHandlers) CreateGroup(c *gin.Context) {
	var req CreateGroupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}
	if !store.ValidName(req.Name) {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid group name"})
		return
	}

	if err := h.store.CreateGroup(c.Request.Context(), req.Name); err != nil {
		if errors.Is(err, store.ErrGroupExists) {
			c.JSON(http.StatusConflict, ErrorResponse{Error: "group already exists"})
			return
		}
		h.log.Error().Err(err).Str("group", req.Name).Msg("failed to create group")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	h.log.Info().Str("group", req.Name).Msg("group created")
	c.JSON(http.StatusCreated, gin.H{"name": req.Name})
}

// ListUsers returns all registered usernames.
// GET /api/users
func (h *DirectoryHandlers) ListUsers(c *gin.Context) {
	users, err := h.store.ListUsers(c.Request.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("failed to list users")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}
	c.JSON(http.StatusOK, UsersResponse{Users: users})
}

// ListGroups returns all group names.
// GET /api/groups
func (h *DirectoryHandlers) ListGroups(c *gin.Context) {
	groups, err := h.store.ListGroups(c.Request.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("failed to list groups")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}
	c.JSON(http.StatusOK, GroupsResponse{Groups: groups})
}

// History returns a conversation's messages. Clients use this to recover
// messages missed while offline; nothing is queued per connection.
// GET /api/history?target=bob&requester=alice&isGroup=false&limit=100
func (h *DirectoryHandlers) History(c *gin.Context) {
	target := c.Query("target")
	requester := c.Query("requester")
	if target == "" || requester == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "target and requester are required"})
		return
	}
	isGroup, _ := strconv.ParseBool(c.DefaultQuery("isGroup", "false"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "0"))

	messages, err := h.store.ListConversation(c.Request.Context(), target, requester, isGroup, limit)
	if err != nil {
		h.log.Error().Err(err).Str("target", target).Msg("failed to query history")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	out := make([]HistoryMessage, 0, len(messages))
	for _, msg := range messages {
		out = append(out, HistoryMessage{
			From:    msg.From,
			To:      msg.To,
			Body:    msg.Body,
			IsGroup: msg.IsGroup,
			Kind:    msg.Kind,
			Audio:   msg.Audio,
			TS:      msg.CreatedAt.UnixMilli(),
		})
	}
	c.JSON(http.StatusOK, HistoryResponse{Target: target, Messages: out})
}
