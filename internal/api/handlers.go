package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"dainage/internal/auth"
	"dainage/internal/domain"
)

type handlers struct {
	deps Deps
}

func (h *handlers) login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}
	user, err := h.deps.Users.GetUserByEmail(c.Request.Context(), req.Email)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "invalid credentials"})
			return
		}
		h.fail(c, err)
		return
	}
	if user.IsDemo || !auth.CheckPassword(user.PasswordHash, req.Password) {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "invalid credentials"})
		return
	}
	h.issueToken(c, user.ID)
}

// demoLogin issues a token for the seeded demo account. Password-less by
// design: the demo user owns only sample data.
func (h *handlers) demoLogin(c *gin.Context) {
	user, err := h.deps.Users.GetDemoUser(c.Request.Context())
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "demo account not available"})
			return
		}
		h.fail(c, err)
		return
	}
	h.issueToken(c, user.ID)
}

func (h *handlers) issueToken(c *gin.Context, userID string) {
	token, err := auth.GenerateToken(userID, h.deps.JWTSecret, h.deps.TokenTTL)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, TokenResponse{Token: token, UserID: userID})
}

func (h *handlers) listProjects(c *gin.Context) {
	projects, err := h.deps.Projects.ListProjects(c.Request.Context(), auth.UserID(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	out := make([]*ProjectPayload, 0, len(projects))
	for i := range projects {
		out = append(out, ProjectToPayload(&projects[i]))
	}
	c.JSON(http.StatusOK, out)
}

func (h *handlers) createProject(c *gin.Context) {
	var req CreateProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}
	p, err := h.deps.Projects.CreateProject(c.Request.Context(), auth.UserID(c), req.Name, req.Color)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, ProjectToPayload(p))
}

func (h *handlers) listEntries(c *gin.Context) {
	now := time.Now().UTC()
	from := parseTimeParam(c.Query("from"), now.Add(-24*time.Hour))
	to := parseTimeParam(c.Query("to"), now)
	entries, err := h.deps.Entries.ListEntries(c.Request.Context(), auth.UserID(c), from, to)
	if err != nil {
		h.fail(c, err)
		return
	}
	out := make([]*EntryPayload, 0, len(entries))
	for i := range entries {
		out = append(out, EntryToPayload(&entries[i]))
	}
	c.JSON(http.StatusOK, out)
}

// activeSession returns the running entry, or a JSON null with status 200
// when there is none. A failure is a 5xx, so clients can always tell
// "no session" apart from "could not determine".
func (h *handlers) activeSession(c *gin.Context) {
	entry, err := h.deps.Sessions.GetActiveSession(c.Request.Context(), auth.UserID(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	if entry == nil {
		c.JSON(http.StatusOK, nil)
		return
	}
	c.JSON(http.StatusOK, EntryToPayload(entry))
}

func (h *handlers) startSession(c *gin.Context) {
	var req StartSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}
	entry, err := h.deps.Sessions.StartSession(c.Request.Context(), StartRequestFromWire(auth.UserID(c), req))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, EntryToPayload(entry))
}

func (h *handlers) stopSession(c *gin.Context) {
	entry, err := h.deps.Sessions.StopSession(c.Request.Context(), auth.UserID(c), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, EntryToPayload(entry))
}

// fail maps a domain error onto an HTTP status.
func (h *handlers) fail(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrAuthRequired):
		status = http.StatusUnauthorized
	case errors.Is(err, domain.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrConflict):
		status = http.StatusConflict
	case errors.Is(err, domain.ErrGateway):
		status = http.StatusBadGateway
	}
	if status >= 500 {
		h.deps.Log.Error("request failed",
			"method", c.Request.Method, "path", c.Request.URL.Path, "error", err.Error())
	}
	c.JSON(status, ErrorResponse{Error: err.Error()})
}

func parseTimeParam(val string, defaultVal time.Time) time.Time {
	if val == "" {
		return defaultVal
	}
	if t, err := time.Parse(time.RFC3339, val); err == nil {
		return t
	}
	if d, err := time.Parse("2006-01-02", val); err == nil {
		return time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, time.UTC)
	}
	return defaultVal
}
