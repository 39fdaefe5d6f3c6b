package api

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"solana-rent-reclaim/internal/dashboard"
	"solana-rent-reclaim/internal/domain"
)

// OwnerRequest is the body of session creation and owner changes.
type OwnerRequest struct {
	Owner string `json:"owner"`
}

// SessionResponse is returned when a session is opened.
type SessionResponse struct {
	SessionID string `json:"sessionId"`
	Owner     string `json:"owner"`
}

// SelectionResponse reports the selection after a change.
type SelectionResponse struct {
	Account       string `json:"account"`
	Selected      bool   `json:"selected"`
	SelectedCount int    `json:"selectedCount"`
}

func (r *Router) session(c *gin.Context) (*dashboard.Session, bool) {
	s, err := r.sessions.Get(c.Param("id"))
	if err != nil {
		abortWithError(c, err, r.logger)
		return nil, false
	}
	return s, true
}

func (r *Router) bindOwner(c *gin.Context) (string, bool) {
	var req OwnerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithCode(c, ErrorCodeMalformedJSON, err.Error(), r.logger)
		return "", false
	}
	if req.Owner == "" {
		abortWithCode(c, ErrorCodeInvalidRequest, "owner is required", r.logger)
		return "", false
	}
	return req.Owner, true
}

// openSession handles POST /api/sessions.
func (r *Router) openSession(c *gin.Context) {
	owner, ok := r.bindOwner(c)
	if !ok {
		return
	}

	s, err := r.sessions.Open(owner)
	if err != nil {
		abortWithError(c, err, r.logger)
		return
	}
	c.JSON(http.StatusCreated, SessionResponse{SessionID: s.ID, Owner: owner})
}

// changeOwner handles PUT /api/sessions/:id/owner.
func (r *Router) changeOwner(c *gin.Context) {
	s, ok := r.session(c)
	if !ok {
		return
	}
	owner, ok := r.bindOwner(c)
	if !ok {
		return
	}

	if err := s.Connect(owner); err != nil {
		abortWithError(c, fmt.Errorf("%w: owner %q", err, owner), r.logger)
		return
	}
	c.JSON(http.StatusOK, SessionResponse{SessionID: s.ID, Owner: owner})
}

// closeSession handles DELETE /api/sessions/:id.
func (r *Router) closeSession(c *gin.Context) {
	id := c.Param("id")
	if err := r.sessions.Close(id); err != nil {
		abortWithError(c, err, r.logger)
		return
	}
	r.closures.Remove(id)
	c.Status(http.StatusNoContent)
}

// getTokens handles GET /api/sessions/:id/tokens.
func (r *Router) getTokens(c *gin.Context) {
	s, ok := r.session(c)
	if !ok {
		return
	}
	opts, err := r.viewOptions(c)
	if err != nil {
		abortWithError(c, err, r.logger)
		return
	}
	c.JSON(http.StatusOK, s.View(opts))
}

// viewOptions overlays the sort, order and hideZero query parameters on the defaults.
func (r *Router) viewOptions(c *gin.Context) (dashboard.ViewOptions, error) {
	opts := r.defaults

	if v := c.Query("sort"); v != "" {
		switch key := dashboard.SortKey(v); key {
		case dashboard.SortByTotal, dashboard.SortByAmount:
			opts.SortKey = key
		default:
			return opts, fmt.Errorf("%w: sort %q", domain.ErrInvalidInput, v)
		}
	}
	if v := c.Query("order"); v != "" {
		switch order := dashboard.SortOrder(v); order {
		case dashboard.Ascending, dashboard.Descending:
			opts.Order = order
		default:
			return opts, fmt.Errorf("%w: order %q", domain.ErrInvalidInput, v)
		}
	}
	if v := c.Query("hideZero"); v != "" {
		hide, err := strconv.ParseBool(v)
		if err != nil {
			return opts, fmt.Errorf("%w: hideZero %q", domain.ErrInvalidInput, v)
		}
		opts.HideZeroValue = hide
	}
	return opts, nil
}

func (r *Router) toggleSelection(c *gin.Context) {
	r.changeSelection(c, (*dashboard.Session).Toggle)
}

func (r *Router) selectAccount(c *gin.Context) {
	r.changeSelection(c, (*dashboard.Session).Select)
}

func (r *Router) deselectAccount(c *gin.Context) {
	r.changeSelection(c, (*dashboard.Session).Deselect)
}

func (r *Router) changeSelection(c *gin.Context, apply func(*dashboard.Session, string) error) {
	s, ok := r.session(c)
	if !ok {
		return
	}

	account := c.Param("account")
	if err := apply(s, account); err != nil {
		abortWithError(c, fmt.Errorf("account %s: %w", account, err), r.logger)
		return
	}

	st := s.State()
	c.JSON(http.StatusOK, SelectionResponse{
		Account:       account,
		Selected:      st.Selected(account),
		SelectedCount: len(st.Selection),
	})
}
