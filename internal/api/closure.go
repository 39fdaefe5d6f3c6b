package api

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"solana-rent-reclaim/internal/closure"
	"solana-rent-reclaim/internal/domain"
)

// StartClosureRequest optionally names the accounts to close. Without
// accounts the session's selection is closed.
type StartClosureRequest struct {
	Accounts []string `json:"accounts"`
}

// SignatureRequest carries the wallet's base58 signature of the pending message.
type SignatureRequest struct {
	Signature string `json:"signature"`
}

// ClosureStatusResponse is the closure workflow of a session.
type ClosureStatusResponse struct {
	State        domain.ClosureState `json:"state"`
	Owner        string              `json:"owner,omitempty"`
	Accounts     []string            `json:"accounts"`
	BurnCount    int                 `json:"burnCount"`
	FeeLamports  uint64              `json:"feeLamports"`
	FeeCollector string              `json:"feeCollector"`
	Signature    string              `json:"signature,omitempty"`
	ExplorerURL  string              `json:"explorerUrl,omitempty"`

	// Message is the base64 transaction message the wallet must sign.
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

func (r *Router) workflow(c *gin.Context) (*closure.Workflow, bool) {
	s, ok := r.session(c)
	if !ok {
		return nil, false
	}
	return r.closures.For(s.ID, s), true
}

func (r *Router) closureStatus(w *closure.Workflow) ClosureStatusResponse {
	st := w.Status()
	resp := ClosureStatusResponse{
		State:        st.State,
		Owner:        st.Owner,
		Accounts:     st.Accounts,
		BurnCount:    st.BurnCount,
		FeeLamports:  st.FeeLamports,
		FeeCollector: r.closures.Fee().Collector,
		Signature:    st.Signature,
		Message:      st.Message,
	}
	if resp.Accounts == nil {
		resp.Accounts = []string{}
	}
	if st.Signature != "" && r.defaults.ExplorerBaseURL != "" {
		resp.ExplorerURL = strings.TrimRight(r.defaults.ExplorerBaseURL, "/") + "/tx/" + st.Signature
	}
	if st.Err != nil {
		resp.Error = st.Err.Error()
	}
	return resp
}

// startClosure handles POST /api/sessions/:id/closure.
func (r *Router) startClosure(c *gin.Context) {
	w, ok := r.workflow(c)
	if !ok {
		return
	}

	var req StartClosureRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		abortWithCode(c, ErrorCodeMalformedJSON, err.Error(), r.logger)
		return
	}

	if err := w.Start(req.Accounts); err != nil {
		abortWithError(c, err, r.logger)
		return
	}
	c.JSON(http.StatusAccepted, r.closureStatus(w))
}

// getClosure handles GET /api/sessions/:id/closure.
func (r *Router) getClosure(c *gin.Context) {
	w, ok := r.workflow(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, r.closureStatus(w))
}

// provideSignature handles POST /api/sessions/:id/closure/signature.
func (r *Router) provideSignature(c *gin.Context) {
	w, ok := r.workflow(c)
	if !ok {
		return
	}

	var req SignatureRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithCode(c, ErrorCodeMalformedJSON, err.Error(), r.logger)
		return
	}
	if req.Signature == "" {
		abortWithCode(c, ErrorCodeInvalidRequest, "signature is required", r.logger)
		return
	}

	if err := w.Provide(req.Signature); err != nil {
		abortWithError(c, err, r.logger)
		return
	}
	c.JSON(http.StatusAccepted, r.closureStatus(w))
}

// rejectSignature handles POST /api/sessions/:id/closure/reject.
func (r *Router) rejectSignature(c *gin.Context) {
	w, ok := r.workflow(c)
	if !ok {
		return
	}
	if err := w.Reject(); err != nil {
		abortWithError(c, err, r.logger)
		return
	}
	c.JSON(http.StatusOK, r.closureStatus(w))
}

// dismissClosure handles POST /api/sessions/:id/closure/dismiss.
func (r *Router) dismissClosure(c *gin.Context) {
	w, ok := r.workflow(c)
	if !ok {
		return
	}
	if err := w.Dismiss(); err != nil {
		abortWithError(c, err, r.logger)
		return
	}
	c.JSON(http.StatusOK, r.closureStatus(w))
}
