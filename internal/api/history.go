package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"solana-rent-reclaim/internal/domain"
	"solana-rent-reclaim/internal/solana"
)

const defaultHistoryLimit = 50

// TokenMetadataResponse is a registry entry.
type TokenMetadataResponse struct {
	Mint     string `json:"mint"`
	Name     string `json:"name"`
	Symbol   string `json:"symbol"`
	Decimals int    `json:"decimals"`
	ImageURL string `json:"imageUrl,omitempty"`
}

// ClosureReceiptResponse is one past closure of an owner.
type ClosureReceiptResponse struct {
	Signature    string               `json:"signature"`
	Accounts     []string             `json:"accounts"`
	BurnCount    int                  `json:"burnCount"`
	FeeLamports  uint64               `json:"feeLamports"`
	FeeCollector string               `json:"feeCollector"`
	Status       domain.ClosureStatus `json:"status"`
	Error        string               `json:"error,omitempty"`
	SubmittedAt  int64                `json:"submittedAt"`
	ConfirmedAt  *int64               `json:"confirmedAt,omitempty"`
}

// getTokenMetadata handles GET /api/token-metadata?mint=.
func (r *Router) getTokenMetadata(c *gin.Context) {
	mint := c.Query("mint")
	if mint == "" {
		abortWithCode(c, ErrorCodeInvalidRequest, "mint is required", r.logger)
		return
	}
	if r.registry == nil {
		abortWithCode(c, ErrorCodeNotFound, "no token registry configured", r.logger)
		return
	}

	tok, err := r.registry.Lookup(mint)
	if err != nil {
		abortWithError(c, err, r.logger)
		return
	}
	c.JSON(http.StatusOK, TokenMetadataResponse{
		Mint:     tok.Address,
		Name:     tok.Name,
		Symbol:   tok.Symbol,
		Decimals: tok.Decimals,
		ImageURL: tok.LogoURI,
	})
}

// listClosures handles GET /api/owners/:owner/closures?limit=.
func (r *Router) listClosures(c *gin.Context) {
	owner := c.Param("owner")
	if !solana.ValidPublicKey(owner) {
		abortWithCode(c, ErrorCodeInvalidRequest, "invalid owner address", r.logger)
		return
	}

	limit := defaultHistoryLimit
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			abortWithCode(c, ErrorCodeInvalidRequest, "limit must be a positive integer", r.logger)
			return
		}
		limit = n
	}

	receipts, err := r.receipts.GetByOwner(c.Request.Context(), owner, limit)
	if err != nil {
		abortWithError(c, err, r.logger)
		return
	}

	out := make([]ClosureReceiptResponse, 0, len(receipts))
	for _, rc := range receipts {
		resp := ClosureReceiptResponse{
			Signature:    rc.Signature,
			Accounts:     rc.Accounts,
			BurnCount:    rc.BurnCount,
			FeeLamports:  rc.FeeLamports,
			FeeCollector: rc.FeeCollector,
			Status:       rc.Status,
			SubmittedAt:  rc.SubmittedAt,
			ConfirmedAt:  rc.ConfirmedAt,
		}
		if rc.Error != nil {
			resp.Error = *rc.Error
		}
		out = append(out, resp)
	}
	c.JSON(http.StatusOK, gin.H{"owner": owner, "closures": out})
}
