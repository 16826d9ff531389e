package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"raffler/domain/entities"
	"raffler/domain/interfaces"

	"github.com/gin-gonic/gin"
)

type createRaffleRequest struct {
	Type             entities.RaffleType     `json:"type"`
	Title            string                  `json:"title" binding:"required"`
	EntryPrice       int64                   `json:"entry_price" binding:"required"`
	StartTime        time.Time               `json:"start_time" binding:"required"`
	EndTime          time.Time               `json:"end_time" binding:"required"`
	WinnerCount      int                     `json:"winner_count" binding:"required"`
	PrizeTiers       []entities.PrizeTier    `json:"prize_tiers"`
	PlatformFeeBps   int64                   `json:"platform_fee_bps"`
	FixedPrizeAmount int64                   `json:"fixed_prize_amount"`
	RandomnessMode   entities.RandomnessMode `json:"randomness_mode"`
	OneWinPerWallet  *bool                   `json:"one_win_per_wallet"`
}

type createEntryRequest struct {
	Wallet         string `json:"wallet" binding:"required"`
	Units          int64  `json:"units" binding:"required"`
	AmountPaid     int64  `json:"amount_paid" binding:"required"`
	TransferTxHash string `json:"transfer_tx_hash" binding:"required"`
}

type reasonRequest struct {
	Reason string `json:"reason"`
}

type retryRequest struct {
	RequestedBy string `json:"requested_by" binding:"required"`
	Reason      string `json:"reason"`
}

// idParam parses the :id path segment, writing a 400 if it is malformed
func idParam(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		badRequest(c, "invalid id")
		return 0, false
	}
	return id, true
}

// optionalReason reads an optional {"reason": ...} body
func optionalReason(c *gin.Context) (string, bool) {
	var req reasonRequest
	if c.Request.ContentLength == 0 {
		return "", true
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return "", false
	}
	return req.Reason, true
}

// Health reports the state of each registered dependency
func (s *Server) Health(c *gin.Context) {
	checks := make(map[string]string, len(s.health))
	healthy := true
	for name, check := range s.health {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
		err := check(ctx)
		cancel()
		if err != nil {
			healthy = false
			checks[name] = err.Error()
			continue
		}
		checks[name] = "ok"
	}

	status := http.StatusOK
	state := "ok"
	if !healthy {
		status = http.StatusServiceUnavailable
		state = "degraded"
	}
	c.JSON(status, gin.H{"status": state, "checks": checks})
}

// CreateRaffle handles raffle creation
func (s *Server) CreateRaffle(c *gin.Context) {
	var req createRaffleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	raffle, err := s.engine.CreateRaffle(c.Request.Context(), interfaces.CreateRaffleParams{
		Type:             req.Type,
		Title:            req.Title,
		EntryPrice:       req.EntryPrice,
		StartTime:        req.StartTime,
		EndTime:          req.EndTime,
		WinnerCount:      req.WinnerCount,
		PrizeTiers:       req.PrizeTiers,
		PlatformFeeBps:   req.PlatformFeeBps,
		FixedPrizeAmount: req.FixedPrizeAmount,
		RandomnessMode:   req.RandomnessMode,
		OneWinPerWallet:  req.OneWinPerWallet,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, raffle)
}

// GetRaffle returns one raffle
func (s *Server) GetRaffle(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	raffle, err := s.engine.GetRaffle(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, raffle)
}

// GetStatusHistory returns a raffle's status audit trail
func (s *Server) GetStatusHistory(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	history, err := s.engine.GetStatusHistory(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, history)
}

// transition wraps a body-less raffle status operation
func (s *Server) transition(op func(Engine, context.Context, int64) (*entities.Raffle, error)) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c)
		if !ok {
			return
		}
		raffle, err := op(s.engine, c.Request.Context(), id)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, raffle)
	}
}

// CancelRaffle cancels a raffle and refunds its entries
func (s *Server) CancelRaffle(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	reason, ok := optionalReason(c)
	if !ok {
		return
	}
	raffle, err := s.engine.Cancel(c.Request.Context(), id, reason)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, raffle)
}

// GetEntries lists a raffle's entries
func (s *Server) GetEntries(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	entries, err := s.engine.GetEntries(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, entries)
}

// CreateEntry records a purchase backed by an on-chain transfer
func (s *Server) CreateEntry(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	var req createEntryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	entry, err := s.engine.CreateEntry(c.Request.Context(), interfaces.EntryParams{
		RaffleID:       id,
		Wallet:         req.Wallet,
		Units:          req.Units,
		AmountPaid:     req.AmountPaid,
		TransferTxHash: req.TransferTxHash,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, entry)
}

// InitiateDraw draws a raffle, or returns the stored result if already drawn
func (s *Server) InitiateDraw(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	result, err := s.engine.InitiateDraw(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// GetDrawResult returns the stored draw result
func (s *Server) GetDrawResult(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	result, err := s.engine.GetDrawResult(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// AbortDraw cancels a raffle stuck in drawing
func (s *Server) AbortDraw(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	reason, ok := optionalReason(c)
	if !ok {
		return
	}
	raffle, err := s.engine.AbortDraw(c.Request.Context(), id, reason)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, raffle)
}

// VerifyDraw recomputes a draw and reports every disagreement
func (s *Server) VerifyDraw(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	audit, err := s.engine.AuditDraw(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, audit)
}

// GetWinners lists a raffle's winners
func (s *Server) GetWinners(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	winners, err := s.engine.GetWinners(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, winners)
}

// SendAllPayouts pays every pending winner of a raffle
func (s *Server) SendAllPayouts(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	batch, err := s.engine.SendAllPayouts(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, batch)
}

// SendPayout pays one winner
func (s *Server) SendPayout(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	record, err := s.engine.SendPayout(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, record)
}

// RequestRetry reopens a failed payout
func (s *Server) RequestRetry(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	var req retryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	record, err := s.engine.RequestRetry(c.Request.Context(), interfaces.RetryRequest{
		WinnerID:    id,
		RequestedBy: req.RequestedBy,
		Reason:      req.Reason,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, record)
}

// GetPayoutHistory lists every payout attempt for a winner
func (s *Server) GetPayoutHistory(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	records, err := s.engine.GetPayoutHistory(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, records)
}
