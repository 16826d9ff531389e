package api

import (
	"errors"
	"net/http"

	"raffler/domain/entities"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

// statusForKind maps engine error kinds onto HTTP status codes
var statusForKind = map[entities.ErrorKind]int{
	entities.ErrorKindInvalidConfiguration:       http.StatusBadRequest,
	entities.ErrorKindEntryRejected:              http.StatusUnprocessableEntity,
	entities.ErrorKindTransferVerificationFailed: http.StatusUnprocessableEntity,
	entities.ErrorKindEmptyPool:                  http.StatusUnprocessableEntity,
	entities.ErrorKindInsufficientTickets:        http.StatusUnprocessableEntity,
	entities.ErrorKindInvalidStatusTransition:    http.StatusConflict,
	entities.ErrorKindRaffleNotDrawable:          http.StatusConflict,
	entities.ErrorKindPayoutAlreadyProcessed:     http.StatusConflict,
	entities.ErrorKindPayoutInProgress:           http.StatusConflict,
	entities.ErrorKindPayoutNotRetryable:         http.StatusConflict,
	entities.ErrorKindDuplicateTransaction:       http.StatusConflict,
	entities.ErrorKindRandomnessUnavailable:      http.StatusServiceUnavailable,
	entities.ErrorKindNotFound:                   http.StatusNotFound,
}

type errorResponse struct {
	Error  string `json:"error"`
	Reason string `json:"reason,omitempty"`
}

// writeError renders err as a JSON body. Engine errors keep their kind;
// anything else is an internal error and its detail stays in the log.
func writeError(c *gin.Context, err error) {
	var re *entities.RaffleError
	if errors.As(err, &re) {
		status, ok := statusForKind[re.Kind]
		if !ok {
			status = http.StatusInternalServerError
		}
		reason := re.Reason
		if re.Err != nil {
			if reason != "" {
				reason += ": "
			}
			reason += re.Err.Error()
		}
		c.AbortWithStatusJSON(status, errorResponse{Error: string(re.Kind), Reason: reason})
		return
	}

	log.WithFields(log.Fields{
		"method": c.Request.Method,
		"path":   c.Request.URL.Path,
	}).WithError(err).Error("Admin request failed with internal error")
	c.AbortWithStatusJSON(http.StatusInternalServerError, errorResponse{Error: "internal_error"})
}

func badRequest(c *gin.Context, reason string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, errorResponse{Error: "bad_request", Reason: reason})
}
