package services

import (
	"net/http"
	"strings"

	apperrors "github.com/yashrajoria/checkout-service/common/errors"
	"github.com/yashrajoria/checkout-service/providers"
)

var declineErrorIDs = map[string]apperrors.ErrorID{
	"GENERIC_DECLINE":        apperrors.GenericDecline,
	"INSUFFICIENT_FUNDS":     apperrors.InsufficientFunds,
	"LOST_CARD":              apperrors.LostCard,
	"STOLEN_CARD":            apperrors.StolenCard,
	"EXPIRED_CARD":           apperrors.ExpiredCard,
	"INCORRECT_CVC":          apperrors.IncorrectCVC,
	"CARD_VELOCITY_EXCEEDED": apperrors.CardVelocityExceeded,
	"CARD_DECLINED":          apperrors.CardDeclined,
}

// DeclineErrorID maps a processor decline to its ErrorID. The decline code
// wins over the error code; unknown codes give UnrecognizedDecline.
func DeclineErrorID(code, declineCode string) apperrors.ErrorID {
	key := declineCode
	if key == "" {
		key = code
	}
	if id, ok := declineErrorIDs[strings.ToUpper(key)]; ok {
		return id
	}
	return apperrors.UnrecognizedDecline
}

func declinedError(d *providers.DeclineError) *apperrors.Error {
	status := d.HTTPStatus
	if status == 0 {
		status = http.StatusPaymentRequired
	}
	return apperrors.New(status, DeclineErrorID(d.Code, d.DeclineCode), "", d)
}
