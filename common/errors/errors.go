package errors

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
)

// ErrorID is the stable numeric identifier returned to clients.
type ErrorID int

const (
	InternalServerError ErrorID = 0

	ValidationError      ErrorID = 1000
	NoRecordsFound       ErrorID = 1001
	Unauthorized         ErrorID = 1003
	CheckoutInProgress   ErrorID = 1018
	OrderCommitFailed    ErrorID = 1019
	IdempotencyKeyReused ErrorID = 1020

	UnrecognizedDecline  ErrorID = 2000
	GenericDecline       ErrorID = 2001
	InsufficientFunds    ErrorID = 2002
	LostCard             ErrorID = 2003
	StolenCard           ErrorID = 2004
	ExpiredCard          ErrorID = 2005
	IncorrectCVC         ErrorID = 2006
	CardVelocityExceeded ErrorID = 2007
	CardDeclined         ErrorID = 2008
	PaymentNotCompleted  ErrorID = 2009

	TaxCalculationFailed ErrorID = 3000
)

var descriptions = map[ErrorID]string{
	InternalServerError:  "Internal server error",
	ValidationError:      "Validation error",
	NoRecordsFound:       "No %s found",
	Unauthorized:         "Unauthorized",
	CheckoutInProgress:   "A checkout is already in progress for this user",
	OrderCommitFailed:    "Payment was received but the order could not be recorded",
	IdempotencyKeyReused: "Idempotency key was already used for a different checkout",
	UnrecognizedDecline:  "Your card was declined for an unrecognized reason.",
	GenericDecline:       "Your card has been declined.",
	InsufficientFunds:    "Your card doesn't have enough funds.",
	LostCard:             "Your card has been reported as lost.",
	StolenCard:           "Your card has been reported as stolen.",
	ExpiredCard:          "Your card has expired.",
	IncorrectCVC:         "Your card's cvc is incorrect.",
	CardVelocityExceeded: "Card velocity exceeded",
	CardDeclined:         "Your card has been declined.",
	PaymentNotCompleted:  "Your payment could not be completed",
	TaxCalculationFailed: "Failed to calculate taxes",
}

// Description returns the client-facing text for an id.
func Description(id ErrorID) string {
	if d, ok := descriptions[id]; ok {
		return d
	}
	return descriptions[InternalServerError]
}

// Error represents an application error
type Error struct {
	Code    int     `json:"-"`
	ErrorID ErrorID `json:"errorId"`
	Message string  `json:"description"`
	Err     error   `json:"-"`
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped error
func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches errors carrying the same ErrorID.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.ErrorID == e.ErrorID
}

// JSON returns the error wrapped in the response envelope.
func (e *Error) JSON() string {
	b, _ := json.Marshal(gin.H{"error": e})
	return string(b)
}

// New creates a new Error
func New(code int, id ErrorID, message string, err error) *Error {
	if message == "" {
		message = Description(id)
	}
	return &Error{
		Code:    code,
		ErrorID: id,
		Message: message,
		Err:     err,
	}
}

func Internal(err error) *Error {
	return New(http.StatusInternalServerError, InternalServerError, "", err)
}

func Validation(err error) *Error {
	return New(http.StatusBadRequest, ValidationError, "", err)
}

// NotFound formats the NO_RECORDS_FOUND description with the missing resource.
func NotFound(what string) *Error {
	return New(http.StatusNotFound, NoRecordsFound, fmt.Sprintf(descriptions[NoRecordsFound], what), nil)
}

func Unauthenticated(err error) *Error {
	return New(http.StatusUnauthorized, Unauthorized, "", err)
}

func Conflict(id ErrorID) *Error {
	return New(http.StatusConflict, id, "", nil)
}

// Respond writes err in the response envelope and aborts the chain.
func Respond(c *gin.Context, err *Error) {
	c.AbortWithStatusJSON(err.Code, gin.H{"error": err})
}

// ErrorMiddleware renders the last error pushed with c.Error.
func ErrorMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}
		err := c.Errors.Last().Err
		var appErr *Error
		if !errors.As(err, &appErr) {
			appErr = Internal(err)
		}
		c.JSON(appErr.Code, gin.H{"error": appErr})
		c.Abort()
	}
}
