package errors

import (
	stderrors "errors"
	"fmt"
	"runtime"
	"strings"
	"time"
)

type ErrorCode string

const (
	// generic
	ErrCodeInternal     ErrorCode = "INTERNAL_ERROR"
	ErrCodeValidation   ErrorCode = "VALIDATION_ERROR"
	ErrCodeNotFound     ErrorCode = "NOT_FOUND"
	ErrCodeUnauthorized ErrorCode = "UNAUTHORIZED"
	ErrCodeForbidden    ErrorCode = "FORBIDDEN"
	ErrCodeConflict     ErrorCode = "CONFLICT"
	ErrCodeDatabase     ErrorCode = "DATABASE_ERROR"
	ErrCodeCache        ErrorCode = "CACHE_ERROR"
	ErrCodeStorage      ErrorCode = "STORAGE_ERROR"

	// identity bootstrap
	ErrCodeInvalidSignature  ErrorCode = "INVALID_SIGNATURE"
	ErrCodeMalformedPayload  ErrorCode = "MALFORMED_PAYLOAD"
	ErrCodeUserNotResolvable ErrorCode = "USER_NOT_RESOLVABLE"
	ErrCodeUserNotFound      ErrorCode = "USER_NOT_FOUND"
	ErrCodeSessionExpired    ErrorCode = "SESSION_EXPIRED"
	ErrCodeInitDataExpired   ErrorCode = "INIT_DATA_EXPIRED"

	// economy
	ErrCodeInsufficientFunds ErrorCode = "INSUFFICIENT_FUNDS"
	ErrCodeItemNotFound      ErrorCode = "ITEM_NOT_FOUND"
	ErrCodeAuctionNotFound   ErrorCode = "AUCTION_NOT_FOUND"
	ErrCodeAlreadyOwned      ErrorCode = "ALREADY_OWNED"
	ErrCodeNotOwner          ErrorCode = "NOT_OWNER"
	ErrCodeAlreadyListed     ErrorCode = "ALREADY_LISTED"
	ErrCodeInvalidPrice      ErrorCode = "INVALID_PRICE"
	ErrCodeNotActive         ErrorCode = "NOT_ACTIVE"
	ErrCodeSelfTrade         ErrorCode = "SELF_TRADE"
	ErrCodeNotSeller         ErrorCode = "NOT_SELLER"
	ErrCodeHasActiveAuction  ErrorCode = "HAS_ACTIVE_AUCTION"
	ErrCodeRecipientNotFound ErrorCode = "RECIPIENT_NOT_FOUND"
	ErrCodeSelfTransfer      ErrorCode = "SELF_TRANSFER"

	// rewards
	ErrCodeCodeNotFound       ErrorCode = "CODE_NOT_FOUND"
	ErrCodeCodeExhausted      ErrorCode = "CODE_EXHAUSTED"
	ErrCodeAlreadyRedeemed    ErrorCode = "ALREADY_REDEEMED"
	ErrCodeTaskNotFound       ErrorCode = "TASK_NOT_FOUND"
	ErrCodeAlreadyCompleted   ErrorCode = "ALREADY_COMPLETED"
	ErrCodeDuplicateCodeValue ErrorCode = "DUPLICATE_CODE"
)

// Class groups codes by how callers and operators should treat them.
type Class string

const (
	ClassAuthentication Class = "authentication"
	ClassValidation     Class = "validation"
	ClassStateConflict  Class = "state_conflict"
	ClassResource       Class = "resource"
	ClassNotFound       Class = "not_found"
	ClassForbidden      Class = "forbidden"
	ClassInfrastructure Class = "infrastructure"
)

var classes = map[ErrorCode]Class{
	ErrCodeUnauthorized:       ClassAuthentication,
	ErrCodeInvalidSignature:   ClassAuthentication,
	ErrCodeMalformedPayload:   ClassAuthentication,
	ErrCodeSessionExpired:     ClassAuthentication,
	ErrCodeInitDataExpired:    ClassAuthentication,
	ErrCodeValidation:         ClassValidation,
	ErrCodeInvalidPrice:       ClassValidation,
	ErrCodeSelfTrade:          ClassValidation,
	ErrCodeSelfTransfer:       ClassValidation,
	ErrCodeRecipientNotFound:  ClassValidation,
	ErrCodeConflict:           ClassStateConflict,
	ErrCodeAlreadyOwned:       ClassStateConflict,
	ErrCodeAlreadyListed:      ClassStateConflict,
	ErrCodeNotActive:          ClassStateConflict,
	ErrCodeAlreadyRedeemed:    ClassStateConflict,
	ErrCodeAlreadyCompleted:   ClassStateConflict,
	ErrCodeCodeExhausted:      ClassStateConflict,
	ErrCodeHasActiveAuction:   ClassStateConflict,
	ErrCodeDuplicateCodeValue: ClassStateConflict,
	ErrCodeInsufficientFunds:  ClassResource,
	ErrCodeNotFound:           ClassNotFound,
	ErrCodeUserNotFound:       ClassNotFound,
	ErrCodeItemNotFound:       ClassNotFound,
	ErrCodeAuctionNotFound:    ClassNotFound,
	ErrCodeCodeNotFound:       ClassNotFound,
	ErrCodeTaskNotFound:       ClassNotFound,
	ErrCodeForbidden:          ClassForbidden,
	ErrCodeNotOwner:           ClassForbidden,
	ErrCodeNotSeller:          ClassForbidden,
	ErrCodeInternal:           ClassInfrastructure,
	ErrCodeDatabase:           ClassInfrastructure,
	ErrCodeCache:              ClassInfrastructure,
	ErrCodeStorage:            ClassInfrastructure,
	ErrCodeUserNotResolvable:  ClassInfrastructure,
}

// ClassOf returns the class of a code; unknown codes are infrastructure faults.
func ClassOf(code ErrorCode) Class {
	if c, ok := classes[code]; ok {
		return c
	}
	return ClassInfrastructure
}

type AppError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   map[string]interface{} `json:"details,omitempty"`
	Context   map[string]string      `json:"context,omitempty"`
	Stack     []string               `json:"-"`
	Timestamp time.Time              `json:"timestamp"`
	RequestID string                 `json:"request_id,omitempty"`
	UserID    int64                  `json:"user_id,omitempty"`
	Cause     error                  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

func (e *AppError) Class() Class {
	return ClassOf(e.Code)
}

func (e *AppError) IsNotFound() bool {
	return e.Class() == ClassNotFound
}

func (e *AppError) IsValidation() bool {
	return e.Class() == ClassValidation
}

func (e *AppError) IsUnauthorized() bool {
	return e.Class() == ClassAuthentication || e.Class() == ClassForbidden
}

func (e *AppError) IsInternal() bool {
	return e.Class() == ClassInfrastructure
}

func (e *AppError) WithContext(key, value string) *AppError {
	if e.Context == nil {
		e.Context = make(map[string]string)
	}
	e.Context[key] = value
	return e
}

func (e *AppError) WithDetail(key string, value interface{}) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

func (e *AppError) WithRequestID(requestID string) *AppError {
	e.RequestID = requestID
	return e
}

func (e *AppError) WithUserID(userID int64) *AppError {
	e.UserID = userID
	return e
}

func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:      code,
		Message:   message,
		Timestamp: time.Now(),
		Stack:     getStackTrace(),
	}
}

func Wrap(err error, code ErrorCode, message string) *AppError {
	appErr := New(code, message)
	appErr.Cause = err
	return appErr
}

func Wrapf(err error, code ErrorCode, format string, args ...interface{}) *AppError {
	return Wrap(err, code, fmt.Sprintf(format, args...))
}

func getStackTrace() []string {
	var stack []string
	for i := 2; ; i++ {
		pc, file, line, ok := runtime.Caller(i)
		if !ok {
			break
		}
		fn := runtime.FuncForPC(pc)
		if fn == nil {
			continue
		}
		if strings.Contains(fn.Name(), "internal/common/errors") {
			continue
		}
		stack = append(stack, fmt.Sprintf("%s:%d %s", file, line, fn.Name()))
		if len(stack) >= 10 {
			break
		}
	}
	return stack
}

func NewValidationError(field, reason string) *AppError {
	return New(ErrCodeValidation, fmt.Sprintf("Validation failed for field '%s': %s", field, reason)).
		WithDetail("field", field).
		WithDetail("reason", reason)
}

func NewNotFoundError(resource string, id interface{}) *AppError {
	return New(ErrCodeNotFound, fmt.Sprintf("%s not found", resource)).
		WithDetail("resource", resource).
		WithDetail("id", id)
}

func NewUnauthorizedError(reason string) *AppError {
	return New(ErrCodeUnauthorized, fmt.Sprintf("Unauthorized: %s", reason)).
		WithDetail("reason", reason)
}

func NewForbiddenError(reason string) *AppError {
	return New(ErrCodeForbidden, fmt.Sprintf("Forbidden: %s", reason)).
		WithDetail("reason", reason)
}

func NewDatabaseError(operation string, err error) *AppError {
	return Wrap(err, ErrCodeDatabase, fmt.Sprintf("Database operation failed: %s", operation)).
		WithDetail("operation", operation)
}

func NewCacheError(operation string, err error) *AppError {
	return Wrap(err, ErrCodeCache, fmt.Sprintf("Cache operation failed: %s", operation)).
		WithDetail("operation", operation)
}

func NewStorageError(operation string, err error) *AppError {
	return Wrap(err, ErrCodeStorage, fmt.Sprintf("Artwork storage operation failed: %s", operation)).
		WithDetail("operation", operation)
}

func NewInvalidSignatureError() *AppError {
	return New(ErrCodeInvalidSignature, "Init data signature does not match")
}

func NewMalformedPayloadError(reason string) *AppError {
	return New(ErrCodeMalformedPayload, fmt.Sprintf("Malformed init data: %s", reason)).
		WithDetail("reason", reason)
}

func NewInitDataExpiredError(age time.Duration) *AppError {
	return New(ErrCodeInitDataExpired, "Init data is too old").WithDetail("age", age.String())
}

func NewSessionExpiredError() *AppError {
	return New(ErrCodeSessionExpired, "Session expired or unknown, authenticate again")
}

func NewUserNotResolvableError(err error) *AppError {
	return Wrap(err, ErrCodeUserNotResolvable, "Unable to resolve user")
}

func NewUserNotFoundError(userID int64) *AppError {
	return New(ErrCodeUserNotFound, fmt.Sprintf("User not found: %d", userID)).
		WithDetail("user_id", userID)
}

func NewInsufficientFundsError(balance, required int64) *AppError {
	return New(ErrCodeInsufficientFunds, "Insufficient funds").
		WithDetail("balance", balance).
		WithDetail("required", required)
}

func NewItemNotFoundError(itemID int64) *AppError {
	return New(ErrCodeItemNotFound, fmt.Sprintf("NFT not found: %d", itemID)).
		WithDetail("nft_id", itemID)
}

func NewAuctionNotFoundError(auctionID int64) *AppError {
	return New(ErrCodeAuctionNotFound, fmt.Sprintf("Auction not found: %d", auctionID)).
		WithDetail("auction_id", auctionID)
}

func NewAlreadyOwnedError(itemID int64) *AppError {
	return New(ErrCodeAlreadyOwned, "NFT is already owned").WithDetail("nft_id", itemID)
}

func NewNotOwnerError(itemID int64) *AppError {
	return New(ErrCodeNotOwner, "You do not own this NFT").WithDetail("nft_id", itemID)
}

func NewAlreadyListedError(itemID int64) *AppError {
	return New(ErrCodeAlreadyListed, "NFT is already listed for auction").WithDetail("nft_id", itemID)
}

func NewInvalidPriceError(price int64) *AppError {
	return New(ErrCodeInvalidPrice, "Price must be greater than zero").WithDetail("price", price)
}

func NewNotActiveError(auctionID int64) *AppError {
	return New(ErrCodeNotActive, "Auction is no longer active").WithDetail("auction_id", auctionID)
}

func NewSelfTradeError() *AppError {
	return New(ErrCodeSelfTrade, "You cannot buy your own NFT")
}

func NewNotSellerError(auctionID int64) *AppError {
	return New(ErrCodeNotSeller, "Only the seller can cancel this auction").WithDetail("auction_id", auctionID)
}

func NewHasActiveAuctionError(itemID int64) *AppError {
	return New(ErrCodeHasActiveAuction, "NFT is listed for auction, cancel the auction first").WithDetail("nft_id", itemID)
}

func NewRecipientNotFoundError(username string) *AppError {
	return New(ErrCodeRecipientNotFound, "Recipient not found").WithDetail("username", username)
}

func NewSelfTransferError() *AppError {
	return New(ErrCodeSelfTransfer, "You cannot transfer an NFT to yourself")
}

func NewCodeNotFoundError(code string) *AppError {
	return New(ErrCodeCodeNotFound, "Code not found or inactive").WithDetail("code", code)
}

func NewCodeExhaustedError(code string) *AppError {
	return New(ErrCodeCodeExhausted, "Code has no uses left").WithDetail("code", code)
}

func NewAlreadyRedeemedError(code string) *AppError {
	return New(ErrCodeAlreadyRedeemed, "You have already redeemed this code").WithDetail("code", code)
}

func NewTaskNotFoundError(taskID int64) *AppError {
	return New(ErrCodeTaskNotFound, "Task not found or inactive").WithDetail("task_id", taskID)
}

func NewAlreadyCompletedError(taskID int64) *AppError {
	return New(ErrCodeAlreadyCompleted, "Task is already completed").WithDetail("task_id", taskID)
}

func NewConflictError(resource, reason string) *AppError {
	return New(ErrCodeConflict, fmt.Sprintf("Conflict with %s: %s", resource, reason)).
		WithDetail("resource", resource).
		WithDetail("reason", reason)
}

func IsAppError(err error) bool {
	var appErr *AppError
	return stderrors.As(err, &appErr)
}

func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if err == nil {
		return nil, false
	}
	ok := stderrors.As(err, &appErr)
	return appErr, ok
}

// HasCode reports whether err carries the given code anywhere in its chain.
func HasCode(err error, code ErrorCode) bool {
	appErr, ok := AsAppError(err)
	return ok && appErr.Code == code
}
