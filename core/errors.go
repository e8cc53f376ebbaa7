package core

import (
	"errors"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

// Stable text codes for every error kind the SDK can surface. Host
// applications are expected to branch on these rather than on messages.
const (
	MFAErrorInvalidConfiguration      = "MFA_INVALID_CONFIGURATION"
	MFAErrorInvalidParameter          = "MFA_INVALID_PARAMETER"
	MFAErrorInvalidActivationState    = "MFA_INVALID_ACTIVATION_STATE"
	MFAErrorInvalidActivationData     = "MFA_INVALID_ACTIVATION_DATA"
	MFAErrorInvalidAuthenticationData = "MFA_INVALID_AUTHENTICATION_DATA"
	MFAErrorBiometricCancelled        = "MFA_BIOMETRIC_AUTHENTICATION_CANCELLED"
	MFAErrorBiometricFailed           = "MFA_BIOMETRIC_AUTHENTICATION_FAILED"
	MFAErrorTokenNotFound             = "MFA_TOKEN_NOT_FOUND"
	MFAErrorPendingProtocolUpgrade    = "MFA_PENDING_PROTOCOL_UPGRADE"
	MFAErrorProtocolUpgradeFailed     = "MFA_PROTOCOL_UPGRADE_FAILED"
	MFAErrorOperationCancelled        = "MFA_OPERATION_CANCELLED"
	MFAErrorInternal                  = "MFA_INTERNAL_ERROR"
	MFAErrorUnexpectedFailure         = "MFA_UNEXPECTED_FAILURE"
)

// Reason narrows an error kind to the concrete failure cause. Reasons travel
// inside the wrapped error chain so they survive goerrors envelopes.
type Reason string

const (
	ReasonInvalidInstanceConfiguration   Reason = "invalidInstanceConfiguration"
	ReasonInvalidKeychainConfiguration   Reason = "invalidKeychainConfiguration"
	ReasonInvalidHTTPClientConfiguration Reason = "invalidHttpClientConfiguration"

	ReasonActivationPresent    Reason = "activationPresent"
	ReasonPendingActivation    Reason = "pendingActivation"
	ReasonMissingActivation    Reason = "missingActivation"
	ReasonBiometryAlreadySet   Reason = "biometryAlreadySet"
	ReasonActivationStateOther Reason = "other"

	ReasonWrongActivationCode      Reason = "wrongActivationCode"
	ReasonWrongActivationSignature Reason = "wrongActivationSignature"
	ReasonWrongRecoveryCode        Reason = "wrongRecoveryCode"
	ReasonWrongRecoveryPuk         Reason = "wrongRecoveryPuk"
	ReasonEmptyOTP                 Reason = "emptyOtp"
	ReasonEmptyIdentityAttributes  Reason = "emptyIdentityAttributes"
	ReasonOTPInWrongActivationType Reason = "otpInWrongActivationType"

	ReasonCommitFactorRequired              Reason = "commitFactorRequired"
	ReasonSigningFactorRequired             Reason = "signingFactorRequired"
	ReasonLocalAuthenticationContextMissing Reason = "localAuthenticationContextMissing"
	ReasonPasswordTooShort                  Reason = "passwordTooShort"
	ReasonRequiredFactorMissing             Reason = "requiredFactorMissing"

	ReasonBiometryNotSupported  Reason = "notSupported"
	ReasonBiometryNotAvailable  Reason = "notAvailable"
	ReasonBiometryNotEnrolled   Reason = "notEnrolled"
	ReasonBiometryNotConfigured Reason = "notConfigured"
)

type reasonError struct {
	reason Reason
}

func (e reasonError) Error() string {
	return string(e.reason)
}

// ReasonOf extracts the taxonomy reason from anywhere in the error chain.
// Returns the empty reason when the error carries none.
func ReasonOf(err error) Reason {
	var re reasonError
	if errors.As(err, &re) {
		return re.reason
	}
	return ""
}

// IsKind reports whether err carries the given stable text code.
func IsKind(err error, textCode string) bool {
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) {
		return false
	}
	return richErr.TextCode == textCode
}

func newTaxonomyError(textCode string, reason Reason, category goerrors.Category, message string) error {
	if reason == "" {
		return goerrors.New(message, category).WithTextCode(textCode)
	}
	return goerrors.Wrap(reasonError{reason: reason}, category, message).
		WithTextCode(textCode)
}

func wrapTaxonomyError(cause error, textCode string, reason Reason, category goerrors.Category, message string) error {
	if cause == nil {
		return newTaxonomyError(textCode, reason, category, message)
	}
	joined := cause
	if reason != "" {
		joined = errors.Join(reasonError{reason: reason}, cause)
	}
	return goerrors.Wrap(joined, category, message).WithTextCode(textCode)
}

// NewInvalidConfigurationError marks a configuration value rejected at
// construction time. The object is never produced.
func NewInvalidConfigurationError(reason Reason, message string) error {
	return newTaxonomyError(MFAErrorInvalidConfiguration, reason, goerrors.CategoryValidation, message)
}

func NewInvalidParameterError(message string) error {
	return newTaxonomyError(MFAErrorInvalidParameter, "", goerrors.CategoryBadInput, message)
}

func NewInvalidActivationStateError(reason Reason, message string) error {
	return newTaxonomyError(MFAErrorInvalidActivationState, reason, goerrors.CategoryConflict, message)
}

func NewInvalidActivationDataError(reason Reason, message string) error {
	return newTaxonomyError(MFAErrorInvalidActivationData, reason, goerrors.CategoryBadInput, message)
}

func NewInvalidAuthenticationDataError(reason Reason, message string) error {
	return newTaxonomyError(MFAErrorInvalidAuthenticationData, reason, goerrors.CategoryBadInput, message)
}

func NewBiometricCancelledError(message string) error {
	return newTaxonomyError(MFAErrorBiometricCancelled, "", goerrors.CategoryOperation, message)
}

func NewBiometricFailedError(reason Reason, message string) error {
	return newTaxonomyError(MFAErrorBiometricFailed, reason, goerrors.CategoryOperation, message)
}

func NewTokenNotFoundError(message string) error {
	return newTaxonomyError(MFAErrorTokenNotFound, "", goerrors.CategoryNotFound, message)
}

func NewPendingProtocolUpgradeError(message string) error {
	return newTaxonomyError(MFAErrorPendingProtocolUpgrade, "", goerrors.CategoryConflict, message)
}

func NewProtocolUpgradeFailedError(cause error, message string) error {
	return wrapTaxonomyError(cause, MFAErrorProtocolUpgradeFailed, "", goerrors.CategoryOperation, message)
}

func NewOperationCancelledError(message string) error {
	return newTaxonomyError(MFAErrorOperationCancelled, "", goerrors.CategoryOperation, message)
}

// NewInternalError flags a programming error: a state the construction layer
// should have made unreachable.
func NewInternalError(cause error, message string) error {
	return wrapTaxonomyError(cause, MFAErrorInternal, "", goerrors.CategoryInternal, message)
}

func NewUnexpectedFailure(cause error, message string) error {
	return wrapTaxonomyError(cause, MFAErrorUnexpectedFailure, "", goerrors.CategoryExternal, message)
}

// EngineError is the error surface of the external cryptographic engine.
// The engine reports structured codes; taxonomyMapper converts each code to
// its taxonomy kind at the boundary.
type EngineError struct {
	Code    string
	Message string
	Cause   error
}

func (e *EngineError) Error() string {
	if e == nil {
		return ""
	}
	if strings.TrimSpace(e.Message) == "" {
		return "engine: " + e.Code
	}
	return "engine: " + e.Code + ": " + e.Message
}

func (e *EngineError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// Engine error codes the mapper understands. Unlisted codes fall through to
// MFA_UNEXPECTED_FAILURE with the original code preserved for diagnosis.
const (
	EngineCodeActivationPresent        = "ERR_ACTIVATION_PRESENT"
	EngineCodePendingActivation        = "ERR_PENDING_ACTIVATION"
	EngineCodeMissingActivation        = "ERR_MISSING_ACTIVATION"
	EngineCodeBiometryAlreadySet       = "ERR_BIOMETRY_ALREADY_SET"
	EngineCodeWrongActivationCode      = "ERR_WRONG_ACTIVATION_CODE"
	EngineCodeWrongActivationSignature = "ERR_WRONG_ACTIVATION_SIGNATURE"
	EngineCodeWrongRecoveryCode        = "ERR_WRONG_RECOVERY_CODE"
	EngineCodeWrongRecoveryPuk         = "ERR_WRONG_RECOVERY_PUK"
	EngineCodeEmptyOTP                 = "ERR_EMPTY_OTP"
	EngineCodeEmptyIdentityAttributes  = "ERR_EMPTY_IDENTITY_ATTRIBUTES"
	EngineCodeOTPInWrongActivationType = "ERR_OTP_WRONG_ACTIVATION_TYPE"
	EngineCodePendingProtocolUpgrade   = "ERR_PENDING_PROTOCOL_UPGRADE"
	EngineCodeProtocolUpgradeFailed    = "ERR_PROTOCOL_UPGRADE_FAILED"
	EngineCodeOperationCancelled       = "ERR_OPERATION_CANCELLED"
)

// taxonomyMapper normalizes any error crossing into the SDK boundary into
// the closed taxonomy. Errors already carrying a taxonomy text code pass
// through unchanged so nothing is wrapped twice.
func taxonomyMapper(err error) *goerrors.Error {
	if err == nil {
		return nil
	}

	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return ensureTaxonomyEnvelope(richErr)
	}

	var engineErr *EngineError
	if errors.As(err, &engineErr) {
		mapped := mapEngineError(engineErr)
		if goerrors.As(mapped, &richErr) {
			return ensureTaxonomyEnvelope(richErr)
		}
	}

	fallback := wrapTaxonomyError(err, MFAErrorUnexpectedFailure, "", goerrors.CategoryExternal, err.Error())
	goerrors.As(fallback, &richErr)
	return ensureTaxonomyEnvelope(richErr)
}

func mapEngineError(err *EngineError) error {
	message := err.Error()
	switch err.Code {
	case EngineCodeActivationPresent:
		return wrapTaxonomyError(err, MFAErrorInvalidActivationState, ReasonActivationPresent, goerrors.CategoryConflict, message)
	case EngineCodePendingActivation:
		return wrapTaxonomyError(err, MFAErrorInvalidActivationState, ReasonPendingActivation, goerrors.CategoryConflict, message)
	case EngineCodeMissingActivation:
		return wrapTaxonomyError(err, MFAErrorInvalidActivationState, ReasonMissingActivation, goerrors.CategoryConflict, message)
	case EngineCodeBiometryAlreadySet:
		return wrapTaxonomyError(err, MFAErrorInvalidActivationState, ReasonBiometryAlreadySet, goerrors.CategoryConflict, message)
	case EngineCodeWrongActivationCode:
		return wrapTaxonomyError(err, MFAErrorInvalidActivationData, ReasonWrongActivationCode, goerrors.CategoryBadInput, message)
	case EngineCodeWrongActivationSignature:
		return wrapTaxonomyError(err, MFAErrorInvalidActivationData, ReasonWrongActivationSignature, goerrors.CategoryBadInput, message)
	case EngineCodeWrongRecoveryCode:
		return wrapTaxonomyError(err, MFAErrorInvalidActivationData, ReasonWrongRecoveryCode, goerrors.CategoryBadInput, message)
	case EngineCodeWrongRecoveryPuk:
		return wrapTaxonomyError(err, MFAErrorInvalidActivationData, ReasonWrongRecoveryPuk, goerrors.CategoryBadInput, message)
	case EngineCodeEmptyOTP:
		return wrapTaxonomyError(err, MFAErrorInvalidActivationData, ReasonEmptyOTP, goerrors.CategoryBadInput, message)
	case EngineCodeEmptyIdentityAttributes:
		return wrapTaxonomyError(err, MFAErrorInvalidActivationData, ReasonEmptyIdentityAttributes, goerrors.CategoryBadInput, message)
	case EngineCodeOTPInWrongActivationType:
		return wrapTaxonomyError(err, MFAErrorInvalidActivationData, ReasonOTPInWrongActivationType, goerrors.CategoryBadInput, message)
	case EngineCodePendingProtocolUpgrade:
		return wrapTaxonomyError(err, MFAErrorPendingProtocolUpgrade, "", goerrors.CategoryConflict, message)
	case EngineCodeProtocolUpgradeFailed:
		return wrapTaxonomyError(err, MFAErrorProtocolUpgradeFailed, "", goerrors.CategoryOperation, message)
	case EngineCodeOperationCancelled:
		return wrapTaxonomyError(err, MFAErrorOperationCancelled, "", goerrors.CategoryOperation, message)
	default:
		return wrapTaxonomyError(err, MFAErrorUnexpectedFailure, "", goerrors.CategoryExternal, message)
	}
}

func ensureTaxonomyEnvelope(err *goerrors.Error) *goerrors.Error {
	if err == nil {
		return nil
	}
	if strings.TrimSpace(err.TextCode) == "" {
		err.TextCode = defaultTaxonomyTextCode(err.Category)
	}
	if err.Category == goerrors.CategoryInternal && strings.TrimSpace(err.Message) == "" {
		err.Message = "An unexpected error occurred"
	}
	return err
}

func defaultTaxonomyTextCode(category goerrors.Category) string {
	switch category {
	case goerrors.CategoryBadInput:
		return MFAErrorInvalidParameter
	case goerrors.CategoryValidation:
		return MFAErrorInvalidConfiguration
	case goerrors.CategoryConflict:
		return MFAErrorInvalidActivationState
	case goerrors.CategoryNotFound:
		return MFAErrorTokenNotFound
	case goerrors.CategoryInternal:
		return MFAErrorInternal
	default:
		return MFAErrorUnexpectedFailure
	}
}
