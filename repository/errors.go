package repository

import (
	"context"
	"errors"
	"net"

	"github.com/aws/smithy-go"
	"go.mongodb.org/mongo-driver/mongo"

	apperrors "github.com/yashrajoria/catalog-seeder/errors"
)

// Error codes the stores report for unavailable, deadline exceeded and
// resource exhausted conditions.
var transientAWSCodes = map[string]bool{
	"ServiceUnavailable":                     true,
	"InternalServerError":                    true,
	"InternalFailure":                        true,
	"RequestTimeout":                         true,
	"RequestTimeoutException":                true,
	"ProvisionedThroughputExceededException": true,
	"ThrottlingException":                    true,
	"Throttling":                             true,
	"RequestLimitExceeded":                   true,
	"TransactionInProgressException":         true,
}

var transientMongoCodes = []int{
	6,     // HostUnreachable
	7,     // HostNotFound
	50,    // MaxTimeMSExpired
	89,    // NetworkTimeout
	91,    // ShutdownInProgress
	189,   // PrimarySteppedDown
	262,   // ExceededTimeLimit
	9001,  // SocketException
	10107, // NotWritablePrimary
	11600, // InterruptedAtShutdown
	11602, // InterruptedDueToReplStateChange
	13435, // NotPrimaryNoSecondaryOk
	13436, // NotPrimaryOrSecondary
}

// IsRetryable reports whether err is a transient remote failure: a network
// error, or the store reporting unavailable, deadline exceeded or resource
// exhausted. Cancellation of our own context is never retryable.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	switch apperrors.KindOf(err) {
	case apperrors.KindTransientRemote:
		return true
	case apperrors.KindPermanentRemote, apperrors.KindValidation, apperrors.KindDecodeFailure,
		apperrors.KindResourceNotFound, apperrors.KindStoreNotConfigured:
		return false
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		if transientAWSCodes[apiErr.ErrorCode()] {
			return true
		}
		return apiErr.ErrorFault() == smithy.FaultServer
	}

	if mongo.IsNetworkError(err) || mongo.IsTimeout(err) {
		return true
	}
	var se mongo.ServerError
	if errors.As(err, &se) {
		if se.HasErrorLabel("TransientTransactionError") || se.HasErrorLabel("RetryableWriteError") {
			return true
		}
		for _, code := range transientMongoCodes {
			if se.HasErrorCode(code) {
				return true
			}
		}
		return false
	}

	var netErr net.Error
	return errors.As(err, &netErr)
}

// Classify wraps a driver error as a transient or permanent remote failure.
func Classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	if apperrors.KindOf(err) != apperrors.KindUnknown {
		return err
	}
	if IsRetryable(err) {
		return apperrors.Wrap(apperrors.ErrTransientRemote, err)
	}
	return apperrors.Wrap(apperrors.ErrPermanentRemote, err)
}
