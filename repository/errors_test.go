package repository

import (
	"context"
	"errors"
	"fmt"
	"net"
	"testing"

	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"go.mongodb.org/mongo-driver/mongo"

	apperrors "github.com/yashrajoria/catalog-seeder/errors"
)

func TestIsRetryable(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"plain", errors.New("boom"), false},
		{"throttled", &smithy.GenericAPIError{Code: "ThrottlingException"}, true},
		{"provisioned", &smithy.GenericAPIError{Code: "ProvisionedThroughputExceededException"}, true},
		{"unavailable", &smithy.GenericAPIError{Code: "ServiceUnavailable"}, true},
		{"server fault", &smithy.GenericAPIError{Code: "Whatever", Fault: smithy.FaultServer}, true},
		{"validation", &smithy.GenericAPIError{Code: "ValidationException", Fault: smithy.FaultClient}, false},
		{"mongo shutdown", mongo.CommandError{Code: 91}, true},
		{"mongo stepped down", mongo.CommandError{Code: 189}, true},
		{"mongo duplicate key", mongo.CommandError{Code: 11000}, false},
		{"mongo transient label", mongo.CommandError{Code: 251, Labels: []string{"TransientTransactionError"}}, true},
		{"network", &net.DNSError{Err: "no such host", IsTimeout: true}, true},
		{"canceled", context.Canceled, false},
		{"deadline", fmt.Errorf("wrapped: %w", context.DeadlineExceeded), false},
		{"transient kind", apperrors.Wrap(apperrors.ErrTransientRemote, nil), true},
		{"permanent kind", apperrors.Wrap(apperrors.ErrPermanentRemote, &net.DNSError{}), false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, IsRetryable(tc.err))
		})
	}
}

func TestClassify(t *testing.T) {
	transient := Classify(&smithy.GenericAPIError{Code: "RequestLimitExceeded"})
	assert.True(t, errors.Is(transient, apperrors.ErrTransientRemote))
	assert.True(t, IsRetryable(fmt.Errorf("commit: %w", transient)))

	permanent := Classify(errors.New("ConditionalCheckFailed"))
	assert.True(t, errors.Is(permanent, apperrors.ErrPermanentRemote))
	assert.False(t, IsRetryable(permanent))

	assert.Equal(t, context.Canceled, Classify(context.Canceled))
	assert.Nil(t, Classify(nil))
}
