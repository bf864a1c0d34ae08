package rstream

import (
	"context"

	"github.com/chris-alexander-pop/system-design-library/pkg/errors"
)

// Error codes this package's operations can return, layered on top of
// pkg/errors.AppError the same way pkg/messaging/errors.go layers its own
// codes over it.
const (
	CodeConfigError              errors.Code = "RSTREAM_CONFIG"
	CodeCreateProducerException  errors.Code = "RSTREAM_CREATE_PRODUCER"
	CodeCreateConsumerException  errors.Code = "RSTREAM_CREATE_CONSUMER"
	CodeRoutingError             errors.Code = "RSTREAM_ROUTING"
	CodeNotConnected             errors.Code = "RSTREAM_NOT_CONNECTED"
	CodeReconnecting             errors.Code = "RSTREAM_RECONNECTING"
	CodeAlreadyDisposed          errors.Code = "RSTREAM_ALREADY_DISPOSED"
	CodeDecodeError              errors.Code = "RSTREAM_DECODE_ERROR"
	CodeCancelledError           errors.Code = "RSTREAM_CANCELLED"
)

func ErrConfig(message string) *errors.AppError {
	return errors.New(CodeConfigError, message, nil)
}

func ErrCreateProducer(message string, cause error) *errors.AppError {
	return errors.New(CodeCreateProducerException, message, cause)
}

func ErrCreateConsumer(message string, cause error) *errors.AppError {
	return errors.New(CodeCreateConsumerException, message, cause)
}

func ErrRouting(message string, cause error) *errors.AppError {
	return errors.New(CodeRoutingError, message, cause)
}

func ErrNotConnected(partition string) *errors.AppError {
	return errors.New(CodeNotConnected, "partition producer not connected: "+partition, nil)
}

func ErrReconnecting(partition string) *errors.AppError {
	return errors.New(CodeReconnecting, "partition producer is reconnecting: "+partition, nil)
}

func ErrAlreadyDisposed() *errors.AppError {
	return errors.New(CodeAlreadyDisposed, "producer or consumer already closed", nil)
}

func ErrDecode(cause error) *errors.AppError {
	return errors.New(CodeDecodeError, "failed to decode chunk entry", cause)
}

func ErrCancelled() *errors.AppError {
	return errors.New(CodeCancelledError, "handler invocation cancelled", context.Canceled)
}
