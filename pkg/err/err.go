package errprocess

import (
	"errors"

	"marketplace_messaging_service/pkg/logger"
)

// Set log the error message and return it as an error
func Set(errMsg string) error {
	logger.Log.Error(errMsg)
	return errors.New(errMsg)
}

// Wrap log err with a message and pass the original error through,
// keeping errors.Is/errors.As matching intact for the caller.
func Wrap(msg string, err error) error {
	if err == nil {
		return nil
	}
	logger.Log.Error(msg + " " + err.Error())
	return err
}
