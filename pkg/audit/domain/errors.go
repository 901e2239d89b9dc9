package domain

import "errors"

var (
	ErrMissingFilePath = errors.New("file store requires a file path")
	ErrMissingDSN      = errors.New("postgres store requires a connection string")
	ErrUnknownFormat   = errors.New("unknown export format")
	ErrStoreClosed     = errors.New("store is closed")
	ErrUnknownPreset   = errors.New("unknown compliance preset")
	ErrUnknownSink     = errors.New("unknown sink type")
)
