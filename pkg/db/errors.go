// Package db pkg/db/errors.go provides errors for the db package.

package db

import "errors"

var (
	ErrDeviceNotFound  = errors.New("device not found")
	ErrDeviceExists    = errors.New("device already tracked")
	ErrWebhookNotFound = errors.New("webhook not found")

	errFailedToBeginTx   = errors.New("failed to begin transaction")
	errFailedToScan      = errors.New("failed to scan")
	errFailedToQuery     = errors.New("failed to query")
	errFailedToInsert    = errors.New("failed to insert")
	errFailedToUpdate    = errors.New("failed to update")
	errFailedToDelete    = errors.New("failed to delete")
	errFailedToInit      = errors.New("failed to initialize schema")
	errFailedToEnableWAL = errors.New("failed to enable WAL mode")
	errFailedOpenDB      = errors.New("failed to open database")
)
