package service

import "errors"

var (
	ErrNotFound             = errors.New("error not found")
	ErrImportNotConfirmable = errors.New("error import is not in preview status")
)
