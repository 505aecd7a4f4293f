package controllers

import "errors"

var (
	ErrNoPermission = errors.New("you don't have permission for this action")
	ErrNotVendor    = errors.New("no vendor profile for this account")
)
