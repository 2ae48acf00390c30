package vaultindex

import "errors"

var (
	ErrExists       = errors.New("vaultindex: sibling with that name already exists")
	ErrNotFound     = errors.New("vaultindex: no node at that path")
	ErrNoSuchFolder = errors.New("vaultindex: parent path is not a folder")
)
