package domain

import "errors"

var (
	ErrUnsupportedArchive      = errors.New("unsupported archive")
	ErrRarHeaderNotFound       = errors.New("rar header not found")
	ErrArchiveNotFound         = errors.New("archive not found")
	ErrMultipleDataDirectories = errors.New("multiple data directories")
	ErrInstallerCancelled      = errors.New("installer cancelled")
	ErrDependenciesNotMet      = errors.New("dependencies not met")
	ErrModNotFound             = errors.New("mod not found")
	ErrFileNotFound            = errors.New("file not found")
	ErrTagNotFound             = errors.New("tag not found")
	ErrDuplicateTag            = errors.New("duplicate tag")
	ErrGameDirNotSet           = errors.New("game directory not configured")
	ErrInvalidConfig           = errors.New("invalid configuration")
)
