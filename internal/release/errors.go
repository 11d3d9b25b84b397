package release

import "codeberg.org/mutker/wvasim/internal/errors"

const (
	ErrArchiveCollision = errors.ErrorCode("release_archive_collision")
	ErrInvalidRevision  = errors.ErrorCode("release_invalid_revision")
	ErrVCSUnavailable   = errors.ErrorCode("release_vcs_unavailable")
	ErrVCSCommand       = errors.ErrorCode("release_vcs_command_failed")
	ErrInvalidRules     = errors.ErrorCode("release_invalid_rules")
	ErrScan             = errors.ErrorCode("release_scan_failed")
	ErrWriteArchive     = errors.ErrorCode("release_write_archive_failed")
)
