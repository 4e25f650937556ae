package service

import (
	"errors"

	apperrors "github.com/helpdesk-labs/support-rewards/pkg/util"
)

// notFoundOr converts a repository sentinel into a NOT_FOUND DomainError and
// maps anything else.
func notFoundOr(err, sentinel error, resource, id string) error {
	if errors.Is(err, sentinel) {
		return apperrors.NewNotFound(sentinel, resource, map[string]any{"id": id})
	}
	return apperrors.MapError(err)
}
