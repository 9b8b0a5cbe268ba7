package humastar

import (
	"context"
	"errors"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/joeblew999/plat-maps/internal/domain"
)

// HTTPError maps a domain error kind to its HTTP status. Backend messages
// are passed through verbatim.
func HTTPError(err error) error {
	if err == nil {
		return nil
	}
	var de *domain.Error
	if !errors.As(err, &de) {
		if errors.Is(err, context.DeadlineExceeded) {
			return huma.Error504GatewayTimeout("request timed out")
		}
		return huma.Error500InternalServerError("internal error", err)
	}
	msg := de.Message()
	switch de.Kind {
	case domain.KindValidation:
		return huma.Error422UnprocessableEntity(msg)
	case domain.KindBackend:
		return huma.Error502BadGateway(msg)
	case domain.KindForbidden:
		return huma.Error403Forbidden(msg)
	case domain.KindUnsupportedFormat:
		return huma.NewError(http.StatusUnsupportedMediaType, msg)
	case domain.KindNotFound:
		return huma.Error404NotFound(msg)
	}
	return huma.Error500InternalServerError(msg)
}
