package domain

import (
	"fmt"

	appErrors "plugup/internal/errors"
)

func invalidVersionError(raw string, err error) error {
	return appErrors.New(appErrors.CodeInvalidArgument, fmt.Sprintf("invalid version: %q", raw), err)
}

func invalidComponentError(component, reason string) error {
	return appErrors.New(appErrors.CodeInvalidArgument, fmt.Sprintf("invalid plugin component %q: %s", component, reason), nil)
}

func invalidTargetError(raw string, err error) error {
	return appErrors.New(appErrors.CodeInvalidArgument, fmt.Sprintf("invalid plugin target %q: expected name or name:version", raw), err)
}
