package filesystem

import (
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
)

func RegisterRoutes(e *echo.Echo, root string) error {
	filesystemService, err := NewService(root)
	if err != nil {
		return errors.WithStack(err)
	}

	h := &handler{
		filesystemService: filesystemService,
	}

	e.GET("/filesystem/browse", h.browse)
	return nil
}
