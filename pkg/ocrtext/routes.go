package ocrtext

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
)

type NormalizePayload struct {
	Text string `json:"text" validate:"max=10000000"`
}

func normalize(c echo.Context) error {
	params := NormalizePayload{}
	if err := c.Bind(&params); err != nil {
		return errors.WithStack(err)
	}

	resp := struct {
		Text string `json:"text"`
	}{Normalize(params.Text)}
	return errors.WithStack(c.JSON(http.StatusOK, resp))
}

// RegisterRoutes registers POST /ocr/normalize.
func RegisterRoutes(e *echo.Echo) {
	e.POST("/ocr/normalize", normalize)
}
