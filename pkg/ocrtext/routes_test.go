package ocrtext

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/hunt2035/SoundSync-sub002/pkg/binder"
	"github.com/hunt2035/SoundSync-sub002/pkg/errcodes"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeRoute(t *testing.T) {
	t.Parallel()

	e := echo.New()
	b, err := binder.New()
	require.NoError(t, err)
	e.Binder = b
	e.HTTPErrorHandler = errcodes.NewHandler().Handle
	RegisterRoutes(e)

	body := `{"text":"The quick brown\nfox jumps.\n\n  Indented"}`
	req := httptest.NewRequest(http.MethodPost, "/ocr/normalize", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rr := httptest.NewRecorder()
	e.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var resp struct {
		Text string `json:"text"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, "The quick brown fox jumps.\n\n  Indented", resp.Text)

	req = httptest.NewRequest(http.MethodPost, "/ocr/normalize", strings.NewReader("plain"))
	req.Header.Set(echo.HeaderContentType, echo.MIMETextPlain)
	rr = httptest.NewRecorder()
	e.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusUnsupportedMediaType, rr.Code)
}
