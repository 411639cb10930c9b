package appointment

import (
	"io"
	"net/http"

	"github.com/labstack/echo/v4"
)

// Handler exposes the decoder over HTTP.
type Handler struct {
	decoder *Decoder
}

// NewHandler creates a new appointment handler.
func NewHandler(decoder *Decoder) *Handler {
	return &Handler{decoder: decoder}
}

// RegisterRoutes registers the decode endpoints on the provided route group.
//
//	POST /api/v1/appointments/decode         - raw batch to accepted records
//	POST /api/v1/appointments/decode/report  - raw batch to per-message outcomes
func (h *Handler) RegisterRoutes(g *echo.Group) {
	g.POST("/appointments/decode", h.DecodeBatch)
	g.POST("/appointments/decode/report", h.DecodeReport)
}

// DecodeBatch handles POST /api/v1/appointments/decode. The body is a raw
// batch; the response is the JSON array of accepted appointments.
func (h *Handler) DecodeBatch(c echo.Context) error {
	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return readError(c, err)
	}
	return c.JSON(http.StatusOK, h.decoder.Decode(string(body)))
}

// DecodeReport handles POST /api/v1/appointments/decode/report. It returns
// the outcome of every message, accepted or not.
func (h *Handler) DecodeReport(c echo.Context) error {
	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return readError(c, err)
	}
	return c.JSON(http.StatusOK, h.decoder.DecodeReport(string(body)))
}

func readError(c echo.Context, err error) error {
	if he, ok := err.(*echo.HTTPError); ok {
		return he
	}
	return c.JSON(http.StatusBadRequest, map[string]string{
		"error": "failed to read request body",
	})
}
