package echoapi

import (
	"encoding/json"
	"net/http"

	"github.com/labstack/echo/v4"
)

// strictJSONSerializer rejects request bodies carrying unknown fields.
type strictJSONSerializer struct {
	echo.DefaultJSONSerializer
}

func (strictJSONSerializer) Deserialize(ctx echo.Context, i interface{}) error {
	dec := json.NewDecoder(ctx.Request().Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(i); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body: "+err.Error()).SetInternal(err)
	}
	return nil
}
