package web

import (
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
)

// FormValues returns the submitted fields as url.Values for both HTML form
// posts and JSON bodies. JSON scalars are converted to their text form and
// arrays become repeated values.
func FormValues(c echo.Context) (url.Values, error) {
	if !strings.HasPrefix(c.Request().Header.Get(echo.HeaderContentType), echo.MIMEApplicationJSON) {
		return c.FormParams()
	}

	var body map[string]interface{}
	if err := json.NewDecoder(c.Request().Body).Decode(&body); err != nil && err != io.EOF {
		return nil, fmt.Errorf("decode json body: %w", err)
	}
	vals := make(url.Values, len(body))
	for k, v := range body {
		switch t := v.(type) {
		case nil:
			vals.Set(k, "")
		case []interface{}:
			for _, item := range t {
				vals.Add(k, scalar(item))
			}
		default:
			vals.Set(k, scalar(t))
		}
	}
	return vals, nil
}

func scalar(v interface{}) string {
	switch t := v.(type) {
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case nil:
		return ""
	default:
		b, _ := json.Marshal(t)
		return string(b)
	}
}
