package liveness

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-resty/resty/v2"
	"github.com/tidwall/gjson"

	"github.com/AlexFoxalt/EC-TG-Bot-v2/internal/config"
	"github.com/AlexFoxalt/EC-TG-Bot-v2/internal/retry"
)

// HTTPPlugClient polls a JSON status endpoint exposed by a plug or a local
// bridge and reads the relay flag at OnPath.
type HTTPPlugClient struct {
	http   *resty.Client
	url    string
	onPath string
}

func NewHTTPPlugClient(cfg config.DeviceConfig) *HTTPPlugClient {
	c := resty.New().
		SetTimeout(cfg.Timeout).
		SetHeader("Accept", "application/json")
	if cfg.Token != "" {
		c.SetAuthToken(cfg.Token)
	}
	onPath := strings.TrimSpace(cfg.OnPath)
	if onPath == "" {
		onPath = "result.device_on"
	}
	return &HTTPPlugClient{http: c, url: cfg.URL, onPath: onPath}
}

func (c *HTTPPlugClient) DeviceOn(ctx context.Context) (bool, error) {
	resp, err := c.http.R().SetContext(ctx).Get(c.url)
	if err != nil {
		return false, err
	}
	if resp.IsError() {
		return false, &retry.StatusError{Code: resp.StatusCode(), Message: truncate(resp.String(), 200)}
	}
	body := resp.Body()
	if !gjson.ValidBytes(body) {
		return false, fmt.Errorf("plug status: invalid json body")
	}
	return parseFlag(gjson.GetBytes(body, c.onPath), c.onPath)
}

func parseFlag(v gjson.Result, path string) (bool, error) {
	if !v.Exists() {
		return false, fmt.Errorf("plug status: field %q missing", path)
	}
	switch v.Type {
	case gjson.True, gjson.False:
		return v.Bool(), nil
	case gjson.Number:
		return v.Int() != 0, nil
	case gjson.String:
		switch strings.ToLower(strings.TrimSpace(v.Str)) {
		case "on", "true", "1":
			return true, nil
		case "off", "false", "0":
			return false, nil
		}
	}
	return false, fmt.Errorf("plug status: field %q has unexpected value %s", path, v.Raw)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
