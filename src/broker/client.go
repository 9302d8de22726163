package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"market-relay/src/helpers"
	"market-relay/src/interfaces"
	"market-relay/src/models"
	"market-relay/src/network"
)

// SmartAPI REST paths, relative to the configured base URL.
const (
	loginPath  = "/rest/auth/angelbroking/user/v1/loginByPassword"
	candlePath = "/rest/secure/angelbroking/historical/v1/getCandleData"
	quotePath  = "/rest/secure/angelbroking/market/v1/quote/"
)

// apiResponse is the envelope every SmartAPI REST call returns.
type apiResponse[T any] struct {
	Status    bool   `json:"status"`
	Message   string `json:"message"`
	ErrorCode string `json:"errorcode"`
	Data      T      `json:"data"`
}

// -----------------------------------------------------------------------------

// restClient holds what every SmartAPI REST caller needs.
type restClient struct {
	cfg      models.MBrokerConfig
	network  interfaces.INetworkManager
	sessions interfaces.ISessionProvider
}

// -----------------------------------------------------------------------------

func (c *restClient) headers(authToken string) map[string]string {
	h := map[string]string{
		"X-PrivateKey":     c.cfg.APIKey,
		"X-UserType":       "USER",
		"X-SourceID":       "WEB",
		"X-ClientLocalIP":  orDefault(c.cfg.ClientLocalIP, "127.0.0.1"),
		"X-ClientPublicIP": orDefault(c.cfg.ClientPublicIP, "127.0.0.1"),
		"X-MACAddress":     orDefault(c.cfg.MACAddress, "00:00:00:00:00:00"),
	}
	if authToken != "" {
		h["Authorization"] = authToken
	}
	return h
}

// -----------------------------------------------------------------------------

// postSecure calls an authenticated endpoint. A rejected token is dropped from
// the session cache and the call retried once with a fresh login.
func postSecure[T any](ctx context.Context, c *restClient, path string, body interface{}) (T, error) {
	var zero T

	for attempt := 0; attempt < 2; attempt++ {
		session, err := c.sessions.Session(ctx)
		if err != nil {
			return zero, err
		}

		raw, err := c.network.PostJSON(ctx, strings.TrimRight(c.cfg.RestURL, "/")+path, c.headers(session.AuthToken), body)
		if err != nil {
			if network.IsUnauthorized(err) && attempt == 0 {
				c.sessions.Invalidate()
				continue
			}
			return zero, helpers.NewNetworkError("smartapi request failed", err)
		}

		var resp apiResponse[T]
		if err := json.Unmarshal(raw, &resp); err != nil {
			return zero, helpers.NewValidationError("failed to decode smartapi response", err)
		}
		if !resp.Status {
			if isTokenError(resp.ErrorCode) && attempt == 0 {
				c.sessions.Invalidate()
				continue
			}
			return zero, helpers.NewValidationError(fmt.Sprintf("smartapi error %s: %s", resp.ErrorCode, resp.Message), nil)
		}
		return resp.Data, nil
	}

	return zero, helpers.NewAuthError("smartapi rejected the refreshed session", nil)
}

// -----------------------------------------------------------------------------

// isTokenError matches the SmartAPI codes for invalid or expired tokens.
func isTokenError(code string) bool {
	switch code {
	case "AG8001", "AG8002", "AG8003":
		return true
	}
	return false
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
