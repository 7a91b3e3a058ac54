package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/nextlevelbuilder/wagate/pkg/protocol"
)

// cliAPIKey returns the key used by commands that talk to a running gateway
// whose WebSocket channel requires one.
func cliAPIKey() string {
	if apiKeyFlag != "" {
		return apiKeyFlag
	}
	return os.Getenv("WAGATE_API_KEY")
}

// gatewayPing sends the ping method to a running gateway.
func gatewayPing() (*protocol.PingPayload, error) {
	resp, err := gatewayRPC(protocol.MethodPing, nil)
	if err != nil {
		return nil, err
	}
	data, err := json.Marshal(resp.Payload)
	if err != nil {
		return nil, err
	}
	var p protocol.PingPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parse ping: %w", err)
	}
	return &p, nil
}

// isGatewayReachable tries a quick RPC ping to check if the gateway is up.
func isGatewayReachable() bool {
	_, err := gatewayPing()
	return err == nil
}

// maskSecret keeps the first and last four characters of long secrets.
func maskSecret(s string) string {
	switch {
	case s == "":
		return ""
	case len(s) > 8:
		return s[:4] + "****" + s[len(s)-4:]
	default:
		return "****"
	}
}
