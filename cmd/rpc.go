package cmd

import (
	"encoding/json"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nextlevelbuilder/wagate/internal/config"
	"github.com/nextlevelbuilder/wagate/pkg/protocol"
)

// dialGateway opens the WebSocket channel of the locally configured gateway.
func dialGateway() (*websocket.Conn, error) {
	cfg, err := config.Load(resolveConfigPath())
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	host := cfg.Gateway.Host
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "127.0.0.1"
	}
	u := url.URL{Scheme: "ws", Host: net.JoinHostPort(host, strconv.Itoa(cfg.Gateway.Port)), Path: "/ws"}
	if key := cliAPIKey(); key != "" {
		u.RawQuery = url.Values{"api_key": {key}}.Encode()
	}

	dialer := *websocket.DefaultDialer
	dialer.HandshakeTimeout = 5 * time.Second
	conn, _, err := dialer.Dial(u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("connect to gateway at %s:%d: %w", host, cfg.Gateway.Port, err)
	}
	return conn, nil
}

// gatewayRPC sends one request frame and waits for its response, skipping the
// events pushed in between.
func gatewayRPC(method string, params json.RawMessage) (*protocol.ResponseFrame, error) {
	conn, err := dialGateway()
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	const reqID = "cli-rpc"
	req := protocol.RequestFrame{
		Type:   protocol.FrameTypeRequest,
		ID:     reqID,
		Method: method,
		Params: params,
	}
	if err := conn.WriteJSON(req); err != nil {
		return nil, fmt.Errorf("send RPC: %w", err)
	}

	conn.SetReadDeadline(time.Now().Add(10 * time.Second))
	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return nil, fmt.Errorf("read response: %w", err)
		}
		frameType, _ := protocol.ParseFrameType(msg)
		if frameType != protocol.FrameTypeResponse {
			continue
		}

		var resp protocol.ResponseFrame
		if err := json.Unmarshal(msg, &resp); err != nil {
			return nil, fmt.Errorf("parse response: %w", err)
		}
		if resp.ID != reqID {
			continue
		}
		if !resp.OK {
			msg := "unknown error"
			if resp.Error != nil {
				msg = resp.Error.Message
			}
			return &resp, fmt.Errorf("%s failed: %s", method, msg)
		}
		return &resp, nil
	}
}
