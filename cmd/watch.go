package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/nextlevelbuilder/wagate/internal/session"
	"github.com/nextlevelbuilder/wagate/pkg/protocol"
)

func watchCmd() *cobra.Command {
	var noQR bool
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Stream session events from the running gateway",
		Long:  "Connects to the gateway WebSocket and prints every session event. Pairing codes are drawn in the terminal.",
		Run: func(cmd *cobra.Command, args []string) {
			if err := runWatch(!noQR); err != nil {
				fmt.Fprintf(os.Stderr, "Error: %s\n", err)
				os.Exit(1)
			}
		},
	}
	cmd.Flags().BoolVar(&noQR, "no-qr", false, "print pairing codes as text only")
	return cmd
}

func runWatch(drawQR bool) error {
	conn, err := dialGateway()
	if err != nil {
		return err
	}
	defer conn.Close()

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("connection closed: %w", err)
		}
		var frame struct {
			Type    string          `json:"type"`
			Event   string          `json:"event"`
			Payload json.RawMessage `json:"payload"`
		}
		if err := json.Unmarshal(msg, &frame); err != nil || frame.Type != protocol.FrameTypeEvent {
			continue
		}
		printEvent(frame.Event, frame.Payload, drawQR)
	}
}

func printEvent(name string, payload json.RawMessage, drawQR bool) {
	ts := time.Now().Format("15:04:05")
	switch name {
	case protocol.EventQR:
		var qr protocol.QRPayload
		if err := json.Unmarshal(payload, &qr); err != nil {
			return
		}
		fmt.Printf("[%s] qr: scan with WhatsApp > Linked devices\n", ts)
		if drawQR {
			session.PrintTerminal(os.Stdout, qr.Text)
		} else {
			fmt.Println(qr.Text)
		}
	case protocol.EventStatus:
		var st protocol.StatusPayload
		if err := json.Unmarshal(payload, &st); err != nil {
			return
		}
		fmt.Printf("[%s] status: ready=%t pairing=%t\n", ts, st.Ready, st.QR != nil)
		if drawQR && st.QR != nil {
			session.PrintTerminal(os.Stdout, *st.QR)
		}
	case protocol.EventReinitializing:
		var p protocol.ReinitPayload
		json.Unmarshal(payload, &p)
		fmt.Printf("[%s] %s: %s (%s)\n", ts, name, p.Message, p.Reason)
	default:
		var p protocol.MessagePayload
		json.Unmarshal(payload, &p)
		fmt.Printf("[%s] %s: %s\n", ts, name, p.Message)
	}
}
