package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/nextlevelbuilder/wagate/pkg/protocol"
)

func statusCmd() *cobra.Command {
	var jsonOut bool
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the session state of the running gateway",
		Run: func(cmd *cobra.Command, args []string) {
			resp, err := gatewayRPC(protocol.MethodStatus, nil)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: %s\n", err)
				os.Exit(1)
			}

			data, _ := json.Marshal(resp.Payload)
			if jsonOut {
				fmt.Println(string(data))
				return
			}
			var st protocol.StatusPayload
			if err := json.Unmarshal(data, &st); err != nil {
				fmt.Fprintf(os.Stderr, "Error: unexpected status payload: %s\n", err)
				os.Exit(1)
			}
			switch {
			case st.Ready:
				fmt.Println("WhatsApp client is ready.")
			case st.QR != nil:
				fmt.Println("Waiting for pairing. Run `wagate watch` to display the QR code.")
			default:
				fmt.Println("WhatsApp client is not ready.")
			}
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "print the raw status payload")
	return cmd
}
