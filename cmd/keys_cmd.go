package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/nextlevelbuilder/wagate/internal/config"
	"github.com/nextlevelbuilder/wagate/internal/keys"
)

var (
	keyStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("42"))
	warnStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	mutedStyle  = cellStyle.Foreground(lipgloss.Color("245"))
)

func keysCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keys",
		Short: "Issue and manage API keys",
	}
	cmd.AddCommand(keysGenerateCmd())
	cmd.AddCommand(keysListCmd())
	cmd.AddCommand(keysRevokeCmd())
	cmd.AddCommand(keysSetMasterCmd())
	cmd.AddCommand(keysClearMasterCmd())
	return cmd
}

// loadKeyService opens the configured key store the same way the gateway does.
func loadKeyService() (*keys.Service, func()) {
	cfg, err := config.Load(resolveConfigPath())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %s\n", err)
		os.Exit(1)
	}
	st, closeStore, err := openKeyStore(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
	master, _ := cfg.ResolveMasterKey()
	return keys.NewService(st, master, nil), closeStore
}

func keysGenerateCmd() *cobra.Command {
	var masterKey string
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate a new API key (requires the master key)",
		Run: func(cmd *cobra.Command, args []string) {
			if masterKey == "" {
				masterKey = os.Getenv("MASTER_KEY")
			}
			if masterKey == "" {
				v, err := promptPassword("Master key", "Required to issue API keys")
				if err != nil {
					fmt.Fprintf(os.Stderr, "Error: %s\n", err)
					os.Exit(1)
				}
				masterKey = v
			}

			svc, closeStore := loadKeyService()
			defer closeStore()

			key, err := svc.Generate(context.Background(), masterKey)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: %s\n", err)
				closeStore()
				os.Exit(1)
			}
			fmt.Println("API key generated successfully:")
			fmt.Println()
			fmt.Println("  " + keyStyle.Render(key))
			fmt.Println()
			fmt.Println(warnStyle.Render("Store it now. Only its hash is kept."))
		},
	}
	cmd.Flags().StringVar(&masterKey, "master-key", "", "master key (default $MASTER_KEY, prompts when unset)")
	return cmd
}

func keysListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List issued API keys",
		Run: func(cmd *cobra.Command, args []string) {
			svc, closeStore := loadKeyService()
			defer closeStore()

			infos, err := svc.List(context.Background())
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: %s\n", err)
				closeStore()
				os.Exit(1)
			}
			if len(infos) == 0 {
				fmt.Println("No API keys issued.")
				return
			}

			fmt.Println(renderKeyTable(infos))
		},
	}
}

func keysRevokeCmd() *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "revoke <id|key>",
		Short: "Deactivate an API key by record ID or by the key itself",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			if !yes {
				ok, err := promptConfirm("Revoke this API key? Clients using it will get 401.", false)
				if err != nil || !ok {
					fmt.Println("Cancelled.")
					return
				}
			}

			svc, closeStore := loadKeyService()
			defer closeStore()

			info, err := svc.Revoke(context.Background(), args[0])
			if errors.Is(err, keys.ErrNotFound) {
				fmt.Fprintln(os.Stderr, "API key not found")
				closeStore()
				os.Exit(1)
			}
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: %s\n", err)
				closeStore()
				os.Exit(1)
			}
			fmt.Printf("API key %s revoked.\n", info.ID)
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "skip confirmation")
	return cmd
}

func keysSetMasterCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set-master",
		Short: "Store the master key in the OS keyring",
		Long:  "Stores the master key in the OS keyring under the configured client ID. Set auth.use_keyring for the gateway to read it.",
		Run: func(cmd *cobra.Command, args []string) {
			cfg, err := config.Load(resolveConfigPath())
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error loading config: %s\n", err)
				os.Exit(1)
			}

			key, err := promptPassword("New master key", "Saved to the OS keyring", validateMasterKey)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: %s\n", err)
				os.Exit(1)
			}
			if err := config.StoreMasterKey(cfg.WhatsApp.ClientID, key); err != nil {
				fmt.Fprintf(os.Stderr, "Error: %s\n", err)
				os.Exit(1)
			}
			fmt.Println("Master key saved to keyring.")
			if !cfg.Auth.UseKeyring {
				fmt.Println(warnStyle.Render("auth.use_keyring is off; the gateway will not read it until you enable it."))
			}
			if cfg.Auth.MasterKey != "" {
				fmt.Println(warnStyle.Render("auth.master_key is set and takes precedence over the keyring."))
			}
		},
	}
}

func keysClearMasterCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clear-master",
		Short: "Remove the master key from the OS keyring",
		Run: func(cmd *cobra.Command, args []string) {
			cfg, err := config.Load(resolveConfigPath())
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error loading config: %s\n", err)
				os.Exit(1)
			}
			if err := config.DeleteMasterKey(cfg.WhatsApp.ClientID); err != nil {
				fmt.Fprintf(os.Stderr, "Error: %s\n", err)
				os.Exit(1)
			}
			fmt.Println("Master key removed from keyring.")
		},
	}
}

// renderKeyTable lays out key metadata; revoked keys are dimmed.
func renderKeyTable(infos []keys.KeyInfo) string {
	rows := make([][]string, 0, len(infos))
	for _, k := range infos {
		lastUsed := "never"
		if k.LastUsed != nil {
			lastUsed = k.LastUsed.Local().Format(time.DateTime)
		}
		rows = append(rows, []string{
			k.ID, k.Prefix, strconv.FormatBool(k.Active), k.Created.Local().Format(time.DateTime), lastUsed,
		})
	}

	return table.New().
		Border(lipgloss.RoundedBorder()).
		Headers("ID", "PREFIX", "ACTIVE", "CREATED", "LAST USED").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return headerStyle
			case row < len(infos) && !infos[row].Active:
				return mutedStyle
			default:
				return cellStyle
			}
		}).
		String()
}

const minMasterKeyLen = 12

func validateMasterKey(s string) error {
	if len(s) < minMasterKeyLen {
		return fmt.Errorf("master key must be at least %d characters", minMasterKeyLen)
	}
	return nil
}
