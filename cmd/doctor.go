package cmd

import (
	"fmt"
	"os"
	"runtime"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/nextlevelbuilder/wagate/internal/config"
	"github.com/nextlevelbuilder/wagate/pkg/browser"
	"github.com/nextlevelbuilder/wagate/pkg/protocol"
)

var (
	okStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	failStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("203"))
)

func doctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check system environment and configuration health",
		Run: func(cmd *cobra.Command, args []string) {
			runDoctor()
		},
	}
}

func runDoctor() {
	fmt.Println("wagate doctor")
	fmt.Printf("  Version:  %s (protocol %d)\n", Version, protocol.ProtocolVersion)
	fmt.Printf("  OS:       %s/%s\n", runtime.GOOS, runtime.GOARCH)
	fmt.Printf("  Go:       %s\n", runtime.Version())
	fmt.Println()

	cfgPath := resolveConfigPath()
	fmt.Printf("  Config:   %s", cfgPath)
	if _, err := os.Stat(cfgPath); err != nil {
		fmt.Println(warnStyle.Render(" (NOT FOUND, using defaults)"))
	} else {
		fmt.Println(okStyle.Render(" (OK)"))
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Printf("  Config load error: %s\n", err)
		return
	}

	fmt.Println()
	fmt.Println("  Session:")
	fmt.Printf("    %-14s %s\n", "Driver:", cfg.WhatsApp.Driver)
	fmt.Printf("    %-14s %s\n", "Client ID:", cfg.WhatsApp.ClientID)
	checkPath("Session dir:", cfg.SessionDir())
	if cfg.WhatsApp.Driver == "browser" {
		if exe := browser.ResolveExecutable(cfg.WhatsApp.BrowserPath); exe != "" {
			fmt.Printf("    %-14s %s\n", "Browser:", exe)
		} else {
			fmt.Printf("    %-14s (auto-download on first start)\n", "Browser:")
		}
	} else if !cfg.IsManaged() {
		checkPath("Device store:", deviceStorePath(cfg))
	}

	fmt.Println()
	fmt.Println("  Auth:")
	_, source := cfg.ResolveMasterKey()
	if source == "default" {
		fmt.Printf("    %-14s %s\n", "Master key:", failStyle.Render("built-in default (CHANGE IT)"))
	} else {
		fmt.Printf("    %-14s from %s\n", "Master key:", source)
	}
	if cfg.IsManaged() {
		fmt.Printf("    %-14s postgres\n", "Key store:")
	} else {
		checkPath("Key store:", config.ExpandHome(cfg.Auth.KeysFile))
	}

	fmt.Println()
	fmt.Printf("  Gateway:  %s", cfg.ResolvedBaseURL())
	if ping, err := gatewayPing(); err == nil {
		fmt.Println(okStyle.Render(fmt.Sprintf(" (running, %d WebSocket clients, %d event subscribers)", ping.Clients, ping.Subscribers)))
	} else {
		fmt.Println(warnStyle.Render(" (not reachable)"))
	}

	fmt.Println()
	fmt.Println("Doctor check complete.")
}

func checkPath(label, path string) {
	if _, err := os.Stat(path); err != nil {
		fmt.Printf("    %-14s %s %s\n", label, path, failStyle.Render("(NOT FOUND)"))
	} else {
		fmt.Printf("    %-14s %s %s\n", label, path, okStyle.Render("(OK)"))
	}
}
