// p2pcall: CLI entry point.
//
// Runs one side of a direct peer-to-peer call over TCP. One peer hosts, the other
// connects. Both stream a synthetic test pattern unless told otherwise, and can expose
// a local monitor (WebSocket feed, /stats, /metrics).
//
// It can be launched interactively (no subcommand) or via `host` / `connect`.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/1ureka/p2pcall/internal/app"
	"github.com/1ureka/p2pcall/internal/config"
	"github.com/1ureka/p2pcall/internal/util"
)

var version = "dev"

func main() {
	// Root context, cancelled on Ctrl+C.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := rootCmd(config.New()).ExecuteContext(ctx); err != nil {
		util.LogError("%v", err)
		stop()
		os.Exit(1)
	}
}

// ---------------------------------------------------------------------------
// Commands
// ---------------------------------------------------------------------------

type globalFlags struct {
	configFile string
	noPattern  bool
}

func rootCmd(v *viper.Viper) *cobra.Command {
	var g globalFlags

	cmd := &cobra.Command{
		Use:           "p2pcall",
		Short:         "Direct peer-to-peer audio/video call over TCP",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if g.noPattern {
				v.Set(config.KeyPattern, false)
			}
			if v.GetBool(config.KeyDebug) {
				util.EnableDebug()
			}
			pterm.Info.Println(fmt.Sprintf("p2pcall v%s", version))
			pterm.Println()
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInteractive(cmd.Context(), v, g.configFile)
		},
	}

	pf := cmd.PersistentFlags()
	pf.StringVar(&g.configFile, "config", "", "Config file (default: ./p2pcall.yaml, $HOME/.p2pcall, /etc/p2pcall)")
	pf.Bool("debug", false, "Enable debug logging")
	pf.String("monitor", "", "Serve the local monitor on this address, e.g. 127.0.0.1:9090")
	pf.BoolVar(&g.noPattern, "no-pattern", false, "Do not stream the synthetic test pattern")
	_ = v.BindPFlag(config.KeyDebug, pf.Lookup("debug"))
	_ = v.BindPFlag(config.KeyMonitorAddr, pf.Lookup("monitor"))

	cmd.AddCommand(hostCmd(v, &g), connectCmd(v, &g))
	return cmd
}

func hostCmd(v *viper.Viper, g *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "host",
		Short: "Wait for a peer to connect",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := v.BindPFlag(config.KeyPort, cmd.Flags().Lookup("port")); err != nil {
				return err
			}
			cfg, err := config.Load(v, config.RoleHost, g.configFile)
			if err != nil {
				return err
			}
			return runHost(cmd.Context(), cfg)
		},
	}
	cmd.Flags().Int("port", 0, "Listen port, 0~65535 (0 picks a free one; default from config: 8000)")
	return cmd
}

func connectCmd(v *viper.Viper, g *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "connect <host>",
		Short: "Call a listening peer",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := v.BindPFlag(config.KeyPort, cmd.Flags().Lookup("port")); err != nil {
				return err
			}
			v.Set(config.KeyHost, args[0])
			cfg, err := config.Load(v, config.RoleClient, g.configFile)
			if err != nil {
				return err
			}
			return runClient(cmd.Context(), cfg)
		},
	}
	cmd.Flags().Int("port", 0, "Remote port, 1~65535 (default from config: 8000)")
	return cmd
}

// ---------------------------------------------------------------------------
// Run modes
// ---------------------------------------------------------------------------

// runInteractive asks for the role and address when no subcommand is given.
func runInteractive(ctx context.Context, v *viper.Viper, configFile string) error {
	role, _ := pterm.DefaultInteractiveSelect.
		WithOptions([]string{"Host   — Wait for a peer", "Client — Call a host"}).
		WithDefaultText("Select your role").
		Show()

	pterm.Println()

	if strings.HasPrefix(role, "Host") {
		v.Set(config.KeyPort, askPort("Listen port (0 ~ 65535)", 0))
		cfg, err := config.Load(v, config.RoleHost, configFile)
		if err != nil {
			return err
		}
		return runHost(ctx, cfg)
	}

	v.Set(config.KeyHost, askHost())
	v.Set(config.KeyPort, askPort("Host port (1 ~ 65535)", 1))
	cfg, err := config.Load(v, config.RoleClient, configFile)
	if err != nil {
		return err
	}
	return runClient(ctx, cfg)
}

// runHost executes the host side of the call.
func runHost(ctx context.Context, cfg *config.Config) error {
	if err := app.RunHost(ctx, cfg); err != nil {
		return fmt.Errorf("host session failed: %w", err)
	}
	util.LogInfo("call ended")
	return nil
}

// runClient executes the client side of the call.
func runClient(ctx context.Context, cfg *config.Config) error {
	if err := app.RunClient(ctx, cfg); err != nil {
		return fmt.Errorf("client session failed: %w", err)
	}
	util.LogInfo("call ended")
	return nil
}
