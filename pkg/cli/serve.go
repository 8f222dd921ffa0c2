package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/blinksock/blinksock/pkg/config"
	"github.com/blinksock/blinksock/pkg/engine"
	"github.com/blinksock/blinksock/pkg/logging"
)

var (
	serveConfigFile    string
	serveHost          string
	servePort          int
	servePath          string
	serveMaxMsgSize    int64
	serveMaxConns      int
	serveIdleTimeout   time.Duration
	serveNoWait        bool
	serveInterface     string
	serveGPIOChip      string
	serveGPIOLine      int
	serveGPIOActiveLow bool
	serveNoGPIO        bool
	serveLogLevel      string
	serveLogFormat     string
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the echo service",
	Long: `Start the echo service.

By default the server waits for a network address, binds port 80, and
serves the echo route at /ws. Each echoed message toggles the GPIO line.`,
	Example: `  # Start with defaults
  blinksock serve

  # Start on a custom port and path
  blinksock serve --port 8080 --path /echo

  # Start with a config file
  blinksock serve --config /etc/blinksock.yaml

  # Run off-device without GPIO hardware or network wait
  blinksock serve --no-gpio --no-wait --port 8080`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	initServeFlags()
}

func initServeFlags() {
	serveCmd.Flags().StringVarP(&serveConfigFile, "config", "c", "", "Path to configuration file (JSON or YAML)")
	serveCmd.Flags().StringVar(&serveHost, "host", "", "Listen address (default: all interfaces)")
	serveCmd.Flags().IntVarP(&servePort, "port", "p", config.DefaultPort, "Listen port")
	serveCmd.Flags().StringVar(&servePath, "path", config.DefaultPath, "Echo route path")
	serveCmd.Flags().Int64Var(&serveMaxMsgSize, "max-message-size", config.DefaultMaxMessageSize, "Maximum inbound frame payload in bytes")
	serveCmd.Flags().IntVar(&serveMaxConns, "max-connections", 0, "Maximum concurrent connections (0 = unlimited)")
	serveCmd.Flags().DurationVar(&serveIdleTimeout, "idle-timeout", 0, "Close connections idle for this long (0 = disabled)")
	serveCmd.Flags().BoolVar(&serveNoWait, "no-wait", false, "Skip the network attachment wait at startup")
	serveCmd.Flags().StringVar(&serveInterface, "interface", "", "Wait for an address on this interface (default: any)")
	serveCmd.Flags().StringVar(&serveGPIOChip, "gpio-chip", config.DefaultGPIOChip, "GPIO character device path")
	serveCmd.Flags().IntVar(&serveGPIOLine, "gpio-line", config.DefaultGPIOLine, "GPIO line offset")
	serveCmd.Flags().BoolVar(&serveGPIOActiveLow, "gpio-active-low", false, "Invert GPIO line polarity")
	serveCmd.Flags().BoolVar(&serveNoGPIO, "no-gpio", false, "Replace the GPIO line with an in-memory actuator")
	serveCmd.Flags().StringVar(&serveLogLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	serveCmd.Flags().StringVar(&serveLogFormat, "log-format", "text", "Log format (text, json)")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := buildServeConfig(cmd)
	if err != nil {
		return err
	}

	log := logging.New(logging.Config{
		Level:  logging.ParseLevel(cfg.Log.Level),
		Format: logging.ParseFormat(cfg.Log.Format),
	})

	server, err := engine.NewServer(cfg, engine.WithLogger(log))
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := server.Start(ctx); err != nil {
		return err
	}
	fmt.Printf("blinksock listening on %s%s\n", server.Addr(), cfg.Path)

	<-ctx.Done()
	fmt.Println("\nShutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Stop(shutdownCtx); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: shutdown error: %v\n", err)
	}
	fmt.Println("Server stopped")
	return nil
}

// buildServeConfig loads the config file when given and layers explicitly
// set flags on top.
func buildServeConfig(cmd *cobra.Command) (*config.Config, error) {
	var cfg *config.Config
	if serveConfigFile != "" {
		loaded, err := config.LoadFromFile(serveConfigFile)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	} else {
		cfg = config.Default()
	}

	flags := cmd.Flags()
	if flags.Changed("host") {
		cfg.Host = serveHost
	}
	if flags.Changed("port") {
		cfg.Port = servePort
	}
	if flags.Changed("path") {
		cfg.Path = servePath
	}
	if flags.Changed("max-message-size") {
		cfg.MaxMessageSize = serveMaxMsgSize
	}
	if flags.Changed("max-connections") {
		cfg.MaxConnections = serveMaxConns
	}
	if flags.Changed("idle-timeout") {
		cfg.IdleTimeout = config.Duration(serveIdleTimeout)
	}
	if serveNoWait {
		f := false
		cfg.Network.Wait = &f
	}
	if flags.Changed("interface") {
		cfg.Network.Interface = serveInterface
	}
	if flags.Changed("gpio-chip") {
		cfg.GPIO.Chip = serveGPIOChip
	}
	if flags.Changed("gpio-line") {
		cfg.GPIO.Line = serveGPIOLine
	}
	if serveGPIOActiveLow {
		cfg.GPIO.ActiveLow = true
	}
	if serveNoGPIO {
		cfg.GPIO.Disabled = true
	}
	if flags.Changed("log-level") {
		cfg.Log.Level = serveLogLevel
	}
	if flags.Changed("log-format") {
		cfg.Log.Format = serveLogFormat
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
