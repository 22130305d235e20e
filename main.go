package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/jhalter/xmpp-shell/internal"
	"github.com/jhalter/xmpp-shell/internal/protocol"
	"github.com/muesli/termenv"
	flag "github.com/spf13/pflag"
)

// Set with -ldflags "-X main.version=..."
var version = "dev"

var logLevels = map[string]log.Level{
	"debug": log.DebugLevel,
	"info":  log.InfoLevel,
	"warn":  log.WarnLevel,
	"error": log.ErrorLevel,
}

func main() {
	configPath := flag.StringP("config", "c", defaultConfigPath(), "Path to config file")
	logLevel := flag.StringP("log-level", "l", "info", "Log level (debug, info, warn, error)")
	host := flag.String("host", "", "Server host; overrides SRV lookup on the JID domain")
	port := flag.Int("port", 0, "Server port (default 5222)")
	insecure := flag.Bool("insecure", false, "Skip TLS certificate verification")
	showVersion := flag.BoolP("version", "v", false, "Print version and exit")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [flags] [jid [password]]\n\n", filepath.Base(os.Args[0]))
		flag.PrintDefaults()
	}
	flag.Parse()

	if *showVersion {
		fmt.Println(version)
		return
	}

	level, ok := logLevels[*logLevel]
	if !ok {
		fmt.Fprintf(os.Stderr, "Error: unknown log level %q\n\n", *logLevel)
		flag.Usage()
		os.Exit(2)
	}
	if flag.NArg() > 2 {
		flag.Usage()
		os.Exit(2)
	}

	// init DebugBuffer
	db := &internal.DebugBuffer{}

	logHandler := log.New(db)

	// Force color output for logger.
	// By default, the charm logger package disables color for non-TTY.
	logHandler.SetColorProfile(termenv.TrueColor)
	logHandler.SetReportTimestamp(true)
	logHandler.SetLevel(level)

	logger := slog.New(logHandler)
	logger.Info("Started xmpp-shell", "Version", version)

	prefs, err := internal.ReadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: unable to read config file %s: %v\n", *configPath, err)
		os.Exit(1)
	}

	if flag.CommandLine.Changed("host") {
		prefs.Server.Host = *host
	}
	if flag.CommandLine.Changed("port") {
		prefs.Server.Port = *port
	}
	if *insecure {
		prefs.Server.InsecureSkipVerify = true
	}

	lib := protocol.NewXMPP(protocol.Options{
		InsecureSkipVerify: prefs.Server.InsecureSkipVerify,
		Timeout:            prefs.Server.ConnectTimeout,
		Resource:           prefs.Resource,
	}, logger)

	controller := internal.NewController(lib, prefs.ServerAddress(), logger)
	controller.Start()

	creds := initialCredentials(prefs, flag.Args())
	if connectOnStart(flag.Args(), creds) {
		controller.Connect(creds)
	}

	model := internal.NewModel(*configPath, prefs, controller, creds, logger, db)
	if err := model.Start(); err != nil {
		logger.Error("Application error", "err", err)
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// connectOnStart reports whether credentials given on the command line are
// complete enough to connect without waiting for the user.
func connectOnStart(args []string, creds internal.Credentials) bool {
	return len(args) > 0 && creds.IsReadyToConnect()
}

// initialCredentials pre-fills the login row from the command line, falling
// back to the first saved account.
func initialCredentials(prefs *internal.Settings, args []string) internal.Credentials {
	var creds internal.Credentials
	if len(prefs.Accounts) > 0 {
		creds.SetIdentifier(prefs.Accounts[0].JID)
		creds.SetSecret(prefs.Accounts[0].Password)
	}
	if len(args) > 0 {
		creds.SetIdentifier(args[0])
		creds.SetSecret("")
	}
	if len(args) > 1 {
		creds.SetSecret(args[1])
	}
	return creds
}

func defaultConfigPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "xmpp-shell-config.yaml"
	}
	return filepath.Join(dir, "xmpp-shell", "config.yaml")
}
