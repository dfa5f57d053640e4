package main

import (
	"flag"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/estudiodigital/contabot/internal/app"
	"github.com/estudiodigital/contabot/internal/util"
	"github.com/joho/godotenv"
)

// Default configuration constants
const (
	// DefaultStateDir is the default directory for contabot state data
	DefaultStateDir = "/var/lib/contabot"
	// DefaultDBFileName is the default SQLite database filename
	DefaultDBFileName = "contabot.db"
	// DefaultWhatsAppDBFileName is the default whatsmeow SQLite filename
	DefaultWhatsAppDBFileName = "whatsmeow.db"
)

func main() {
	initializeLogger()

	config := loadEnvironmentConfig()
	flags := parseCommandLineFlags(config)

	if err := ensureDirectoriesExist(flags); err != nil {
		slog.Error("Failed to create required directories", "error", err)
		os.Exit(1)
	}

	opts := app.Opts{
		DSN:           *flags.dbDSN,
		Driver:        *flags.driver,
		WhatsAppDSN:   *flags.waDSN,
		QRPath:        *flags.qrOutput,
		NumericCode:   *flags.numeric,
		WebhookAddr:   *flags.webhookAddr,
		OperatorPhone: *flags.operatorPhone,
		BelenPhone:    *flags.belenPhone,
		IvanPhone:     *flags.ivanPhone,
		PollInterval:  util.ParseDurationEnv("OUTBOX_POLL_INTERVAL", 0),
		BatchSize:     util.ParseIntEnv("OUTBOX_BATCH_SIZE", 0),
		SweepInterval: util.ParseDurationEnv("SESSION_SWEEP_INTERVAL", 0),
	}

	slog.Info("Bootstrapping contabot")
	slog.Debug("Final configuration", "state_dir", *flags.stateDir, "dsn_set", *flags.dbDSN != "", "driver", *flags.driver)
	if err := app.Run(opts); err != nil {
		slog.Error("contabot failed to run", "error", err)
		os.Exit(1)
	}
	slog.Info("contabot exited successfully")
}

// Config holds environment configuration
type Config struct {
	DatabaseURL   string
	WhatsAppDSN   string
	StateDir      string
	Driver        string
	WebhookAddr   string
	OperatorPhone string
	BelenPhone    string
	IvanPhone     string
	Debug         bool
}

// Flags holds command line flag values
type Flags struct {
	qrOutput      *string
	numeric       *bool
	stateDir      *string
	dbDSN         *string
	waDSN         *string
	driver        *string
	webhookAddr   *string
	operatorPhone *string
	belenPhone    *string
	ivanPhone     *string
}

// initializeLogger sets up structured logging. CONTABOT_DEBUG=1 lowers the
// level to debug.
func initializeLogger() {
	level := slog.LevelInfo
	if util.ParseBoolEnv("CONTABOT_DEBUG", false) {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
}

// loadEnvironmentConfig loads configuration from environment variables and .env file
func loadEnvironmentConfig() Config {
	if err := godotenv.Load(); err != nil {
		slog.Debug("failed to load .env file", "error", err)
	} else {
		slog.Debug("successfully loaded .env file")
	}

	config := Config{
		DatabaseURL:   os.Getenv("DATABASE_URL"),
		WhatsAppDSN:   os.Getenv("WHATSAPP_DB_DSN"),
		StateDir:      os.Getenv("CONTABOT_STATE_DIR"),
		Driver:        os.Getenv("CONTABOT_DRIVER"),
		WebhookAddr:   os.Getenv("WEBHOOK_ADDR"),
		OperatorPhone: os.Getenv("OPERATOR_PHONE"),
		BelenPhone:    os.Getenv("BELEN_PHONE"),
		IvanPhone:     os.Getenv("IVAN_PHONE"),
	}

	if config.StateDir == "" {
		config.StateDir = DefaultStateDir
		slog.Debug("No CONTABOT_STATE_DIR set, using default", "default_state_dir", config.StateDir)
	}

	if config.DatabaseURL == "" {
		config.DatabaseURL = filepath.Join(config.StateDir, DefaultDBFileName)
		slog.Debug("No DATABASE_URL provided, defaulting to SQLite", "sqlite_path", config.DatabaseURL)
	}
	if config.WhatsAppDSN == "" {
		config.WhatsAppDSN = filepath.Join(config.StateDir, DefaultWhatsAppDBFileName)
		slog.Debug("No WHATSAPP_DB_DSN provided, defaulting to SQLite", "sqlite_path", config.WhatsAppDSN)
	}
	if config.Driver == "" {
		config.Driver = app.DriverWhatsmeow
	}

	slog.Debug("environment variables loaded",
		"DATABASE_URL_SET", config.DatabaseURL != "",
		"WHATSAPP_DB_DSN_SET", config.WhatsAppDSN != "",
		"CONTABOT_STATE_DIR", config.StateDir,
		"CONTABOT_DRIVER", config.Driver,
		"OPERATOR_PHONE_SET", config.OperatorPhone != "",
		"BELEN_PHONE_SET", config.BelenPhone != "",
		"IVAN_PHONE_SET", config.IvanPhone != "")

	return config
}

// parseCommandLineFlags parses command line arguments with environment defaults
func parseCommandLineFlags(config Config) Flags {
	flags := Flags{
		qrOutput:      flag.String("qr-output", "", "path to write login QR code"),
		numeric:       flag.Bool("numeric-code", false, "use numeric login code instead of QR code"),
		stateDir:      flag.String("state-dir", config.StateDir, "state directory for contabot data (overrides $CONTABOT_STATE_DIR)"),
		dbDSN:         flag.String("db-dsn", config.DatabaseURL, "database DSN for the conversation store (overrides $DATABASE_URL)"),
		waDSN:         flag.String("whatsapp-db-dsn", config.WhatsAppDSN, "database DSN for the whatsmeow device store (overrides $WHATSAPP_DB_DSN)"),
		driver:        flag.String("driver", config.Driver, "channel driver: whatsmeow, twilio or mock (overrides $CONTABOT_DRIVER)"),
		webhookAddr:   flag.String("webhook-addr", config.WebhookAddr, "twilio webhook listen address (overrides $WEBHOOK_ADDR)"),
		operatorPhone: flag.String("operator-phone", config.OperatorPhone, "operator phone allowed to reset sessions (overrides $OPERATOR_PHONE)"),
		belenPhone:    flag.String("belen-phone", config.BelenPhone, "phone for internal notifications to Belén (overrides $BELEN_PHONE)"),
		ivanPhone:     flag.String("ivan-phone", config.IvanPhone, "phone for internal notifications to Iván (overrides $IVAN_PHONE)"),
	}
	flag.Parse()
	return flags
}

// ensureDirectoriesExist creates the state directory when the store and the
// whatsmeow device database live on local SQLite files.
func ensureDirectoriesExist(flags Flags) error {
	if *flags.stateDir == "" {
		return nil
	}
	if err := os.MkdirAll(*flags.stateDir, 0o755); err != nil {
		return err
	}
	return nil
}
