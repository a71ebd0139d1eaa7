package di

import (
	"flag"
	"io"
	"os"
	"strings"

	"go.uber.org/dig"
	"go.uber.org/zap"

	"github.com/mikey/mailtrust/internal/adapters/filter"
	"github.com/mikey/mailtrust/internal/config"
	"github.com/mikey/mailtrust/internal/logging"
	"github.com/mikey/mailtrust/internal/ports"
	"github.com/mikey/mailtrust/internal/utils"
)

// CLIFlags contains all command line flags for the CLI application
type CLIFlags struct {
	// Input flags
	InputFile string
	Verify    string

	// Lookup flags
	DBLZone         string
	Nameservers     string
	MailboxProvider string
	MailboxAPIKey   string

	// Output flags
	JSON       bool
	Verbose    bool
	JSONLog    bool
	ConfigFile string

	// Output is where reports are written, stdout when nil
	Output io.Writer
}

// ParseFlags parses command line flags and returns a CLIFlags struct
func ParseFlags() *CLIFlags {
	flags := &CLIFlags{}

	// Input flags
	flag.StringVar(&flags.InputFile, "file", "", "Message to inspect (.eml, .msg, .html or text; stdin if not specified)")
	flag.StringVar(&flags.Verify, "verify", "", "Email address to verify instead of inspecting a message")

	// Lookup flags
	flag.StringVar(&flags.DBLZone, "dbl-zone", "dbl.spamhaus.org", "DNS blocklist zone")
	flag.StringVar(&flags.Nameservers, "nameservers", "", "Comma-separated nameservers (system resolvers if not specified)")
	flag.StringVar(&flags.MailboxProvider, "mailbox-provider", "", "Mailbox classification provider (kickbox)")
	flag.StringVar(&flags.MailboxAPIKey, "mailbox-api-key", "", "API key for the mailbox provider")

	// Output flags
	flag.BoolVar(&flags.JSON, "json", false, "Print the JSON result instead of a report")
	flag.BoolVar(&flags.Verbose, "verbose", false, "Enable verbose logging")
	flag.BoolVar(&flags.JSONLog, "json-log", false, "Output logs in JSON format")
	flag.StringVar(&flags.ConfigFile, "config", "", "Path to config file (overrides command line flags)")

	flag.Parse()
	return flags
}

// BuildCLIContainer creates and configures a dependency injection container for the CLI application
func BuildCLIContainer(flags *CLIFlags) (*dig.Container, error) {
	container := dig.New()

	// Register flags
	if err := container.Provide(func() *CLIFlags { return flags }); err != nil {
		return nil, err
	}

	// Register logger
	if err := container.Provide(func(flags *CLIFlags) (*zap.Logger, error) {
		return logging.InitConsoleLogger(flags.Verbose, flags.JSONLog)
	}); err != nil {
		return nil, err
	}

	// Register configuration
	if err := container.Provide(func(flags *CLIFlags, logger *zap.Logger) (*config.Config, error) {
		if flags.ConfigFile != "" {
			cfg, err := config.NewFromFile(flags.ConfigFile)
			if err != nil {
				return nil, err
			}
			logger.Info("Loaded configuration from file", zap.String("file", cfg.GetViper().ConfigFileUsed()))
			return cfg, nil
		}

		return createConfigFromFlags(flags), nil
	}); err != nil {
		return nil, err
	}

	if err := provideServices(container); err != nil {
		return nil, err
	}

	// Register CLI filter
	if err := container.Provide(func(
		flags *CLIFlags,
		inspector ports.Inspector,
		verifier ports.Verifier,
		text *utils.TextProcessor,
		logger *zap.Logger,
	) *filter.CliFilter {
		out := flags.Output
		if out == nil {
			out = os.Stdout
		}
		return filter.NewCliFilter(inspector, verifier, text, logger, out, flags.JSON, flags.Verbose)
	}); err != nil {
		return nil, err
	}

	return container, nil
}

// createConfigFromFlags creates a configuration from command line flags
func createConfigFromFlags(flags *CLIFlags) *config.Config {
	v := config.NewEmptyViper()

	// No cache for the CLI
	v.Set("cache.type", "memory")
	v.Set("cache.enabled", false)

	v.Set("reputation.dbl_zone", flags.DBLZone)
	if flags.Nameservers != "" {
		var servers []string
		for _, s := range strings.Split(flags.Nameservers, ",") {
			if s = strings.TrimSpace(s); s != "" {
				servers = append(servers, s)
			}
		}
		v.Set("dns.nameservers", servers)
	}

	v.Set("mailbox.provider", flags.MailboxProvider)
	v.Set("mailbox.api_key", flags.MailboxAPIKey)

	return config.NewFromViper(v)
}
