package commands

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/taskmaster/taskclient/internal/infrastructure/client"
	"github.com/taskmaster/taskclient/internal/infrastructure/config"
	"github.com/taskmaster/taskclient/internal/infrastructure/logger"
)

// AppFactory builds the application for a command run.
type AppFactory func(cfg *config.Config) (*client.App, error)

// CLI holds state shared by every command of one invocation.
type CLI struct {
	viper      *viper.Viper
	configFile string
	factory    AppFactory

	cfg *config.Config
	app *client.App
	log *logger.Logger
}

// New creates a CLI that builds the real application.
func New() *CLI {
	return NewWithFactory(nil)
}

// NewWithFactory creates a CLI that builds its application with factory.
func NewWithFactory(factory AppFactory) *CLI {
	return &CLI{
		viper:   viper.New(),
		factory: factory,
	}
}

// Root creates the root command with every subcommand attached.
func (c *CLI) Root() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "taskclient",
		Short:         "Personal task tracker client",
		Long:          `taskclient logs you in by email and manages your task list on the task tracker backend.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&c.configFile, "config", "", "Config file (yaml, json or toml)")
	flags.String("profile", "", "Session profile to use")
	flags.String("api-url", "", "Backend base URL")
	flags.String("log-level", "", "Log level (debug, info, warn, error)")

	_ = c.viper.BindPFlag("session.profile", flags.Lookup("profile"))
	_ = c.viper.BindPFlag("api.base_url", flags.Lookup("api-url"))
	_ = c.viper.BindPFlag("logger.level", flags.Lookup("log-level"))

	rootCmd.AddCommand(c.newLoginCommand())
	rootCmd.AddCommand(c.newSignupCommand())
	rootCmd.AddCommand(c.newLogoutCommand())
	rootCmd.AddCommand(c.newWhoamiCommand())
	rootCmd.AddCommand(c.newTasksCommand())
	rootCmd.AddCommand(c.newMigrateCommand())
	rootCmd.AddCommand(NewVersionCommand())

	return rootCmd
}

// loadConfig loads the configuration once per invocation.
func (c *CLI) loadConfig() (*config.Config, error) {
	if c.cfg != nil {
		return c.cfg, nil
	}

	cfg, err := config.LoadWith(c.viper, c.configFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	c.cfg = cfg
	return cfg, nil
}

// App builds the application on first use.
func (c *CLI) App() (*client.App, error) {
	if c.app != nil {
		return c.app, nil
	}

	cfg, err := c.loadConfig()
	if err != nil {
		return nil, err
	}

	if c.factory != nil {
		app, err := c.factory(cfg)
		if err != nil {
			return nil, err
		}
		c.app = app
		return app, nil
	}

	appLogger, err := logger.New(cfg.Logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	c.log = appLogger

	app, err := client.New(cfg, appLogger)
	if err != nil {
		return nil, err
	}
	c.app = app
	return app, nil
}

// Close releases whatever the invocation opened.
func (c *CLI) Close() error {
	var err error
	if c.app != nil {
		err = c.app.Close()
		c.app = nil
	}
	if c.log != nil {
		_ = c.log.Close()
		c.log = nil
	}
	return err
}

// confirm asks a yes/no question on the command's streams.
func confirm(cmd *cobra.Command, question string) (bool, error) {
	fmt.Fprintf(cmd.OutOrStdout(), "%s [y/N]: ", question)

	answer, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	if err != nil && err != io.EOF {
		return false, fmt.Errorf("failed to read answer: %w", err)
	}

	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "y", "yes":
		return true, nil
	default:
		return false, nil
	}
}
