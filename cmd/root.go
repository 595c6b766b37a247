package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/RyanBlaney/sonido-pcg/configs"
	"github.com/RyanBlaney/sonido-pcg/internal/app"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// cli carries the state shared by every subcommand of one root command.
type cli struct {
	v          *viper.Viper
	configFile string
	envFile    string

	app *app.App
}

// Execute adds all child commands to the root command and sets flags appropriately
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// NewRootCmd builds the command tree with its own viper instance.
func NewRootCmd() *cobra.Command {
	c := &cli{v: viper.New()}

	rootCmd := &cobra.Command{
		Use:   "sonido-pcg",
		Short: "Phonocardiogram analysis and case archive",
		Long: `Condition, band-limit and analyse phonocardiogram (PCG) recordings.

Recordings are WAV files. The pipeline applies gain, a noise gate, peak
normalisation and a zero-phase Butterworth band-pass, then extracts MFCC,
chroma and spectral contrast features. Cases are kept in a durable archive
together with patient metadata.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.initConfig(cmd)
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if c.app != nil {
				return c.app.Close()
			}
			return nil
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&c.configFile, "config", "",
		"config file (default is $HOME/.config/sonido-pcg/sonido-pcg.yaml)")
	flags.StringVar(&c.envFile, "env-file", ".env", "dotenv file loaded into the environment")
	flags.String("data-dir", "", "data directory (default is $HOME/.local/share/sonido-pcg)")
	flags.BoolP("verbose", "v", false, "verbose output")
	flags.String("log-level", "info", "log level (debug, info, warn, error)")
	flags.String("log-format", "text", "log format (text, json)")
	flags.StringP("output", "o", "table", "output format (table, json, yaml)")

	c.bindPFlag("verbose", flags.Lookup("verbose"))
	c.bindPFlag("log_level", flags.Lookup("log-level"))
	c.bindPFlag("log_format", flags.Lookup("log-format"))
	c.bindPFlag("output_format", flags.Lookup("output"))
	c.bindPFlag("data_dir", flags.Lookup("data-dir"))

	rootCmd.AddCommand(newAnalyzeCmd(c))
	rootCmd.AddCommand(newCaseCmd(c))
	return rootCmd
}

func (c *cli) bindPFlag(key string, f *pflag.Flag) {
	_ = c.v.BindPFlag(key, f)
}

// initConfig reads in config file and ENV variables if set
func (c *cli) initConfig(cmd *cobra.Command) error {
	if c.configFile != "" {
		c.v.SetConfigFile(c.configFile)
	} else {
		if home, err := os.UserHomeDir(); err == nil {
			c.v.AddConfigPath(filepath.Join(home, ".config", "sonido-pcg"))
			c.v.AddConfigPath(home)
		}
		c.v.AddConfigPath("/etc/sonido-pcg")
		c.v.AddConfigPath("./configs")
		c.v.AddConfigPath(".")
		c.v.SetConfigName("sonido-pcg")
		c.v.SetConfigType("yaml")
	}

	if err := configs.ConfigureEnv(c.v, c.envFile); err != nil {
		return err
	}

	if err := c.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if c.configFile != "" || !errors.As(err, &notFound) {
			return fmt.Errorf("failed to read config: %w", err)
		}
	} else if c.v.GetBool("verbose") {
		fmt.Fprintf(cmd.ErrOrStderr(), "Using config file: %s\n", c.v.ConfigFileUsed())
	}

	return nil
}

// application loads the configuration and builds the app on first use.
func (c *cli) application(cmd *cobra.Command) (*app.App, error) {
	if c.app != nil {
		return c.app, nil
	}
	cfg, err := configs.Load(c.v)
	if err != nil {
		return nil, err
	}
	a, err := app.New(cfg, cmd.ErrOrStderr())
	if err != nil {
		return nil, err
	}
	c.app = a
	return a, nil
}

func (c *cli) outputFormat() string {
	return strings.ToLower(c.v.GetString("output_format"))
}

func (c *cli) out(cmd *cobra.Command) io.Writer {
	return cmd.OutOrStdout()
}
