package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

type Config struct {
	bind              string
	port              int
	questionsPath     string
	boardPath         string
	historyFile       string
	historyDSN        string
	heartbeatTimeout  time.Duration
	inactivityTimeout time.Duration
	sweepInterval     time.Duration
	verbose           bool
}

func (c *Config) validate() error {
	if c.port < 1 || c.port > 65535 {
		return fmt.Errorf("invalid port (must be between 1-65535 inclusive): %d", c.port)
	}
	if c.questionsPath == "" {
		return fmt.Errorf("a questions file is required")
	}
	if c.heartbeatTimeout <= 0 || c.inactivityTimeout <= 0 || c.sweepInterval <= 0 {
		return fmt.Errorf("timeouts must be positive")
	}
	return nil
}

func newCmd(cfg *Config) *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix("QUIZRACE")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	cmd := &cobra.Command{
		Use:           "quizrace-server",
		Short:         "Authoritative server for the quizrace board game.",
		Args:          cobra.ExactArgs(0),
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.validate(); err != nil {
				return err
			}
			return run(cmd.Context(), cfg)
		},
	}

	fs := cmd.Flags()

	fs.SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})

	fs.StringVarP(&cfg.bind, "bind", "b", "0.0.0.0", "address to bind to (env: QUIZRACE_BIND)")
	fs.IntVarP(&cfg.port, "port", "p", 3000, "port to listen on (env: QUIZRACE_PORT)")
	fs.StringVar(&cfg.questionsPath, "questions", "questions.json", "path to the question pool (env: QUIZRACE_QUESTIONS)")
	fs.StringVar(&cfg.boardPath, "board", "", "path to an alternate board layout; empty uses the default 45-cell track (env: QUIZRACE_BOARD)")
	fs.StringVar(&cfg.historyFile, "history-file", "game_history.json", "path to the JSON game-history file (env: QUIZRACE_HISTORY_FILE)")
	fs.StringVar(&cfg.historyDSN, "history-dsn", "", "postgres DSN for game history; empty uses the file store (env: QUIZRACE_HISTORY_DSN)")
	fs.DurationVar(&cfg.heartbeatTimeout, "heartbeat-timeout", 5*time.Second, "silence before an in-game player is marked disconnected (env: QUIZRACE_HEARTBEAT_TIMEOUT)")
	fs.DurationVar(&cfg.inactivityTimeout, "inactivity-timeout", 10*time.Minute, "all-disconnected duration before the session is force-ended (env: QUIZRACE_INACTIVITY_TIMEOUT)")
	fs.DurationVar(&cfg.sweepInterval, "sweep-interval", 2*time.Second, "liveness sweep interval (env: QUIZRACE_SWEEP_INTERVAL)")
	fs.BoolVarP(&cfg.verbose, "verbose", "v", false, "enable debug logging (env: QUIZRACE_VERBOSE)")

	fs.VisitAll(func(f *pflag.Flag) {
		_ = v.BindPFlag(f.Name, f)
		_ = v.BindEnv(f.Name)
		if !f.Changed && v.IsSet(f.Name) {
			_ = fs.Set(f.Name, fmt.Sprintf("%v", v.Get(f.Name)))
		}
	})

	cmd.CompletionOptions.HiddenDefaultCmd = true
	cmd.SetHelpCommand(&cobra.Command{Hidden: true})

	return cmd
}
