// Command telerelay streams host telemetry from a probe to a collector over
// a single TCP connection.
//
//	telerelay collector [flags]
//	telerelay probe [flags]
//	telerelay version
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/HerbHall/telerelay/internal/config"
	"github.com/HerbHall/telerelay/internal/version"
)

const usage = `usage: telerelay <command> [flags]

commands:
  collector   accept one probe at a time and publish its telemetry
  probe       measure this host and stream records to a collector
  version     print build information

Run "telerelay <command> --help" for the flags of a command.
`

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	if len(args) == 0 {
		fmt.Fprint(os.Stderr, usage)
		return 2
	}

	switch args[0] {
	case "collector", "server":
		return runCollector(args[1:])
	case "probe", "client":
		return runProbe(args[1:])
	case "version", "--version", "-v":
		fmt.Println(version.Info())
		return 0
	case "help", "--help", "-h":
		fmt.Print(usage)
		return 0
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s", args[0], usage)
		return 2
	}
}

// commonFlags adds the flags every command accepts.
func commonFlags(fs *pflag.FlagSet) {
	fs.String(config.FileFlag, "", "config file (yaml, toml or json)")
	fs.String("log-level", "info", "log level: debug, info, warn, error")
}

// bindKeys points flags at nested or renamed config keys. The flags are
// defined by the caller, so a failure is a programming error.
func bindKeys(fs *pflag.FlagSet, keys map[string]string) {
	for flag, key := range keys {
		if err := config.BindKey(fs, flag, key); err != nil {
			panic(err)
		}
	}
}

// seconds is a duration flag that also accepts a bare number of seconds,
// so "-t 10" means ten seconds.
type seconds time.Duration

func secondsVarP(fs *pflag.FlagSet, name, short string, def time.Duration, usage string) {
	v := seconds(def)
	fs.VarP(&v, name, short, usage)
}

func (s *seconds) Set(v string) error {
	if n, err := strconv.ParseFloat(v, 64); err == nil {
		if n < 0 {
			return fmt.Errorf("must not be negative, got %s", v)
		}
		*s = seconds(n * float64(time.Second))
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return err
	}
	*s = seconds(d)
	return nil
}

func (s *seconds) String() string { return time.Duration(*s).String() }
func (s *seconds) Type() string   { return "duration" }

// parse parses args into fs and loads the merged configuration. A nil
// config with a zero code means --help was printed.
func parse(fs *pflag.FlagSet, args []string) (*config.Config, int) {
	if err := fs.Parse(args); err != nil {
		if err == pflag.ErrHelp {
			return nil, 0
		}
		fmt.Fprintln(os.Stderr, err)
		return nil, 2
	}
	cfg, err := config.Load(fs)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return nil, 1
	}
	return cfg, 0
}

// newLogger returns a development logger at debug and a production JSON
// logger otherwise.
func newLogger(level string) (*zap.Logger, error) {
	if level == "debug" {
		return zap.NewDevelopment()
	}
	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = lvl
	return cfg.Build()
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}
