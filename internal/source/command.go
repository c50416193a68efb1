package source

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// Commands holds the shell pipelines a Command device runs, one per reading.
type Commands struct {
	CPU         string `mapstructure:"cpu"`
	Uptime      string `mapstructure:"uptime"`
	Temperature string `mapstructure:"temperature"`
	Clock       string `mapstructure:"clock"`
}

// DefaultCommands returns pipelines for a Raspberry Pi with sysstat. The
// clock output "frequency(48)=700000000" is cut at "=" so the clock id is
// not taken for the value.
func DefaultCommands() Commands {
	return Commands{
		CPU:         `iostat -c | awk '{print $3}' | sed '4q;d'`,
		Uptime:      "cat /proc/uptime",
		Temperature: "vcgencmd measure_temp",
		Clock:       "vcgencmd measure_clock arm | cut -d= -f2",
	}
}

// Tools returns the programs the pipelines start with, for RequireTools.
func (c Commands) Tools() []string {
	seen := make(map[string]bool)
	var tools []string
	for _, cmd := range []string{c.CPU, c.Uptime, c.Temperature, c.Clock} {
		fields := strings.Fields(cmd)
		if len(fields) == 0 || seen[fields[0]] {
			continue
		}
		seen[fields[0]] = true
		tools = append(tools, fields[0])
	}
	return tools
}

// Command reads host metrics by running shell pipelines and taking the
// first decimal token of each output.
type Command struct {
	commands Commands
	runner   Runner
	logger   *zap.Logger
}

// Compile-time guard.
var _ Device = (*Command)(nil)

// NewCommand returns a Command device. A nil runner uses ExecRunner.
func NewCommand(commands Commands, runner Runner, logger *zap.Logger) *Command {
	if runner == nil {
		runner = ExecRunner{}
	}
	return &Command{commands: commands, runner: runner, logger: logger}
}

func (c *Command) CPUUsage(ctx context.Context) (float64, error) {
	return c.read(ctx, "cpu usage", c.commands.CPU)
}

func (c *Command) Uptime(ctx context.Context) (float64, error) {
	return c.read(ctx, "uptime", c.commands.Uptime)
}

func (c *Command) Temperature(ctx context.Context) (float64, error) {
	return c.read(ctx, "temperature", c.commands.Temperature)
}

func (c *Command) ClockFrequency(ctx context.Context) (float64, error) {
	return c.read(ctx, "clock frequency", c.commands.Clock)
}

func (c *Command) read(ctx context.Context, reading, pipeline string) (float64, error) {
	if pipeline == "" {
		return 0, fmt.Errorf("%s: %w: no command configured", reading, ErrNoMeasurement)
	}

	out, err := c.runner.Run(ctx, "sh", "-c", pipeline)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", reading, err)
	}
	c.logger.Debug("command output",
		zap.String("reading", reading),
		zap.String("command", pipeline),
		zap.String("output", strings.TrimSpace(out)),
	)
	return firstValue(reading, out)
}
