package main

import (
	"github.com/spf13/cobra"

	"dimu-go/internal/hostcfg"
)

var RootCmd = &cobra.Command{
	Use:   "dimu-host",
	Short: "digital IMU timing and calibration core on a host",
	Long:  "digital IMU timing and calibration core on a host",
}

func RunCmdFlags(cmd *cobra.Command) {
	hostcfg.Flags(cmd)
	cmd.Flags().Bool("tare", false, "tare once the loop is running, then keep running")
	cmd.Flags().Bool("save", false, "write calibration after a tare")
	cmd.Flags().Bool("console", false, "read operator commands from stdin")
}

var RunCmd = &cobra.Command{
	Use: "run",
	SuggestFor: []string{
		"ru", "start",
	},
	Short: "run the sampling loop with the configured sensors",
	Long: `run starts the timer, the sampling worker and the bus services.
Configuration is read, by increasing precedence, from defaults,
$HOME/.config/dimu/config.yaml (or /etc/dimu, ./, or --config / DIMU_CONFIG),
DIMU_* environment variables and command line flags.
`,
	Example: `  dimu-host run --config=/path/to/config.yaml
  dimu-host run --i2c=1 --metrics=:9110
  dimu-host run --tare --save`,
	RunE: runE,
}

func InitCmdFlags(cmd *cobra.Command) {
	hostcfg.Flags(cmd)
	cmd.Flags().Bool("print", false, "print config to stdout")
	cmd.Flags().BoolP("yes", "y", false, "overwrite")
	cmd.Flags().StringP("output", "o", hostcfg.DefaultConfig, "output path")
}

var InitCmd = &cobra.Command{
	Use: "init",
	SuggestFor: []string{
		"ini", "in",
	},
	Short: "init creates a configuration template",
	Long: `init creates a configuration template.
If --print is present the configuration is printed to stdout.
Otherwise it is written to --output, $HOME/.config/dimu/config.yaml by default.
An existing file is only replaced with --yes.
`,
	Example: `  dimu-host init --print
  dimu-host init -o /path/to/config.yaml -y`,
	RunE: hostcfg.InitCfg,
}

var CalibCmd = &cobra.Command{
	Use:   "calib",
	Short: "inspect stored calibration",
}

func DumpCmdFlags(cmd *cobra.Command) {
	hostcfg.Flags(cmd)
	cmd.Flags().StringP("format", "f", "yaml", "output format: yaml or text")
}

var DumpCmd = &cobra.Command{
	Use:   "dump",
	Short: "print the calibration parameters stored in the EEPROM image",
	Example: `  dimu-host calib dump
  dimu-host calib dump --eeprom=/var/lib/dimu/calib.bin -f text`,
	RunE: dumpE,
}

func getRootCmd() *cobra.Command {
	RunCmdFlags(RunCmd)
	RootCmd.AddCommand(RunCmd)

	InitCmdFlags(InitCmd)
	RootCmd.AddCommand(InitCmd)

	DumpCmdFlags(DumpCmd)
	CalibCmd.AddCommand(DumpCmd)
	RootCmd.AddCommand(CalibCmd)

	return RootCmd
}
