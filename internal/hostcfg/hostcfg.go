// Package hostcfg loads the host CLI configuration: flags, then DIMU_*
// environment variables, then a YAML file, then defaults.
package hostcfg

import (
	"errors"
	"fmt"
	"os"
	"path"
	"strings"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"dimu-go/services/dimu"
	"dimu-go/types"
)

const DefaultAppName = "dimu"
const DefaultConfigName = "config"
const EnvPrefix = "DIMU"
const DefaultEEPROMSize = 8192

var userHomeDir, _ = os.UserHomeDir()
var DefaultConfig = path.Join(userHomeDir, ".config", DefaultAppName, DefaultConfigName+".yaml")
var DefaultConfigSearchPath0 = path.Join(userHomeDir, ".config", DefaultAppName)

const DefaultConfigSearchPath1 = "/etc/" + DefaultAppName
const DefaultConfigSearchPath2 = "./"

type HostOpt struct {
	Dimu       dimu.Config           `yaml:"dimu" mapstructure:"dimu"`
	Heartbeat  types.HeartbeatConfig `yaml:"heartbeat" mapstructure:"heartbeat"`
	Bridge     types.BridgeConfig    `yaml:"bridge" mapstructure:"bridge"`
	I2C        string                `yaml:"i2c" mapstructure:"i2c"`       // periph bus name; empty runs the simulator
	EEPROM     string                `yaml:"eeprom" mapstructure:"eeprom"` // calibration image file
	EEPROMSize int                   `yaml:"eeprom_size" mapstructure:"eeprom_size"`
	Metrics    string                `yaml:"metrics" mapstructure:"metrics"` // listen address; empty disables
	Debug      bool                  `yaml:"debug" mapstructure:"debug"`
}

type Desc struct {
	Opt   HostOpt
	Viper *viper.Viper
}

func NewDesc() Desc {
	return Desc{Opt: NewHostOpt()}
}

func NewHostOpt() HostOpt {
	d := dimu.DefaultConfig()
	d.CounterBits = 32
	d.Sensors = []types.SensorConfig{{Type: "sim"}}
	return HostOpt{
		Dimu:       d,
		Heartbeat:  types.HeartbeatConfig{IntervalMs: 1000},
		Bridge:     types.BridgeConfig{ClientID: "dimu-host", Prefix: "dimu-host"},
		EEPROM:     path.Join(DefaultConfigSearchPath0, "calib.bin"),
		EEPROMSize: DefaultEEPROMSize,
		Metrics:    ":9110",
	}
}

// Flags registers the flags Parse binds.
func Flags(cmd *cobra.Command) {
	cmd.Flags().String("config", "", "configuration file path")
	cmd.Flags().Bool("debug", false, "toggle debug logging")
	cmd.Flags().String("i2c", "", "periph I2C bus name; empty runs the simulator")
	cmd.Flags().String("eeprom", "", "calibration image file")
	cmd.Flags().String("metrics", "", "prometheus listen address")
	cmd.Flags().String("broker", "", "MQTT broker URL; empty disables the bridge")
}

func setDefaults(v *viper.Viper, o HostOpt) {
	v.SetDefault("dimu.timer_hz", o.Dimu.TimerHz)
	v.SetDefault("dimu.counter_bits", o.Dimu.CounterBits)
	v.SetDefault("dimu.inner_period_us", o.Dimu.InnerPeriodUs)
	v.SetDefault("dimu.outer_period_us", o.Dimu.OuterPeriodUs)
	v.SetDefault("dimu.room_temp", o.Dimu.RoomTemp)
	v.SetDefault("dimu.gravity", o.Dimu.Gravity)
	v.SetDefault("dimu.eeprom_block_size", o.Dimu.EEPROMBlockSize)
	v.SetDefault("dimu.sim", o.Dimu.Sim)
	v.SetDefault("dimu.sensors", o.Dimu.Sensors)
	v.SetDefault("heartbeat.interval_ms", o.Heartbeat.IntervalMs)
	v.SetDefault("bridge.broker", o.Bridge.Broker)
	v.SetDefault("bridge.client_id", o.Bridge.ClientID)
	v.SetDefault("bridge.prefix", o.Bridge.Prefix)
	v.SetDefault("bridge.forward", o.Bridge.Forward)
	v.SetDefault("bridge.qos", o.Bridge.QoS)
	v.SetDefault("i2c", o.I2C)
	v.SetDefault("eeprom", o.EEPROM)
	v.SetDefault("eeprom_size", o.EEPROMSize)
	v.SetDefault("metrics", o.Metrics)
	v.SetDefault("debug", o.Debug)
}

func (o *Desc) Parse(cmd *cobra.Command) error {
	vipCfg := viper.New()
	setDefaults(vipCfg, NewHostOpt())

	if configFileCmd, err := cmd.Flags().GetString("config"); err == nil && configFileCmd != "" {
		vipCfg.SetConfigFile(configFileCmd)
	} else if configFileEnv := os.Getenv(EnvPrefix + "_CONFIG"); configFileEnv != "" {
		vipCfg.SetConfigFile(configFileEnv)
	} else {
		vipCfg.SetConfigName(DefaultConfigName)
		vipCfg.SetConfigType("yaml")
		vipCfg.AddConfigPath(DefaultConfigSearchPath0)
		vipCfg.AddConfigPath(DefaultConfigSearchPath1)
		vipCfg.AddConfigPath(DefaultConfigSearchPath2)
	}

	vipCfg.SetEnvPrefix(EnvPrefix)
	vipCfg.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	vipCfg.AutomaticEnv()

	for key, flag := range map[string]string{
		"debug": "debug", "i2c": "i2c", "eeprom": "eeprom", "metrics": "metrics", "bridge.broker": "broker",
	} {
		if f := cmd.Flags().Lookup(flag); f != nil {
			_ = vipCfg.BindPFlag(key, f)
		}
	}

	// If a config file is found, read it in.
	if err := vipCfg.ReadInConfig(); err == nil {
		log.Debugln("using config file:", vipCfg.ConfigFileUsed())
	} else {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("read config: %w", err)
		}
		log.Debugln(err)
	}

	if err := vipCfg.Unmarshal(&o.Opt); err != nil {
		return fmt.Errorf("unmarshal config: %w", err)
	}
	if err := o.Opt.Dimu.Validate(); err != nil {
		return err
	}

	o.Viper = vipCfg
	return nil
}

func (o *Desc) PostParse() {
	if o.Opt.Debug {
		log.SetLevel(log.DebugLevel)
	} else {
		log.SetLevel(log.InfoLevel)
	}
}

// DumpOption writes opt as YAML to p. An existing file is kept unless
// overwrite is set.
func DumpOption(opt any, p string, overwrite bool) error {
	if _, err := os.Stat(p); err == nil && !overwrite {
		return fmt.Errorf("%s exists, use --yes to overwrite", p)
	}
	if err := os.MkdirAll(path.Dir(p), 0o755); err != nil {
		return err
	}
	b, err := yaml.Marshal(opt)
	if err != nil {
		return err
	}
	return os.WriteFile(p, b, 0o644)
}

// InitCfg prepares a configuration template for the application.
func InitCfg(cmd *cobra.Command, _ []string) error {
	printFlag, _ := cmd.Flags().GetBool("print")
	outputPath, _ := cmd.Flags().GetString("output")
	overwriteFlag, _ := cmd.Flags().GetBool("yes")

	desc := NewDesc()
	if err := desc.Parse(cmd); err != nil {
		log.Errorln(err)
		return err
	}

	if printFlag {
		configBuffer, _ := yaml.Marshal(desc.Opt)
		fmt.Fprintln(cmd.OutOrStdout(), string(configBuffer))
		return nil
	}
	return DumpOption(desc.Opt, outputPath, overwriteFlag)
}
