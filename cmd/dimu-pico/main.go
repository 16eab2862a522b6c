//go:build rp2040 || rp2350

package main

import (
	"context"
	"machine"
	"time"

	uartx "github.com/jangala-dev/tinygo-uartx/uartx"
	"tinygo.org/x/drivers"

	"dimu-go/bus"
	"dimu-go/drivers/eeprom"
	"dimu-go/services/config"
	"dimu-go/services/console"
	"dimu-go/services/dimu"
	"dimu-go/services/fusion"
	"dimu-go/services/heartbeat"
	"dimu-go/x/notice"
)

// rp2I2CFactory configures i2c0 and i2c1 with board-default pins at 400 kHz.
type rp2I2CFactory struct {
	buses map[string]drivers.I2C
}

func newI2CFactory() *rp2I2CFactory {
	f := &rp2I2CFactory{buses: make(map[string]drivers.I2C)}

	b0 := machine.I2C0
	_ = b0.Configure(machine.I2CConfig{
		Frequency: 400 * machine.KHz,
		SDA:       machine.I2C0_SDA_PIN,
		SCL:       machine.I2C0_SCL_PIN,
	})
	f.buses["i2c0"] = b0

	b1 := machine.I2C1
	_ = b1.Configure(machine.I2CConfig{
		Frequency: 400 * machine.KHz,
		SDA:       machine.I2C1_SDA_PIN,
		SCL:       machine.I2C1_SCL_PIN,
	})
	f.buses["i2c1"] = b1

	return f
}

func (f *rp2I2CFactory) ByID(id string) (drivers.I2C, bool) {
	b, ok := f.buses[id]
	return b, ok
}

// uartReader blocks on the UART until bytes arrive.
type uartReader struct {
	ctx context.Context
	u   *uartx.UART
}

func (r uartReader) Read(p []byte) (int, error) { return r.u.RecvSomeContext(r.ctx, p) }

func bootConfig(ctx context.Context, conn *bus.Connection, log notice.Logger) dimu.Config {
	cfg, err := config.Await(ctx, conn, "dimu", 2*time.Second, dimu.DecodeConfig)
	if err == nil {
		return cfg
	}
	log.Warnf("config/dimu: %v, using defaults", err)
	cfg = dimu.DefaultConfig()
	cfg.CounterBits = 32
	return cfg
}

func main() {
	// Allow USB CDC to enumerate before we print.
	time.Sleep(2 * time.Second)

	uart := uartx.UART0
	_ = uart.Configure(uartx.UARTConfig{
		BaudRate: 115200,
		TX:       machine.UART0_TX_PIN,
		RX:       machine.UART0_RX_PIN,
	})
	log := notice.NewWriter(uart, "[dimu]", false)
	log.Infof("boot")

	ctx := context.Background()
	b := bus.NewBus(8)
	config.New("pico", log).Start(b.NewConnection("config"))
	cfg := bootConfig(ctx, b.NewConnection("boot"), log)

	sensors, sim, err := dimu.BuildSensors(cfg.Sensors, newI2CFactory())
	if err != nil {
		log.Errorf("sensors: %v", err)
	}

	var store dimu.Store
	if st, err := eeprom.New(machine.Flash, cfg.EEPROMBlockSize); err == nil {
		store = st
	} else {
		log.Errorf("eeprom: %v", err)
	}

	timer := newRP2Timer()
	drv, err := dimu.New(cfg, dimu.Deps{
		Timer:     timer,
		Sensors:   sensors,
		Store:     store,
		Fusion:    fusion.New(b.NewConnection("fusion"), fusion.Config{}),
		Simulator: sim,
		Clock:     timer.Counter,
		Logger:    log,
	})
	if err != nil {
		log.Errorf("dimu: %v", err)
		return
	}
	go func() { _ = drv.Serve(ctx, b.NewConnection("dimu"), dimu.ServeOptions{}) }()
	if err := drv.Init(ctx); err != nil {
		log.Errorf("dimu: %v", err)
		return
	}

	hb := &heartbeat.Service{Stats: drv.Stats, Logger: log}
	_ = hb.Start(ctx, b.NewConnection("heartbeat"))

	con := console.New(b.NewConnection("console"), uart)
	for {
		if err := con.Run(ctx, uartReader{ctx: ctx, u: uart}); err != nil {
			log.Warnf("console: %v", err)
		}
	}
}
