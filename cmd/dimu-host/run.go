package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"path"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"
	"tinygo.org/x/drivers"

	"dimu-go/bus"
	"dimu-go/drivers/eeprom"
	"dimu-go/drivers/hwtimer"
	"dimu-go/internal/hostcfg"
	"dimu-go/services/bridge"
	"dimu-go/services/console"
	"dimu-go/services/dimu"
	"dimu-go/services/fusion"
	"dimu-go/services/heartbeat"
	"dimu-go/services/metrics"
	"dimu-go/x/timex"
)

const eraseBlock = 4096

// periph buses already speak the tinygo Tx contract.
var _ drivers.I2C = i2c.Bus(nil)

// hostBuses serves one periph bus under every id the config names.
type hostBuses struct{ b i2c.BusCloser }

func (h hostBuses) ByID(string) (drivers.I2C, bool) { return h.b, h.b != nil }

func openI2C(name string) (hostBuses, error) {
	if name == "" {
		return hostBuses{}, nil
	}
	if _, err := host.Init(); err != nil {
		return hostBuses{}, err
	}
	b, err := i2creg.Open(name)
	if err != nil {
		return hostBuses{}, err
	}
	log.Infof("i2c: opened %s", b)
	return hostBuses{b: b}, nil
}

func openStore(opt hostcfg.HostOpt) (*eeprom.Store, func(), error) {
	if err := os.MkdirAll(path.Dir(opt.EEPROM), 0o755); err != nil {
		return nil, nil, err
	}
	dev, err := eeprom.OpenFile(opt.EEPROM, opt.EEPROMSize, eraseBlock)
	if err != nil {
		return nil, nil, err
	}
	st, err := eeprom.New(dev, opt.Dimu.EEPROMBlockSize)
	if err != nil {
		_ = dev.Close()
		return nil, nil, err
	}
	return st, func() { _ = dev.Close() }, nil
}

func runE(cmd *cobra.Command, _ []string) error {
	desc := hostcfg.NewDesc()
	if err := desc.Parse(cmd); err != nil {
		return err
	}
	desc.PostParse()
	opt := desc.Opt
	doTare, _ := cmd.Flags().GetBool("tare")
	doSave, _ := cmd.Flags().GetBool("save")
	withConsole, _ := cmd.Flags().GetBool("console")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	buses, err := openI2C(opt.I2C)
	if err != nil {
		return err
	}
	if buses.b != nil {
		defer buses.b.Close()
	} else if !opt.Dimu.Sim {
		log.Warnln("no --i2c bus given; only simulated sensors will start")
	}
	sensors, sim, err := dimu.BuildSensors(opt.Dimu.Sensors, buses)
	if err != nil {
		return err
	}

	store, closeStore, err := openStore(opt)
	if err != nil {
		return err
	}
	defer closeStore()

	b := bus.NewBus(32)
	timer := hwtimer.NewSoft(opt.Dimu.TimerHz, opt.Dimu.CounterBits)
	go timer.Run(ctx)

	drv, err := dimu.New(opt.Dimu, dimu.Deps{
		Timer:     timer,
		Sensors:   sensors,
		Store:     store,
		Fusion:    fusion.New(b.NewConnection("fusion"), fusion.Config{RateEvery: 400, FullEvery: 200}),
		Simulator: sim,
		Clock:     timex.NewMicros().Now,
		Logger:    log.WithField("svc", "dimu"),
	})
	if err != nil {
		return err
	}

	cfgConn := b.NewConnection("config")
	cfgConn.Publish(cfgConn.NewMessage(bus.T("config", "heartbeat"), opt.Heartbeat, true))

	go func() { _ = drv.Serve(ctx, b.NewConnection("dimu"), dimu.ServeOptions{SampleEvery: 200}) }()
	if err := drv.Init(ctx); err != nil {
		return err
	}

	hb := &heartbeat.Service{Stats: drv.Stats, Logger: log.WithField("svc", "heartbeat")}
	_ = hb.Start(ctx, b.NewConnection("heartbeat"))

	var srv *http.Server
	if opt.Metrics != "" {
		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector())
		m, err := metrics.New(reg)
		if err != nil {
			return err
		}
		go m.Run(ctx, b.NewConnection("metrics"))
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		srv = &http.Server{Addr: opt.Metrics, Handler: mux}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Errorf("metrics: %v", err)
			}
		}()
	}

	if opt.Bridge.Broker != "" {
		cfgConn.Publish(cfgConn.NewMessage(bus.T("config", "bridge"), opt.Bridge, true))
		go bridge.Start(ctx, b.NewConnection("bridge"), log.WithField("svc", "bridge"))
	}

	log.Infof("dimu-host: %d sensors, tick %dus, calibration image %s (%s x%d)",
		len(sensors), opt.Dimu.InnerPeriodUs, opt.EEPROM, humanize.IBytes(uint64(store.Capacity())), store.Slots())
	if store.Slots() < 2 {
		log.Warnf("dimu-host: %s holds one slot, an interrupted calibration write loses the previous image", opt.EEPROM)
	}

	if doTare {
		go tare(ctx, drv, doSave)
	}
	if withConsole {
		con := console.New(b.NewConnection("console"), os.Stdout)
		go func() {
			if err := con.Run(ctx, os.Stdin); err != nil {
				log.Warnf("console: %v", err)
			}
		}()
	}

	<-ctx.Done()
	<-drv.Done()
	if srv != nil {
		sctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(sctx)
	}
	st := drv.Stats()
	log.Infof("dimu-host: stopped after %s, %s loops, %s full updates",
		time.Duration(st.UptimeMs)*time.Millisecond, humanize.Comma(int64(st.Loops)), humanize.Comma(int64(st.FullUpdates)))
	return nil
}

func tare(ctx context.Context, drv *dimu.Driver, save bool) {
	log.Infoln("tare: keep the unit level and still")
	start := time.Now()
	res, err := drv.Tare(ctx)
	if err != nil {
		log.Errorf("tare: %v", err)
		return
	}
	log.Infof("tare: acc bias %v, gyo bias %v over %d samples (%s)",
		res.AccBias, res.GyoBias, res.Samples, humanize.RelTime(start, time.Now(), "", ""))
	if save && !drv.RequestCalibWrite() {
		log.Warnln("tare: calibration write already pending")
	}
}
