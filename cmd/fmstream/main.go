package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"sync"
	"syscall"

	influxdb2 "github.com/influxdata/influxdb-client-go"
	"github.com/influxdata/influxdb-client-go/api"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/samuel/go-hackrf/hackrf"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v2"

	"github.com/norasector/fmstream/pkg/control"
	"github.com/norasector/fmstream/pkg/events"
	"github.com/norasector/fmstream/pkg/metrics"
	"github.com/norasector/fmstream/pkg/streamer"
	"github.com/norasector/fmstream/pkg/streamer/config"
	"github.com/norasector/fmstream/pkg/streamer/device"
	"github.com/norasector/fmstream/pkg/streamer/device/file"
	hackrfDevice "github.com/norasector/fmstream/pkg/streamer/device/hackrf"
	"github.com/norasector/fmstream/pkg/streamer/device/rtlsdr"
	"github.com/norasector/fmstream/pkg/streamer/output"
	"github.com/norasector/fmstream/pkg/util"
)

func main() {
	configFile := pflag.StringP("config", "c", "fmstream.yaml", "YAML config file")
	verbose := pflag.BoolP("verbose", "v", false, "Debug logging")
	pflag.Parse()

	// stdout may carry PCM, so logs always go to stderr.
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr}).Level(zerolog.InfoLevel)

	configContents, err := os.ReadFile(*configFile)
	if err != nil {
		log.Fatal().Err(err).Msg("error reading config file")
	}
	var cfg config.Config
	if err := yaml.Unmarshal(configContents, &cfg); err != nil {
		log.Fatal().Err(err).Msg("error unmarshaling yaml file")
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid config")
	}

	if cfg.LogLevel != "" {
		level, err := zerolog.ParseLevel(cfg.LogLevel)
		if err != nil {
			log.Fatal().Err(err).Msg("invalid log level")
		}
		log.Logger = log.Logger.Level(level)
	}
	if *verbose {
		log.Logger = log.Logger.Level(zerolog.DebugLevel)
	}

	var writeAPI api.WriteAPI = &util.NopWriteAPI{}
	if cfg.InfluxDB.Host != "" {
		client := influxdb2.NewClient(cfg.InfluxDB.Host, cfg.InfluxDB.Token)
		defer client.Close()
		writeAPI = client.WriteAPI(cfg.InfluxDB.Organization, cfg.InfluxDB.Bucket)
	}

	var publisher events.Publisher = events.NopPublisher{}
	if cfg.MQTT.Broker != "" {
		p, err := events.NewMQTTPublisher(cfg.MQTT.Broker, cfg.MQTT.Topic, cfg.MQTT.ClientID, log.Logger)
		if err != nil {
			log.Fatal().Err(err).Str("broker", cfg.MQTT.Broker).Msg("failed to connect to mqtt broker")
		}
		publisher = p
	}
	defer publisher.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	var controlServer *control.Server
	if cfg.Control.Listen != "" {
		controlServer = control.NewServer(cfg.Control.Listen, reg, log.Logger)
	}

	for _, t := range cfg.Tuners {
		if t.Device == "hackrf" {
			if err := hackrf.Init(); err != nil {
				log.Fatal().Str("device", "hackrf").Err(err).Msg("failed to initialize hackRF")
			}
			defer hackrf.Exit()
			break
		}
	}

	var streamers []*streamer.Streamer
	for _, t := range cfg.Tuners {
		opts, err := streamer.OptionsFromConfig(t)
		if err != nil {
			log.Fatal().Err(err).Str("tuner", t.Name).Msg("invalid tuner config")
		}
		plan, err := opts.Plan()
		if err != nil {
			log.Fatal().Err(err).Str("tuner", t.Name).Msg("invalid rate plan")
		}

		dev, err := newDevice(t, opts, plan)
		if err != nil {
			log.Fatal().Err(err).Str("tuner", t.Name).Str("device", t.Device).Msg("failed to initialize device")
		}
		defer dev.Close()

		sinks, err := newSinks(t, plan, controlServer)
		if err != nil {
			log.Fatal().Err(err).Str("tuner", t.Name).Msg("failed to open outputs")
		}

		s, err := streamer.NewStreamer(dev, opts,
			streamer.WithInfluxDB(writeAPI),
			streamer.WithLogger(log.Logger),
			streamer.WithMetrics(metrics.NewPipeline(reg, t.Name)),
			streamer.WithEventPublisher(publisher),
			streamer.WithSinks(sinks...),
		)
		if err != nil {
			log.Fatal().Err(err).Str("tuner", t.Name).Msg("failed to create streamer")
		}
		if controlServer != nil {
			controlServer.Register(s)
		}
		streamers = append(streamers, s)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	eg, ctx := errgroup.WithContext(ctx)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	eg.Go(func() error {
		select {
		case sig := <-sigChan:
			log.Info().Str("signal", sig.String()).Msg("shutting down")
		case <-ctx.Done():
		}
		for _, s := range streamers {
			s.Stop()
		}
		return nil
	})

	var running sync.WaitGroup
	for _, s := range streamers {
		s := s
		running.Add(1)
		eg.Go(func() error {
			defer running.Done()
			return s.Start(ctx)
		})
	}

	// Every pipeline has drained; take the control server down with them.
	eg.Go(func() error {
		running.Wait()
		cancel()
		return nil
	})

	if controlServer != nil {
		eg.Go(func() error {
			return controlServer.Run(ctx)
		})
	}

	if err := eg.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatal().Err(err).Msg("exited program")
	}
}

func newDevice(t config.Tuner, opts streamer.Options, plan streamer.RatePlan) (device.Device, error) {
	log.Info().Str("tuner", t.Name).Str("device", t.Device).Msg("initializing device...")
	switch t.Device {
	case "file":
		realtime := true
		if t.PlaybackRealtime != nil {
			realtime = *t.PlaybackRealtime
		}
		return file.NewFileDevice(t.PlaybackLocation, plan.BlockLength, realtime)
	case "hackrf":
		return hackrfDevice.NewHackRFDevice()
	default:
		return rtlsdr.NewRTLSDRDevice(t.DeviceIndex, opts.PPM, plan.BlockLength)
	}
}

// newSinks opens a tuner's outputs, defaulting to raw PCM on stdout.
func newSinks(t config.Tuner, plan streamer.RatePlan, controlServer *control.Server) ([]output.Sink, error) {
	outputs := t.Outputs
	if len(outputs) == 0 {
		outputs = []config.Output{{Type: "file", Path: "-"}}
	}

	var sinks []output.Sink
	for _, o := range outputs {
		var sink output.Sink
		var err error
		switch o.Type {
		case "file":
			sink, err = output.NewFileSink(o.Path)
		case "wav":
			sink, err = output.NewWAVSink(o.Path, plan.OutputRate)
		case "tcp":
			sink, err = output.NewTCPSink(o.Listen, log.Logger)
		case "udp":
			sink, err = output.NewUDPSink(o.Host, o.Port)
		case "websocket":
			if controlServer == nil {
				return nil, config.Invalid("outputs.type", "websocket output needs control.listen")
			}
			ws := output.NewWebSocketSink(t.Name, log.Logger)
			controlServer.RegisterStream(t.Name, ws)
			sink = ws
		}
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, sink)
	}
	return sinks, nil
}
