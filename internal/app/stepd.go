// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/relabs-tech/walking_synth/internal/config"
	"github.com/relabs-tech/walking_synth/internal/pipeline"
	"github.com/relabs-tech/walking_synth/internal/sensors"
	"github.com/relabs-tech/walking_synth/internal/signals"
	"github.com/relabs-tech/walking_synth/internal/step"
	"github.com/relabs-tech/walking_synth/internal/store"
	"github.com/relabs-tech/walking_synth/internal/tempo"
	"github.com/relabs-tech/walking_synth/internal/transport"
)

// statusInterval is how often stepd republishes its status while idle, so
// elapsed time keeps moving on the displays.
const statusInterval = time.Second

func pipelineConfig(cfg *config.Config) pipeline.Config {
	return pipeline.Config{
		Signal: signals.Options{
			Mode:  cfg.SignalMode,
			Kinds: cfg.SignalKinds,
			Alpha: cfg.GravityAlpha,
			Scale: cfg.SignalScale,
		},
		Refractory:   time.Duration(cfg.StepRefractoryMS) * time.Millisecond,
		Window:       cfg.TempoWindow,
		StepTimeout:  time.Duration(cfg.StepTimeoutMS) * time.Millisecond,
		ResumeWindow: time.Duration(cfg.ResumeWindowMS) * time.Millisecond,
	}
}

// stepService owns the pipeline and answers control commands.
type stepService struct {
	p      *pipeline.Pipeline
	file   *store.ThresholdFile
	status transport.Publisher
}

func newStepService(cfg *config.Config, src pipeline.Source, file *store.ThresholdFile, status transport.Publisher) *stepService {
	th := step.NewThreshold(cfg.ThresholdMin, cfg.ThresholdMax, cfg.ThresholdInit)
	if v, err := store.Restore(file, th); err != nil {
		log.Printf("stepd: could not load saved threshold from %s, using %.1f: %v", file.Path(), v, err)
	} else {
		log.Printf("stepd: threshold %.1f (range %.0f-%.0f)", v, th.Min(), th.Max())
	}

	s := &stepService{
		p:      pipeline.New(pipelineConfig(cfg), th, src),
		file:   file,
		status: status,
	}
	s.p.AddSink(pipeline.SinkFunc(s.publishState))
	return s
}

func (s *stepService) snapshot(st tempo.State) transport.Status {
	th := s.p.Threshold()
	return transport.Status{
		State:        st,
		Threshold:    th.Get(),
		ThresholdMin: th.Min(),
		ThresholdMax: th.Max(),
		Running:      s.p.Running(),
		ElapsedMs:    s.p.Elapsed().Milliseconds(),
		Kinds:        s.p.Kinds(),
		Faults:       s.p.Faults(),
	}
}

func (s *stepService) publishState(st tempo.State) {
	if s.status == nil {
		return
	}
	if err := s.status.Publish(s.snapshot(st)); err != nil {
		log.Printf("stepd: status publish error: %v", err)
	}
}

func (s *stepService) publish() { s.publishState(s.p.Snapshot()) }

func (s *stepService) SetThreshold(v float64) float64 {
	got := s.p.SetThreshold(v)
	log.Printf("stepd: threshold set to %.1f", got)
	return got
}

func (s *stepService) NudgeThreshold(delta float64) float64 {
	th := s.p.Threshold()
	return s.SetThreshold(th.Get() + delta)
}

func (s *stepService) SaveThreshold() error {
	v, err := store.Persist(s.file, s.p.Threshold())
	if err != nil {
		return err
	}
	log.Printf("stepd: threshold %.1f saved to %s", v, s.file.Path())
	return nil
}

func (s *stepService) Reset()                   { s.p.Reset() }
func (s *stepService) SetKinds(k signals.Kinds) { s.p.SetKinds(k) }
func (s *stepService) Start() error             { return s.p.Start() }
func (s *stepService) Stop()                    { s.p.Stop() }

// RunStepd runs the step/tempo pipeline. Samples come from MQTT, or straight
// from the sensor (or the mock walker) when local is set.
func RunStepd(local, mock bool) error {
	log.Println("starting walking step service")

	cfg := config.Get()

	client, err := transport.ConnectMQTT(cfg.MQTTBroker, cfg.MQTTClientIDStepd)
	if err != nil {
		return err
	}
	defer client.Disconnect(250)
	log.Printf("stepd: connected to MQTT broker at %s", cfg.MQTTBroker)

	var src pipeline.Source
	if local {
		reader, err := newReader(cfg, mock)
		if err != nil {
			return err
		}
		src = sensors.NewPoller(reader, sampleInterval(cfg))
		log.Printf("stepd: polling sensor every %dms", cfg.IMUSampleInterval)
	} else {
		src = transport.NewMQTTSource(client, cfg.TopicSamples)
		log.Printf("stepd: reading samples from %s", cfg.TopicSamples)
	}

	var status transport.Fanout
	if cfg.UsesMQTT() {
		status = append(status, transport.NewMQTTPublisher(client, cfg.TopicTempo, true))
	}
	if cfg.UsesNATS() {
		// the NATS connection is named after the MQTT client ID
		nc, err := transport.ConnectNATS(cfg.NATSURL, cfg.MQTTClientIDStepd)
		if err != nil {
			return err
		}
		defer transport.DrainNATS(nc)
		status = append(status, transport.NewNATSPublisher(nc, cfg.NATSSubjectTempo))
		log.Printf("stepd: publishing status on NATS %s", cfg.NATSSubjectTempo)
	}

	svc := newStepService(cfg, src, store.NewThresholdFile(cfg.ThresholdFile), status)

	if cfg.TopicSignal != "" {
		sig := transport.NewMQTTPublisher(client, cfg.TopicSignal, false)
		svc.p.AddSignalSink(pipeline.SignalSinkFunc(func(v signals.Value) {
			if v.Kinds == signals.KindNone {
				return
			}
			if err := sig.Publish(v); err != nil {
				log.Printf("stepd: signal publish error: %v", err)
			}
		}))
	}

	ctl, err := transport.SubscribeControl(client, cfg.TopicControl, svc, func(cmd transport.Command) {
		log.Printf("stepd: applied %q", cmd.Cmd)
		svc.publish()
	})
	if err != nil {
		return err
	}
	defer ctl.Unsubscribe()
	log.Printf("stepd: listening for commands on %s", cfg.TopicControl)

	if err := svc.Start(); err != nil {
		return err
	}
	defer svc.Stop()
	svc.publish()

	ticker := time.NewTicker(statusInterval)
	defer ticker.Stop()

	// Wait for Ctrl+C
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	for {
		select {
		case <-ticker.C:
			svc.publish()
		case <-sigCh:
			st := svc.p.Snapshot()
			log.Printf("stepd: shutting down after %d steps", st.StepCount)
			return nil
		}
	}
}
