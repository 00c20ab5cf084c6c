package main

import (
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/daisymeal/cyberdefense/internal/adapters/detection"
	"github.com/daisymeal/cyberdefense/internal/adapters/hardware"
	"github.com/daisymeal/cyberdefense/internal/adapters/output"
	"github.com/daisymeal/cyberdefense/internal/app"
	"github.com/daisymeal/cyberdefense/internal/domain"
	"github.com/daisymeal/cyberdefense/internal/ports"
)

// pipeline is everything the commands share: the inspection service and
// the sinks hanging off it.
type pipeline struct {
	cfg        app.Config
	hardware   hardware.Device
	scanner    *detection.SignatureScanner
	service    *app.Service
	dispatcher *app.AlertDispatcher
	memory     *output.MemoryAlerter
	sources    *output.SourceTracker
	metrics    *domain.InspectionMetrics
	prom       *output.PrometheusMetrics
}

func buildPipeline(cfg app.Config) (*pipeline, error) {
	p := &pipeline{cfg: cfg}

	p.hardware = hardware.NewProber(cfg.Hardware.Device).Detect()

	table, err := detection.BuildSignatureTable(cfg.Detection.Signatures)
	if err != nil {
		return nil, fmt.Errorf("build signature table: %w", err)
	}
	p.scanner = detection.NewSignatureScanner(table)
	guard := detection.NewSizeGuard(cfg.Detection.MaxDeclaredSize)

	log.Debug().
		Int("signatures", table.Len()).
		Bool("prefiltered", table.PreFiltered()).
		Int("max_declared_size", guard.MaxBytes()).
		Msg("Inspection pipeline loaded")

	p.memory = output.NewMemoryAlerter(cfg.Alerts.MemorySize)
	alerters := []ports.Alerter{p.memory}

	if cfg.Output.JSONEnabled {
		alerters = append(alerters, output.NewJSONAlerter(output.JSONAlerterConfig{
			MinLevel: cfg.Output.JSONMinLevel,
		}))
	}

	if cfg.Output.NATSURL != "" {
		natsAlerter, err := output.NewNATSAlerter(cfg.Output.NATSURL, cfg.Output.NATSSubject)
		if err != nil {
			return nil, err
		}
		alerters = append(alerters, natsAlerter)
	}

	p.dispatcher = app.NewAlertDispatcher(cfg.Alerts.BufferSize, alerters...)
	p.metrics = domain.NewInspectionMetrics()
	p.service = app.NewService(app.NewInspector(guard, p.scanner), string(p.hardware), p.metrics, p.dispatcher)

	p.sources, err = output.NewSourceTracker(cfg.Sources.CacheSize)
	if err != nil {
		return nil, err
	}
	p.service.AddObserver(p.sources)

	if cfg.Output.MetricsEnabled {
		p.prom = output.NewPrometheusMetrics("cyberdefense", p.metrics)
		p.prom.SetSignatureCount(p.scanner.SignatureCount())
		p.service.AddObserver(p.prom)
		p.dispatcher.AddSubscriber(p.prom)
	}

	return p, nil
}

func (p *pipeline) startMetrics() error {
	if p.prom == nil {
		return nil
	}
	return p.prom.StartServer(output.MetricsConfig{
		Port: p.cfg.Output.MetricsPort,
		Path: "/metrics",
	})
}
