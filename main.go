package main

import (
	"context"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/ronygeorgen/adam-wheeler-roleplay-portal/internal/backend"
	"github.com/ronygeorgen/adam-wheeler-roleplay-portal/internal/config"
	"github.com/ronygeorgen/adam-wheeler-roleplay-portal/internal/database"
	"github.com/ronygeorgen/adam-wheeler-roleplay-portal/internal/detect"
	logger "github.com/ronygeorgen/adam-wheeler-roleplay-portal/internal/logging"
	"github.com/ronygeorgen/adam-wheeler-roleplay-portal/internal/models"
	"github.com/ronygeorgen/adam-wheeler-roleplay-portal/internal/ocr"
	"github.com/ronygeorgen/adam-wheeler-roleplay-portal/internal/repository"
	"github.com/ronygeorgen/adam-wheeler-roleplay-portal/internal/router"
	"github.com/ronygeorgen/adam-wheeler-roleplay-portal/internal/session"
)

func main() {
	projectRoot, err := os.Getwd()
	if err != nil {
		panic("failed to determine working directory: " + err.Error())
	}

	// Configuration loads first: the logger reads its section.
	if err := config.Init(projectRoot); err != nil {
		panic("failed to load configuration: " + err.Error())
	}

	// Initialize Logger
	log, err := logger.Init(projectRoot, config.Conf.Logging)
	if err != nil {
		panic("failed to initialize logger: " + err.Error())
	}
	defer log.Sync()

	log.Info("Configuration loaded successfully")
	config.Watch(log)

	// Initialize Database. The attempt journal is an operator aid; the
	// portal keeps serving without it.
	var journal session.Journal
	if err := database.Init(log); err != nil {
		log.Warn("Attempt journal database unavailable, continuing without it", zap.Error(err))
	} else {
		journal = repository.NewJournal(log)
	}

	// Score backend client
	client := backend.New(config.Conf.Backend.BaseURL, config.Conf.Backend.Timeout, log)

	// Frame report store and optional OCR engine
	frames := detect.NewStore()
	var engine detect.Engine
	if config.Conf.OCR.Enabled {
		visionEngine := ocr.NewVisionEngine(log, config.Conf.OCR.CredentialsFile)
		defer visionEngine.Close()
		engine = visionEngine
	}

	manager := session.NewManager(log, client, client, frames, engine, journal, session.Config{
		Strategies:   parseStrategies(config.Conf.Detection.Strategies),
		PollInterval: config.Conf.Detection.PollInterval,
		PollTimeout:  config.Conf.Detection.PollTimeout,
		MaxAge:       config.Conf.Detection.SessionTTL,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	manager.RunJanitor(ctx, time.Minute)

	// Setup router, passing the logger to it
	r := router.Setup(log, manager, frames, client)

	// Start the Gin server
	port := ":" + config.Conf.Server.Port
	log.Info("Server listening on http://localhost" + port)
	if err := r.Run(port); err != nil {
		log.Fatal("Failed to run Gin server", zap.Error(err))
	}
}

// parseStrategies maps the configured strategy names onto the known
// sources, dropping anything unrecognized. OCR and manual entry are not
// listed here; they are always available.
func parseStrategies(names []string) []models.DetectionSource {
	var out []models.DetectionSource
	for _, name := range names {
		switch models.DetectionSource(name) {
		case models.SourceMessage, models.SourceDOMScan, models.SourceURLScan:
			out = append(out, models.DetectionSource(name))
		}
	}
	return out
}
