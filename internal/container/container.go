// Package container wires the application graph in dependency order.
package container

import (
	"github.com/gin-gonic/gin"

	"go-dataset-converter/internal/config"
	"go-dataset-converter/internal/convert"
	"go-dataset-converter/internal/logger"
	"go-dataset-converter/internal/storage"
	"go-dataset-converter/internal/ticket"
	"go-dataset-converter/internal/transport"
	"go-dataset-converter/internal/upload"
)

// Container holds every long-lived component of the service.
type Container struct {
	cfg     *config.Config
	files   *storage.LocalStore
	store   *ticket.Store
	pool    *convert.WorkerPool
	engine  *convert.Engine
	sweeper *ticket.Sweeper
	metrics *ticket.MetricsObserver
	handler *gin.Engine
}

// NewContainer builds the full graph from configuration.
func NewContainer(cfg *config.Config) (*Container, error) {
	files, err := storage.NewLocalStore(cfg.UploadRoot)
	if err != nil {
		return nil, err
	}

	events := ticket.NewPublisher()
	metrics := ticket.NewMetricsObserver()
	events.Subscribe(ticket.NewLoggingObserver())
	events.Subscribe(metrics)

	store := ticket.NewStore(files, events)

	pool := convert.NewWorkerPool(cfg.WorkerCount)
	pool.Start()

	var publisher storage.Publisher
	if cfg.AzureEnabled() {
		publisher, err = storage.NewAzurePublisher(cfg.AzureAccountName, cfg.AzureAccountKey, cfg.AzureContainer)
		if err != nil {
			return nil, err
		}
		logger.WithField("container", cfg.AzureContainer).Info("Azure output publishing enabled")
	}

	engine := convert.NewEngine(store, files, pool, publisher)
	pipeline := upload.NewPipeline(store, files, engine, cfg.UploadChunkSize)
	sweeper := ticket.NewSweeper(store, cfg.CleanupInterval, cfg.UploadTTL)
	handler := transport.NewHandler(store, pipeline, files, cfg)

	return &Container{
		cfg:     cfg,
		files:   files,
		store:   store,
		pool:    pool,
		engine:  engine,
		sweeper: sweeper,
		metrics: metrics,
		handler: handler,
	}, nil
}

func (c *Container) Config() *config.Config          { return c.cfg }
func (c *Container) Handler() *gin.Engine            { return c.handler }
func (c *Container) Sweeper() *ticket.Sweeper        { return c.sweeper }
func (c *Container) Pool() *convert.WorkerPool       { return c.pool }
func (c *Container) Store() *ticket.Store            { return c.store }
func (c *Container) Metrics() *ticket.MetricsObserver { return c.metrics }
