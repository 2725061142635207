package convert

import (
	"archive/zip"
	"context"
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"

	"go-dataset-converter/internal/annotation"
	"go-dataset-converter/internal/logger"
	"go-dataset-converter/internal/storage"
	"go-dataset-converter/internal/ticket"
)

// Engine runs the two background jobs of a ticket: early label-metadata
// extraction and the full dataset conversion. Jobs execute on the worker
// pool; failures are funneled into ticket state, never returned to the
// caller that launched them.
type Engine struct {
	store     *ticket.Store
	files     *storage.LocalStore
	pool      *WorkerPool
	publisher storage.Publisher
}

// NewEngine wires the engine. publisher may be nil.
func NewEngine(store *ticket.Store, files *storage.LocalStore, pool *WorkerPool, publisher storage.Publisher) *Engine {
	return &Engine{store: store, files: files, pool: pool, publisher: publisher}
}

// ExtractLabelMeta launches the metadata-extraction job for a ticket.
// It runs independently of, and may race with, the full conversion; the
// conversion path never writes label metadata so the race is benign.
func (e *Engine) ExtractLabelMeta(ticketID string) {
	e.pool.Submit(func() { e.extractLabelMeta(ticketID) })
}

// ProcessDataset launches the full conversion job for a ticket.
func (e *Engine) ProcessDataset(ticketID string) {
	e.pool.Submit(func() { e.processDataset(ticketID) })
}

func (e *Engine) extractLabelMeta(ticketID string) {
	log := logger.WithFields(logrus.Fields{"ticket_id": ticketID, "job": "extract_label_meta"})

	e.store.SetState(ticketID, ticket.StateExtractingLabelMeta)

	ds, err := annotation.ParseArchive(e.files.UploadPath(ticketID))
	if err != nil {
		if !e.store.Exists(ticketID) {
			log.WithError(err).Info("Ticket gone before metadata extraction finished, aborting")
			return
		}
		e.store.MarkError(ticketID, fmt.Sprintf("Label meta extraction failed: %v", err))
		return
	}

	meta := ds.Meta
	e.store.SetLabelMeta(ticketID, &meta)
	log.WithFields(logrus.Fields{
		"image_count": meta.ImageCount,
		"box_count":   meta.BoxCount,
	}).Info("Label metadata extracted")
}

func (e *Engine) processDataset(ticketID string) {
	log := logger.WithFields(logrus.Fields{"ticket_id": ticketID, "job": "process_dataset"})

	snap, ok := e.store.Snapshot(ticketID)
	if !ok {
		return
	}

	zipPath := e.files.UploadPath(ticketID)
	if _, err := os.Stat(zipPath); err != nil {
		e.store.MarkError(ticketID, "Uploaded dataset.zip not found on disk.")
		return
	}

	variant, err := e.buildVariant(snap)
	if err != nil {
		e.store.MarkError(ticketID, err.Error())
		return
	}

	e.store.SetState(ticketID, ticket.StateProcessingDataset)
	started := time.Now()

	ds, err := annotation.ParseArchive(zipPath)
	if err != nil {
		e.failJob(ticketID, log, err)
		return
	}

	outPath := e.files.OutputPath(ticketID)
	if err := runJob(zipPath, outPath, ds, variant, log); err != nil {
		os.Remove(outPath)
		e.failJob(ticketID, log, err)
		return
	}

	// A cancel may have raced the conversion; the work is wasted but the
	// abort is quiet, matching the cooperative cancellation model.
	if !e.store.Exists(ticketID) {
		os.Remove(outPath)
		log.Info("Ticket cancelled during processing, discarding output")
		return
	}

	e.store.SetReady(ticketID, outPath)
	log.WithFields(logrus.Fields{
		"feature_type":       variant.Name(),
		"processing_time_ms": time.Since(started).Milliseconds(),
	}).Info("Dataset processing completed")

	e.publish(ticketID, outPath, log)
}

// buildVariant decodes and validates the ticket's request metadata into a
// concrete job. Unsupported feature types, missing target formats and
// invalid numeric parameters all fail here, before any output is written.
func (e *Engine) buildVariant(snap ticket.Snapshot) (jobVariant, error) {
	feature := ticket.FeatureType(snap.FeatureType)
	if !feature.Supported() {
		return nil, fmt.Errorf("unsupported feature_type: %q", snap.FeatureType)
	}

	params, err := ticket.DecodeParams(feature, snap.FeatureParams)
	if err != nil {
		return nil, err
	}
	if err := params.Validate(); err != nil {
		return nil, err
	}

	target := annotation.TargetFormat(snap.TargetFormat)
	if feature != ticket.FeatureCropObjects {
		if target == "" {
			return nil, fmt.Errorf("target format is required for %q", feature)
		}
		if !target.Supported() {
			return nil, fmt.Errorf("%w: %q", annotation.ErrUnsupportedFormat, target)
		}
	}

	switch p := params.(type) {
	case ticket.ConvertOnlyParams:
		return &convertOnlyJob{target: target, params: p}, nil
	case ticket.ResizeParams:
		return &resizeJob{target: target, params: p}, nil
	case ticket.CropParams:
		return &cropJob{params: p}, nil
	default:
		return nil, fmt.Errorf("unsupported feature_type: %q", feature)
	}
}

// failJob records the failure on the ticket, unless the ticket was
// cancelled or swept while the job ran, in which case the failure is only
// logged.
func (e *Engine) failJob(ticketID string, log *logrus.Entry, err error) {
	if !e.store.Exists(ticketID) {
		log.WithError(err).Info("Ticket gone before processing finished, aborting")
		return
	}
	e.store.MarkError(ticketID, fmt.Sprintf("Dataset processing failed: %v", err))
}

func (e *Engine) publish(ticketID, outPath string, log *logrus.Entry) {
	if e.publisher == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	blobName, err := e.publisher.PublishOutput(ctx, ticketID, outPath)
	if err != nil {
		log.WithError(err).Warn("Failed to publish output archive")
		return
	}
	log.WithField("blob", blobName).Info("Output archive published")
}

// runJob opens the archive pair and executes one variant against it.
func runJob(inPath, outPath string, ds *annotation.Dataset, v jobVariant, log *logrus.Entry) error {
	zin, err := zip.OpenReader(inPath)
	if err != nil {
		return fmt.Errorf("%w: %v", annotation.ErrArchiveUnreadable, err)
	}
	defer zin.Close()

	outFile, err := os.Create(outPath)
	if err != nil {
		return err
	}

	zout := zip.NewWriter(outFile)
	jc := &jobContext{
		in:      &zin.Reader,
		out:     zout,
		index:   buildZipIndex(&zin.Reader),
		dataset: ds,
		log:     log,
	}

	if err := v.Run(jc); err != nil {
		zout.Close()
		outFile.Close()
		return err
	}
	if err := zout.Close(); err != nil {
		outFile.Close()
		return err
	}
	return outFile.Close()
}
