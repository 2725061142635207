package convert

import (
	"encoding/json"
	"os"
	"strings"
	"testing"

	"go-dataset-converter/internal/annotation"
	"go-dataset-converter/internal/storage"
	"go-dataset-converter/internal/ticket"
)

func newTestEngine(t *testing.T) (*Engine, *ticket.Store, *storage.LocalStore) {
	t.Helper()

	files, err := storage.NewLocalStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	store := ticket.NewStore(files, nil)
	return NewEngine(store, files, NewWorkerPool(1), nil), store, files
}

func stageDataset(t *testing.T, files *storage.LocalStore, id string, images map[string][]byte) {
	t.Helper()

	if _, err := files.EnsureTicketDir(id); err != nil {
		t.Fatal(err)
	}
	src := makeDatasetZip(t, jobsTestXML, images)
	data, err := os.ReadFile(src)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(files.UploadPath(id), data, 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestProcessDatasetHappyPath(t *testing.T) {
	engine, store, files := newTestEngine(t)

	store.CreateOrUpdate("t1", ticket.CreateOptions{
		InputFormat:  "cvat_images_1_1",
		TargetFormat: annotation.FormatYOLO,
		FeatureType:  ticket.FeatureConvertOnly,
		RawParams:    json.RawMessage(`{"include_images":true}`),
	})
	stageDataset(t, files, "t1", standardImages(t))

	engine.processDataset("t1")

	snap, ok := store.Snapshot("t1")
	if !ok {
		t.Fatal("ticket disappeared")
	}
	if snap.State != ticket.StateReady {
		t.Fatalf("state = %s (%s), want ready", snap.State, snap.ErrorMessage)
	}
	if snap.OutputZipPath != files.OutputPath("t1") {
		t.Errorf("output path = %s", snap.OutputZipPath)
	}
	if _, err := os.Stat(snap.OutputZipPath); err != nil {
		t.Errorf("output archive not on disk: %v", err)
	}
}

func TestProcessDatasetMissingArchive(t *testing.T) {
	engine, store, files := newTestEngine(t)

	store.CreateOrUpdate("t1", ticket.CreateOptions{
		TargetFormat: annotation.FormatYOLO,
		FeatureType:  ticket.FeatureConvertOnly,
	})
	if _, err := files.EnsureTicketDir("t1"); err != nil {
		t.Fatal(err)
	}

	engine.processDataset("t1")

	snap, _ := store.Snapshot("t1")
	if snap.State != ticket.StateError {
		t.Fatalf("state = %s, want error", snap.State)
	}
	if snap.ErrorMessage != "Uploaded dataset.zip not found on disk." {
		t.Errorf("error message = %q", snap.ErrorMessage)
	}
}

func TestProcessDatasetValidationFailures(t *testing.T) {
	tests := []struct {
		name    string
		opts    ticket.CreateOptions
		wantMsg string
	}{
		{
			name: "unsupported feature type",
			opts: ticket.CreateOptions{
				TargetFormat: annotation.FormatYOLO,
				FeatureType:  ticket.FeatureType("upscale"),
			},
			wantMsg: "unsupported feature_type",
		},
		{
			name: "missing target format",
			opts: ticket.CreateOptions{
				FeatureType: ticket.FeatureConvertOnly,
			},
			wantMsg: "target format is required",
		},
		{
			name: "resize without dimensions",
			opts: ticket.CreateOptions{
				TargetFormat: annotation.FormatYOLO,
				FeatureType:  ticket.FeatureResizeAndConvert,
				RawParams:    json.RawMessage(`{"width":200}`),
			},
			wantMsg: "width and height are required",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			engine, store, files := newTestEngine(t)
			store.CreateOrUpdate("t1", tc.opts)
			stageDataset(t, files, "t1", standardImages(t))

			engine.processDataset("t1")

			snap, _ := store.Snapshot("t1")
			if snap.State != ticket.StateError {
				t.Fatalf("state = %s, want error", snap.State)
			}
			if !strings.Contains(snap.ErrorMessage, tc.wantMsg) {
				t.Errorf("error message = %q, want substring %q", snap.ErrorMessage, tc.wantMsg)
			}
		})
	}
}

func TestProcessDatasetCropNeedsNoTarget(t *testing.T) {
	engine, store, files := newTestEngine(t)

	store.CreateOrUpdate("t1", ticket.CreateOptions{
		FeatureType: ticket.FeatureCropObjects,
		RawParams:   json.RawMessage(`{"padding":2}`),
	})
	stageDataset(t, files, "t1", standardImages(t))

	engine.processDataset("t1")

	snap, _ := store.Snapshot("t1")
	if snap.State != ticket.StateReady {
		t.Fatalf("state = %s (%s), want ready", snap.State, snap.ErrorMessage)
	}
}

func TestProcessDatasetGoneTicket(t *testing.T) {
	engine, _, _ := newTestEngine(t)
	// Must be a no-op, not a panic.
	engine.processDataset("ghost")
}

func TestExtractLabelMeta(t *testing.T) {
	engine, store, files := newTestEngine(t)

	store.CreateOrUpdate("t1", ticket.CreateOptions{InputFormat: "cvat_images_1_1"})
	stageDataset(t, files, "t1", standardImages(t))

	engine.extractLabelMeta("t1")

	snap, _ := store.Snapshot("t1")
	if snap.State != ticket.StateLabelsMetaExtracted {
		t.Fatalf("state = %s, want labels_meta_extracted", snap.State)
	}
	meta := snap.LabelMeta
	if meta == nil || meta.ImageCount != 2 || meta.BoxCount != 2 {
		t.Fatalf("label meta = %+v", meta)
	}
	if len(meta.Labels) != 2 || meta.Labels[0].Name != "cat" || meta.Labels[1].Name != "dog" {
		t.Errorf("labels = %+v", meta.Labels)
	}
	if meta.OriginalWidth != 400 || meta.OriginalHeight != 300 {
		t.Errorf("original size = %dx%d", meta.OriginalWidth, meta.OriginalHeight)
	}
}

func TestExtractLabelMetaBadArchive(t *testing.T) {
	engine, store, files := newTestEngine(t)

	store.CreateOrUpdate("t1", ticket.CreateOptions{InputFormat: "cvat_images_1_1"})
	if _, err := files.EnsureTicketDir("t1"); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(files.UploadPath("t1"), []byte("not a zip"), 0o644); err != nil {
		t.Fatal(err)
	}

	engine.extractLabelMeta("t1")

	snap, _ := store.Snapshot("t1")
	if snap.State != ticket.StateError {
		t.Fatalf("state = %s, want error", snap.State)
	}
	if !strings.Contains(snap.ErrorMessage, "Label meta extraction failed") {
		t.Errorf("error message = %q", snap.ErrorMessage)
	}
}

func TestWorkerPoolRunsJobs(t *testing.T) {
	pool := NewWorkerPool(2)
	pool.Start()
	defer pool.Close()

	results := make(chan int, 10)
	for i := 0; i < 10; i++ {
		i := i
		pool.Submit(func() { results <- i })
	}
	pool.Wait()
	close(results)

	var count int
	for range results {
		count++
	}
	if count != 10 {
		t.Errorf("ran %d jobs, want 10", count)
	}
}
