// Package upload streams an incoming dataset archive to a ticket-owned
// file in bounded chunks, keeping the ticket's byte counters current.
package upload

import (
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"

	"go-dataset-converter/internal/logger"
	"go-dataset-converter/internal/storage"
	"go-dataset-converter/internal/ticket"
)

// InputFormatCVAT is the annotation dialect supporting early label
// metadata extraction.
const InputFormatCVAT = "cvat_images_1_1"

// Jobs is what the pipeline launches after a successful upload. Both are
// fire-and-forget; their failures surface through ticket state.
type Jobs interface {
	ExtractLabelMeta(ticketID string)
	ProcessDataset(ticketID string)
}

// Pipeline writes uploads to disk and hands finished tickets to the
// background jobs.
type Pipeline struct {
	store     *ticket.Store
	files     *storage.LocalStore
	jobs      Jobs
	chunkSize int64
}

// NewPipeline wires a pipeline. chunkSize is clamped to a sane floor.
func NewPipeline(store *ticket.Store, files *storage.LocalStore, jobs Jobs, chunkSize int64) *Pipeline {
	if chunkSize < 4096 {
		chunkSize = 4096
	}
	return &Pipeline{store: store, files: files, jobs: jobs, chunkSize: chunkSize}
}

// Receive streams src into the ticket's dataset.zip, updating
// bytes_received after every chunk. When src is seekable the total size is
// probed up front; otherwise progress stays unknown. On success the ticket
// becomes uploaded and both background jobs are launched; on failure the
// ticket becomes error, the partial file is removed best-effort, and the
// error is returned to the caller.
func (p *Pipeline) Receive(ticketID string, src io.Reader) (int64, error) {
	dir, err := p.files.EnsureTicketDir(ticketID)
	if err != nil {
		p.store.MarkError(ticketID, err.Error())
		return 0, err
	}
	dest := p.files.UploadPath(ticketID)
	p.store.Mutate(ticketID, func(t *ticket.Ticket) {
		t.UploadPath = dest
	})

	if seeker, ok := src.(io.Seeker); ok {
		if total, err := seeker.Seek(0, io.SeekEnd); err == nil {
			if _, err := seeker.Seek(0, io.SeekStart); err == nil {
				p.store.SetTotalBytes(ticketID, total)
			}
		}
	}

	out, err := os.Create(dest)
	if err != nil {
		err = fmt.Errorf("creating upload file: %w", err)
		p.fail(ticketID, dest, dir, err)
		return 0, err
	}

	var received int64
	buf := make([]byte, p.chunkSize)
	for {
		n, readErr := src.Read(buf)
		if n > 0 {
			if _, writeErr := out.Write(buf[:n]); writeErr != nil {
				out.Close()
				writeErr = fmt.Errorf("writing upload chunk: %w", writeErr)
				p.fail(ticketID, dest, dir, writeErr)
				return received, writeErr
			}
			received += int64(n)
			p.store.AddBytes(ticketID, int64(n))
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			out.Close()
			readErr = fmt.Errorf("reading upload stream: %w", readErr)
			p.fail(ticketID, dest, dir, readErr)
			return received, readErr
		}
	}

	if err := out.Close(); err != nil {
		err = fmt.Errorf("closing upload file: %w", err)
		p.fail(ticketID, dest, dir, err)
		return received, err
	}

	p.store.MarkUploaded(ticketID, received)
	logger.WithFields(logrus.Fields{
		"ticket_id":      ticketID,
		"bytes_received": received,
	}).Info("Upload completed")

	if snap, ok := p.store.Snapshot(ticketID); ok && snap.InputFormat == InputFormatCVAT {
		p.jobs.ExtractLabelMeta(ticketID)
	}
	p.jobs.ProcessDataset(ticketID)

	return received, nil
}

func (p *Pipeline) fail(ticketID, dest, dir string, cause error) {
	p.store.MarkError(ticketID, cause.Error())

	if err := os.Remove(dest); err != nil && !os.IsNotExist(err) {
		logger.WithError(err).WithField("ticket_id", ticketID).Warn("Failed to remove partial upload")
	}
	// Removes the directory only when the partial file was the last thing in it.
	if err := os.Remove(dir); err != nil && !os.IsNotExist(err) {
		logger.WithError(err).WithField("ticket_id", ticketID).Debug("Ticket directory not empty after failed upload")
	}
}
