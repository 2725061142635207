package storage

import (
	"context"
	"fmt"
	"os"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
)

// Publisher copies a finished output archive to an external location.
// Local disk stays the source of truth for downloads; publishing is
// additive and its failures never fail the conversion job.
type Publisher interface {
	PublishOutput(ctx context.Context, ticketID string, path string) (string, error)
}

type azurePublisher struct {
	client    *azblob.Client
	container string
}

// NewAzurePublisher creates a publisher writing to one blob container.
func NewAzurePublisher(accountName, accountKey, container string) (Publisher, error) {
	credential, err := azblob.NewSharedKeyCredential(accountName, accountKey)
	if err != nil {
		return nil, err
	}

	client, err := azblob.NewClientWithSharedKeyCredential(
		fmt.Sprintf("https://%s.blob.core.windows.net", accountName),
		credential,
		nil,
	)
	if err != nil {
		return nil, err
	}

	return &azurePublisher{client: client, container: container}, nil
}

// PublishOutput uploads the archive under "<ticket_id>_output.zip" and
// returns the blob name.
func (p *azurePublisher) PublishOutput(ctx context.Context, ticketID string, path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("opening output archive: %w", err)
	}
	defer f.Close()

	blobName := fmt.Sprintf("%s_output.zip", ticketID)
	if _, err := p.client.UploadFile(ctx, p.container, blobName, f, nil); err != nil {
		return "", fmt.Errorf("upload to container %q failed: %w", p.container, err)
	}
	return blobName, nil
}
