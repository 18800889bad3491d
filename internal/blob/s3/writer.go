package s3blob

import (
	"context"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// archivePartSize is the upload part size, pinned at the S3 minimum (5 MiB).
// A routine archive batch is a few KiB of JSONL and lands in one part; a
// backlog accumulated while archiving was down can run much larger, and the
// upload manager splits it into parts transparently.
const archivePartSize int64 = 5 * 1024 * 1024

// Writer implements domain.BlobWriter for order-archive uploads. Every write
// goes through the SDK upload manager so batches of any size take the same
// path.
type Writer struct {
	uploader *manager.Uploader
	bucket   string
}

// NewWriter creates a Writer that uploads into the client's configured bucket.
func NewWriter(c *Client) *Writer {
	return &Writer{
		uploader: manager.NewUploader(c.S3(), func(u *manager.Uploader) {
			u.PartSize = archivePartSize
		}),
		bucket: c.Bucket(),
	}
}

// Put uploads one archive object under the given key.
func (w *Writer) Put(ctx context.Context, path string, data io.Reader, contentType string) error {
	_, err := w.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(w.bucket),
		Key:         aws.String(path),
		Body:        data,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("s3blob: put object %s: %w", path, err)
	}
	return nil
}
