package extract

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/textract"
	ttypes "github.com/aws/aws-sdk-go-v2/service/textract/types"

	"legal-backend/internal/documents"
	"legal-backend/internal/shared/storage/object"
)

// TextractAPI is the subset of the Textract client used by Textract.
type TextractAPI interface {
	DetectDocumentText(ctx context.Context, params *textract.DetectDocumentTextInput, optFns ...func(*textract.Options)) (*textract.DetectDocumentTextOutput, error)
}

// Textract runs AWS Textract line detection. When Bucket is set the document is
// referenced in S3 directly; otherwise its bytes are read from Store and sent inline.
type Textract struct {
	Client TextractAPI
	Bucket string
	// ObjectKey maps a storage key to the S3 object name. Identity when nil.
	ObjectKey func(storageKey string) string
	Store     object.ObjectStore
}

func (t *Textract) DetectLines(ctx context.Context, doc documents.Document) ([]string, error) {
	input, err := t.input(ctx, doc)
	if err != nil {
		return nil, err
	}
	out, err := t.Client.DetectDocumentText(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("textract detect: %w", err)
	}

	lines := make([]string, 0, len(out.Blocks))
	for _, block := range out.Blocks {
		if block.BlockType != ttypes.BlockTypeLine || block.Text == nil {
			continue
		}
		lines = append(lines, aws.ToString(block.Text))
	}
	return lines, nil
}

func (t *Textract) input(ctx context.Context, doc documents.Document) (*textract.DetectDocumentTextInput, error) {
	if t.Bucket != "" {
		name := doc.Location
		if t.ObjectKey != nil {
			name = t.ObjectKey(doc.Location)
		}
		return &textract.DetectDocumentTextInput{
			Document: &ttypes.Document{
				S3Object: &ttypes.S3Object{Bucket: aws.String(t.Bucket), Name: aws.String(name)},
			},
		}, nil
	}
	data, err := readObject(ctx, t.Store, doc.Location)
	if err != nil {
		return nil, err
	}
	return &textract.DetectDocumentTextInput{Document: &ttypes.Document{Bytes: data}}, nil
}

var _ OCR = (*Textract)(nil)
