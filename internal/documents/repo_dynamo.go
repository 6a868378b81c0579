package documents

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	ddbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// DynamoAPI is the subset of the DynamoDB client used by DynamoRepo.
type DynamoAPI interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	Scan(ctx context.Context, params *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
}

// DynamoRepo implements Repo on a DynamoDB table keyed by "id".
type DynamoRepo struct {
	Client DynamoAPI
	Table  string
}

func jsonTags(o *attributevalue.EncoderOptions) { o.TagKey = "json" }

func jsonTagsDecode(o *attributevalue.DecoderOptions) { o.TagKey = "json" }

// Create puts a new item; an existing id is rejected.
func (r *DynamoRepo) Create(ctx context.Context, doc Document) error {
	item, err := attributevalue.MarshalMapWithOptions(doc, jsonTags)
	if err != nil {
		return fmt.Errorf("encode document: %w", err)
	}
	_, err = r.Client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(r.Table),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(id)"),
	})
	if err != nil {
		return fmt.Errorf("dynamodb put table=%s id=%s: %w", r.Table, doc.ID, err)
	}
	return nil
}

func (r *DynamoRepo) GetByID(ctx context.Context, id string) (Document, error) {
	out, err := r.Client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(r.Table),
		Key:            idKey(id),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return Document{}, fmt.Errorf("dynamodb get table=%s id=%s: %w", r.Table, id, err)
	}
	if len(out.Item) == 0 {
		return Document{}, ErrNotFound
	}
	var doc Document
	if err := attributevalue.UnmarshalMapWithOptions(out.Item, &doc, jsonTagsDecode); err != nil {
		return Document{}, fmt.Errorf("decode document id=%s: %w", id, err)
	}
	return doc, nil
}

// List scans the whole table and pages in memory, newest first.
func (r *DynamoRepo) List(ctx context.Context, limit, offset int) ([]Document, error) {
	if offset < 0 {
		offset = 0
	}
	var docs []Document
	paginator := dynamodb.NewScanPaginator(r.Client, &dynamodb.ScanInput{TableName: aws.String(r.Table)})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("dynamodb scan table=%s: %w", r.Table, err)
		}
		var batch []Document
		if err := attributevalue.UnmarshalListOfMapsWithOptions(page.Items, &batch, jsonTagsDecode); err != nil {
			return nil, fmt.Errorf("decode documents: %w", err)
		}
		docs = append(docs, batch...)
	}
	sort.Slice(docs, func(i, j int) bool {
		if docs[i].UploadedAt.Equal(docs[j].UploadedAt) {
			return docs[i].ID < docs[j].ID
		}
		return docs[i].UploadedAt.After(docs[j].UploadedAt)
	})
	if offset >= len(docs) {
		return []Document{}, nil
	}
	end := len(docs)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return docs[offset:end], nil
}

// Update issues a single UpdateItem. The condition always requires the item to
// exist and, when ExpectStatus is set, to hold that status.
func (r *DynamoRepo) Update(ctx context.Context, id string, upd Update) error {
	input, err := r.updateInput(id, upd)
	if err != nil {
		return err
	}
	_, err = r.Client.UpdateItem(ctx, input)
	if err == nil {
		return nil
	}
	var condErr *ddbtypes.ConditionalCheckFailedException
	if !errors.As(err, &condErr) {
		return fmt.Errorf("dynamodb update table=%s id=%s: %w", r.Table, id, err)
	}
	if upd.ExpectStatus == "" {
		return ErrNotFound
	}
	if _, getErr := r.GetByID(ctx, id); getErr != nil {
		return getErr
	}
	return ErrStatusConflict
}

func (r *DynamoRepo) updateInput(id string, upd Update) (*dynamodb.UpdateItemInput, error) {
	names := map[string]string{"#status": "status"}
	values := map[string]ddbtypes.AttributeValue{
		":status": &ddbtypes.AttributeValueMemberS{Value: string(upd.Status)},
	}
	set := []string{"#status = :status"}
	var remove []string

	switch {
	case upd.Status == StatusFailed:
		remove = append(remove, "analysis")
	case upd.Analysis != nil:
		av, err := attributevalue.MarshalWithOptions(upd.Analysis, jsonTags)
		if err != nil {
			return nil, fmt.Errorf("encode analysis: %w", err)
		}
		set = append(set, "analysis = :analysis")
		values[":analysis"] = av
	}
	if upd.ProcessedAt != nil {
		set = append(set, "processedAt = :processedAt")
		values[":processedAt"] = &ddbtypes.AttributeValueMemberS{Value: upd.ProcessedAt.UTC().Format(time.RFC3339Nano)}
	}

	expr := "SET " + strings.Join(set, ", ")
	if len(remove) > 0 {
		expr += " REMOVE " + strings.Join(remove, ", ")
	}
	cond := "attribute_exists(id)"
	if upd.ExpectStatus != "" {
		cond += " AND #status = :expect"
		values[":expect"] = &ddbtypes.AttributeValueMemberS{Value: string(upd.ExpectStatus)}
	}

	return &dynamodb.UpdateItemInput{
		TableName:                 aws.String(r.Table),
		Key:                       idKey(id),
		UpdateExpression:          aws.String(expr),
		ConditionExpression:       aws.String(cond),
		ExpressionAttributeNames:  names,
		ExpressionAttributeValues: values,
	}, nil
}

func idKey(id string) map[string]ddbtypes.AttributeValue {
	return map[string]ddbtypes.AttributeValue{"id": &ddbtypes.AttributeValueMemberS{Value: id}}
}

var _ Repo = (*DynamoRepo)(nil)
