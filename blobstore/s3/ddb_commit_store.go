package s3

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/hupe1980/vamana/blobstore"
)

// CurrentName is the blob name DDBCommitStore serves from DynamoDB.
const CurrentName = blobstore.CurrentName

// ErrConcurrentModification is returned when another writer committed the
// same version first.
var ErrConcurrentModification = errors.New("s3: concurrent commit")

// DDBClient is the part of *dynamodb.Client the commit store calls.
type DDBClient interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
}

var _ DDBClient = (*dynamodb.Client)(nil)

// DDBCommitStore is a Store whose CURRENT blob lives in DynamoDB.
//
// S3 has no compare-and-swap on plain PUTs, so two publishers could
// overwrite each other's CURRENT. Here every commit appends item
// (base_uri, version+1) with attribute_not_exists(version); the loser of a
// race gets ErrConcurrentModification and may retry. Snapshot blobs stay in S3.
//
// The table needs partition key base_uri (S) and sort key version (N):
//
//	aws dynamodb create-table --table-name vamana-commits \
//	  --attribute-definitions AttributeName=base_uri,AttributeType=S AttributeName=version,AttributeType=N \
//	  --key-schema AttributeName=base_uri,KeyType=HASH AttributeName=version,KeyType=RANGE \
//	  --billing-mode PAY_PER_REQUEST
type DDBCommitStore struct {
	*Store

	ddb     DDBClient
	table   string
	baseURI string
}

// NewDDBCommitStore wraps store. baseURI (conventionally "s3://bucket/prefix")
// keys the commit history, so several graphs can share one table.
func NewDDBCommitStore(store *Store, ddb DDBClient, table, baseURI string) *DDBCommitStore {
	return &DDBCommitStore{Store: store, ddb: ddb, table: table, baseURI: baseURI}
}

func (s *DDBCommitStore) Open(ctx context.Context, name string) (blobstore.Blob, error) {
	if name != CurrentName {
		return s.Store.Open(ctx, name)
	}
	c, err := s.head(ctx)
	if err != nil {
		return nil, err
	}
	if c.version == 0 {
		return nil, blobstore.ErrNotFound
	}
	return blobstore.NewBytesBlob([]byte(c.snapshot)), nil
}

func (s *DDBCommitStore) Put(ctx context.Context, name string, data []byte) error {
	if name != CurrentName {
		return s.Store.Put(ctx, name, data)
	}
	c, err := s.head(ctx)
	if err != nil {
		return err
	}
	return s.append(ctx, c.version+1, string(data))
}

// Version returns the number of commits so far.
func (s *DDBCommitStore) Version(ctx context.Context) (uint64, error) {
	c, err := s.head(ctx)
	return c.version, err
}

type commit struct {
	version  uint64
	snapshot string
}

func (s *DDBCommitStore) head(ctx context.Context) (commit, error) {
	out, err := s.ddb.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(s.table),
		KeyConditionExpression: aws.String("base_uri = :uri"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":uri": &types.AttributeValueMemberS{Value: s.baseURI},
		},
		ScanIndexForward: aws.Bool(false),
		Limit:            aws.Int32(1),
		ConsistentRead:   aws.Bool(true),
	})
	if err != nil {
		return commit{}, fmt.Errorf("s3: query commits: %w", err)
	}
	if len(out.Items) == 0 {
		return commit{}, nil
	}

	v, okV := out.Items[0]["version"].(*types.AttributeValueMemberN)
	snap, okS := out.Items[0]["snapshot"].(*types.AttributeValueMemberS)
	if !okV || !okS {
		return commit{}, fmt.Errorf("s3: malformed commit item for %s", s.baseURI)
	}
	version, err := strconv.ParseUint(v.Value, 10, 64)
	if err != nil {
		return commit{}, fmt.Errorf("s3: commit version %q: %w", v.Value, err)
	}
	return commit{version: version, snapshot: snap.Value}, nil
}

func (s *DDBCommitStore) append(ctx context.Context, version uint64, snapshot string) error {
	_, err := s.ddb.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.table),
		Item: map[string]types.AttributeValue{
			"base_uri":     &types.AttributeValueMemberS{Value: s.baseURI},
			"version":      &types.AttributeValueMemberN{Value: strconv.FormatUint(version, 10)},
			"snapshot":     &types.AttributeValueMemberS{Value: snapshot},
			"committed_at": &types.AttributeValueMemberS{Value: time.Now().UTC().Format(time.RFC3339)},
		},
		ConditionExpression: aws.String("attribute_not_exists(version)"),
	})

	var conflict *types.ConditionalCheckFailedException
	switch {
	case errors.As(err, &conflict):
		return ErrConcurrentModification
	case err != nil:
		return fmt.Errorf("s3: commit version %d: %w", version, err)
	}
	return nil
}
