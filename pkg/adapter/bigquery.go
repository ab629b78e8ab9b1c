package adapter

import (
	"context"
	"errors"
	"net/http"

	"cloud.google.com/go/bigquery"
	"github.com/m-mizutani/goerr/v2"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/iterator"
)

// BigQuery is the thin interface the cold store uses to reach BigQuery.
// Query covers both DML/DDL statements and row-returning queries.
type BigQuery interface {
	// EnsureDataset creates the dataset if it does not exist
	EnsureDataset(ctx context.Context, dataset string) error

	// TableExists reports whether the table exists
	TableExists(ctx context.Context, dataset, table string) (bool, error)

	// CreateTable creates a table with the given metadata
	CreateTable(ctx context.Context, dataset, table string, meta *bigquery.TableMetadata) error

	// Insert streams rows into a table
	Insert(ctx context.Context, dataset, table string, rows []bigquery.ValueSaver) error

	// Query executes a query and returns all result rows
	Query(ctx context.Context, sql string, params ...bigquery.QueryParameter) ([]map[string]bigquery.Value, error)
}

type bigqueryClient struct {
	client *bigquery.Client
}

// NewBigQuery creates a new BigQuery client
func NewBigQuery(ctx context.Context, projectID string) (BigQuery, error) {
	client, err := bigquery.NewClient(ctx, projectID)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create BigQuery client")
	}

	return &bigqueryClient{client: client}, nil
}

func (bq *bigqueryClient) EnsureDataset(ctx context.Context, dataset string) error {
	err := bq.client.Dataset(dataset).Create(ctx, &bigquery.DatasetMetadata{})
	if err != nil && !isAlreadyExists(err) {
		return goerr.Wrap(err, "failed to create dataset", goerr.V("dataset", dataset))
	}
	return nil
}

func (bq *bigqueryClient) TableExists(ctx context.Context, dataset, table string) (bool, error) {
	_, err := bq.client.Dataset(dataset).Table(table).Metadata(ctx)
	if err != nil {
		if isNotFound(err) {
			return false, nil
		}
		return false, goerr.Wrap(err, "failed to get table metadata", goerr.V("table", table))
	}
	return true, nil
}

func (bq *bigqueryClient) CreateTable(ctx context.Context, dataset, table string, meta *bigquery.TableMetadata) error {
	if err := bq.client.Dataset(dataset).Table(table).Create(ctx, meta); err != nil {
		return goerr.Wrap(err, "failed to create table", goerr.V("table", table))
	}
	return nil
}

func (bq *bigqueryClient) Insert(ctx context.Context, dataset, table string, rows []bigquery.ValueSaver) error {
	inserter := bq.client.Dataset(dataset).Table(table).Inserter()
	if err := inserter.Put(ctx, rows); err != nil {
		return goerr.Wrap(err, "failed to insert rows", goerr.V("count", len(rows)))
	}
	return nil
}

func (bq *bigqueryClient) Query(ctx context.Context, sql string, params ...bigquery.QueryParameter) ([]map[string]bigquery.Value, error) {
	q := bq.client.Query(sql)
	q.Parameters = params

	it, err := q.Read(ctx)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to run query")
	}

	var results []map[string]bigquery.Value
	for {
		var row map[string]bigquery.Value
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, goerr.Wrap(err, "failed to iterate query result")
		}
		results = append(results, row)
	}

	return results, nil
}

func isNotFound(err error) bool {
	var apiErr *googleapi.Error
	return errors.As(err, &apiErr) && apiErr.Code == http.StatusNotFound
}

func isAlreadyExists(err error) bool {
	var apiErr *googleapi.Error
	return errors.As(err, &apiErr) && apiErr.Code == http.StatusConflict
}
