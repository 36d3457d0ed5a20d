package dynamodb

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// GetItemOptions tunes a GetItem call.
type GetItemOptions struct {
	AttributesToGet []string
	ConsistentRead  bool
}

// WriteOptions tunes PutItem, UpdateItem and DeleteItem calls.
type WriteOptions struct {
	// Expected is the service's Expected conditional-write document.
	Expected map[string]any
	// ReturnValues controls the return of pre-change attribute values,
	// for example "ALL_OLD".
	ReturnValues string
}

// QueryOptions tunes a Query call.
type QueryOptions struct {
	RangeKeyCondition map[string]any
	AttributesToGet   []string
	Limit             int
	Count             bool
	ConsistentRead    bool
	// ScanIndexBackward reverses index traversal; the default is forward.
	ScanIndexBackward bool
	ExclusiveStartKey map[string]any
}

// ScanOptions tunes a Scan call.
type ScanOptions struct {
	ScanFilter        map[string]any
	AttributesToGet   []string
	Limit             int
	Count             bool
	ExclusiveStartKey map[string]any
}

// ListTables returns a document with a TableNames list and, when the listing
// is incomplete, a LastEvaluatedTableName to pass as startTable on the next
// call. A non-positive limit is omitted.
func (c *Client) ListTables(ctx context.Context, limit int, startTable string) (map[string]any, error) {
	data := map[string]any{}
	if limit > 0 {
		data["Limit"] = limit
	}
	if startTable != "" {
		data["ExclusiveStartTableName"] = startTable
	}
	return c.MakeRequest(ctx, "ListTables", data)
}

// DescribeTable returns the table's state, key schema and creation time.
func (c *Client) DescribeTable(ctx context.Context, tableName string) (map[string]any, error) {
	return c.MakeRequest(ctx, "DescribeTable", map[string]any{"TableName": tableName})
}

// CreateTable adds a new table. The schema and provisioned throughput
// arguments are the service's KeySchema and ProvisionedThroughput documents.
func (c *Client) CreateTable(ctx context.Context, tableName string, schema, provisionedThroughput map[string]any) (map[string]any, error) {
	return c.MakeRequest(ctx, "CreateTable", map[string]any{
		"TableName":             tableName,
		"KeySchema":             schema,
		"ProvisionedThroughput": provisionedThroughput,
	})
}

// UpdateTable changes the table's provisioned throughput.
func (c *Client) UpdateTable(ctx context.Context, tableName string, provisionedThroughput map[string]any) (map[string]any, error) {
	return c.MakeRequest(ctx, "UpdateTable", map[string]any{
		"TableName":             tableName,
		"ProvisionedThroughput": provisionedThroughput,
	})
}

// DeleteTable removes a table and all of its items.
func (c *Client) DeleteTable(ctx context.Context, tableName string) (map[string]any, error) {
	return c.MakeRequest(ctx, "DeleteTable", map[string]any{"TableName": tableName})
}

// GetItem returns the attributes of the item matching key. When the response
// carries no Item, a KeyNotFoundError is returned.
func (c *Client) GetItem(ctx context.Context, tableName string, key map[string]any, opts *GetItemOptions) (map[string]any, error) {
	data := map[string]any{
		"TableName": tableName,
		"Key":       key,
	}
	if opts != nil {
		if len(opts.AttributesToGet) > 0 {
			data["AttributesToGet"] = opts.AttributesToGet
		}
		if opts.ConsistentRead {
			data["ConsistentRead"] = true
		}
	}
	result, err := c.MakeRequest(ctx, "GetItem", data)
	if err != nil {
		return nil, err
	}
	if _, ok := result["Item"]; !ok {
		return nil, &KeyNotFoundError{TableName: tableName}
	}
	return result, nil
}

// BatchGetItem returns attributes for multiple items across multiple tables.
// An empty request returns an empty document without a service call.
func (c *Client) BatchGetItem(ctx context.Context, requestItems map[string]any) (map[string]any, error) {
	if len(requestItems) == 0 {
		return map[string]any{}, nil
	}
	return c.MakeRequest(ctx, "BatchGetItem", map[string]any{"RequestItems": requestItems})
}

// BatchWriteItem puts or deletes several items across multiple tables in a
// single call.
func (c *Client) BatchWriteItem(ctx context.Context, requestItems map[string]any) (map[string]any, error) {
	return c.MakeRequest(ctx, "BatchWriteItem", map[string]any{"RequestItems": requestItems})
}

// PutItem creates a new item or fully replaces an existing one with the same
// primary key. A conditional put is expressed through opts.Expected.
func (c *Client) PutItem(ctx context.Context, tableName string, item map[string]any, opts *WriteOptions) (map[string]any, error) {
	data := map[string]any{
		"TableName": tableName,
		"Item":      item,
	}
	applyWriteOptions(data, opts)
	return c.MakeRequest(ctx, "PutItem", data)
}

// UpdateItem edits the attributes of the item matching key.
func (c *Client) UpdateItem(ctx context.Context, tableName string, key, attributeUpdates map[string]any, opts *WriteOptions) (map[string]any, error) {
	data := map[string]any{
		"TableName":        tableName,
		"Key":              key,
		"AttributeUpdates": attributeUpdates,
	}
	applyWriteOptions(data, opts)
	return c.MakeRequest(ctx, "UpdateItem", data)
}

// DeleteItem removes the item matching key.
func (c *Client) DeleteItem(ctx context.Context, tableName string, key map[string]any, opts *WriteOptions) (map[string]any, error) {
	data := map[string]any{
		"TableName": tableName,
		"Key":       key,
	}
	applyWriteOptions(data, opts)
	return c.MakeRequest(ctx, "DeleteItem", data)
}

// Query returns the items matching a hash key value, optionally narrowed by
// a range key condition.
func (c *Client) Query(ctx context.Context, tableName string, hashKeyValue map[string]any, opts *QueryOptions) (map[string]any, error) {
	data := map[string]any{
		"TableName":        tableName,
		"HashKeyValue":     hashKeyValue,
		"ScanIndexForward": true,
	}
	if opts != nil {
		if len(opts.RangeKeyCondition) > 0 {
			data["RangeKeyCondition"] = opts.RangeKeyCondition
		}
		if len(opts.AttributesToGet) > 0 {
			data["AttributesToGet"] = opts.AttributesToGet
		}
		if opts.Limit > 0 {
			data["Limit"] = opts.Limit
		}
		if opts.Count {
			data["Count"] = true
		}
		if opts.ConsistentRead {
			data["ConsistentRead"] = true
		}
		if opts.ScanIndexBackward {
			data["ScanIndexForward"] = false
		}
		if len(opts.ExclusiveStartKey) > 0 {
			data["ExclusiveStartKey"] = opts.ExclusiveStartKey
		}
	}
	return c.MakeRequest(ctx, "Query", data)
}

// Scan returns the items of a table, optionally filtered.
func (c *Client) Scan(ctx context.Context, tableName string, opts *ScanOptions) (map[string]any, error) {
	data := map[string]any{"TableName": tableName}
	if opts != nil {
		if len(opts.ScanFilter) > 0 {
			data["ScanFilter"] = opts.ScanFilter
		}
		if len(opts.AttributesToGet) > 0 {
			data["AttributesToGet"] = opts.AttributesToGet
		}
		if opts.Limit > 0 {
			data["Limit"] = opts.Limit
		}
		if opts.Count {
			data["Count"] = true
		}
		if len(opts.ExclusiveStartKey) > 0 {
			data["ExclusiveStartKey"] = opts.ExclusiveStartKey
		}
	}
	return c.MakeRequest(ctx, "Scan", data)
}

// ParallelScan runs a segmented scan across totalSegments concurrent
// workers and returns the per-segment result documents, indexed by segment.
// The first failing segment cancels the rest.
func (c *Client) ParallelScan(ctx context.Context, tableName string, totalSegments int, opts *ScanOptions) ([]map[string]any, error) {
	if totalSegments < 1 {
		totalSegments = 1
	}
	results := make([]map[string]any, totalSegments)

	g, ctx := errgroup.WithContext(ctx)
	for segment := 0; segment < totalSegments; segment++ {
		g.Go(func() error {
			data := map[string]any{
				"TableName":     tableName,
				"Segment":       segment,
				"TotalSegments": totalSegments,
			}
			if opts != nil {
				if len(opts.ScanFilter) > 0 {
					data["ScanFilter"] = opts.ScanFilter
				}
				if len(opts.AttributesToGet) > 0 {
					data["AttributesToGet"] = opts.AttributesToGet
				}
				if opts.Limit > 0 {
					data["Limit"] = opts.Limit
				}
				if opts.Count {
					data["Count"] = true
				}
			}
			result, err := c.MakeRequest(ctx, "Scan", data)
			if err != nil {
				return err
			}
			results[segment] = result
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func applyWriteOptions(data map[string]any, opts *WriteOptions) {
	if opts == nil {
		return
	}
	if len(opts.Expected) > 0 {
		data["Expected"] = opts.Expected
	}
	if opts.ReturnValues != "" {
		data["ReturnValues"] = opts.ReturnValues
	}
}
