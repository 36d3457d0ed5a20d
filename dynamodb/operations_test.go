package dynamodb

import (
	"context"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListTablesPayload(t *testing.T) {
	s := newScriptedServer(t, cannedResponse{status: 200, body: `{"TableNames": []}`})
	client := newTestClient(t, testConfig(t, s, 3))

	_, err := client.ListTables(context.Background(), 5, "users")
	require.NoError(t, err)

	req := s.request(0)
	assert.Equal(t, "DynamoDB_20111205.ListTables", req.target)
	assert.Equal(t, float64(5), req.body["Limit"])
	assert.Equal(t, "users", req.body["ExclusiveStartTableName"])
}

func TestGetItemReturnsItem(t *testing.T) {
	s := newScriptedServer(t, cannedResponse{status: 200, body: `{"Item": {"name": {"S": "alice"}}}`})
	client := newTestClient(t, testConfig(t, s, 3))

	result, err := client.GetItem(context.Background(), "users", map[string]any{
		"HashKeyElement": map[string]any{"S": "alice"},
	}, &GetItemOptions{ConsistentRead: true})
	require.NoError(t, err)
	assert.Contains(t, result, "Item")

	req := s.request(0)
	assert.Equal(t, "DynamoDB_20111205.GetItem", req.target)
	assert.Equal(t, "users", req.body["TableName"])
	assert.Equal(t, true, req.body["ConsistentRead"])
}

func TestGetItemMissingItemIsKeyNotFound(t *testing.T) {
	s := newScriptedServer(t, cannedResponse{status: 200, body: `{"ConsumedCapacityUnits": 0.5}`})
	client := newTestClient(t, testConfig(t, s, 3))

	_, err := client.GetItem(context.Background(), "users", map[string]any{
		"HashKeyElement": map[string]any{"S": "nobody"},
	}, nil)

	var notFound *KeyNotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, "users", notFound.TableName)
}

func TestBatchGetItemEmptyRequestSkipsCall(t *testing.T) {
	s := newScriptedServer(t, cannedResponse{status: 200, body: `{}`})
	client := newTestClient(t, testConfig(t, s, 3))

	result, err := client.BatchGetItem(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, result)
	assert.Equal(t, 0, s.hits())
}

func TestBatchWriteItemPayload(t *testing.T) {
	s := newScriptedServer(t, cannedResponse{status: 200, body: `{"Responses": {}}`})
	client := newTestClient(t, testConfig(t, s, 3))

	_, err := client.BatchWriteItem(context.Background(), map[string]any{
		"users": []any{map[string]any{"PutRequest": map[string]any{"Item": map[string]any{}}}},
	})
	require.NoError(t, err)
	assert.Contains(t, s.request(0).body, "RequestItems")
}

func TestPutItemAppliesWriteOptions(t *testing.T) {
	s := newScriptedServer(t, cannedResponse{status: 200, body: `{}`})
	client := newTestClient(t, testConfig(t, s, 3))

	_, err := client.PutItem(context.Background(), "users",
		map[string]any{"name": map[string]any{"S": "alice"}},
		&WriteOptions{
			Expected:     map[string]any{"name": map[string]any{"Exists": false}},
			ReturnValues: "ALL_OLD",
		})
	require.NoError(t, err)

	body := s.request(0).body
	assert.Contains(t, body, "Expected")
	assert.Equal(t, "ALL_OLD", body["ReturnValues"])
}

func TestUpdateItemPayload(t *testing.T) {
	s := newScriptedServer(t, cannedResponse{status: 200, body: `{}`})
	client := newTestClient(t, testConfig(t, s, 3))

	_, err := client.UpdateItem(context.Background(), "users",
		map[string]any{"HashKeyElement": map[string]any{"S": "alice"}},
		map[string]any{"age": map[string]any{"Value": map[string]any{"N": "31"}, "Action": "PUT"}},
		nil)
	require.NoError(t, err)

	body := s.request(0).body
	assert.Equal(t, "DynamoDB_20111205.UpdateItem", s.request(0).target)
	assert.Contains(t, body, "AttributeUpdates")
}

func TestDeleteItemPayload(t *testing.T) {
	s := newScriptedServer(t, cannedResponse{status: 200, body: `{}`})
	client := newTestClient(t, testConfig(t, s, 3))

	_, err := client.DeleteItem(context.Background(), "users",
		map[string]any{"HashKeyElement": map[string]any{"S": "alice"}},
		&WriteOptions{ReturnValues: "ALL_OLD"})
	require.NoError(t, err)
	assert.Equal(t, "ALL_OLD", s.request(0).body["ReturnValues"])
}

func TestQueryDefaultsToForwardTraversal(t *testing.T) {
	s := newScriptedServer(t, cannedResponse{status: 200, body: `{"Items": []}`})
	client := newTestClient(t, testConfig(t, s, 3))

	_, err := client.Query(context.Background(), "users", map[string]any{"S": "alice"}, nil)
	require.NoError(t, err)
	assert.Equal(t, true, s.request(0).body["ScanIndexForward"])
}

func TestQueryBackwardTraversalAndConditions(t *testing.T) {
	s := newScriptedServer(t, cannedResponse{status: 200, body: `{"Items": []}`})
	client := newTestClient(t, testConfig(t, s, 3))

	_, err := client.Query(context.Background(), "users", map[string]any{"S": "alice"}, &QueryOptions{
		RangeKeyCondition: map[string]any{"AttributeValueList": []any{}, "ComparisonOperator": "GT"},
		Limit:             10,
		ScanIndexBackward: true,
	})
	require.NoError(t, err)

	body := s.request(0).body
	assert.Equal(t, false, body["ScanIndexForward"])
	assert.Equal(t, float64(10), body["Limit"])
	assert.Contains(t, body, "RangeKeyCondition")
}

func TestScanPayload(t *testing.T) {
	s := newScriptedServer(t, cannedResponse{status: 200, body: `{"Items": []}`})
	client := newTestClient(t, testConfig(t, s, 3))

	_, err := client.Scan(context.Background(), "users", &ScanOptions{
		ScanFilter: map[string]any{"age": map[string]any{"ComparisonOperator": "GT"}},
		Count:      true,
	})
	require.NoError(t, err)

	body := s.request(0).body
	assert.Equal(t, "users", body["TableName"])
	assert.Equal(t, true, body["Count"])
	assert.Contains(t, body, "ScanFilter")
}

func TestParallelScanCoversAllSegments(t *testing.T) {
	s := newScriptedServer(t, cannedResponse{status: 200, body: `{"Items": []}`})
	client := newTestClient(t, testConfig(t, s, 3))

	results, err := client.ParallelScan(context.Background(), "users", 4, nil)
	require.NoError(t, err)
	require.Len(t, results, 4)
	require.Equal(t, 4, s.hits())

	segments := make([]int, 0, 4)
	for i := 0; i < 4; i++ {
		body := s.request(i).body
		assert.Equal(t, float64(4), body["TotalSegments"])
		segments = append(segments, int(body["Segment"].(float64)))
	}
	sort.Ints(segments)
	assert.Equal(t, []int{0, 1, 2, 3}, segments)
}

func TestParallelScanFailureCancels(t *testing.T) {
	s := newScriptedServer(t, cannedResponse{status: 400, body: errorBody(validationError)})
	client := newTestClient(t, testConfig(t, s, 3))

	_, err := client.ParallelScan(context.Background(), "users", 3, nil)

	var valErr *ValidationError
	assert.ErrorAs(t, err, &valErr)
}
