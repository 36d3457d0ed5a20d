package dynamodb

import (
	"context"
	"encoding/json"
	"fmt"
	"hash/crc32"
	nethttp "net/http"
	"strconv"
	"strings"
	"time"

	"github.com/vantagebit/dynago/retry"
	"github.com/vantagebit/dynago/transport"
)

const checksumHeader = "x-amz-crc32"

// retryHandler gives service error responses their protocol-specific
// handling before the executor's default policy runs. 400 responses are
// dispatched on the __type discriminator; independently of status, the
// response checksum is validated when the header is present.
func (c *Client) retryHandler(_ context.Context, resp *transport.Response, attempt int, _ time.Duration) (*retry.Decision, error) {
	var decision *retry.Decision

	if resp.Status == nethttp.StatusBadRequest {
		var data map[string]any
		if err := json.Unmarshal(resp.Body, &data); err != nil {
			return nil, &ResponseError{Status: resp.Status, Reason: resp.Reason}
		}
		errType, _ := data["__type"].(string)

		switch {
		case strings.Contains(errType, throughputError):
			c.throughputEvents.Add(1)
			next := attempt + 1
			if next >= c.numRetries {
				return nil, &ThroughputExceededError{ResponseError{Status: resp.Status, Reason: resp.Reason, Data: data}}
			}
			decision = &retry.Decision{
				Reason:  fmt.Sprintf("%s, retry attempt %d", throughputError, attempt),
				Attempt: next,
				Delay:   c.tight.Delay(attempt),
			}

		case strings.Contains(errType, sessionExpiredError):
			renewed, err := c.provider.Renew()
			if err != nil || !renewed.HasKeys() {
				return nil, &ExpiredTokenError{
					ResponseError: ResponseError{Status: resp.Status, Reason: resp.Reason, Data: data},
					Err:           err,
				}
			}
			c.signer.UpdateProvider(c.provider)
			// The jump is relative to the current attempt, so repeated
			// expiries still exhaust the budget.
			decision = &retry.Decision{
				Reason:  "renewing session token",
				Attempt: attempt + c.numRetries - 1,
				Delay:   0,
			}

		case strings.Contains(errType, conditionalCheckError):
			return nil, &ConditionalCheckFailedError{ResponseError{Status: resp.Status, Reason: resp.Reason, Data: data}}

		case strings.Contains(errType, validationError):
			return nil, &ValidationError{ResponseError{Status: resp.Status, Reason: resp.Reason, Data: data}}

		default:
			return nil, &ResponseError{Status: resp.Status, Reason: resp.Reason, Data: data}
		}
	}

	// Checksum validation runs on every response carrying the header,
	// success or error alike. A mismatch supersedes any earlier decision.
	if c.validateChecksums {
		if d := c.checksumDecision(resp, attempt); d != nil {
			decision = d
		}
	}
	return decision, nil
}

func (c *Client) checksumDecision(resp *transport.Response, attempt int) *retry.Decision {
	header := resp.Header(checksumHeader)
	if header == "" {
		return nil
	}
	expected, err := strconv.ParseUint(header, 10, 32)
	if err != nil {
		c.log.Warn().Str("header", header).Msg("unparseable response checksum header")
		return nil
	}
	actual := crc32.ChecksumIEEE(resp.Body)
	if uint64(actual) == expected {
		return nil
	}
	return &retry.Decision{
		Reason:  fmt.Sprintf("calculated checksum %d did not match expected checksum %d", actual, expected),
		Attempt: attempt + 1,
		Delay:   c.tight.Delay(attempt),
	}
}
