// Package dynamodb is the low-level client for the document store API.
//
// Operations map one-to-one onto API actions. Request payloads and results
// are the JSON documents defined by the service, carried as map[string]any;
// no higher-level object mapping is done at this layer.
//
// Every call funnels through MakeRequest, which executes the action through
// the transport engine with the protocol's retry budget and a response
// classifier handling the service's 400-level error taxonomy: throughput
// errors retry on a tight deterministic curve, an expired session token
// triggers credential renewal with one final attempt, conditional-check and
// validation failures surface immediately as typed errors. Response body
// checksums are validated on every attempt when the service provides them.
package dynamodb
