// Package billrpc defines the BillService wire contract: request and response
// messages, procedure names, the JSON codec, and Connect handler/client
// constructors shared by the server and its tests.
package billrpc

import (
	"encoding/json"
	"fmt"
)

// CodecName is registered under Connect's "json" name, so clients speak
// application/json (Connect protocol) or application/grpc+json.
const CodecName = "json"

// JSONCodec marshals plain Go message structs with encoding/json.
type JSONCodec struct{}

// Name implements connect.Codec.
func (JSONCodec) Name() string { return CodecName }

// Marshal implements connect.Codec.
func (JSONCodec) Marshal(msg any) ([]byte, error) {
	data, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("marshal %T: %w", msg, err)
	}
	return data, nil
}

// Unmarshal implements connect.Codec. An empty payload leaves msg at its zero value.
func (JSONCodec) Unmarshal(data []byte, msg any) error {
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, msg); err != nil {
		return fmt.Errorf("unmarshal %T: %w", msg, err)
	}
	return nil
}
