package memory

import (
	"encoding/json"
	"fmt"
)

// Buckets lists the state table keys written by durable backends, one JSON
// payload per bucket.
var Buckets = []string{"records", "holes", "prices", "metadata", "proceeds", "fees"}

// EncodeBuckets serializes a snapshot into per-bucket JSON payloads.
func EncodeBuckets(snapshot Snapshot) (map[string][]byte, error) {
	out := make(map[string][]byte, len(Buckets))
	for _, bucket := range Buckets {
		var (
			data []byte
			err  error
		)
		switch bucket {
		case "records":
			data, err = json.Marshal(snapshot.Records)
		case "holes":
			data, err = json.Marshal(snapshot.Holes)
		case "prices":
			data, err = json.Marshal(snapshot.Prices)
		case "metadata":
			data, err = json.Marshal(snapshot.Metadata)
		case "proceeds":
			data, err = json.Marshal(snapshot.Proceeds)
		case "fees":
			data, err = json.Marshal(snapshot.Fees)
		}
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", bucket, err)
		}
		out[bucket] = data
	}
	return out, nil
}

// DecodeBuckets rebuilds a snapshot from per-bucket payloads. Unknown buckets
// and empty payloads are ignored.
func DecodeBuckets(payloads map[string][]byte) (Snapshot, error) {
	var snapshot Snapshot
	for bucket, payload := range payloads {
		if len(payload) == 0 {
			continue
		}
		var target any
		switch bucket {
		case "records":
			target = &snapshot.Records
		case "holes":
			target = &snapshot.Holes
		case "prices":
			target = &snapshot.Prices
		case "metadata":
			target = &snapshot.Metadata
		case "proceeds":
			target = &snapshot.Proceeds
		case "fees":
			target = &snapshot.Fees
		default:
			continue
		}
		if err := json.Unmarshal(payload, target); err != nil {
			return Snapshot{}, fmt.Errorf("decode %s: %w", bucket, err)
		}
	}
	return snapshot, nil
}
