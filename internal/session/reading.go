package session

import (
	"encoding/json"
	"fmt"
)

// Reading is one node's pre-aggregated humidity sample.
type Reading struct {
	NodeID   int     `json:"nodeId"`
	Humidity float64 `json:"humidity"`
	Raw      int     `json:"raw"`
}

// batch is the wire payload. Field order is fixed by the struct.
type batch struct {
	MeshID    string    `json:"meshId"`
	Timestamp int64     `json:"timestamp"`
	Readings  []Reading `json:"readings"`
}

// EncodeBatch renders readings as the broker payload:
//
//	{"meshId":"node-A","timestamp":1700000000,"readings":[{"nodeId":1,"humidity":55.2,"raw":710}]}
//
// A nil slice encodes as an empty array.
func EncodeBatch(meshID string, timestamp int64, readings []Reading) ([]byte, error) {
	if readings == nil {
		readings = []Reading{}
	}
	payload, err := json.Marshal(batch{
		MeshID:    meshID,
		Timestamp: timestamp,
		Readings:  readings,
	})
	if err != nil {
		return nil, fmt.Errorf("encoding batch: %w", err)
	}
	return payload, nil
}
