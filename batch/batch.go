// Package batch hands materialized delivery jobs to an external queue
// in fixed-size, paced chunks.
//
// The orchestrator materializes one Item per recipient and gives the
// whole slice to a Dispatcher. The Dispatcher chunks the slice,
// serializes every chunk with a Codec, and enqueues the payloads with
// a pause between chunks so a large broadcast never floods the
// downstream provider. A failed chunk is recorded and skipped, never
// fatal to the rest of the batch.
package batch

import (
	"encoding/json"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/squidi0n/fluxao-sub000/id"
)

// Item is one recipient's delivery job as it crosses the queue
// boundary.
type Item struct {
	JobID        id.JobID        `json:"job_id"`
	IssueID      id.IssueID      `json:"issue_id"`
	SubscriberID id.SubscriberID `json:"subscriber_id"`
	Dedupe       string          `json:"dedupe"`
}

// Codec defines the serialization contract for queue payloads.
type Codec interface {
	// Encode serializes a chunk of items to bytes.
	Encode(items []Item) ([]byte, error)

	// Decode deserializes bytes back into items.
	Decode(data []byte) ([]Item, error)

	// Name returns the codec identifier (e.g., "json", "msgpack").
	Name() string
}

// CodecName constants for format negotiation.
const (
	CodecNameJSON    = "json"
	CodecNameMsgpack = "msgpack"
)

// GetCodec returns a codec by name. Defaults to JSON.
func GetCodec(name string) Codec {
	switch name {
	case CodecNameMsgpack:
		return &MsgpackCodec{}
	default:
		return &JSONCodec{}
	}
}

// JSONCodec encodes chunks as JSON.
type JSONCodec struct{}

func (c *JSONCodec) Encode(items []Item) ([]byte, error) {
	return json.Marshal(items)
}

func (c *JSONCodec) Decode(data []byte) ([]Item, error) {
	var items []Item
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, err
	}
	return items, nil
}

func (c *JSONCodec) Name() string { return CodecNameJSON }

// MsgpackCodec encodes chunks as MessagePack. IDs travel as their
// string form so the payload stays readable by non-Go consumers.
type MsgpackCodec struct{}

type msgpackItem struct {
	JobID        string `msgpack:"job_id"`
	IssueID      string `msgpack:"issue_id"`
	SubscriberID string `msgpack:"subscriber_id"`
	Dedupe       string `msgpack:"dedupe"`
}

func (c *MsgpackCodec) Encode(items []Item) ([]byte, error) {
	wire := make([]msgpackItem, len(items))
	for i, it := range items {
		wire[i] = msgpackItem{
			JobID:        it.JobID.String(),
			IssueID:      it.IssueID.String(),
			SubscriberID: it.SubscriberID.String(),
			Dedupe:       it.Dedupe,
		}
	}
	return msgpack.Marshal(wire)
}

func (c *MsgpackCodec) Decode(data []byte) ([]Item, error) {
	var wire []msgpackItem
	if err := msgpack.Unmarshal(data, &wire); err != nil {
		return nil, err
	}
	items := make([]Item, len(wire))
	for i, w := range wire {
		jobID, err := id.ParseWithPrefix(w.JobID, id.PrefixJob)
		if err != nil {
			return nil, err
		}
		issueID, err := id.ParseWithPrefix(w.IssueID, id.PrefixIssue)
		if err != nil {
			return nil, err
		}
		subID, err := id.ParseWithPrefix(w.SubscriberID, id.PrefixSubscriber)
		if err != nil {
			return nil, err
		}
		items[i] = Item{JobID: jobID, IssueID: issueID, SubscriberID: subID, Dedupe: w.Dedupe}
	}
	return items, nil
}

func (c *MsgpackCodec) Name() string { return CodecNameMsgpack }
