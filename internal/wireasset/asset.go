// Package wireasset converts a crawled Resource into the flattened,
// schema-stable representation handed to downstream consumers once a run
// completes — mirroring the post-crawl "to proto" conversion step of the
// system this crawler's data model was distilled from (gcp_type/*
// conversion in the Forseti inventory base), re-expressed with real
// protobuf messages instead of a custom JSON envelope.
package wireasset

import (
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/timestamppb"

	"github.com/cloudkeep/inventory-crawler/internal/inventory"
)

// Asset is the wire form of a Resource. Data is itself a real protobuf
// message (structpb.Struct): a downstream consumer in any language can
// decode it without depending on this repository's Go types at all.
type Asset struct {
	Type             string
	Key              string
	FullResourceName string
	ParentFullName   string
	Data             *structpb.Struct
	Timestamp        *timestamppb.Timestamp
}

// FromResource converts r into its wire form. parentFullName is passed
// separately since Resource only exposes its parent chain during the call
// window of Accept (Stack returns ErrNotInitialized otherwise).
func FromResource(r *inventory.Resource, parentFullName string) (*Asset, error) {
	data, err := structpb.NewStruct(r.Data())
	if err != nil {
		return nil, err
	}
	return &Asset{
		Type:             r.Type(),
		Key:              r.Key(),
		FullResourceName: r.FullResourceName(),
		ParentFullName:   parentFullName,
		Data:             data,
		Timestamp:        timestamppb.New(r.Timestamp()),
	}, nil
}

// MarshalData encodes the Data field as protobuf wire bytes — the portion of
// an Asset a storage sink persists in place of an ad hoc JSON blob.
func (a *Asset) MarshalData() ([]byte, error) {
	return proto.Marshal(a.Data)
}

// UnmarshalData decodes protobuf wire bytes previously produced by
// MarshalData back into a structpb.Struct.
func UnmarshalData(b []byte) (*structpb.Struct, error) {
	s := &structpb.Struct{}
	if err := proto.Unmarshal(b, s); err != nil {
		return nil, err
	}
	return s, nil
}
