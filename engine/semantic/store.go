// Package semantic owns all Qdrant operations: collection lifecycle,
// listing upserts, and filtered similarity search.
package semantic

import (
	"context"
	"fmt"
	"sort"
	"strconv"

	pb "github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// VectorStore is the sole owner of the Qdrant connection.
type VectorStore struct {
	conn        *grpc.ClientConn
	points      pb.PointsClient
	collections pb.CollectionsClient
	collection  string
}

// New creates a VectorStore connected to Qdrant at the given gRPC address.
func New(addr string, collection string) (*VectorStore, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("semantic: dial qdrant %s: %w", addr, err)
	}
	return &VectorStore{
		conn:        conn,
		points:      pb.NewPointsClient(conn),
		collections: pb.NewCollectionsClient(conn),
		collection:  collection,
	}, nil
}

// NewWithClients creates a VectorStore from pre-built clients. Used in tests.
func NewWithClients(points pb.PointsClient, collections pb.CollectionsClient, collection string) *VectorStore {
	return &VectorStore{points: points, collections: collections, collection: collection}
}

// Close closes the underlying gRPC connection.
func (v *VectorStore) Close() error {
	if v.conn == nil {
		return nil
	}
	return v.conn.Close()
}

// EnsureCollection creates the cosine-distance collection if absent.
func (v *VectorStore) EnsureCollection(ctx context.Context, dims int) error {
	list, err := v.collections.List(ctx, &pb.ListCollectionsRequest{})
	if err != nil {
		return fmt.Errorf("semantic: list collections: %w", err)
	}
	for _, c := range list.GetCollections() {
		if c.GetName() == v.collection {
			return nil
		}
	}

	_, err = v.collections.Create(ctx, &pb.CreateCollection{
		CollectionName: v.collection,
		VectorsConfig: &pb.VectorsConfig{
			Config: &pb.VectorsConfig_Params{
				Params: &pb.VectorParams{
					Size:     uint64(dims),
					Distance: pb.Distance_Cosine,
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("semantic: create collection %s: %w", v.collection, err)
	}
	return nil
}

// DeleteCollection deletes the collection.
func (v *VectorStore) DeleteCollection(ctx context.Context) error {
	_, err := v.collections.Delete(ctx, &pb.DeleteCollection{
		CollectionName: v.collection,
	})
	if err != nil {
		return fmt.Errorf("semantic: delete collection %s: %w", v.collection, err)
	}
	return nil
}

// Upsert stores listing records. Called by engine/ingest.
func (v *VectorStore) Upsert(ctx context.Context, records []VectorRecord) error {
	if len(records) == 0 {
		return nil
	}

	points := make([]*pb.PointStruct, len(records))
	for i, r := range records {
		points[i] = &pb.PointStruct{
			Id: pointIDProto(r.ID),
			Vectors: &pb.Vectors{
				VectorsOptions: &pb.Vectors_Vector{
					Vector: &pb.Vector{Data: r.Embedding},
				},
			},
			Payload: toPayload(r.Payload),
		}
	}

	wait := true
	_, err := v.points.Upsert(ctx, &pb.UpsertPoints{
		CollectionName: v.collection,
		Wait:           &wait,
		Points:         points,
	})
	if err != nil {
		return fmt.Errorf("semantic: upsert %d points: %w", len(records), err)
	}
	return nil
}

// Search performs similarity search with the query's range and keyword
// predicates. Hits come back ordered by descending cosine score as
// ranked by Qdrant; the ordering is not recomputed locally.
func (v *VectorStore) Search(ctx context.Context, q Query) ([]Hit, error) {
	req := &pb.SearchPoints{
		CollectionName: v.collection,
		Vector:         q.Vector,
		Limit:          q.Limit,
		WithPayload:    &pb.WithPayloadSelector{SelectorOptions: &pb.WithPayloadSelector_Enable{Enable: true}},
	}

	if conds := buildConditions(q); len(conds) > 0 {
		req.Filter = &pb.Filter{Must: conds}
	}

	resp, err := v.points.Search(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("semantic: search: %w", err)
	}

	hits := make([]Hit, len(resp.GetResult()))
	for i, r := range resp.GetResult() {
		payload := make(map[string]any, len(r.GetPayload()))
		for k, val := range r.GetPayload() {
			payload[k] = fromValue(val)
		}
		hits[i] = Hit{
			ID:      hitID(r.GetId()),
			Score:   r.GetScore(),
			Payload: payload,
		}
	}
	return hits, nil
}

// buildConditions renders ranges first, then keyword matches in sorted
// key order so requests are deterministic.
func buildConditions(q Query) []*pb.Condition {
	var conds []*pb.Condition
	for _, r := range q.Ranges {
		if r.GTE == nil && r.LTE == nil {
			continue
		}
		rng := &pb.Range{}
		if r.GTE != nil {
			rng.Gte = r.GTE
		}
		if r.LTE != nil {
			rng.Lte = r.LTE
		}
		conds = append(conds, &pb.Condition{
			ConditionOneOf: &pb.Condition_Field{
				Field: &pb.FieldCondition{Key: r.Key, Range: rng},
			},
		})
	}

	keys := make([]string, 0, len(q.Match))
	for k := range q.Match {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		conds = append(conds, fieldMatch(k, q.Match[k]))
	}
	return conds
}

func fieldMatch(key, value string) *pb.Condition {
	return &pb.Condition{
		ConditionOneOf: &pb.Condition_Field{
			Field: &pb.FieldCondition{
				Key: key,
				Match: &pb.Match{
					MatchValue: &pb.Match_Keyword{Keyword: value},
				},
			},
		},
	}
}

func pointIDProto(id PointID) *pb.PointId {
	if id.UUID != "" {
		return &pb.PointId{PointIdOptions: &pb.PointId_Uuid{Uuid: id.UUID}}
	}
	return &pb.PointId{PointIdOptions: &pb.PointId_Num{Num: id.Num}}
}

func hitID(id *pb.PointId) string {
	if u := id.GetUuid(); u != "" {
		return u
	}
	return strconv.FormatUint(id.GetNum(), 10)
}

func toPayload(m map[string]any) map[string]*pb.Value {
	payload := make(map[string]*pb.Value, len(m))
	for k, val := range m {
		switch tv := val.(type) {
		case string:
			payload[k] = &pb.Value{Kind: &pb.Value_StringValue{StringValue: tv}}
		case int:
			payload[k] = &pb.Value{Kind: &pb.Value_IntegerValue{IntegerValue: int64(tv)}}
		case int64:
			payload[k] = &pb.Value{Kind: &pb.Value_IntegerValue{IntegerValue: tv}}
		case float64:
			payload[k] = &pb.Value{Kind: &pb.Value_DoubleValue{DoubleValue: tv}}
		case bool:
			payload[k] = &pb.Value{Kind: &pb.Value_BoolValue{BoolValue: tv}}
		default:
			payload[k] = &pb.Value{Kind: &pb.Value_StringValue{StringValue: fmt.Sprint(tv)}}
		}
	}
	return payload
}

func fromValue(v *pb.Value) any {
	switch kind := v.GetKind().(type) {
	case *pb.Value_StringValue:
		return kind.StringValue
	case *pb.Value_IntegerValue:
		return kind.IntegerValue
	case *pb.Value_DoubleValue:
		return kind.DoubleValue
	case *pb.Value_BoolValue:
		return kind.BoolValue
	default:
		return nil
	}
}
