package vectorstore

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	pb "github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"

	"pizzeria-rag-go/internal/config"
)

// qdrantBackend 每个集合对应一个 Qdrant collection。Qdrant 不保存集合级元数据，
// 元数据取自注册表。
type qdrantBackend struct {
	conn        *grpc.ClientConn
	points      pb.PointsClient
	collections pb.CollectionsClient
	apiKey      string
	dims        int
}

// NewQdrantBackend 通过 gRPC 连接 Qdrant。
func NewQdrantBackend(cfg config.QdrantConfig, dims int) (Backend, error) {
	creds := insecure.NewCredentials()
	if cfg.UseTLS {
		creds = credentials.NewTLS(&tls.Config{})
	}
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(creds))
	if err != nil {
		return nil, fmt.Errorf("qdrant connect: %w", err)
	}
	return &qdrantBackend{
		conn:        conn,
		points:      pb.NewPointsClient(conn),
		collections: pb.NewCollectionsClient(conn),
		apiKey:      cfg.APIKey,
		dims:        dims,
	}, nil
}

func (b *qdrantBackend) Name() string { return "qdrant" }

func (b *qdrantBackend) ctx(ctx context.Context) context.Context {
	if b.apiKey == "" {
		return ctx
	}
	return metadata.AppendToOutgoingContext(ctx, "api-key", b.apiKey)
}

func (b *qdrantBackend) Open(ctx context.Context, name string, meta CollectionMeta) (Collection, error) {
	resp, err := b.collections.CollectionExists(b.ctx(ctx), &pb.CollectionExistsRequest{CollectionName: name})
	if err != nil {
		return nil, fmt.Errorf("qdrant collection exists %s: %w", name, err)
	}
	if !resp.GetResult().GetExists() {
		return nil, ErrCollectionNotFound
	}
	return &qdrantCollection{b: b, name: name, meta: meta}, nil
}

func (b *qdrantBackend) Create(ctx context.Context, name string, meta CollectionMeta) (Collection, error) {
	_, err := b.collections.Create(b.ctx(ctx), &pb.CreateCollection{
		CollectionName: name,
		VectorsConfig: &pb.VectorsConfig{Config: &pb.VectorsConfig_Params{Params: &pb.VectorParams{
			Size:     uint64(b.dims),
			Distance: pb.Distance_Cosine,
		}}},
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant create %s: %w", name, err)
	}
	return &qdrantCollection{b: b, name: name, meta: meta}, nil
}

func (b *qdrantBackend) Drop(ctx context.Context, name string) error {
	_, err := b.collections.Delete(b.ctx(ctx), &pb.DeleteCollection{CollectionName: name})
	return err
}

func (b *qdrantBackend) Close() error { return b.conn.Close() }

type qdrantCollection struct {
	b    *qdrantBackend
	name string
	meta CollectionMeta
}

func (c *qdrantCollection) Name() string             { return c.name }
func (c *qdrantCollection) Metadata() CollectionMeta { return c.meta }

// pointID Qdrant 只接受整数或 UUID 作为点 ID，由分块 ID 派生稳定的 UUID。
func pointID(collection, chunkID string) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(collection+"/"+chunkID)).String()
}

func stringValue(s string) *pb.Value {
	return &pb.Value{Kind: &pb.Value_StringValue{StringValue: s}}
}

func (c *qdrantCollection) Upsert(ctx context.Context, records []Record) error {
	if len(records) == 0 {
		return nil
	}
	points := make([]*pb.PointStruct, 0, len(records))
	for _, r := range records {
		meta, err := json.Marshal(r.Metadata)
		if err != nil {
			return err
		}
		points = append(points, &pb.PointStruct{
			Id:      &pb.PointId{PointIdOptions: &pb.PointId_Uuid{Uuid: pointID(c.name, r.ID)}},
			Vectors: &pb.Vectors{VectorsOptions: &pb.Vectors_Vector{Vector: &pb.Vector{Data: r.Embedding}}},
			Payload: map[string]*pb.Value{
				"chunk_id": stringValue(r.ID),
				"content":  stringValue(r.Content),
				"metadata": stringValue(string(meta)),
			},
		})
	}
	wait := true
	_, err := c.b.points.Upsert(c.b.ctx(ctx), &pb.UpsertPoints{
		CollectionName: c.name,
		Wait:           &wait,
		Points:         points,
	})
	return err
}

func (c *qdrantCollection) Query(ctx context.Context, vector []float32, n int) ([]Hit, error) {
	if n <= 0 {
		return nil, nil
	}
	resp, err := c.b.points.Search(c.b.ctx(ctx), &pb.SearchPoints{
		CollectionName: c.name,
		Vector:         vector,
		Limit:          uint64(n),
		WithPayload:    &pb.WithPayloadSelector{SelectorOptions: &pb.WithPayloadSelector_Enable{Enable: true}},
	})
	if err != nil {
		return nil, err
	}
	hits := make([]Hit, 0, len(resp.GetResult()))
	for _, pt := range resp.GetResult() {
		h := Hit{
			ID:       pt.Payload["chunk_id"].GetStringValue(),
			Content:  pt.Payload["content"].GetStringValue(),
			Distance: 1 - float64(pt.GetScore()),
		}
		if raw := pt.Payload["metadata"].GetStringValue(); raw != "" {
			_ = json.Unmarshal([]byte(raw), &h.Metadata)
		}
		hits = append(hits, h)
	}
	return topN(hits, n), nil
}

func (c *qdrantCollection) Count(ctx context.Context) (int, error) {
	exact := true
	resp, err := c.b.points.Count(c.b.ctx(ctx), &pb.CountPoints{CollectionName: c.name, Exact: &exact})
	if err != nil {
		return 0, err
	}
	return int(resp.GetResult().GetCount()), nil
}
