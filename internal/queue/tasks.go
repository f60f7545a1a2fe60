package queue

const (
	TypeVectorStoreBuild = "vectorstore:build"
)

type VectorStoreBuildPayload struct {
	StoreID string `json:"store_id"`
}
