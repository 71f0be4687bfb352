package sqs

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/google/uuid"
)

// PayloadKeyAttribute — атрибут сообщения с ключом вынесенного тела.
const PayloadKeyAttribute = "relay-payload-key"

// PayloadStore хранит тела сообщений больше MaxMessageSize.
// Реализуется blob.S3Store.
type PayloadStore interface {
	Put(ctx context.Context, key string, body []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
}

// payloadKey генерирует ключ для тела сообщения очереди.
func payloadKey(queue string) string {
	return "relay/" + queue + "/" + uuid.NewString()
}

func payloadAttributes(key string) map[string]types.MessageAttributeValue {
	return map[string]types.MessageAttributeValue{
		PayloadKeyAttribute: {
			DataType:    aws.String("String"),
			StringValue: aws.String(key),
		},
	}
}
