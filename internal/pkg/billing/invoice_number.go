package billing

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// InvoiceNumberSource hands out gap-free sequential invoice numbers per
// calendar year. Treated as a black-box unique-number generator by the
// service.
type InvoiceNumberSource interface {
	Next(ctx context.Context, year int) (int64, error)
}

type redisSequence struct {
	client *redis.Client
}

// NewRedisSequence creates an InvoiceNumberSource backed by a Redis counter.
func NewRedisSequence(client *redis.Client) InvoiceNumberSource {
	return &redisSequence{client: client}
}

func (s *redisSequence) Next(ctx context.Context, year int) (int64, error) {
	return s.client.Incr(ctx, fmt.Sprintf("invoice_seq:%d", year)).Result()
}

// FormatInvoiceNumber renders a sequence value as a printable invoice number.
func FormatInvoiceNumber(year int, n int64) string {
	return fmt.Sprintf("INV-%d-%06d", year, n)
}
