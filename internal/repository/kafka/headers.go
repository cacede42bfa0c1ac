package kafka

import (
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel/propagation"
)

// headerCarrier exposes message headers to the otel propagator. Set replaces
// an existing key in place so re-injection never duplicates a header.
type headerCarrier struct {
	hs *[]kafka.Header
}

var _ propagation.TextMapCarrier = headerCarrier{}

func carrierFor(hs *[]kafka.Header) headerCarrier { return headerCarrier{hs: hs} }

func (c headerCarrier) Get(key string) string {
	for _, h := range *c.hs {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}

func (c headerCarrier) Set(key, value string) {
	for i := range *c.hs {
		if (*c.hs)[i].Key == key {
			(*c.hs)[i].Value = []byte(value)
			return
		}
	}
	*c.hs = append(*c.hs, kafka.Header{Key: key, Value: []byte(value)})
}

func (c headerCarrier) Keys() []string {
	keys := make([]string, len(*c.hs))
	for i, h := range *c.hs {
		keys[i] = h.Key
	}
	return keys
}
