package tracing

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.opentelemetry.io/otel/attribute"
)

func TestSafeAttributesDropsPersonalData(t *testing.T) {
	attrs := SafeAttributes(
		attribute.String("http.route", "/api/websites/:id/events"),
		attribute.String("user_ip_address", "10.0.0.1"),
		attribute.String("hashed_email", "abc"),
		attribute.String("website_id", "42"),
	)

	keys := make([]string, 0, len(attrs))
	for _, a := range attrs {
		keys = append(keys, string(a.Key))
	}
	assert.ElementsMatch(t, []string{"http.route", "website_id"}, keys)
}

func TestSafeErrorTruncates(t *testing.T) {
	err := SafeError(errors.New("ERROR: insert failed (SQLSTATE 23505)\nDETAIL: Key (event_id)=(evt_1) already exists"))
	assert.EqualError(t, err, "ERROR: insert failed")
	assert.Nil(t, SafeError(nil))
}
