package event

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/rentflow/backend/internal/domain/regularization"
	"github.com/rentflow/backend/internal/domain/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var serializerNow = time.Date(2025, 2, 10, 8, 30, 0, 0, time.UTC)

func testPayload() regularization.LifecyclePayload {
	return regularization.LifecyclePayload{
		ChargeRegularizationID: "entity1-2024",
		EntityID:               "entity1",
		UserID:                 "user1",
		FiscalYear:             2024,
	}
}

func TestNewRegularizationSerializer(t *testing.T) {
	s := NewRegularizationSerializer()

	assert.Equal(t, []string{
		regularization.EventTypeChargeRegularizationApplied,
		regularization.EventTypeChargeRegularizationCalculated,
		regularization.EventTypeChargeRegularizationSent,
		regularization.EventTypeChargeRegularizationSettled,
	}, s.RegisteredTypes())
	assert.False(t, s.IsRegistered("SalesOrderCreated"))
}

func TestEventSerializer_RoundTrip(t *testing.T) {
	s := NewRegularizationSerializer()
	statements := []regularization.Statement{{
		LeaseID:        "lease-1",
		TenantID:       "tenant-1",
		TenantName:     "Dupont Jean",
		OccupancyStart: "2024-01-01",
		OccupancyEnd:   "2024-12-31",
		OccupiedDays:   366,
		DaysInYear:     366,
		Charges: []regularization.ChargeShare{{
			ChargeCategoryID:    "cat-1",
			Label:               "Ordures",
			TotalChargeCents:    50000,
			TenantShareCents:    50000,
			ProvisionsPaidCents: 48000,
		}},
		TotalShareCents:          50000,
		TotalProvisionsPaidCents: 48000,
		BalanceCents:             2000,
	}}
	original := regularization.NewChargeRegularizationCalculatedEvent(testPayload(), statements, serializerNow)

	data, err := s.Serialize(original)
	require.NoError(t, err)

	decoded, err := s.Deserialize(regularization.EventTypeChargeRegularizationCalculated, data)
	require.NoError(t, err)

	calculated, ok := decoded.(*regularization.ChargeRegularizationCalculated)
	require.True(t, ok)
	assert.Equal(t, original.EventID(), calculated.EventID())
	assert.Equal(t, "entity1-2024", calculated.AggregateID())
	assert.Equal(t, 2024, calculated.FiscalYear)
	assert.Equal(t, int64(2000), calculated.TotalBalanceCents)
	assert.True(t, regularization.StatementsEqual(statements, calculated.Statements))
	assert.True(t, serializerNow.Equal(calculated.CalculatedAt))
}

func TestEventSerializer_Deserialize_Errors(t *testing.T) {
	s := NewRegularizationSerializer()

	t.Run("unknown type", func(t *testing.T) {
		_, err := s.Deserialize("StockIncreased", []byte(`{}`))
		assert.ErrorContains(t, err, "unknown event type")
	})

	t.Run("malformed payload", func(t *testing.T) {
		_, err := s.Deserialize(regularization.EventTypeChargeRegularizationSent, []byte(`{"sentCount":"three"}`))
		assert.Error(t, err)
	})

	t.Run("payload type differs from stored type", func(t *testing.T) {
		sent := regularization.NewChargeRegularizationSentEvent(testPayload(), 3, serializerNow)
		data, err := s.Serialize(sent)
		require.NoError(t, err)

		_, err = s.Deserialize(regularization.EventTypeChargeRegularizationSettled, data)
		assert.ErrorContains(t, err, "does not match")
	})
}

func TestEventSerializer_Upgraders(t *testing.T) {
	s := NewRegularizationSerializer()
	// v1 Sent events stored the count as "count"
	s.RegisterUpgrader(regularization.EventTypeChargeRegularizationSent, 1, func(p map[string]any) (map[string]any, error) {
		p["sentCount"] = p["count"]
		delete(p, "count")
		return p, nil
	})

	legacy := map[string]any{
		"id":                     "7b1f5c7e-2a4b-4c61-9f0e-3a8f1d2c9b10",
		"type":                   regularization.EventTypeChargeRegularizationSent,
		"timestamp":              serializerNow,
		"aggregate_id":           "entity1-2024",
		"aggregate_type":         regularization.AggregateTypeChargeRegularization,
		"schema_version":         1,
		"chargeRegularizationId": "entity1-2024",
		"entityId":               "entity1",
		"userId":                 "user1",
		"fiscalYear":             2024,
		"count":                  4,
		"sentAt":                 serializerNow,
	}
	data, err := json.Marshal(legacy)
	require.NoError(t, err)

	decoded, err := s.Deserialize(regularization.EventTypeChargeRegularizationSent, data)
	require.NoError(t, err)

	sent := decoded.(*regularization.ChargeRegularizationSent)
	assert.Equal(t, 4, sent.SentCount)
	assert.Equal(t, 2, sent.SchemaVersion())

	t.Run("current payloads pass through", func(t *testing.T) {
		current := regularization.NewChargeRegularizationSentEvent(testPayload(), 2, serializerNow)
		current.Version = 2
		data, err := s.Serialize(current)
		require.NoError(t, err)

		decoded, err := s.Deserialize(regularization.EventTypeChargeRegularizationSent, data)
		require.NoError(t, err)
		assert.Equal(t, 2, decoded.(*regularization.ChargeRegularizationSent).SentCount)
	})
}

var _ shared.VersionedEvent = (*regularization.ChargeRegularizationSent)(nil)
