package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegister_Once(t *testing.T) {
	reg := prometheus.NewRegistry()
	Register(reg)
	// A second call must not panic with a duplicate registration.
	Register(reg)

	RecordCompletion(OutcomeSuccess)

	families, err := reg.Gather()
	require.NoError(t, err)

	var names []string
	for _, f := range families {
		names = append(names, f.GetName())
	}
	assert.Contains(t, names, "keybud_auth_completions_total")
}

func TestRecordHelpers(t *testing.T) {
	before := testutil.ToFloat64(deliveries.WithLabelValues(OutcomeSuccess))
	RecordDeliveries(OutcomeSuccess, 3)
	RecordDeliveries(OutcomeSuccess, 0)
	assert.Equal(t, before+3, testutil.ToFloat64(deliveries.WithLabelValues(OutcomeSuccess)))

	before = testutil.ToFloat64(registryLookups.WithLabelValues("auth", OutcomeMiss))
	RecordRegistryLookup("auth", OutcomeMiss)
	assert.Equal(t, before+1, testutil.ToFloat64(registryLookups.WithLabelValues("auth", OutcomeMiss)))

	before = testutil.ToFloat64(undecryptableMessages)
	RecordUndecryptableMessage()
	assert.Equal(t, before+1, testutil.ToFloat64(undecryptableMessages))

	before = testutil.ToFloat64(signedURLs.WithLabelValues(OutcomeHit))
	RecordSignedURL(OutcomeHit)
	assert.Equal(t, before+1, testutil.ToFloat64(signedURLs.WithLabelValues(OutcomeHit)))
}
