package intent

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseResponse(t *testing.T) {
	t.Run("wrapped in prose and fences", func(t *testing.T) {
		raw := "Sure!\n```json\n{\"intent\":\"price_inquiry\",\"confidence\":0.92,\"keywords\":[\"price\",\"price\"],\"sentiment\":\"neutral\",\"urgency\":\"low\"}\n```"
		res, err := ParseResponse(raw)
		require.NoError(t, err)
		assert.Equal(t, PriceInquiry, res.Intent)
		assert.InDelta(t, 0.92, res.Confidence, 1e-9)
		assert.Equal(t, []string{"price"}, res.Keywords)
		assert.Equal(t, UrgencyLow, res.Urgency)
		assert.NotEmpty(t, res.SuggestedAction)
		assert.False(t, res.FallbackUsed)
	})

	t.Run("confidence clamped", func(t *testing.T) {
		res, err := ParseResponse(`{"intent":"urgent","confidence":7}`)
		require.NoError(t, err)
		assert.Equal(t, 1.0, res.Confidence)

		res, err = ParseResponse(`{"intent":"urgent","confidence":-0.3}`)
		require.NoError(t, err)
		assert.Equal(t, 0.0, res.Confidence)
	})

	t.Run("missing confidence", func(t *testing.T) {
		res, err := ParseResponse(`{"intent":"complaint"}`)
		require.NoError(t, err)
		assert.Equal(t, 0.5, res.Confidence)
	})

	t.Run("unknown enums coerced", func(t *testing.T) {
		res, err := ParseResponse(`{"intent":"buy_stuff","sentiment":"ecstatic","urgency":"critical"}`)
		require.NoError(t, err)
		assert.Equal(t, GeneralChat, res.Intent)
		assert.Equal(t, Neutral, res.Sentiment)
		assert.Equal(t, UrgencyMedium, res.Urgency)
	})

	t.Run("custom suggested action kept", func(t *testing.T) {
		res, err := ParseResponse(`{"intent":"high_value","suggestedAction":"call them"}`)
		require.NoError(t, err)
		assert.Equal(t, "call them", res.SuggestedAction)
	})

	t.Run("no object", func(t *testing.T) {
		_, err := ParseResponse("I think it is a purchase")
		assert.ErrorIs(t, err, errNoJSON)
	})

	t.Run("broken json", func(t *testing.T) {
		_, err := ParseResponse(`{"intent": purchase}`)
		assert.Error(t, err)
	})
}
