package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"validation", Validation("missing"), KindValidation},
		{"not found", NotFound("Room not found"), KindNotFound},
		{"inactive", InactiveGame("Game is not active"), KindInactiveGame},
		{"storage", Storage("loading room", errors.New("boom")), KindStorage},
		{"delivery", Delivery("c1", errors.New("gone")), KindDelivery},
		{"wrapped", fmt.Errorf("handling click: %w", NotFound("x")), KindNotFound},
		{"plain", errors.New("plain"), KindUnknown},
		{"nil", nil, KindUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, KindOf(tt.err))
		})
	}
}

func TestPublicMessage(t *testing.T) {
	assert.Equal(t, "Room not found", PublicMessage(NotFound("Room not found")))
	assert.Equal(t, "Game is not active", PublicMessage(InactiveGame("Game is not active")))
	assert.Equal(t, "Internal error", PublicMessage(Storage("saving room", errors.New("conn refused"))))
	assert.Equal(t, "Internal error", PublicMessage(errors.New("unclassified")))
}

func TestErrorUnwrap(t *testing.T) {
	cause := errors.New("conn refused")
	err := Storage("saving room", cause)

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "saving room: conn refused", err.Error())
	assert.True(t, Is(err, KindStorage))
	assert.False(t, Is(err, KindValidation))
}
