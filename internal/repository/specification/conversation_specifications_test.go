package specification

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEscapeLike(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: "refund", want: "refund"},
		{in: "100%", want: "100!%"},
		{in: "a_b", want: "a!_b"},
		{in: "wow!", want: "wow!!"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, escapeLike(tt.in))
		})
	}
}
