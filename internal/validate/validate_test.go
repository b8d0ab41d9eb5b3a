package validate

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"trustscan/internal/domain"
)

type payload struct {
	Email string `validate:"required,email"`
	Note  string `validate:"required,min=10"`
	Link  string `validate:"omitempty,url"`
}

func TestStructMessages(t *testing.T) {
	cases := []struct {
		in   payload
		want string
	}{
		{payload{Note: "long enough note"}, "email is required"},
		{payload{Email: "nope", Note: "long enough note"}, "Invalid email address"},
		{payload{Email: "a@b.co", Note: "short"}, "note must be at least 10 characters"},
		{payload{Email: "a@b.co", Note: "long enough note", Link: "::"}, "Invalid URL format"},
	}
	for _, tc := range cases {
		err := Struct(tc.in)
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
		assert.EqualError(t, err, tc.want)
	}
	assert.NoError(t, Struct(payload{Email: "a@b.co", Note: "long enough note", Link: "https://x.io"}))
}
