package validate

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sessionTag = "required,max=64,printascii"

type progressBody struct {
	Position float64 `json:"position" validate:"gte=0"`
	Duration float64 `json:"duration" validate:"gte=0"`
}

type answersBody struct {
	Answers map[string]string `json:"answers" validate:"required,min=1"`
}

func TestPlaygroundV10_Struct(t *testing.T) {
	v := NewValidator("en")

	assert.Nil(t, v.Struct(&progressBody{Position: 3, Duration: 10}))

	errs := v.Struct(&progressBody{Position: -1, Duration: 10})
	require.Len(t, errs, 1)
	assert.Equal(t, "progressBody.position", errs[0].Domain)
	assert.Contains(t, errs[0].Reason, "position")

	errs = v.Struct(&answersBody{})
	require.Len(t, errs, 1)
	assert.Equal(t, "answersBody.answers", errs[0].Domain)
}

func TestPlaygroundV10_Var(t *testing.T) {
	v := NewValidator("fr")

	assert.Nil(t, v.Var("session", "V1StGXR8_Z5jdHi6B-myT", sessionTag))
	errs := v.Var("session", "", sessionTag)
	require.Len(t, errs, 1)
	assert.Equal(t, "session", errs[0].Domain)
	assert.Equal(t, "session is a required field", errs[0].Reason)

	errs = v.Var("session", strings.Repeat("x", 65), sessionTag)
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Reason, "session must be a maximum of 64 characters")
}
