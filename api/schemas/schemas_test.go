package schemas_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tanmaysk001/Browser-Agent/api/schemas"
)

func TestErrorClassification(t *testing.T) {
	err := schemas.NewError(schemas.CodeNotFound, "Tab index %d is out of range. Available tabs: %d", 5, 2)
	assert.Equal(t, "NotFound: Tab index 5 is out of range. Available tabs: 2", err.Error())
	assert.True(t, errors.Is(err, schemas.ErrNotFound))
	assert.False(t, errors.Is(err, schemas.ErrValidation))

	wrapped := fmt.Errorf("switching tab: %w", err)
	assert.True(t, errors.Is(wrapped, schemas.ErrNotFound))
	assert.Equal(t, schemas.CodeNotFound, schemas.CodeOf(wrapped))
}

func TestWrapError(t *testing.T) {
	cause := errors.New("target closed")

	bare := schemas.WrapError(schemas.CodeEnvironment, cause, "")
	assert.Equal(t, "EnvironmentFault: target closed", bare.Error())
	assert.ErrorIs(t, bare, cause)

	withMsg := schemas.WrapError(schemas.CodeEnvironment, cause, "could not click %q", "//a")
	assert.Equal(t, `EnvironmentFault: could not click "//a": target closed`, withMsg.Error())
}

func TestCodeOfUnclassified(t *testing.T) {
	assert.Equal(t, schemas.ErrorCode(""), schemas.CodeOf(nil))
	assert.Equal(t, schemas.CodeEnvironment, schemas.CodeOf(errors.New("boom")))
}

func TestActionKind(t *testing.T) {
	assert.Equal(t, "terminal", schemas.KindTerminal.String())
	assert.Equal(t, "pass-through", schemas.KindPassThrough.String())
	assert.Equal(t, "environment", schemas.KindEnvironment.String())
	assert.True(t, schemas.KindTerminal.IsTerminal())
	assert.False(t, schemas.KindPassThrough.IsTerminal())
}

func TestObservationMessage(t *testing.T) {
	plain := schemas.ObservationMessage("state", nil)
	assert.True(t, plain.Observation)
	assert.False(t, plain.IsImage())

	img := schemas.ObservationMessage("state", []byte{0xff, 0xd8})
	require.True(t, img.IsImage())
	assert.Equal(t, "image/jpeg", img.ImageMIME)
	assert.Equal(t, schemas.RoleHuman, img.Role)
}

func TestOutputShapeRequiredFields(t *testing.T) {
	shape := &schemas.OutputShape{Schema: map[string]any{
		"type":     "object",
		"required": []any{"price", "currency", 3},
	}}
	assert.Equal(t, []string{"price", "currency"}, shape.RequiredFields())

	var nilShape *schemas.OutputShape
	assert.Nil(t, nilShape.RequiredFields())
}

func TestTabInfoString(t *testing.T) {
	tab := schemas.TabInfo{Index: 1, Title: "Example", URL: "https://example.com"}
	assert.Equal(t, "1 - Title: Example - URL: https://example.com", tab.String())
}
