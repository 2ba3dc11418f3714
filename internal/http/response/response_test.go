package response

import (
	"testing"

	"github.com/go-playground/validator"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusOKWithData(t *testing.T) {
	data := map[string]string{"key": "value"}
	resp := StatusOKWithData(data)

	assert.Equal(t, StatusOK, resp.Status)
	assert.Empty(t, resp.Error)
	assert.Equal(t, data, resp.Data)
}

func TestError(t *testing.T) {
	msg := "something went wrong"
	resp := Error(msg)

	assert.Equal(t, StatusError, resp.Status)
	assert.Equal(t, msg, resp.Error)
	assert.Nil(t, resp.Data)
}

func TestMessage(t *testing.T) {
	resp := Message("Logged out successfully")

	assert.Equal(t, StatusOK, resp.Status)
	assert.Equal(t, "Logged out successfully", resp.Message)
	assert.Empty(t, resp.Error)
}

func TestValidationError(t *testing.T) {
	type TestStruct struct {
		Email    string `validate:"required,email"`
		Password string `validate:"required,min=6"`
		UserID   string `validate:"required,uuid"`
		Name     string `validate:"required"`
	}

	v := validator.New()
	err := v.Struct(TestStruct{Email: "not-an-email", Password: "123", UserID: "42"})
	require.Error(t, err)

	resp := ValidationError(err.(validator.ValidationErrors))

	assert.Equal(t, StatusError, resp.Status)
	assert.Contains(t, resp.Error, "field Email must be a valid email")
	assert.Contains(t, resp.Error, "field Password must be at least 6 characters long")
	assert.Contains(t, resp.Error, "field UserID can contain only uuid")
	assert.Contains(t, resp.Error, "field Name is a required field")
}
