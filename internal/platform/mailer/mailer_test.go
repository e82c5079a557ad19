package mailer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderCreateUser(t *testing.T) {
	body, err := RenderCreateUser(CreateUserData{AppURL: "https://sms.example", Email: "a@b.com", Password: "s3cret"})
	require.NoError(t, err)
	assert.Contains(t, body, "https://sms.example")
	assert.Contains(t, body, "Login: a@b.com")
	assert.Contains(t, body, "Password: s3cret")
}
