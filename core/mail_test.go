package core

import (
	"net/mail"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmailMessage_Render(t *testing.T) {
	tmpls := &MailTemplates{appName: "Tadris", frontendBaseURL: "https://tadris.test", strict: true}

	msg := &EmailMessage{
		To:           []mail.Address{{Name: "سارة", Address: "sara@test.test"}},
		Subject:      "إعادة تعيين كلمة المرور",
		TemplateName: "password_reset",
		TemplateData: struct{ Email, UID, Token string }{"sara@test.test", "dWlk", "tok-sig"},
	}
	require.NoError(t, msg.Render(tmpls))

	assert.True(t, msg.HasContent())
	assert.Contains(t, msg.TextContent, "https://tadris.test/reset-password?uid=dWlk&token=tok-sig")
	assert.Contains(t, msg.TextContent, "فريق Tadris")
	assert.Contains(t, msg.HTMLContent, `href="https://tadris.test/reset-password?uid=dWlk&token=tok-sig"`)
	assert.Contains(t, msg.HTMLContent, `dir="rtl"`)
}

func TestEmailMessage_RenderPlain(t *testing.T) {
	tmpls := &MailTemplates{appName: "Tadris"}
	msg := &EmailMessage{BodyStr: "نص"}
	require.NoError(t, msg.Render(tmpls))
	assert.Equal(t, "نص", msg.TextContent)
	assert.Empty(t, msg.HTMLContent)

	msg = &EmailMessage{TemplateName: "missing"}
	require.NoError(t, msg.Render(tmpls))
	assert.False(t, msg.HasContent())
}

func TestEmailMessage_Attach(t *testing.T) {
	msg := &EmailMessage{}
	require.NoError(t, msg.Attach(strings.NewReader("hello"), "hello.txt"))
	require.True(t, msg.HasAttachments())

	at := msg.Attachments[0]
	assert.Equal(t, "hello.txt", at.Filename)
	assert.Equal(t, "aGVsbG8=", at.Content.String())
	assert.Equal(t, "text/plain; charset=utf-8", at.ContentType)
}
