package emailsvc

import (
	"io"
	"mime"
	"mime/multipart"
	"net/mail"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/admissions/core"
)

func TestConsoleService_format(t *testing.T) {
	tests := []struct {
		name      string
		html      string
		wantTypes []string
	}{
		{name: "text only", wantTypes: []string{"text/plain"}},
		{name: "text and html", html: "<p>Hello Ada</p>", wantTypes: []string{"text/plain", "text/html"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := NewConsoleService(&core.Config{AppName: "Admissions"}, nil)
			body, err := svc.format(core.EmailMessage{
				To:          []mail.Address{{Name: "Ada Doe", Address: "ada@example.com"}},
				Subject:     "Reminder: Open morning",
				TextContent: "Hello Ada",
				HTMLContent: tt.html,
			})
			require.NoError(t, err)

			msg, err := mail.ReadMessage(strings.NewReader(body))
			require.NoError(t, err)
			assert.Equal(t, "[Admissions] Reminder: Open morning", msg.Header.Get("Subject"))

			mediaType, params, err := mime.ParseMediaType(msg.Header.Get("Content-Type"))
			require.NoError(t, err)
			assert.Equal(t, "multipart/alternative", mediaType)

			var gotTypes []string
			r := multipart.NewReader(msg.Body, params["boundary"])
			for {
				part, err := r.NextPart()
				if err == io.EOF {
					break
				}
				require.NoError(t, err)
				gotTypes = append(gotTypes, part.Header.Get("Content-Type"))
			}
			assert.Equal(t, tt.wantTypes, gotTypes)
		})
	}
}
