package email

import (
	"errors"
	"testing"

	"github.com/resend/resend-go/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSender struct {
	sent []*resend.SendEmailRequest
	err  error
}

func (s *recordingSender) Send(params *resend.SendEmailRequest) (*resend.SendEmailResponse, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.sent = append(s.sent, params)
	return &resend.SendEmailResponse{Id: "em_1"}, nil
}

func TestRenderPreviewData(t *testing.T) {
	for name, data := range PreviewData {
		t.Run(string(name), func(t *testing.T) {
			html, err := Render(name, data)
			require.NoError(t, err)
			assert.NotContains(t, html, "<no value>")
		})
	}
}

func TestRenderEscapesValues(t *testing.T) {
	html, err := Render(TemplateAnnotation, map[string]string{"AnnotationValue": "<script>x</script>"})
	require.NoError(t, err)
	assert.NotContains(t, html, "<script>")
}

func TestRenderUnknownTemplate(t *testing.T) {
	_, err := Render(Template("missing"), nil)
	assert.Error(t, err)
}

func TestSendAnnotationNotice(t *testing.T) {
	logger := zerolog.Nop()
	s := &recordingSender{}
	c := &Client{emails: s, from: defaultFrom, logger: &logger}

	err := c.SendAnnotationNotice("ana@example.com", AnnotationNotice{
		OwnerName:       "Ana",
		EntityGUID:      42,
		AnnotationID:    9,
		AnnotationName:  "comment",
		AnnotationValue: "nice post",
	})
	require.NoError(t, err)

	require.Len(t, s.sent, 1)
	assert.Equal(t, []string{"ana@example.com"}, s.sent[0].To)
	assert.Equal(t, "New comment on your content", s.sent[0].Subject)
	assert.Contains(t, s.sent[0].Html, "Someone added a <strong>comment</strong> to entity #42")
	assert.Contains(t, s.sent[0].Html, "nice post")
}

func TestSendEmailProviderFailure(t *testing.T) {
	logger := zerolog.Nop()
	c := &Client{emails: &recordingSender{err: errors.New("rate limited")}, from: defaultFrom, logger: &logger}

	err := c.SendAnnotationNotice("ana@example.com", AnnotationNotice{AnnotationName: "rating"})
	assert.ErrorContains(t, err, "rate limited")
}
