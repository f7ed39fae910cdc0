package handler

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/deppfellow/annotations/internal/errs"
	"github.com/deppfellow/annotations/internal/lib/email"
	"github.com/deppfellow/annotations/internal/server"
)

// EmailPreviewHandler renders email templates with sample data. It is only
// routed in the local environment.
type EmailPreviewHandler struct {
	Handler
}

func NewEmailPreviewHandler(s *server.Server) *EmailPreviewHandler {
	return &EmailPreviewHandler{Handler: NewHandler(s)}
}

func (h *EmailPreviewHandler) Preview(c echo.Context) error {
	name := email.Template(c.Param("template"))

	data, ok := email.PreviewData[name]
	if !ok {
		code := "TEMPLATE_NOT_FOUND"
		return errs.NewNotFoundError(fmt.Sprintf("Unknown email template %q", name), true, &code)
	}

	body, err := email.Render(name, data)
	if err != nil {
		return err
	}

	return c.HTML(http.StatusOK, body)
}
