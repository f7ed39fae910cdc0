package email

// Template names an embedded file under templates/.
type Template string

const (
	// TemplateAnnotation tells an entity owner that somebody annotated it.
	TemplateAnnotation Template = "annotation"
)
