package email

// PreviewData holds sample data for rendering each template locally,
// keyed by template name.
var PreviewData = map[Template]map[string]string{
	TemplateAnnotation: AnnotationNotice{
		OwnerName:       "Ana",
		AuthorName:      "Ben",
		EntityGUID:      42,
		AnnotationID:    1,
		AnnotationName:  "rating",
		AnnotationValue: "5",
	}.templateData(),
}
