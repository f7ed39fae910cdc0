package email

import (
	"fmt"
	"strconv"
)

// AnnotationNotice describes a new annotation for its entity's owner.
type AnnotationNotice struct {
	OwnerName       string
	AuthorName      string
	EntityGUID      int64
	AnnotationID    int64
	AnnotationName  string
	AnnotationValue string
}

// SendAnnotationNotice emails the owner of an annotated entity.
func (c *Client) SendAnnotationNotice(to string, n AnnotationNotice) error {
	return c.SendEmail(
		to,
		fmt.Sprintf("New %s on your content", n.AnnotationName),
		TemplateAnnotation,
		n.templateData(),
	)
}

func (n AnnotationNotice) templateData() map[string]string {
	owner := n.OwnerName
	if owner == "" {
		owner = "there"
	}
	author := n.AuthorName
	if author == "" {
		author = "Someone"
	}

	return map[string]string{
		"OwnerName":       owner,
		"AuthorName":      author,
		"EntityGUID":      strconv.FormatInt(n.EntityGUID, 10),
		"AnnotationID":    strconv.FormatInt(n.AnnotationID, 10),
		"AnnotationName":  n.AnnotationName,
		"AnnotationValue": n.AnnotationValue,
	}
}
