package domain

import "fmt"

// ContentType identifies the kind of content a translation belongs to.
type ContentType string

const (
	ContentTypeReport   ContentType = "report"
	ContentTypeCategory ContentType = "category"
	ContentTypeBlog     ContentType = "blog"
)

// ContentTypes lists every declared content type.
var ContentTypes = []ContentType{ContentTypeReport, ContentTypeCategory, ContentTypeBlog}

// Field identifies a translatable field.
type Field string

const (
	FieldTitle           Field = "title"
	FieldName            Field = "name"
	FieldDescription     Field = "description"
	FieldSummary         Field = "summary"
	FieldKeywords        Field = "keywords"
	FieldMetaTitle       Field = "meta_title"
	FieldMetaDescription Field = "meta_description"
	FieldContent         Field = "content"
)

// Fields lists every declared field.
var Fields = []Field{
	FieldTitle, FieldName, FieldDescription, FieldSummary,
	FieldKeywords, FieldMetaTitle, FieldMetaDescription, FieldContent,
}

// Valid reports whether c is a declared content type.
func (c ContentType) Valid() bool {
	switch c {
	case ContentTypeReport, ContentTypeCategory, ContentTypeBlog:
		return true
	}
	return false
}

// CacheModel is the cache tag under which reads of this content are stored.
func (c ContentType) CacheModel() string {
	switch c {
	case ContentTypeReport:
		return "Report"
	case ContentTypeCategory:
		return "Category"
	case ContentTypeBlog:
		return "Blog"
	}
	return ""
}

// RouteGroup is the HTTP cache tag for pages listing this content.
func (c ContentType) RouteGroup() string {
	switch c {
	case ContentTypeReport:
		return "reports"
	case ContentTypeCategory:
		return "categories"
	case ContentTypeBlog:
		return "blogs"
	}
	return ""
}

// CacheTags lists every cache tag that may hold reads of this content.
func (c ContentType) CacheTags() []string {
	if !c.Valid() {
		return nil
	}
	return []string{c.CacheModel(), c.RouteGroup()}
}

// Valid reports whether f is a declared field.
func (f Field) Valid() bool {
	switch f {
	case FieldTitle, FieldName, FieldDescription, FieldSummary,
		FieldKeywords, FieldMetaTitle, FieldMetaDescription, FieldContent:
		return true
	}
	return false
}

// TranslationTarget is where a completed translation is written.
type TranslationTarget struct {
	Table    string
	FKColumn string
	Column   string
}

// ResolveTarget maps a content type and field to its translation table
// column. Fields a content type does not carry return ErrUnsupportedField.
func ResolveTarget(ct ContentType, field Field) (TranslationTarget, error) {
	var t TranslationTarget
	switch ct {
	case ContentTypeReport:
		t = TranslationTarget{Table: "report_translations", FKColumn: "report_id"}
		switch field {
		case FieldTitle, FieldDescription, FieldSummary, FieldKeywords, FieldMetaTitle, FieldMetaDescription:
			t.Column = string(field)
		}
	case ContentTypeCategory:
		t = TranslationTarget{Table: "category_translations", FKColumn: "category_id"}
		switch field {
		case FieldName, FieldDescription, FieldMetaTitle, FieldMetaDescription:
			t.Column = string(field)
		}
	case ContentTypeBlog:
		t = TranslationTarget{Table: "blog_translations", FKColumn: "blog_id"}
		switch field {
		case FieldTitle, FieldSummary, FieldContent, FieldMetaTitle, FieldMetaDescription:
			t.Column = string(field)
		}
	default:
		return TranslationTarget{}, fmt.Errorf("%w: content type %q", ErrInvalidRequest, ct)
	}

	if t.Column == "" {
		return TranslationTarget{}, fmt.Errorf("%w: %s.%s", ErrUnsupportedField, ct, field)
	}
	return t, nil
}
