package submission

import (
	"fmt"
	"io"
	"mime/multipart"

	"github.com/stemsi/exstem-authoring/internal/model"
	"github.com/stemsi/exstem-authoring/internal/upload"
)

// Multipart field names of a create request.
const (
	FieldTitle        = "title"
	FieldTags         = "tags"
	FieldDifficulty   = "difficulty"
	FieldDescription  = "description"
	FieldInputFormat  = "inputFormat"
	FieldOutputFormat = "outputFormat"
	FieldTimeLimit    = "timeLimit"
	FieldMemoryLimit  = "memoryLimit"
	FieldSampleInputs = "sampleInputs"

	PartArchive         = "zipFile"
	PartDescriptionFile = "descriptionFile"
	PartTestcasePrefix  = "testcase_"
)

// MetadataPayload is the in-place update sent in MetadataOnly mode.
type MetadataPayload struct {
	Title           string           `json:"title"`
	Tags            string           `json:"tags"`
	Difficulty      model.Difficulty `json:"difficulty"`
	MetadataUpdated bool             `json:"metadataUpdated"`
}

// FormField is one text field of a multipart body.
type FormField struct {
	Name  string
	Value string
}

// FilePart is one file of a multipart body.
type FilePart struct {
	Field    string
	Filename string
	File     upload.File
}

// CreatePayload is the ordered multipart body of a create-problem request.
type CreatePayload struct {
	Fields []FormField
	Files  []FilePart
}

// Value returns the first text field called name.
func (p *CreatePayload) Value(name string) (string, bool) {
	for _, f := range p.Fields {
		if f.Name == name {
			return f.Value, true
		}
	}
	return "", false
}

// Encode writes p as multipart/form-data and returns the content type.
func (p *CreatePayload) Encode(w io.Writer) (string, error) {
	mw := multipart.NewWriter(w)
	if err := p.WriteParts(mw); err != nil {
		return "", err
	}
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("close multipart: %w", err)
	}
	return mw.FormDataContentType(), nil
}

// WriteParts writes every field, then every file, to mw. The caller closes mw.
func (p *CreatePayload) WriteParts(mw *multipart.Writer) error {
	for _, f := range p.Fields {
		if err := mw.WriteField(f.Name, f.Value); err != nil {
			return fmt.Errorf("write field %s: %w", f.Name, err)
		}
	}
	for _, part := range p.Files {
		if err := writeFile(mw, part); err != nil {
			return err
		}
	}
	return nil
}

func writeFile(mw *multipart.Writer, part FilePart) error {
	fw, err := mw.CreateFormFile(part.Field, part.Filename)
	if err != nil {
		return fmt.Errorf("create part %s: %w", part.Field, err)
	}
	rc, err := part.File.Open()
	if err != nil {
		return fmt.Errorf("open %s: %w", part.Filename, err)
	}
	defer rc.Close()
	if _, err := io.Copy(fw, rc); err != nil {
		return fmt.Errorf("copy %s: %w", part.Filename, err)
	}
	return nil
}
