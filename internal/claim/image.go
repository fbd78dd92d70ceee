package claim

import (
	"bytes"
	"fmt"
	"io"
	"mime/multipart"
	"net/textproto"
	"strings"
)

// FormField is the multipart field the image-description route expects.
const FormField = "file"

// SampleFileName names a sample image re-wrapped as an upload.
const SampleFileName = "selectedImage.jpg"

// Image is an upload payload: a dropped file or a fetched sample blob.
type Image struct {
	Name        string
	ContentType string
	Data        []byte
}

// FormData encodes the image as a multipart body with a single file field.
func (img Image) FormData() (io.Reader, string, error) {
	body := new(bytes.Buffer)
	writer := multipart.NewWriter(body)

	contentType := img.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	name := img.Name
	if name == "" {
		name = SampleFileName
	}

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`, FormField, escapeQuotes(name)))
	header.Set("Content-Type", contentType)

	part, err := writer.CreatePart(header)
	if err != nil {
		return nil, "", fmt.Errorf("creating form part: %w", err)
	}
	if _, err := part.Write(img.Data); err != nil {
		return nil, "", fmt.Errorf("writing form part: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, "", fmt.Errorf("closing form: %w", err)
	}
	return body, writer.FormDataContentType(), nil
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func escapeQuotes(s string) string {
	return quoteEscaper.Replace(s)
}
