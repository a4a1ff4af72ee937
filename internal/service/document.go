package service

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/liliang-cn/medbrief/internal/domain"
)

// UploadedFile is a raw file handed over by the presentation layer
type UploadedFile struct {
	Name string
	Data []byte
}

// DecodeDocument turns an uploaded file into a text document. Only textual
// content is accepted; PDFs, office documents and other binaries are rejected.
func DecodeDocument(file UploadedFile) (domain.Document, error) {
	name := filepath.Base(strings.TrimSpace(file.Name))
	if name == "." || name == string(filepath.Separator) {
		name = "document.txt"
	}

	if len(file.Data) == 0 {
		return domain.Document{Name: name}, nil
	}

	mtype := mimetype.Detect(file.Data)
	if !isText(mtype) {
		return domain.Document{}, domain.NewValidationError(
			fmt.Sprintf("unsupported document %s: %s", name, mtype.String()),
		)
	}

	content := strings.TrimPrefix(string(file.Data), "\ufeff")
	content = strings.ToValidUTF8(content, "\ufffd")
	return domain.Document{Name: name, Content: content}, nil
}

// isText reports whether m is text/plain or one of its descendants (csv, json, html...)
func isText(m *mimetype.MIME) bool {
	for ; m != nil; m = m.Parent() {
		if m.Is("text/plain") {
			return true
		}
	}
	return false
}
