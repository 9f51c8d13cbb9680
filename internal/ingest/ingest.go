package ingest

import (
	"encoding/base64"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/simply-study/backend/internal/model/study"
)

const mimeDocx = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"

// Process converts an uploaded file into normalized source material parts.
// Images become a single image part carrying a base64 data URL; PDF and DOCX
// are reduced to their extracted text; anything else falls back to raw text
// decoding. Unreadable input returns an error and no parts.
func Process(fileName, mimeType string, data []byte) ([]study.SourceMaterialPart, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("file %s is empty", fileName)
	}

	mimeType = normalizeMime(fileName, mimeType)

	if strings.HasPrefix(mimeType, "image/") {
		return []study.SourceMaterialPart{{
			Type:     study.PartImage,
			Content:  dataURL(mimeType, data),
			MimeType: mimeType,
		}}, nil
	}

	var (
		text string
		err  error
	)
	switch mimeType {
	case "application/pdf":
		text, err = extractPDFText(data)
	case mimeDocx:
		text, err = extractDocxText(data)
	default:
		text, err = decodeText(data)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to process %s: %w", fileName, err)
	}

	return []study.SourceMaterialPart{{
		Type:     study.PartText,
		Content:  text,
		MimeType: "text/plain",
	}}, nil
}

// normalizeMime fills in the type from the file extension when the upload
// did not declare one.
func normalizeMime(fileName, mimeType string) string {
	if mimeType != "" && mimeType != "application/octet-stream" {
		return mimeType
	}
	lower := strings.ToLower(fileName)
	switch {
	case strings.HasSuffix(lower, ".pdf"):
		return "application/pdf"
	case strings.HasSuffix(lower, ".docx"):
		return mimeDocx
	case strings.HasSuffix(lower, ".png"):
		return "image/png"
	case strings.HasSuffix(lower, ".jpg"), strings.HasSuffix(lower, ".jpeg"):
		return "image/jpeg"
	default:
		return "text/plain"
	}
}

func dataURL(mimeType string, data []byte) string {
	return "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data)
}

func decodeText(data []byte) (string, error) {
	if !utf8.Valid(data) {
		return "", fmt.Errorf("file is not valid UTF-8 text")
	}
	return string(data), nil
}
