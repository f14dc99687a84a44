package media

import (
	"path/filepath"
	"strconv"
	"strings"
)

const unknownAttachmentID = "unknown"

// DeriveIdentifier builds the stable dedup key for an attachment. The same
// value is used as the base file name of the downloaded artifact.
//
// Attachments without an id fall back to "unknown", so several id-less
// attachments of the same message collapse into one identifier.
func DeriveIdentifier(partitionKey, messageID int64, attachmentID *int64) string {
	id := unknownAttachmentID
	if attachmentID != nil {
		id = strconv.FormatInt(*attachmentID, 10)
	}

	return strconv.FormatInt(partitionKey, 10) + "." + strconv.FormatInt(messageID, 10) + "." + id
}

// IdentifierFromPath reconstructs an identifier from an artifact path by
// dropping the directory and the final extension.
func IdentifierFromPath(path string) string {
	base := filepath.Base(path)

	return strings.TrimSuffix(base, filepath.Ext(base))
}

// ResolveExtension returns the extension of the attachment's declared file
// name without the leading dot, or defaultExtension when there is none.
func ResolveExtension(a *Attachment, defaultExtension string) (string, error) {
	if strings.HasPrefix(defaultExtension, ".") {
		return "", &ConfigurationError{
			Field:  "default_extension",
			Reason: "extension must not start with a dot: " + defaultExtension,
		}
	}

	name, ok := a.DeclaredFileName()
	if !ok {
		return defaultExtension, nil
	}

	// Leading dots mark hidden files, not extensions.
	base := strings.TrimLeft(filepath.Base(name), ".")

	ext := strings.TrimPrefix(filepath.Ext(base), ".")
	if ext == "" {
		return defaultExtension, nil
	}

	return ext, nil
}
