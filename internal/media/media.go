package media

// Kind is the type of media carried by a message attachment.
type Kind string

const (
	KindVideo Kind = "video"
	KindAudio Kind = "audio"
)

// Channel is a resolved message source partition.
type Channel struct {
	ID    int64
	Title string
}

// Attribute is one metadata record declared on an attachment. Only some
// attribute types declare a file name.
type Attribute struct {
	Type     string
	FileName string // empty when the attribute declares no file name
}

// Attachment references downloadable media on a message.
type Attachment struct {
	ID         *int64 // nil when the source does not expose one
	Kind       Kind
	Size       int64
	URL        string
	Attributes []Attribute
}

// HasID reports whether the source exposed an id for the attachment.
func (a *Attachment) HasID() bool {
	return a != nil && a.ID != nil
}

// DeclaredFileName returns the first file name declared by the attachment attributes.
func (a *Attachment) DeclaredFileName() (string, bool) {
	if a == nil {
		return "", false
	}

	for _, attr := range a.Attributes {
		if attr.FileName != "" {
			return attr.FileName, true
		}
	}

	return "", false
}

// Message is a single item of the message stream.
type Message struct {
	ID    int64
	Text  string
	Video *Attachment
	Audio *Attachment
}

// Attachment returns the attachment of the given kind, or nil.
func (m *Message) Attachment(kind Kind) *Attachment {
	if m == nil {
		return nil
	}

	switch kind {
	case KindVideo:
		return m.Video
	case KindAudio:
		return m.Audio
	}

	return nil
}

// Candidate is a message paired with one of its attachments, evaluated for
// download during a single session.
type Candidate struct {
	Message    *Message
	Attachment *Attachment
	Channel    *Channel
	// PartitionKey is the configured channel id. Identifiers, records and
	// the orphan sweep are all keyed by it, never by Channel.ID.
	PartitionKey int64
	Identifier   string
	Extension  string
	Directory  string
}
