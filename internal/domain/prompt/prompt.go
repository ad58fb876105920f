package prompt

// Role labels a prompt entry for the upstream vendor.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// File is an attachment resolved for inclusion in a vendor request. Data
// holds the raw bytes for vendors that inline content; VendorFileID holds
// the upstream file handle for vendors that reference uploads.
type File struct {
	ID           string
	VendorFileID string
	MimeType     string
	Name         string
	Data         []byte
}

// Prompt is one entry of the vendor-agnostic request transcript.
type Prompt struct {
	Role  Role
	Text  string
	Files []File
}

// Transcript is the ordered prompt sequence sent upstream: optional system
// entry first, then the conversation turns oldest to newest, the pending
// user turn last.
type Transcript struct {
	Prompts []Prompt
}

// Builder assembles a Transcript from its parts in the required order.
type Builder struct {
	system string
	turns  []Prompt
}

// NewBuilder returns an empty transcript builder.
func NewBuilder() *Builder {
	return &Builder{}
}

// WithSystem sets the system instruction. Empty means no system entry.
func (b *Builder) WithSystem(text string) *Builder {
	b.system = text
	return b
}

// Append adds one conversation turn in chronological order.
func (b *Builder) Append(role Role, text string, files ...File) *Builder {
	b.turns = append(b.turns, Prompt{Role: role, Text: text, Files: files})
	return b
}

// Build produces the final transcript.
func (b *Builder) Build() Transcript {
	prompts := make([]Prompt, 0, len(b.turns)+1)
	if b.system != "" {
		prompts = append(prompts, Prompt{Role: RoleSystem, Text: b.system})
	}
	prompts = append(prompts, b.turns...)
	return Transcript{Prompts: prompts}
}

// LastUserText returns the text of the newest user entry, used for
// title generation.
func (t Transcript) LastUserText() string {
	for i := len(t.Prompts) - 1; i >= 0; i-- {
		if t.Prompts[i].Role == RoleUser {
			return t.Prompts[i].Text
		}
	}
	return ""
}
