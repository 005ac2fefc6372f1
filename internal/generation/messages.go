package generation

import "errors"

// Kind selects the prompt template for a generation request.
type Kind string

const (
	KindIdea Kind = "idea"
	KindCode Kind = "code"
)

var ErrUnsupportedKind = errors.New("invalid request type")

// IdeaInput is the payload for idea generation: the business description
// and an optional rasterized whiteboard snapshot (image data URL).
type IdeaInput struct {
	BusinessDetails string `json:"businessDetails"`
	WhiteboardImage string `json:"whiteboardImage,omitempty"`
}

// CodeInput is the payload for code generation.
type CodeInput struct {
	AppIdea  string   `json:"appIdea"`
	Features []string `json:"features"`
}

// Message is one chat-completion message. Content is either a plain
// string or, for multimodal messages, a []ContentPart.
type Message struct {
	Role    string      `json:"role"`
	Content interface{} `json:"content"`
}

// ContentPart is one element of a multimodal message content array.
type ContentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *ImageURL `json:"image_url,omitempty"`
}

type ImageURL struct {
	URL string `json:"url"`
}

func TextPart(text string) ContentPart {
	return ContentPart{Type: "text", Text: text}
}

func ImagePart(url string) ContentPart {
	return ContentPart{Type: "image_url", ImageURL: &ImageURL{URL: url}}
}

// Request is a fully-specified generation request.
type Request struct {
	Kind Kind
	Idea IdeaInput
	Code CodeInput
	// Messages is the caller-provided conversation. When empty, a single
	// user message is synthesized from the kind-specific payload.
	Messages []Message
}

// BuildMessages assembles the wire messages for a request: the system
// prompt first, then the conversation. For idea requests carrying a
// whiteboard image, the image is appended as a content part on the last
// user-role message - never as a separate message.
func BuildMessages(req Request) ([]Message, error) {
	system, err := SystemPrompt(req)
	if err != nil {
		return nil, err
	}

	conversation := req.Messages
	if len(conversation) == 0 {
		conversation = []Message{defaultUserMessage(req)}
	}

	out := make([]Message, 0, len(conversation)+1)
	out = append(out, Message{Role: "system", Content: system})
	out = append(out, conversation...)

	if req.Kind == KindIdea && req.Idea.WhiteboardImage != "" {
		attachImageToLastUser(out, req.Idea.WhiteboardImage)
	}
	return out, nil
}

func defaultUserMessage(req Request) Message {
	if req.Kind == KindCode {
		return Message{Role: "user", Content: req.Code.AppIdea}
	}
	return Message{Role: "user", Content: req.Idea.BusinessDetails}
}

// attachImageToLastUser restructures the most recent user-authored
// message into a multimodal array of its text plus an image reference.
func attachImageToLastUser(messages []Message, imageURL string) {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role != "user" {
			continue
		}
		text, ok := messages[i].Content.(string)
		if !ok {
			// Already multimodal; leave untouched.
			return
		}
		messages[i].Content = []ContentPart{TextPart(text), ImagePart(imageURL)}
		return
	}
}
