package generation

import (
	"fmt"
	"strings"
)

// SystemPrompt builds the deterministic system message for a request.
// Templates interpolate the kind-specific payload only; two requests with
// the same payload produce the same prompt.
func SystemPrompt(req Request) (string, error) {
	switch req.Kind {
	case KindIdea:
		return ideaPrompt(req.Idea), nil
	case KindCode:
		return codePrompt(req.Code), nil
	default:
		return "", ErrUnsupportedKind
	}
}

func ideaPrompt(in IdeaInput) string {
	var sketchNote string
	if in.WhiteboardImage != "" {
		sketchNote = "The user has also attached a whiteboard sketch that shows their initial app concept. Analyze this image to understand their UI/UX goals.\n\n"
	}

	return fmt.Sprintf(`You are an expert app consultant that helps businesses plan successful app ideas.

Based on the following business details:

%s

%sPlease provide a comprehensive app idea that meets these business needs. Focus on solving real problems for the target audience.
Include a name for the app and how it would work in detail.`, in.BusinessDetails, sketchNote)
}

func codePrompt(in CodeInput) string {
	return fmt.Sprintf(`You are an expert web application developer that specializes in building modern, production-ready apps.

Based on the following app idea:

%s

And these requested features:

%s

Please generate the core code files needed for this application. Focus on creating a working prototype with clean, maintainable code. Include key components, utilities, and structure.

Respond with a JSON object where keys are filenames and values are the file contents. Each file should be complete and runnable.`, in.AppIdea, strings.Join(in.Features, "\n"))
}
