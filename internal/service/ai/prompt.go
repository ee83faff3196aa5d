package ai

import (
	"fmt"
	"strings"

	"voicecapture/internal/models"
)

const (
	transcriptRole = "You are an assistant that extracts structured feedback data from jewellery store customer conversations."
	imageOnlyRole  = "You are an assistant that extracts structured feedback data from jewellery store customer images."
	closingRules   = "Return ONLY valid JSON without any markdown formatting or code blocks."
)

// buildPrompt renders the extraction prompt for a transcript or an
// image-only upload. Both variants describe the same schema.
func buildPrompt(input string, image *models.ImageAttachment) string {
	var b strings.Builder
	imageOnly := models.IsImageOnlyInput(input)

	if imageOnly {
		b.WriteString(imageOnlyRole + "\n\n")
		fmt.Fprintf(&b, "An image file '%s' has been uploaded for customer feedback analysis.", imageName(image))
	} else {
		b.WriteString(transcriptRole + "\n\n")
		fmt.Fprintf(&b, "Analyze this text:\n%q", input)
	}
	if image != nil {
		fmt.Fprintf(&b, "\n\nAn image file '%s' is also provided for additional context. Include any relevant image information in the feedback.", imageName(image))
	}

	b.WriteString("\n\nExtract as JSON with the following fields:\n")
	writeSchema(&b, input, imageOnly)

	if imageOnly {
		b.WriteString("\nSince this is an image-only upload, analyze the image context and extract any visible information about:\n")
		b.WriteString("- Jewelry items shown\n- Customer interactions\n- Store environment\n- Any text or labels visible in the image\n\n")
		b.WriteString("If a field cannot be determined from the image, set it to null.\n")
	} else {
		b.WriteString("\nImportant distinction for design fields:\n")
		for _, f := range models.SchemaFields {
			if f.Hint != "" {
				fmt.Fprintf(&b, "- %q: %s\n", f.Name, f.Hint)
			}
		}
		b.WriteString("\n")
		for _, f := range models.SchemaFields {
			if f.Name == "item_type" || f.Name == "design_type" {
				fmt.Fprintf(&b, "Valid %s values: %s\n", f.Name, quoteJoin(f.Values, ", "))
			}
		}
		b.WriteString("\nIf a field is not mentioned, set it to null.\n")
	}
	b.WriteString(closingRules)
	return b.String()
}

func writeSchema(b *strings.Builder, input string, imageOnly bool) {
	b.WriteString("{\n")
	for _, f := range models.SchemaFields {
		fmt.Fprintf(b, "  %q: %s,\n", f.Name, describeField(f))
	}
	if imageOnly {
		fmt.Fprintf(b, "  %q: %q\n", models.OriginalTextKey, input)
	} else {
		fmt.Fprintf(b, "  %q: string\n", models.OriginalTextKey)
	}
	b.WriteString("}\n")
}

func describeField(f models.Field) string {
	switch f.Kind {
	case models.KindNumber:
		return "number or null"
	case models.KindYesNo, models.KindEnum:
		return quoteJoin(f.Values, " | ") + " | null"
	default:
		return "string or null"
	}
}

func quoteJoin(values []string, sep string) string {
	quoted := make([]string, len(values))
	for i, v := range values {
		quoted[i] = fmt.Sprintf("%q", v)
	}
	return strings.Join(quoted, sep)
}

func imageName(image *models.ImageAttachment) string {
	if image == nil {
		return ""
	}
	return image.OriginalName
}
