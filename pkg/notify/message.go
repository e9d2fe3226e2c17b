package notify

import (
	"fmt"

	goslack "github.com/slack-go/slack"

	"github.com/mediapulse/patternlab/pkg/models"
)

const maxBlockTextLength = 2900

var statusEmoji = map[bool]string{
	true:  ":white_check_mark:",
	false: ":x:",
}

func sessionURL(sessionID, dashboardURL string) string {
	return fmt.Sprintf("%s/sessions/%s", dashboardURL, sessionID)
}

// BuildStartedMessage creates Block Kit blocks for an analysis start
// notification. The session does not exist yet at enqueue time, so the link
// targets the video page.
func BuildStartedMessage(videoID, dashboardURL string) []goslack.Block {
	url := fmt.Sprintf("%s/videos/%s", dashboardURL, videoID)
	text := fmt.Sprintf(":arrows_counterclockwise: *Analyzing video `%s`* — this may take a few minutes.\n<%s|View in Dashboard>", videoID, url)

	return []goslack.Block{
		goslack.NewSectionBlock(
			goslack.NewTextBlockObject(goslack.MarkdownType, text, false, false),
			nil, nil,
		),
	}
}

// BuildResultMessage creates Block Kit blocks for a terminal analysis
// notification.
func BuildResultMessage(result *models.OrchestratorResult, dashboardURL string) []goslack.Block {
	emoji := statusEmoji[result.Success]
	label := "Analysis Failed"
	if result.Success {
		label = "Analysis Complete"
	}
	if result.FallbackUsed {
		label += " (classic fallback)"
	}

	var blocks []goslack.Block
	headerText := fmt.Sprintf("%s *%s* — video `%s`", emoji, label, result.VideoID)
	blocks = append(blocks, goslack.NewSectionBlock(
		goslack.NewTextBlockObject(goslack.MarkdownType, headerText, false, false),
		nil, nil,
	))

	switch {
	case result.Pattern != nil:
		body := fmt.Sprintf("*Pattern:* %s (strength %.2f)", result.Pattern.Name, result.Pattern.Strength)
		if result.Report != nil && result.Report.Summary != "" {
			body += "\n" + truncateForSlack(result.Report.Summary)
		}
		blocks = append(blocks, goslack.NewSectionBlock(
			goslack.NewTextBlockObject(goslack.MarkdownType, body, false, false),
			nil, nil,
		))
	case result.Report != nil && result.Report.Summary != "":
		blocks = append(blocks, goslack.NewSectionBlock(
			goslack.NewTextBlockObject(goslack.MarkdownType, truncateForSlack(result.Report.Summary), false, false),
			nil, nil,
		))
	case result.Error != "":
		blocks = append(blocks, goslack.NewSectionBlock(
			goslack.NewTextBlockObject(goslack.MarkdownType, "*Error:*\n"+truncateForSlack(result.Error), false, false),
			nil, nil,
		))
	}

	url := sessionURL(result.SessionID, dashboardURL)
	buttonText := "View Full Analysis"
	if !result.Success {
		buttonText = "View Details"
	}

	btn := goslack.NewButtonBlockElement("", "", goslack.NewTextBlockObject(goslack.PlainTextType, buttonText, false, false))
	btn.URL = url
	blocks = append(blocks, goslack.NewActionBlock("", btn))

	return blocks
}

func truncateForSlack(text string) string {
	if len(text) <= maxBlockTextLength {
		return text
	}
	return text[:maxBlockTextLength] + "\n\n_... (truncated — view full analysis in dashboard)_"
}
