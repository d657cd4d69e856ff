package telegram

import (
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"clipper/internal/estimate"
	"clipper/internal/job"
	"clipper/internal/probe"
	"clipper/internal/workflow"
)

const (
	msgUnauthorized      = "❌ You are not authorized to use this bot."
	msgUnauthorizedShort = "❌ Unauthorized"
	msgBusy              = "⏳ You already have a video in progress. Send /cancel to stop it."
	msgNotRunning        = "🔧 The bot is restarting. Please try again in a minute."
	msgNothingToCancel   = "There is nothing to cancel."
	msgCancelling        = "🛑 Cancelling your video..."
	msgNotURL            = "❌ Invalid URL. Please provide a valid video link."
	msgUnknownCommand    = "Unknown command. Send /help for usage."
	msgStale             = "This request is no longer active."
	msgNoActiveJob       = "No video in progress. Send me a URL to start."
	msgCompleted         = "✅ Download complete! Check above for your video."
)

// Callback data prefixes. Data stays under the 64-byte limit: job ids are
// 26 characters and presets are addressed by index.
const (
	cbConfirm  = "confirm"
	cbDecline  = "decline"
	cbRetry    = "retry"
	cbSettings = "settings"
	cbPreset   = "preset"
	cbMenu     = "menu"
)

var titleCaser = cases.Title(language.English)

// StateTitle renders a state for people: "awaiting_confirmation" becomes
// "Awaiting Confirmation".
func StateTitle(state job.State) string {
	return titleCaser.String(strings.ReplaceAll(string(state), "_", " "))
}

func welcomeText() string {
	return "🎬 Video Download Bot\n\n" +
		"Send me a video URL from YouTube, TikTok, X, or any supported platform " +
		"and I'll download and encode it for you.\n\n" +
		"Use the buttons below to get started."
}

func helpText(ceilingBytes int64, preset estimate.Preset) string {
	var b strings.Builder
	b.WriteString("📖 How to Use\n\n")
	b.WriteString("1. Send me a video URL (YouTube, TikTok, X, etc.)\n")
	b.WriteString("2. Large videos are estimated first; confirm if the result fits\n")
	b.WriteString("3. I'll download, encode, and send you the file\n\n")
	b.WriteString("⚙️ Supported Platforms:\n")
	for _, name := range []string{"YouTube", "TikTok", "X (Twitter)", "Instagram", "Facebook"} {
		b.WriteString("• " + name + "\n")
	}
	b.WriteString("• And 1000+ more via yt-dlp\n\n")
	fmt.Fprintf(&b, "📊 File Size Limit: %s\n", estimate.FormatMB(ceilingBytes))
	fmt.Fprintf(&b, "🎬 Output: H.264 MP4, preset %s\n\n", preset.Name)
	b.WriteString("Commands: /start /help /settings /status /cancel")
	return b.String()
}

func urlPromptText() string {
	return "📎 Send me a video URL:\n\n" +
		"Examples:\n" +
		"• https://www.youtube.com/watch?v=...\n" +
		"• https://www.tiktok.com/@.../video/...\n" +
		"• https://x.com/.../status/..."
}

func settingsText(current estimate.Preset) string {
	var b strings.Builder
	b.WriteString("⚙️ Settings\n\n")
	fmt.Fprintf(&b, "Current preset: %s (%d kbps)\n\n", current.Name, current.BitrateKbps)
	b.WriteString("Lower bitrates fit longer videos under the upload limit.\n")
	b.WriteString("Pick a preset:")
	return b.String()
}

func activeText(snap job.Snapshot) string {
	var b strings.Builder
	fmt.Fprintf(&b, "📋 Current video: %s\n", StateTitle(snap.State))
	if snap.Progress > 0 {
		fmt.Fprintf(&b, "Progress: %.0f%%\n", snap.Progress)
	}
	fmt.Fprintf(&b, "Preset: %s\n", snap.Preset.Name)
	if snap.SourceBytes != nil {
		fmt.Fprintf(&b, "Source size: %s\n", estimate.FormatMB(*snap.SourceBytes))
	}
	return strings.TrimRight(b.String(), "\n")
}

// RenderStatus returns the status text and inline keyboard for a job. The
// keyboard is nil when the message should carry none.
func RenderStatus(snap job.Snapshot, event workflow.Event) (string, *tgbotapi.InlineKeyboardMarkup) {
	ceiling := estimate.FormatMB(event.CeilingBytes)
	switch snap.State {
	case job.StateCreated:
		return "🔍 Validating URL...", nil
	case job.StateProbing:
		return "📊 Checking video size...", nil
	case job.StateDirectProceed:
		return fmt.Sprintf("✅ Size OK (%s). Starting download...", estimate.FormatOptionalMB(snap.SourceBytes)), nil
	case job.StateAwaitingConfirmation:
		text := fmt.Sprintf("⚠️ This video is large\n\n"+
			"Source size: %s\n"+
			"Estimated output: %s (%s)\n"+
			"Upload limit: %s\n\n"+
			"The encoded file should fit. Continue?",
			estimate.FormatOptionalMB(snap.SourceBytes),
			estimate.FormatOptionalMB(snap.EstimateBytes), snap.Preset.Name,
			ceiling)
		markup := confirmKeyboard(snap.ID)
		return text, &markup
	case job.StateFetching:
		return withProgress("⬇️ Downloading video...", snap.Progress), nil
	case job.StateEncoding:
		return withProgress("⚙️ Encoding video (this may take a while)...", snap.Progress), nil
	case job.StateUploading:
		return "📤 Uploading to Telegram...", nil
	case job.StateCompleted:
		return msgCompleted, nil
	case job.StateRejected:
		return rejectedText(snap, ceiling, event.Suggestions), nil
	case job.StateCancelled:
		return cancelledText(snap.Reason), nil
	case job.StateFailed:
		markup := failureKeyboard(snap.ID, snap.Reason.Retryable())
		return failedText(snap, ceiling, event.Suggestions), &markup
	default:
		return StateTitle(snap.State), nil
	}
}

func withProgress(text string, percent float64) string {
	if percent <= 0 {
		return text
	}
	return fmt.Sprintf("%s\n%.0f%%", text, percent)
}

func rejectedText(snap job.Snapshot, ceiling string, suggestions []estimate.Preset) string {
	var b strings.Builder
	b.WriteString("❌ Video too large!\n\n")
	fmt.Fprintf(&b, "File size: %s\n", estimate.FormatOptionalMB(snap.SourceBytes))
	if snap.Reason == job.ReasonEstimateTooLarge {
		fmt.Fprintf(&b, "Estimated output: %s (%s)\n", estimate.FormatOptionalMB(snap.EstimateBytes), snap.Preset.Name)
	}
	fmt.Fprintf(&b, "Max size: %s\n\n", ceiling)
	if snap.Reason == job.ReasonSourceTooLargeNoEstimate {
		b.WriteString("The video length is unknown, so the encoded size cannot be estimated.\n")
	} else {
		b.WriteString("Even after encoding the file would not fit.\n")
	}
	b.WriteString("Please choose a shorter video")
	writeSuggestions(&b, suggestions)
	return b.String()
}

func writeSuggestions(b *strings.Builder, suggestions []estimate.Preset) {
	if len(suggestions) == 0 {
		b.WriteString(".")
		return
	}
	b.WriteString(" or a lower-bitrate preset in /settings:")
	for _, p := range suggestions {
		fmt.Fprintf(b, "\n• %s (%d kbps)", p.Name, p.BitrateKbps)
	}
}

func failedText(snap job.Snapshot, ceiling string, suggestions []estimate.Preset) string {
	switch snap.Reason {
	case job.ReasonProbeUnsupported:
		if probe.IsKnownPlatform(snap.SourceURL) {
			return "❌ This link is not a single downloadable video. Send a link to one video, not a playlist or profile."
		}
		return "❌ This URL is not supported. Try a link from YouTube, TikTok, X, Instagram or Facebook."
	case job.ReasonProbeUnreachable:
		return "❌ Could not reach the video. Check that the link is public and try again."
	case job.ReasonProbeTimeout:
		return "⌛ The site took too long to answer. Please try again."
	case job.ReasonDownloadFailed:
		return "❌ Download failed. The video may be private, removed or region-locked."
	case job.ReasonSourceTooLarge:
		var b strings.Builder
		fmt.Fprintf(&b, "❌ Downloaded video is too large!\n\nFile size: %s (max %s)\n\n", estimate.FormatOptionalMB(snap.FetchedBytes), ceiling)
		b.WriteString("Please choose a shorter video")
		writeSuggestions(&b, suggestions)
		return b.String()
	case job.ReasonEncodeFailed:
		return "❌ Encoding failed. Please try another video."
	case job.ReasonOutputTooLarge:
		var b strings.Builder
		fmt.Fprintf(&b, "❌ Encoded file is too large for Telegram!\n\nEncoded size: %s (max %s)\n\n", estimate.FormatOptionalMB(snap.OutputBytes), ceiling)
		b.WriteString("Try a shorter video")
		writeSuggestions(&b, suggestions)
		return b.String()
	case job.ReasonUploadFailed:
		return "❌ Upload to Telegram failed. Please try again."
	case job.ReasonTimeout:
		return "⌛ Processing took too long and was stopped. Try a shorter video."
	default:
		return "❌ Something went wrong. Please try again."
	}
}

func cancelledText(reason job.Reason) string {
	switch reason {
	case job.ReasonExpired:
		return "⌛ Confirmation expired. Send the URL again if you still want it."
	case job.ReasonShutdown:
		return "🛑 Stopped because the bot is restarting. Please send the URL again."
	default:
		return "🚫 Cancelled."
	}
}

func confirmKeyboard(jobID string) tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("✅ Continue", cbConfirm+":"+jobID),
		tgbotapi.NewInlineKeyboardButtonData("❌ Cancel", cbDecline+":"+jobID),
	))
}

func failureKeyboard(jobID string, retryable bool) tgbotapi.InlineKeyboardMarkup {
	row := make([]tgbotapi.InlineKeyboardButton, 0, 2)
	if retryable {
		row = append(row, tgbotapi.NewInlineKeyboardButtonData("🔁 Retry", cbRetry+":"+jobID))
	}
	row = append(row, tgbotapi.NewInlineKeyboardButtonData("⚙️ Settings", cbSettings))
	return tgbotapi.NewInlineKeyboardMarkup(row)
}

func mainMenuKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("📥 Start download", cbMenu+":download")),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("📖 Help", cbMenu+":help"),
			tgbotapi.NewInlineKeyboardButtonData("⚙️ Settings", cbSettings),
		),
	)
}

func backKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("⬅️ Back", cbMenu+":back"),
	))
}

func settingsKeyboard(presets []estimate.Preset, current estimate.Preset) tgbotapi.InlineKeyboardMarkup {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(presets)+1)
	for i, p := range presets {
		label := p.Name
		if strings.EqualFold(p.Name, current.Name) {
			label = "• " + label
		}
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(label, cbPreset+":"+strconv.Itoa(i)),
		))
	}
	rows = append(rows, tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("⬅️ Back", cbMenu+":back")))
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}
