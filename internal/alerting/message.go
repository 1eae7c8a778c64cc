package alerting

import (
	"fmt"
	"html"
	"strings"
)

type message struct {
	Subject string
	HTML    string
	Text    string
}

func renderMessage(alert Alert) message {
	price := alert.Price.StringFixed(2)
	score := fmt.Sprintf("%.2f", alert.Score)

	text := strings.Builder{}
	text.WriteString("[Distress Alert]\n")
	text.WriteString(fmt.Sprintf("%s\n", alert.Title))
	text.WriteString(fmt.Sprintf("Location: %s\n", alert.Location))
	text.WriteString(fmt.Sprintf("Price: %s\n", price))
	text.WriteString(fmt.Sprintf("Distress score: %s", score))

	body := strings.Builder{}
	body.WriteString("<h2>Distressed property alert</h2>\n")
	body.WriteString(fmt.Sprintf("<p><strong>%s</strong></p>\n", html.EscapeString(alert.Title)))
	body.WriteString("<ul>\n")
	body.WriteString(fmt.Sprintf("<li>Location: %s</li>\n", html.EscapeString(alert.Location)))
	body.WriteString(fmt.Sprintf("<li>Price: %s</li>\n", price))
	body.WriteString(fmt.Sprintf("<li>Distress score: %s</li>\n", score))
	body.WriteString("</ul>\n")

	return message{
		Subject: "Distress alert: " + sanitizeHeader(alert.Title),
		HTML:    body.String(),
		Text:    text.String(),
	}
}

func sanitizeHeader(v string) string {
	cleaned := strings.ReplaceAll(v, "\n", " ")
	cleaned = strings.ReplaceAll(cleaned, "\r", " ")
	return cleaned
}
