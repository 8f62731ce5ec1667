package internal

import (
	"fmt"
	"strings"
)

const maxVisibleLines = 18

func (m *TUIModel) View() string {
	var b strings.Builder

	switch m.mode {
	case modeNamePrompt:
		b.WriteString(appTitleStyle.Render("ghostchat"))
		b.WriteString("\n")
		b.WriteString(hintStyle.Render("Choose a display name (enter for a random one)."))
		b.WriteString("\n")
		b.WriteString(inputBoxStyle.Render(m.textInput.View()))
		return b.String()
	case modeRoomPrompt:
		b.WriteString(appTitleStyle.Render("ghostchat"))
		b.WriteString("\n")
		b.WriteString(hintStyle.Render("Which room should " + m.username + " join?"))
		b.WriteString("\n")
		b.WriteString(inputBoxStyle.Render(m.textInput.View()))
		return b.String()
	}

	b.WriteString(chatHeaderStyle.Render(fmt.Sprintf("ghostchat · room %s · %s", m.roomKey, m.username)))
	b.WriteString("\n")
	b.WriteString(messageBoxStyle.Render(m.renderLines()))
	b.WriteString("\n")
	b.WriteString(inputBoxStyle.Render(m.textInput.View()))
	b.WriteString("\n")
	b.WriteString(m.renderStatus())
	b.WriteString("\n")
	b.WriteString(hintStyle.Render("/send <path> to share a file · /quit or esc to leave"))
	return b.String()
}

func (m *TUIModel) renderLines() string {
	if len(m.lines) == 0 {
		return systemMessageStyle.Render("No messages yet.")
	}
	start := 0
	if len(m.lines) > maxVisibleLines {
		start = len(m.lines) - maxVisibleLines
	}
	rendered := make([]string, 0, len(m.lines)-start)
	for _, line := range m.lines[start:] {
		stamp := timestampStyle.Render(line.ts.Format("15:04"))
		if line.system {
			rendered = append(rendered, stamp+" "+systemMessageStyle.Render(line.text))
			continue
		}
		name := usernameStyle.Render(line.user)
		if line.user == m.username {
			name = activeUserStyle.Render(line.user)
		}
		rendered = append(rendered, fmt.Sprintf("%s %s: %s", stamp, name, line.text))
	}
	return strings.Join(rendered, "\n")
}

func (m *TUIModel) renderStatus() string {
	switch {
	case m.connectionError != nil:
		return errorStyle.Render("error: " + m.connectionError.Error())
	case !m.isConnected:
		return connectingStyle.Render("connecting…")
	case m.statusNote != "":
		return connectedStyle.Render("connected") + statusStyle.Render(" · "+m.statusNote)
	default:
		return connectedStyle.Render("connected")
	}
}
