package internal

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

func (m *TUIModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			return m, tea.Quit
		case tea.KeyEnter:
			return m.handleEnter()
		}
	case connectedMsg:
		m.relay = msg.relay
		m.isConnected = true
		m.connectionError = nil
		m.appendSystem("connected to " + m.serverJoinURL)
		return m, tea.Batch(m.joinCmd(), m.waitForEventCmd())
	case connectFailedMsg:
		m.connectionError = msg.err
		return m, nil
	case disconnectedMsg:
		m.isConnected = false
		m.connectionError = msg.err
		m.appendSystem("connection lost")
		return m, nil
	case incomingMsg:
		return m.handleServerEvent(Envelope(msg))
	case fileSentMsg:
		m.statusNote = fmt.Sprintf("sent %s", msg.name)
		return m, nil
	case fileSavedMsg:
		m.statusNote = fmt.Sprintf("saved %s", msg.path)
		return m, nil
	case fileFailedMsg:
		m.appendSystem("file transfer failed: " + msg.err.Error())
		return m, nil
	}

	var cmd tea.Cmd
	m.textInput, cmd = m.textInput.Update(msg)
	return m, cmd
}

func (m *TUIModel) handleEnter() (tea.Model, tea.Cmd) {
	value := strings.TrimSpace(m.textInput.Value())
	m.textInput.Reset()

	switch m.mode {
	case modeNamePrompt:
		if value == "" {
			value = defaultUsername()
		}
		m.username = value
		if m.roomKey == "" {
			m.mode = modeRoomPrompt
			m.textInput.Placeholder = "Room to join…"
			return m, nil
		}
		m.mode = modeChat
		m.textInput.Placeholder = "Type a message…"
		return m, m.connectCmd()
	case modeRoomPrompt:
		if value == "" {
			return m, nil
		}
		m.roomKey = value
		m.mode = modeChat
		m.textInput.Placeholder = "Type a message…"
		return m, m.connectCmd()
	}

	if value == "" || !m.isConnected {
		return m, nil
	}
	if value == "/quit" {
		return m, tea.Quit
	}
	if path, ok := strings.CutPrefix(value, "/send "); ok {
		m.statusNote = "sending " + path
		return m, m.sendFileCmd(strings.TrimSpace(path))
	}
	return m, m.sendChatCmd(value)
}

func (m *TUIModel) handleServerEvent(envelope Envelope) (tea.Model, tea.Cmd) {
	cmds := []tea.Cmd{m.waitForEventCmd()}
	switch envelope.Event {
	case EventMessage:
		var notice MessageNotice
		if json.Unmarshal(envelope.Data, &notice) == nil {
			m.lines = append(m.lines, chatLine{
				user:   notice.User,
				text:   notice.Text,
				ts:     time.Now(),
				system: notice.User == systemUser,
			})
		}
	case EventFileMessage:
		var file FileMessage
		if json.Unmarshal(envelope.Data, &file) == nil {
			m.appendSystem(fmt.Sprintf("%s shared %s (%d bytes, %dms)", file.User, file.FileName, file.FileSize, file.TransferTime))
			cmds = append(cmds, m.saveFileCmd(file))
		}
	case EventChunkReceived:
		// per-chunk acks need no UI beyond the progress note set on send.
	case EventFileTransferError:
		var reason string
		if json.Unmarshal(envelope.Data, &reason) == nil {
			m.appendSystem("file transfer failed: " + reason)
		}
	}
	return m, tea.Batch(cmds...)
}

func (m *TUIModel) connectCmd() tea.Cmd {
	joinURL := m.serverJoinURL
	return func() tea.Msg {
		relay, err := DialRelay(joinURL)
		if err != nil {
			return connectFailedMsg{err: err}
		}
		return connectedMsg{relay: relay}
	}
}

func (m *TUIModel) joinCmd() tea.Cmd {
	relay, room, user := m.relay, m.roomKey, m.username
	return func() tea.Msg {
		if err := relay.Join(room, user); err != nil {
			return disconnectedMsg{err: err}
		}
		return nil
	}
}

// waitForEventCmd blocks on the relay's event stream and feeds one event
// back into the update loop; the handler re-arms it.
func (m *TUIModel) waitForEventCmd() tea.Cmd {
	relay := m.relay
	return func() tea.Msg {
		envelope, ok := <-relay.Events()
		if !ok {
			err := <-relay.ReadErr()
			return disconnectedMsg{err: err}
		}
		return incomingMsg(envelope)
	}
}

func (m *TUIModel) sendChatCmd(text string) tea.Cmd {
	relay, room, user := m.relay, m.roomKey, m.username
	return func() tea.Msg {
		if err := relay.SendChat(room, user, text); err != nil {
			return disconnectedMsg{err: err}
		}
		return nil
	}
}

func (m *TUIModel) sendFileCmd(path string) tea.Cmd {
	relay, room, user := m.relay, m.roomKey, m.username
	return func() tea.Msg {
		if err := relay.SendFile(room, user, path); err != nil {
			return fileFailedMsg{err: err}
		}
		return fileSentMsg{name: path}
	}
}

func (m *TUIModel) saveFileCmd(file FileMessage) tea.Cmd {
	dir := m.downloadDir
	return func() tea.Msg {
		path, err := SaveFileMessage(dir, file)
		if err != nil {
			return fileFailedMsg{err: err}
		}
		return fileSavedMsg{path: path}
	}
}
