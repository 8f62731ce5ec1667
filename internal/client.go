package internal

import (
	"crypto/rand"
	"encoding/base32"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// this model holds the bubbletea state for the chat client, including the
// input, the message log, and the relay connection.
type TUIModel struct {
	textInput       textinput.Model
	lines           []chatLine
	serverJoinURL   string
	roomKey         string
	username        string
	downloadDir     string
	relay           *RelayConn
	isConnected     bool
	connectionError error
	statusNote      string
	mode            appMode
}

type chatLine struct {
	user   string
	text   string
	ts     time.Time
	system bool
}

// these are bubbletea messages that represent asynchronous events like
// connecting, receiving a server event, or losing the connection.
type (
	connectedMsg     struct{ relay *RelayConn }
	incomingMsg      Envelope
	connectFailedMsg struct{ err error }
	disconnectedMsg  struct{ err error }
	fileSavedMsg     struct{ path string }
	fileSentMsg      struct{ name string }
	fileFailedMsg    struct{ err error }
)

type appMode int

const (
	modeNamePrompt appMode = iota
	modeRoomPrompt
	modeChat
)

var (
	appTitleStyle      = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("213")).Padding(0, 1)
	chatHeaderStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("213")).BorderStyle(lipgloss.NormalBorder()).BorderBottom(true).BorderForeground(lipgloss.Color("63")).Padding(0, 1)
	statusStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("109")).MarginTop(1)
	connectedStyle     = statusStyle.Copy().Foreground(lipgloss.Color("42")).Bold(true)
	connectingStyle    = statusStyle.Copy().Foreground(lipgloss.Color("178")).Italic(true)
	messageBoxStyle    = lipgloss.NewStyle().BorderStyle(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("60")).Padding(1, 2).MarginTop(1)
	inputBoxStyle      = lipgloss.NewStyle().BorderStyle(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("63")).Padding(0, 1).MarginTop(1)
	timestampStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	usernameStyle      = lipgloss.NewStyle().Bold(true)
	activeUserStyle    = usernameStyle.Copy().Foreground(lipgloss.Color("213"))
	systemMessageStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Italic(true)
	errorStyle         = statusStyle.Copy().Foreground(lipgloss.Color("196")).Bold(true)
	hintStyle          = lipgloss.NewStyle().Foreground(lipgloss.Color("244")).MarginTop(1)
)

// this constructor builds a new chat ui model with a focused input and a
// sensible default username.
func NewTUIModel(serverJoinURL, roomKey, username, downloadDir string) *TUIModel {
	input := textinput.New()
	input.Placeholder = "Type a message…"
	input.CharLimit = 0
	input.Focus()
	input.Prompt = "> "

	model := &TUIModel{
		textInput:     input,
		lines:         make([]chatLine, 0, 64),
		serverJoinURL: serverJoinURL,
		roomKey:       roomKey,
		username:      username,
		downloadDir:   downloadDir,
		mode:          modeChat,
	}
	switch {
	case username == "":
		model.mode = modeNamePrompt
		model.textInput.Placeholder = "Pick a display name…"
	case roomKey == "":
		model.mode = modeRoomPrompt
		model.textInput.Placeholder = "Room to join…"
	}
	return model
}

// RunClient launches the terminal client and blocks until it exits.
func RunClient(serverJoinURL, roomKey, username, downloadDir string) error {
	model := NewTUIModel(serverJoinURL, roomKey, username, downloadDir)
	program := tea.NewProgram(model)
	_, err := program.Run()
	if model.relay != nil {
		_ = model.relay.Close()
	}
	return err
}

func (m *TUIModel) Init() tea.Cmd {
	if m.mode == modeChat {
		return tea.Batch(textinput.Blink, m.connectCmd())
	}
	return textinput.Blink
}

func (m *TUIModel) appendSystem(text string) {
	m.lines = append(m.lines, chatLine{user: systemUser, text: text, ts: time.Now(), system: true})
}

func defaultUsername() string {
	buf := make([]byte, 4)
	if _, err := rand.Read(buf); err != nil {
		return "ghost"
	}
	suffix := strings.ToLower(base32.StdEncoding.WithPadding(base32.NoPadding).EncodeToString(buf))
	return "ghost-" + suffix
}
