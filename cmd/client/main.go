// tcptalk TUI client.
//
// Layout
// ------
//
//	┌──────────────────────────────┬──────────────────────┐
//	│ message viewport             │ connected users      │
//	├──────────────────────────────┤                      │
//	│ input                        │                      │
//	├──────────────────────────────┴──────────────────────┤
//	│ version · connection status                          │
//	└──────────────────────────────────────────────────────┘
//
// Concurrency
// -----------
//
//	The username handshake runs on the plain terminal before the TUI starts.
//	Afterwards a single goroutine reads classified lines from the server and
//	forwards them to the lines channel.  The Bubbletea event loop consumes one
//	line at a time via waitForLine (a tea.Cmd), queuing the next read after
//	each line is processed.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"tcptalk/internal/client"
	"tcptalk/internal/protocol"
)

const version = "0.1.0"

// ---------------------------------------------------------------------------
// Styles
// ---------------------------------------------------------------------------

var (
	gray   = lipgloss.Color("241")
	white  = lipgloss.Color("255")
	yellow = lipgloss.Color("220")
	orange = lipgloss.Color("214")
	blue   = lipgloss.Color("75")
	dark   = lipgloss.Color("236")
	stone  = lipgloss.Color("59")

	versionStyle = lipgloss.NewStyle().
			Background(stone).
			Foreground(white).
			Padding(0, 1)

	connStyle = lipgloss.NewStyle().
			Background(dark).
			Foreground(gray).
			Padding(0, 1)

	inputBorderStyle = lipgloss.NewStyle().
				Border(lipgloss.NormalBorder(), true, false, false, false).
				BorderForeground(gray).
				Padding(0, 1)

	usersTitleStyle = lipgloss.NewStyle().Bold(true)
	usersStyle      = lipgloss.NewStyle().Foreground(white).Padding(1, 1)
	sysStyle        = lipgloss.NewStyle().Foreground(yellow).Italic(true)
	myNameStyle     = lipgloss.NewStyle().Bold(true).Foreground(orange)
	peerStyle       = lipgloss.NewStyle().Bold(true).Foreground(blue)
)

// ---------------------------------------------------------------------------
// Bubbletea message types
// ---------------------------------------------------------------------------

type serverLineMsg protocol.Line // a classified line arrived from the server
type disconnectedMsg struct{}    // server closed the connection

// sender is the write side of the connection.
type sender interface {
	Send(text string) error
}

// ---------------------------------------------------------------------------
// Model
// ---------------------------------------------------------------------------

type message struct {
	author  string
	content string
}

type model struct {
	conn  sender
	lines <-chan protocol.Line // goroutine → bubbletea bridge

	me         string
	serverAddr string
	users      []string
	messages   []message
	offline    bool

	ready     bool
	viewport  viewport.Model
	input     textinput.Model
	usersWide int

	width, height int
}

func newModel(conn sender, lines <-chan protocol.Line, me, serverAddr string, users []string) model {
	in := textinput.New()
	in.Placeholder = "Type a message…"
	in.Prompt = "> "
	in.CharLimit = protocol.DefaultMaxLine - protocol.MaxUsernameLen - 3
	in.Focus()

	return model{
		conn:       conn,
		lines:      lines,
		me:         me,
		serverAddr: serverAddr,
		users:      users,
		input:      in,
	}
}

// ---------------------------------------------------------------------------
// Tea interface – Init / Update
// ---------------------------------------------------------------------------

func (m model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, waitForLine(m.lines))
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.usersWide = min(50, msg.Width/3)
		w, h := m.width-m.usersWide, m.vpHeight()
		if !m.ready {
			m.viewport = viewport.New(w, h)
			m.ready = true
		} else {
			m.viewport.Width = w
			m.viewport.Height = h
		}
		m.input.Width = w - 6
		m.refresh(true)
		return m, nil

	case serverLineMsg:
		m = m.handleLine(protocol.Line(msg))
		return m, waitForLine(m.lines)

	case disconnectedMsg:
		m.offline = true
		m.appendMessage(protocol.ReservedName, "Server disconnected")
		return m, nil

	case tea.MouseMsg:
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

// vpHeight returns the number of lines available for the message viewport.
func (m model) vpHeight() int {
	// input border (1) + input (1) + status bar (1) = 3 lines reserved
	return max(1, m.height-3)
}

func (m model) handleKey(msg tea.KeyMsg) (model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyCtrlC, tea.KeyEsc:
		return m, tea.Quit

	case tea.KeyEnter:
		text := m.input.Value()
		if strings.TrimSpace(text) == "" || m.offline {
			return m, nil
		}
		// Echo locally: the server relays a line to everyone but its sender.
		m.appendMessage(m.me, strings.TrimSpace(text))
		if err := m.conn.Send(text); err != nil {
			m.appendMessage(protocol.ReservedName, fmt.Sprintf("Failed to send message: %v", err))
		}
		m.input.Reset()
		return m, nil

	case tea.KeyPgUp:
		m.viewport.HalfViewUp()
		return m, nil

	case tea.KeyPgDown:
		m.viewport.HalfViewDown()
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m model) handleLine(l protocol.Line) model {
	switch l.Kind {
	case protocol.KindRoster:
		m.users = l.Users
	default:
		m.appendMessage(l.Author, l.Content)
	}
	return m
}

// appendMessage adds a message and follows the tail if the user had not
// scrolled away from it.
func (m *model) appendMessage(author, content string) {
	follow := !m.ready || m.viewport.AtBottom()
	m.messages = append(m.messages, message{author: author, content: content})
	m.refresh(follow)
}

func (m *model) refresh(follow bool) {
	if !m.ready {
		return
	}
	m.viewport.SetContent(renderMessages(m.messages, m.me, m.viewport.Width-2))
	if follow {
		m.viewport.GotoBottom()
	}
}

// ---------------------------------------------------------------------------
// Tea interface – View
// ---------------------------------------------------------------------------

func (m model) View() string {
	if !m.ready {
		return "\n  Connecting…"
	}

	input := inputBorderStyle.Width(m.viewport.Width).Render(m.input.View())
	left := lipgloss.JoinVertical(lipgloss.Left, m.viewport.View(), input)
	right := usersStyle.
		Width(m.usersWide).
		Height(m.height - 1).
		Render(renderUsers(m.users))
	body := lipgloss.JoinHorizontal(lipgloss.Top, left, right)

	ver := versionStyle.Render("tcptalk v" + version)
	status := "Connected to " + m.serverAddr
	if m.offline {
		status = "Disconnected from " + m.serverAddr
	}
	conn := connStyle.Width(max(0, m.width-lipgloss.Width(ver))).Render(status)

	return lipgloss.JoinVertical(lipgloss.Left, body, lipgloss.JoinHorizontal(lipgloss.Top, ver, conn))
}

// renderMessages renders "author: content" entries separated by blank lines,
// wrapped to width.
func renderMessages(msgs []message, me string, width int) string {
	wrap := lipgloss.NewStyle().Width(max(1, width))
	out := make([]string, 0, len(msgs))
	for _, msg := range msgs {
		var name string
		switch msg.author {
		case protocol.ReservedName:
			out = append(out, wrap.Render(sysStyle.Render(msg.content)))
			continue
		case me:
			name = myNameStyle.Render(msg.author)
		default:
			name = peerStyle.Render(msg.author)
		}
		out = append(out, wrap.Render(name+": "+msg.content))
	}
	return strings.Join(out, "\n\n")
}

func renderUsers(users []string) string {
	lines := []string{usersTitleStyle.Render(fmt.Sprintf("List of current connections (%d)", len(users)))}
	for _, u := range users {
		lines = append(lines, "[o] "+u)
	}
	return strings.Join(lines, "\n")
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

// waitForLine returns a tea.Cmd that blocks until the next line arrives on ch.
// When ch is closed (server disconnected), it returns disconnectedMsg.
func waitForLine(ch <-chan protocol.Line) tea.Cmd {
	return func() tea.Msg {
		l, ok := <-ch
		if !ok {
			return disconnectedMsg{}
		}
		return serverLineMsg(l)
	}
}

// promptName asks on the plain terminal.  A preset name answers the first
// prompt only.
func promptName(in *bufio.Reader, preset string) client.AskFunc {
	return func(notice string) (string, error) {
		if notice != "" {
			fmt.Println(notice)
		}
		if preset != "" {
			name := preset
			preset = ""
			fmt.Println(protocol.Prompt + name)
			return name, nil
		}
		fmt.Print(protocol.Prompt)
		name, err := in.ReadString('\n')
		if err != nil && name == "" {
			// stdin closed before a name was typed
			return "", err
		}
		return name, nil
	}
}

// ---------------------------------------------------------------------------
// Main
// ---------------------------------------------------------------------------

func main() {
	addr := flag.String("addr", fmt.Sprintf("localhost:%d", protocol.DefaultPort), "server address")
	name := flag.String("name", "", "username to offer first (prompted when empty or rejected)")
	flag.Parse()

	cl, err := client.Dial(*addr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
	defer cl.Close()

	if err := cl.Handshake(promptName(bufio.NewReader(os.Stdin), *name)); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
	if err := cl.RequestUsers(); err != nil {
		fmt.Fprintf(os.Stderr, "request user list: %v\n", err)
	}

	// lines bridges the TCP reader goroutine and the Bubbletea event loop.
	lines := make(chan protocol.Line, 64)

	// Reader goroutine: TCP → lines channel.
	go func() {
		defer close(lines)
		for {
			l, err := cl.Next()
			if err != nil {
				return
			}
			lines <- l
		}
	}()

	p := tea.NewProgram(
		newModel(cl, lines, cl.Username(), *addr, cl.Users()),
		tea.WithAltScreen(),       // use the alternate screen buffer
		tea.WithMouseCellMotion(), // enable mouse wheel scrolling
	)
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
