package ui

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/term"
)

// GetInput asks for one line on stderr. password masks the echo.
func GetInput(prompt string, placeholder string, password bool) (string, error) {
	ti := textinput.New()
	ti.Placeholder = placeholder
	ti.Focus()
	ti.CharLimit = 156
	ti.Width = 40

	if password {
		ti.EchoMode = textinput.EchoPassword
		ti.EchoCharacter = '•'
	}

	m := inputModel{
		textInput: ti,
		prompt:    prompt,
	}

	// Use Stderr to avoid polluting stdout
	p := tea.NewProgram(m, tea.WithOutput(os.Stderr))
	finalModel, err := p.Run()
	if err != nil {
		return "", err
	}

	if m, ok := finalModel.(inputModel); ok && m.complete {
		return m.textInput.Value(), nil
	}
	return "", fmt.Errorf("cancelled")
}

// PromptMFA returns a token source that asks for a code for serial each
// time it is called. Prompts never overlap.
func PromptMFA(serial string) func() (string, error) {
	var mu sync.Mutex
	return func() (string, error) {
		mu.Lock()
		defer mu.Unlock()

		stdin := int(os.Stdin.Fd())
		if !term.IsTerminal(stdin) {
			return "", fmt.Errorf("MFA code for %s required but stdin is not a terminal", serial)
		}

		var (
			code string
			err  error
		)
		if Interactive() {
			code, err = GetInput("Enter MFA code for "+serial, "123456", true)
		} else {
			fmt.Fprintf(os.Stderr, "Enter MFA code for %s: ", serial)
			var raw []byte
			raw, err = term.ReadPassword(stdin)
			fmt.Fprintln(os.Stderr)
			code = string(raw)
		}
		if err != nil {
			return "", err
		}
		return ValidateMFACode(code)
	}
}

// ValidateMFACode trims code and checks it is six digits.
func ValidateMFACode(code string) (string, error) {
	code = strings.TrimSpace(code)
	if len(code) != 6 {
		return "", fmt.Errorf("MFA code must be 6 digits")
	}
	for _, c := range code {
		if c < '0' || c > '9' {
			return "", fmt.Errorf("MFA code must be 6 digits")
		}
	}
	return code, nil
}

type inputModel struct {
	textInput textinput.Model
	prompt    string
	complete  bool
	quitting  bool
}

func (m inputModel) Init() tea.Cmd {
	return textinput.Blink
}

func (m inputModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			m.quitting = true
			return m, tea.Quit
		case tea.KeyEnter:
			m.complete = true
			return m, tea.Quit
		}
	}

	m.textInput, cmd = m.textInput.Update(msg)
	return m, cmd
}

func (m inputModel) View() string {
	if m.complete {
		return ""
	}
	if m.quitting {
		return quitTextStyle.Render("Cancelled.")
	}
	return fmt.Sprintf(
		"\n%s\n\n%s\n\n",
		titleStyle.Render(m.prompt),
		m.textInput.View(),
	)
}
