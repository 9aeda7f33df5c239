package whatsapp

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Selectors are the DOM queries used against WhatsApp Web. Each list is tried
// in order; the first query that matches wins.
type Selectors struct {
	ChatList     []string `yaml:"chat_list"`
	QRCode       []string `yaml:"qr_code"`
	SendButton   []string `yaml:"send_button"`
	InvalidPhone []string `yaml:"invalid_phone"`
}

func DefaultSelectors() Selectors {
	return Selectors{
		ChatList: []string{
			`//div[@data-testid='chat-list']`,
			`//div[@id='pane-side']`,
			`//div[@id='side']`,
		},
		QRCode: []string{
			`//div[@data-ref]`,
			`//canvas[@aria-label='Scan me!']/..`,
		},
		SendButton: []string{
			`//span[@data-testid='send']/../..`,
			`//button[@data-testid='compose-btn-send']`,
			`//span[@data-icon='send']`,
			`//button[@aria-label='Send']`,
		},
		InvalidPhone: []string{
			`//div[contains(text(), 'Phone number shared via url is invalid')]`,
		},
	}
}

// LoadSelectors returns the defaults with any non-empty list from the YAML
// file at path replacing its default. An empty path returns the defaults.
func LoadSelectors(path string) (Selectors, error) {
	sel := DefaultSelectors()
	if path == "" {
		return sel, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return sel, fmt.Errorf("failed to read selectors file: %w", err)
	}
	var override Selectors
	if err := yaml.Unmarshal(data, &override); err != nil {
		return sel, fmt.Errorf("failed to parse selectors file: %w", err)
	}

	if len(override.ChatList) > 0 {
		sel.ChatList = override.ChatList
	}
	if len(override.QRCode) > 0 {
		sel.QRCode = override.QRCode
	}
	if len(override.SendButton) > 0 {
		sel.SendButton = override.SendButton
	}
	if len(override.InvalidPhone) > 0 {
		sel.InvalidPhone = override.InvalidPhone
	}
	return sel, nil
}
