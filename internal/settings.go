package internal

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	defaultResource       = "xmpp-shell"
	defaultHighlightStyle = "monokai"
	defaultConnectTimeout = 30 * time.Second
)

// Account is a saved set of credentials.
type Account struct {
	Name     string `yaml:"Name"`
	JID      string `yaml:"JID"`
	Password string `yaml:"Password"`
}

// ServerSettings overrides where and how the client connects.
type ServerSettings struct {
	Host               string        `yaml:"Host"`
	Port               int           `yaml:"Port"`
	InsecureSkipVerify bool          `yaml:"InsecureSkipVerify"`
	ConnectTimeout     time.Duration `yaml:"ConnectTimeout"`
}

type Settings struct {
	Accounts            []Account      `yaml:"Accounts"`
	Server              ServerSettings `yaml:"Server"`
	Resource            string         `yaml:"Resource"`
	EnableSounds        bool           `yaml:"EnableSounds"`
	EnableNotifications bool           `yaml:"EnableNotifications"`
	HighlightStyle      string         `yaml:"HighlightStyle"`
	Snippets            []Snippet      `yaml:"Snippets"`
}

// DefaultSettings returns the settings used when no config file exists.
func DefaultSettings() *Settings {
	s := &Settings{}
	s.applyDefaults()
	return s
}

func (s *Settings) applyDefaults() {
	if s.Resource == "" {
		s.Resource = defaultResource
	}
	if s.HighlightStyle == "" {
		s.HighlightStyle = defaultHighlightStyle
	}
	if s.Server.ConnectTimeout <= 0 {
		s.Server.ConnectTimeout = defaultConnectTimeout
	}
	if len(s.Snippets) == 0 {
		s.Snippets = defaultSnippets()
	}
}

// ServerAddress returns the connection override for the session controller.
func (s *Settings) ServerAddress() ServerAddress {
	return ServerAddress{Host: s.Server.Host, Port: s.Server.Port}
}

func (s *Settings) AddAccount(name, jid, password string) {
	s.Accounts = append(s.Accounts, Account{Name: name, JID: jid, Password: password})
}

// UpdateAccount replaces the account at index. Out of range indexes are ignored.
func (s *Settings) UpdateAccount(index int, acct Account) {
	if index < 0 || index >= len(s.Accounts) {
		return
	}
	s.Accounts[index] = acct
}

// RemoveAccount deletes the first account with the same name and JID.
func (s *Settings) RemoveAccount(acct Account) {
	for i, a := range s.Accounts {
		if a.Name == acct.Name && a.JID == acct.JID {
			s.Accounts = append(s.Accounts[:i], s.Accounts[i+1:]...)
			return
		}
	}
}

// ReadConfig loads settings from cfgPath. A missing file yields defaults.
func ReadConfig(cfgPath string) (*Settings, error) {
	fh, err := os.Open(cfgPath)
	if errors.Is(err, fs.ErrNotExist) {
		return DefaultSettings(), nil
	}
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = fh.Close()
	}()

	var prefs Settings
	decoder := yaml.NewDecoder(fh)
	if err := decoder.Decode(&prefs); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decode %s: %w", cfgPath, err)
	}
	prefs.applyDefaults()
	return &prefs, nil
}

// WriteConfig saves settings to cfgPath, creating parent directories.
func WriteConfig(cfgPath string, prefs *Settings) error {
	out, err := yaml.Marshal(prefs)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(cfgPath), 0o755); err != nil {
		return err
	}
	return os.WriteFile(cfgPath, out, 0o600)
}
