package internal

import "strings"

// Credentials holds the JID and password typed into the login row.
type Credentials struct {
	JID      string
	Password string
}

// SetIdentifier stores the JID verbatim.
func (c *Credentials) SetIdentifier(text string) {
	c.JID = text
}

// SetSecret stores the password verbatim.
func (c *Credentials) SetSecret(text string) {
	c.Password = text
}

// IsReadyToConnect reports whether both values are non-blank.
func (c Credentials) IsReadyToConnect() bool {
	return strings.TrimSpace(c.JID) != "" && strings.TrimSpace(c.Password) != ""
}

// Clear wipes both values.
func (c *Credentials) Clear() {
	c.JID = ""
	c.Password = ""
}
