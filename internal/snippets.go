package internal

import (
	"strings"

	"github.com/google/uuid"
)

// Snippet is a stanza template that can be inserted into the draft.
//
// Placeholders: $id is replaced with a fresh identifier, $jid with the bare
// JID from the login row and $domain with its domain part.
type Snippet struct {
	Name string `yaml:"Name"`
	Body string `yaml:"Body"`
}

func defaultSnippets() []Snippet {
	return []Snippet{
		{Name: "Initial presence", Body: `<presence/>`},
		{Name: "Roster get", Body: `<iq type="get" id="$id"><query xmlns="jabber:iq:roster"/></iq>`},
		{Name: "Ping server", Body: `<iq type="get" id="$id" to="$domain"><ping xmlns="urn:xmpp:ping"/></iq>`},
		{Name: "Service discovery", Body: `<iq type="get" id="$id" to="$domain"><query xmlns="http://jabber.org/protocol/disco#info"/></iq>`},
		{Name: "Chat message", Body: `<message type="chat" to="$jid" id="$id"><body>Hello</body></message>`},
		{Name: "vCard get", Body: `<iq type="get" id="$id"><vCard xmlns="vcard-temp"/></iq>`},
	}
}

// Expand substitutes placeholders using the given JID.
func (s Snippet) Expand(jid string) string {
	bare, domain := splitJID(jid)

	r := strings.NewReplacer(
		"$id", newStanzaID(),
		"$jid", bare,
		"$domain", domain,
	)
	return r.Replace(s.Body)
}

// splitJID returns the bare form of jid and its domain part.
func splitJID(jid string) (bare, domain string) {
	bare = strings.TrimSpace(jid)
	if i := strings.IndexByte(bare, '/'); i >= 0 {
		bare = bare[:i]
	}
	domain = bare
	if i := strings.LastIndexByte(domain, '@'); i >= 0 {
		domain = domain[i+1:]
	}
	return bare, domain
}

func newStanzaID() string {
	return strings.SplitN(uuid.New().String(), "-", 2)[0]
}
