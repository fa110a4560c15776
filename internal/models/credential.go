// Package models defines the records the relay persists.
package models

// CredentialStatus is the outcome of the last authentication attempt.
type CredentialStatus string

const (
	StatusUnverified CredentialStatus = "unverified"
	StatusValid      CredentialStatus = "valid"
	StatusInvalid    CredentialStatus = "invalid"
)

// Credential is one storage-account login registered by a user. For the S3
// provider Email carries the access key id and Secret the secret key.
type Credential struct {
	Email     string           `json:"email"`
	Secret    string           `json:"secret"`
	Status    CredentialStatus `json:"status"`
	LastError string           `json:"error,omitempty"`
}

// Redacted returns a copy safe to show or log: the secret is blanked.
func (c Credential) Redacted() Credential {
	c.Secret = ""
	return c
}

// Document is the persisted state of every user's credentials: an ordered
// list per user id plus the explicitly selected index, if any. Repositories
// decide the on-disk layout.
type Document struct {
	Accounts map[int64][]Credential
	Selected map[int64]int
}

// NewDocument returns an empty Document with initialised maps.
func NewDocument() Document {
	return Document{
		Accounts: make(map[int64][]Credential),
		Selected: make(map[int64]int),
	}
}

// Clone deep-copies d so callers can hand it to a repository without
// holding the store lock.
func (d Document) Clone() Document {
	out := NewDocument()
	for user, creds := range d.Accounts {
		out.Accounts[user] = append([]Credential(nil), creds...)
	}
	for user, idx := range d.Selected {
		out.Selected[user] = idx
	}
	return out
}
